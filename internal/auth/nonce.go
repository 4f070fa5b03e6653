package auth

import (
	"container/list"
	"errors"
	"sync"
	"time"
)

var (
	errNonceUsed = errors.New("auth: nonce already used")

	// ErrReplayCacheFull is returned when every cached nonce is still within
	// its TTL and no room is left to record a new one.
	ErrReplayCacheFull = errors.New("auth: replay cache full")
)

type nonceEntry struct {
	seenAt  time.Time
	element *list.Element
}

// nonceCache is a TTL- and size-bounded set of used nonces. Insertion order
// is kept in a list so expired entries can be dropped from the front. Live
// entries are never evicted.
type nonceCache struct {
	mu      sync.Mutex
	seen    map[string]*nonceEntry
	order   *list.List
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

func newNonceCache(ttl time.Duration, maxSize int) *nonceCache {
	return &nonceCache{
		seen:    make(map[string]*nonceEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// checkAndMark marks key as used. It fails with errNonceUsed if key was seen
// within the TTL and with ErrReplayCacheFull if the cache holds only live
// entries.
func (c *nonceCache) checkAndMark(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.expireLocked(now)

	if _, ok := c.seen[key]; ok {
		return errNonceUsed
	}
	if len(c.seen) >= c.maxSize {
		return ErrReplayCacheFull
	}
	c.seen[key] = &nonceEntry{seenAt: now, element: c.order.PushBack(key)}
	return nil
}

// expireLocked drops entries older than the TTL from the front of the list.
func (c *nonceCache) expireLocked(now time.Time) {
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		key := front.Value.(string)
		if now.Sub(c.seen[key].seenAt) < c.ttl {
			return
		}
		c.order.Remove(front)
		delete(c.seen, key)
	}
}

func (c *nonceCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

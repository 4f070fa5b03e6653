package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/starford/ledger/internal/models"
)

const (
	// DefaultMaxAge is the maximum age of a signature timestamp.
	DefaultMaxAge = 5 * time.Minute

	// MaxClockSkew is how far in the future a timestamp may be.
	MaxClockSkew = time.Minute

	nonceCacheSize = 100000

	// Request headers carrying the signature.
	PubkeyHeader    = "X-Ledger-Pubkey"
	SignatureHeader = "X-Ledger-Signature"
	TimestampHeader = "X-Ledger-Timestamp"
	NonceHeader     = "X-Ledger-Nonce"
)

// ErrMissingSignature is returned when a request carries no signature headers.
var ErrMissingSignature = errors.New("auth: missing signature")

// SignedRequest holds the signature fields of one request.
type SignedRequest struct {
	Pubkey    string // authorized_keys format, e.g. "ssh-ed25519 AAAA..."
	Signature string // base64 of ssh.Marshal(*ssh.Signature)
	Timestamp int64
	Nonce     string
	Method    string
	Path      string
	Body      []byte
}

// Message returns the bytes that the caller signs.
func (r *SignedRequest) Message() []byte {
	sum := sha256.Sum256(r.Body)
	return []byte(fmt.Sprintf("%d|%s|%s|%s|%s",
		r.Timestamp, r.Nonce, strings.ToUpper(r.Method), r.Path, hex.EncodeToString(sum[:])))
}

// FromHTTP extracts the signature headers of r. body is the already-read
// request body.
func FromHTTP(r *http.Request, body []byte) (*SignedRequest, error) {
	pubkey := strings.TrimSpace(r.Header.Get(PubkeyHeader))
	sig := strings.TrimSpace(r.Header.Get(SignatureHeader))
	ts := strings.TrimSpace(r.Header.Get(TimestampHeader))
	nonce := strings.TrimSpace(r.Header.Get(NonceHeader))

	if pubkey == "" && sig == "" && ts == "" && nonce == "" {
		return nil, ErrMissingSignature
	}
	timestamp, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("auth: invalid timestamp: %w", err)
	}
	if nonce == "" {
		return nil, errors.New("auth: nonce is required")
	}
	return &SignedRequest{
		Pubkey:    pubkey,
		Signature: sig,
		Timestamp: timestamp,
		Nonce:     nonce,
		Method:    r.Method,
		Path:      r.URL.Path,
		Body:      body,
	}, nil
}

// Verifier checks request signatures and rejects replayed nonces.
type Verifier struct {
	maxAge time.Duration
	nonces *nonceCache
	now    func() time.Time
}

// NewVerifier creates a verifier accepting signatures up to maxAge old.
// A non-positive maxAge means DefaultMaxAge.
func NewVerifier(maxAge time.Duration) *Verifier {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Verifier{
		maxAge: maxAge,
		nonces: newNonceCache(maxAge+MaxClockSkew, nonceCacheSize),
		now:    time.Now,
	}
}

// Verify checks the signature on req and returns the caller identity.
func (v *Verifier) Verify(req *SignedRequest) (models.Identity, error) {
	var id models.Identity

	pubkey, _, _, _, err := ssh.ParseAuthorizedKey([]byte(req.Pubkey))
	if err != nil {
		return id, fmt.Errorf("auth: invalid public key: %w", err)
	}
	if pubkey.Type() != ssh.KeyAlgoED25519 {
		return id, fmt.Errorf("auth: unsupported key type %s", pubkey.Type())
	}

	age := v.now().Sub(time.Unix(req.Timestamp, 0))
	if age < -MaxClockSkew {
		return id, errors.New("auth: timestamp is in the future")
	}
	if age > v.maxAge {
		return id, fmt.Errorf("auth: signature expired (age: %v, max: %v)", age, v.maxAge)
	}

	raw, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil {
		return id, fmt.Errorf("auth: invalid signature encoding: %w", err)
	}
	sig := new(ssh.Signature)
	if err := ssh.Unmarshal(raw, sig); err != nil {
		return id, fmt.Errorf("auth: invalid signature format: %w", err)
	}
	if err := pubkey.Verify(req.Message(), sig); err != nil {
		return id, fmt.Errorf("auth: signature verification failed: %w", err)
	}

	// Keyed by identity so one caller cannot burn another's nonces.
	id = IdentityOf(pubkey)
	if err := v.nonces.checkAndMark(fmt.Sprintf("%s:%d:%s", id, req.Timestamp, req.Nonce)); err != nil {
		return models.Identity{}, err
	}
	return id, nil
}

// IdentityOf returns the identity token for an SSH public key.
func IdentityOf(pubkey ssh.PublicKey) models.Identity {
	return models.Identity(sha256.Sum256(pubkey.Marshal()))
}

// ParseIdentity parses an authorized_keys line and returns its identity.
func ParseIdentity(pubkey string) (models.Identity, error) {
	pk, _, _, _, err := ssh.ParseAuthorizedKey([]byte(pubkey))
	if err != nil {
		return models.Identity{}, fmt.Errorf("auth: invalid public key: %w", err)
	}
	return IdentityOf(pk), nil
}

package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// Sign sets the signature headers on r for body using signer. r.URL.Path
// and r.Method must already be final.
func Sign(r *http.Request, body []byte, signer ssh.Signer, now time.Time) error {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("auth: nonce: %w", err)
	}
	req := &SignedRequest{
		Timestamp: now.Unix(),
		Nonce:     hex.EncodeToString(nonce),
		Method:    r.Method,
		Path:      r.URL.Path,
		Body:      body,
	}
	sig, err := signer.Sign(rand.Reader, req.Message())
	if err != nil {
		return fmt.Errorf("auth: sign: %w", err)
	}
	r.Header.Set(PubkeyHeader, strings.TrimSpace(string(ssh.MarshalAuthorizedKey(signer.PublicKey()))))
	r.Header.Set(SignatureHeader, base64.StdEncoding.EncodeToString(ssh.Marshal(sig)))
	r.Header.Set(TimestampHeader, strconv.FormatInt(req.Timestamp, 10))
	r.Header.Set(NonceHeader, req.Nonce)
	return nil
}

// Package api implements the ledger REST API using chi.
package api

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starford/ledger/internal/auth"
)

// maxBodyBytes bounds request bodies. Record payloads are far smaller.
const maxBodyBytes = 1 << 20

// AuthMiddleware returns middleware that validates a Bearer token.
// If enabled is false, all requests pass through (disabled mode).
// If enabled is true, requests must carry a valid "Authorization: Bearer <token>" header.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") || strings.TrimPrefix(h, "Bearer ") != token {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SignatureMiddleware verifies the SSH signature headers on a request and
// stores the caller identity in the request context. The body is read once
// for verification and restored for the handler.
func SignatureMiddleware(v *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err != nil {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("request body too large"))
				return
			}
			sreq, err := auth.FromHTTP(r, body)
			if err != nil {
				msg := "invalid signature headers"
				if errors.Is(err, auth.ErrMissingSignature) {
					msg = "signature required"
				}
				writeJSON(w, http.StatusUnauthorized, errorBody(msg))
				return
			}
			id, err := v.Verify(sreq)
			if errors.Is(err, auth.ErrReplayCacheFull) {
				slog.Error("replay cache full", slog.String("path", r.URL.Path))
				writeJSON(w, http.StatusServiceUnavailable, errorBody("replay cache full"))
				return
			}
			if err != nil {
				slog.Warn("signature rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()))
				writeJSON(w, http.StatusUnauthorized, errorBody("invalid signature"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

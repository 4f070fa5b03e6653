package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ledger/internal/auth"
	"github.com/starford/ledger/internal/ledger"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// verifier checks the signatures on mutating routes.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *ledger.Service, authEnabled bool, token string, verifier *auth.Verifier, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Stores and records.
	r.Get("/stores/{id}", h.GetStore)
	r.Get("/stores/{id}/records", h.ListRecords)
	r.Get("/stores/{id}/records/{index}", h.GetRecord)
	r.Get("/authors/{author}/records", h.RecordsByAuthor)

	// Mutations carry a caller signature.
	r.Group(func(r chi.Router) {
		r.Use(SignatureMiddleware(verifier))
		r.Post("/stores", h.CreateStore)
		r.Post("/stores/{id}/records", h.AppendRecord)
		r.Put("/stores/{id}/records/{index}", h.UpdateRecord)
	})

	// Search.
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}

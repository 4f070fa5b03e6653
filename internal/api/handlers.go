package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ledger/internal/auth"
	"github.com/starford/ledger/internal/ledger"
	"github.com/starford/ledger/internal/models"
	"github.com/starford/ledger/internal/recordstore"
)

// Handler holds API route handlers.
type Handler struct {
	svc *ledger.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *ledger.Service) *Handler {
	return &Handler{svc: svc}
}

func recordIndex(r *http.Request) (uint64, bool) {
	idx, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 64)
	return idx, err == nil
}

func paging(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit, _ = strconv.Atoi(q.Get("limit"))
	offset, _ = strconv.Atoi(q.Get("offset"))
	return limit, offset
}

// caller returns the verified identity placed in the context by
// SignatureMiddleware.
func caller(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("signature required"))
	}
	return id, ok
}

func decodeRecordRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req RecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return "", false
	}
	if req.Data == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("data is required"))
		return "", false
	}
	return *req.Data, true
}

// CreateStore handles POST /api/stores.
//
//	@Summary		Allocate and initialize a new record store
//	@Tags			stores
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateStoreRequest	false	"Store capacity"
//	@Success		201		{object}	StoreInfo
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stores [post]
func (h *Handler) CreateStore(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req CreateStoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	info, err := h.svc.CreateStore(r.Context(), id, recordstore.Config{
		MaxRecords:    req.MaxRecords,
		MaxDataLength: req.MaxDataLength,
	})
	if err != nil {
		writeError(w, "create store", err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// GetStore handles GET /api/stores/{id}.
//
//	@Summary		Get store state
//	@Tags			stores
//	@Produce		json
//	@Param			id	path		string	true	"Store ID"
//	@Success		200	{object}	StoreInfo
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stores/{id} [get]
func (h *Handler) GetStore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	info, err := h.svc.GetStore(r.Context(), id)
	if err != nil {
		writeError(w, "get store", err, slog.String("store", id))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// AppendRecord handles POST /api/stores/{id}/records.
//
//	@Summary		Append a record authored by the signing caller
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Store ID"
//	@Param			body	body		RecordRequest	true	"Record data"
//	@Success		201		{object}	RecordView
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		413		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stores/{id}/records [post]
func (h *Handler) AppendRecord(w http.ResponseWriter, r *http.Request) {
	author, ok := caller(w, r)
	if !ok {
		return
	}
	data, ok := decodeRecordRequest(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	rec, err := h.svc.AppendRecord(r.Context(), id, author, data)
	if err != nil {
		writeError(w, "append record", err, slog.String("store", id))
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// UpdateRecord handles PUT /api/stores/{id}/records/{index}.
//
//	@Summary		Replace the data of a record owned by the signing caller
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Store ID"
//	@Param			index	path		int				true	"Record index"
//	@Param			body	body		RecordRequest	true	"New data"
//	@Success		200		{object}	RecordView
//	@Failure		403		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		413		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stores/{id}/records/{index} [put]
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	author, ok := caller(w, r)
	if !ok {
		return
	}
	idx, ok := recordIndex(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid record index"))
		return
	}
	data, ok := decodeRecordRequest(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	rec, err := h.svc.UpdateRecord(r.Context(), id, author, idx, data)
	if err != nil {
		writeError(w, "update record", err, slog.String("store", id), slog.Uint64("index", idx))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetRecord handles GET /api/stores/{id}/records/{index}.
//
//	@Summary		Read one record
//	@Tags			records
//	@Produce		json
//	@Param			id		path		string	true	"Store ID"
//	@Param			index	path		int		true	"Record index"
//	@Success		200		{object}	RecordView
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stores/{id}/records/{index} [get]
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	idx, ok := recordIndex(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid record index"))
		return
	}
	id := chi.URLParam(r, "id")
	rec, err := h.svc.GetRecord(r.Context(), id, idx)
	if err != nil {
		writeError(w, "get record", err, slog.String("store", id), slog.Uint64("index", idx))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListRecords handles GET /api/stores/{id}/records.
//
//	@Summary		List a store's records with optional author filter
//	@Tags			records
//	@Produce		json
//	@Param			id		path		string	true	"Store ID"
//	@Param			author	query		string	false	"Author identity (hex)"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	RecordListResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stores/{id}/records [get]
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	var author models.Identity
	if a := r.URL.Query().Get("author"); a != "" {
		parsed, err := models.ParseIdentity(a)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid author"))
			return
		}
		author = parsed
	}
	limit, offset := paging(r)
	id := chi.URLParam(r, "id")
	recs, total, err := h.svc.ListRecords(r.Context(), id, author, limit, offset)
	if err != nil {
		writeError(w, "list records", err, slog.String("store", id))
		return
	}
	writeJSON(w, http.StatusOK, RecordListResponse{Records: recs, Total: total})
}

// RecordsByAuthor handles GET /api/authors/{author}/records.
//
//	@Summary		List records written by an author across all stores
//	@Tags			records
//	@Produce		json
//	@Param			author	path		string	true	"Author identity (hex)"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	RecordListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/authors/{author}/records [get]
func (h *Handler) RecordsByAuthor(w http.ResponseWriter, r *http.Request) {
	author, err := models.ParseIdentity(chi.URLParam(r, "author"))
	if err != nil || author.IsZero() {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid author"))
		return
	}
	limit, offset := paging(r)
	recs, total, err := h.svc.RecordsByAuthor(r.Context(), author, limit, offset)
	if err != nil {
		writeError(w, "records by author", err)
		return
	}
	writeJSON(w, http.StatusOK, RecordListResponse{Records: recs, Total: total})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across record data
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	hits, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err, slog.String("query", q))
		return
	}
	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, SearchResult(hit))
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

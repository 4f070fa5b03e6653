package api

import (
	"github.com/starford/ledger/internal/ledger"
)

// CreateStoreRequest is the request body for creating a store. Omitted
// fields take the server defaults.
type CreateStoreRequest struct {
	MaxRecords    uint64 `json:"max_records,omitempty" example:"1000"`
	MaxDataLength uint32 `json:"max_data_length,omitempty" example:"200"`
}

// RecordRequest is the request body for appending or updating a record.
type RecordRequest struct {
	Data *string `json:"data" example:"hello" validate:"required"`
}

// StoreInfo is the store response type (aliased from the domain layer).
type StoreInfo = ledger.StoreInfo

// RecordView is the record response type (aliased from the domain layer).
type RecordView = ledger.RecordView

// RecordListResponse wraps paginated record listings.
type RecordListResponse struct {
	Records []RecordView `json:"records" validate:"required"`
	Total   int          `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	StoreID string `json:"store_id" example:"0b8f..." validate:"required"`
	Index   uint64 `json:"index" example:"3" validate:"required"`
	Author  string `json:"author" example:"9f86d0..." validate:"required"`
	Snippet string `json:"snippet" example:"...matched text..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

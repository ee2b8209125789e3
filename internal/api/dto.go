package api

import (
	"github.com/starford/askwiki/internal/catalog"
	"github.com/starford/askwiki/internal/kbservice"
)

// AskBatchRequest is the request body for answering several questions.
type AskBatchRequest struct {
	Questions []string `json:"questions" example:"How do I reset my password?,VPN error 809" validate:"required"`
	Threshold *float64 `json:"threshold,omitempty" example:"0.2"`
}

// Answer is the answer response type (aliased from the domain layer).
type Answer = kbservice.Answer

// AskBatchResponse wraps batch answers in question order.
type AskBatchResponse struct {
	Answers []Answer `json:"answers" validate:"required"`
}

// SearchHit is a single ranked entry (aliased from the domain layer).
type SearchHit = kbservice.SearchHit

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchHit `json:"results" validate:"required"`
}

// EntryItem is a lightweight entry (aliased from the domain layer).
type EntryItem = kbservice.EntryItem

// EntryListResponse wraps entry listings.
type EntryListResponse struct {
	Entries []EntryItem `json:"entries" validate:"required"`
	Total   int         `json:"total" example:"42" validate:"required"`
}

// EntryDetail is the full entry response type (aliased from the domain layer).
type EntryDetail = kbservice.EntryDetail

// Status is the snapshot status response type (aliased from the domain layer).
type Status = kbservice.Status

// ReloadResponse reports the outcome of a reload.
type ReloadResponse struct {
	Kind       string `json:"kind" example:"kb.reloaded" validate:"required"`
	Generation int64  `json:"generation" example:"3"`
	Checksum   string `json:"checksum,omitempty" example:"9f86d0..."`
	Entries    int    `json:"entries" example:"42"`
	Dropped    int    `json:"dropped" example:"0"`
	Warnings   int    `json:"warnings" example:"1"`
}

// Generation is a recorded build (aliased from the catalog).
type Generation = catalog.Generation

// GenerationListResponse wraps generation listings.
type GenerationListResponse struct {
	Generations []Generation `json:"generations" validate:"required"`
}

// GenerationDetail is a recorded build with entries and warnings.
type GenerationDetail = kbservice.GenerationDetail

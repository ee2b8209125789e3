package kbservice

import (
	"time"

	"github.com/starford/askwiki/internal/catalog"
	"github.com/starford/askwiki/internal/docparse"
	"github.com/starford/askwiki/internal/reload"
)

// Answer is the outcome of one question.
type Answer struct {
	Question   string   `json:"question"`
	Found      bool     `json:"found"`
	EntryID    int      `json:"entry_id,omitempty"`
	Title      string   `json:"title,omitempty"`
	Score      float64  `json:"score"`
	Excerpt    string   `json:"excerpt,omitempty"`
	Truncated  bool     `json:"truncated,omitempty"`
	Terms      []string `json:"terms,omitempty"`
	Reply      string   `json:"reply"`
	Checksum   string   `json:"checksum"`
	Generation int64    `json:"generation,omitempty"`
}

// SearchHit is one ranked entry.
type SearchHit struct {
	EntryID int     `json:"id"`
	Title   string  `json:"title"`
	Score   float64 `json:"score"`
	Overlap int     `json:"overlap"`
	Excerpt string  `json:"excerpt"`
}

// EntryItem is a lightweight entry in a list response.
type EntryItem struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Tokens int    `json:"tokens"`
}

// EntryDetail is the full representation of an entry.
type EntryDetail struct {
	ID       int        `json:"id"`
	Title    string     `json:"title"`
	Body     string     `json:"body"`
	Tokens   int        `json:"tokens"`
	TopTerms []TermInfo `json:"top_terms"`
}

// TermInfo is a term and its TF-IDF weight within an entry.
type TermInfo struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// Status describes the active snapshot.
type Status struct {
	Ready        bool               `json:"ready"`
	Source       string             `json:"source,omitempty"`
	Format       string             `json:"format,omitempty"`
	HeadingLevel int                `json:"heading_level,omitempty"`
	Title        string             `json:"title,omitempty"`
	Encoding     string             `json:"encoding,omitempty"`
	Checksum     string             `json:"checksum,omitempty"`
	Generation   int64              `json:"generation"`
	Entries      int                `json:"entries"`
	Dropped      int                `json:"dropped"`
	Vocabulary   int                `json:"vocabulary"`
	Threshold    float64            `json:"threshold"`
	Warnings     []docparse.Warning `json:"warnings,omitempty"`
	BuiltAt      time.Time          `json:"built_at,omitzero"`
	LastReload   *reload.Event      `json:"last_reload,omitempty"`
}

// GenerationDetail is a recorded build with its entries and warnings.
type GenerationDetail struct {
	catalog.Generation
	EntryList   []catalog.EntrySummary `json:"entry_list"`
	WarningList []docparse.Warning     `json:"warning_list"`
}

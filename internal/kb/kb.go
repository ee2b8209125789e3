// Package kb builds an immutable TF-IDF knowledge base from a structured
// document and matches free-text questions against it.
//
// A KnowledgeBase is never modified after construction. Reload returns a new
// snapshot; Holder installs it with an atomic pointer swap so queries already
// running keep the snapshot they started with.
package kb

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/starford/askwiki/internal/docparse"
	"github.com/starford/askwiki/internal/textnorm"
)

// ErrBuildFailure wraps every error that prevents a knowledge base from
// being built at all.
var ErrBuildFailure = errors.New("kb: build failure")

// BuildOptions controls how a document becomes a knowledge base. Reload
// reuses the options of the snapshot it is called on.
type BuildOptions struct {
	Format       docparse.Format
	HeadingLevel int
	Normalizer   *textnorm.Normalizer
}

func (o BuildOptions) withDefaults() BuildOptions {
	if o.Normalizer == nil {
		o.Normalizer = textnorm.New()
	}
	if o.Format == "" {
		o.Format = docparse.FormatHTML
	}
	if o.HeadingLevel == 0 {
		o.HeadingLevel = docparse.DefaultHeadingLevel
	}
	return o
}

// Entry is one indexed title/body unit. Tokens and TermWeights are shared
// with the snapshot and must not be modified.
type Entry struct {
	ID          int
	Title       string
	Body        string
	Tokens      []string
	TermWeights map[string]float64

	vec  []termWeight // sorted by term id
	norm float64
}

type termWeight struct {
	term   int
	weight float64
}

// KnowledgeBase is an immutable snapshot of the indexed document.
type KnowledgeBase struct {
	opts     BuildOptions
	title    string
	encoding string
	checksum string
	builtAt  time.Time
	warnings []docparse.Warning
	dropped  int

	// generation is stamped by whoever installs the snapshot; 0 until then.
	generation int64

	entries []Entry
	byID    map[int]int
	vocab   map[string]int
	idf     []float64
	df      []int
}

// Build parses data and indexes the resulting sections. Parse warnings are
// returned alongside a usable knowledge base; only an undecodable document
// or invalid options produce an error, always wrapping ErrBuildFailure.
func Build(data []byte, opts BuildOptions) (*KnowledgeBase, []docparse.Warning, error) {
	opts = opts.withDefaults()
	doc, err := docparse.Parse(data, docparse.Options{Format: opts.Format, HeadingLevel: opts.HeadingLevel})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrBuildFailure, err)
	}

	k := FromSections(doc.Sections, opts)
	k.title = doc.Title
	k.encoding = doc.Encoding
	k.checksum = Checksum(data)
	k.warnings = doc.Warnings
	return k, doc.Warnings, nil
}

// Reload builds a fresh snapshot from data with the receiver's options. The
// receiver is left untouched; installing the result is up to the caller.
func (k *KnowledgeBase) Reload(data []byte) (*KnowledgeBase, []docparse.Warning, error) {
	return Build(data, k.opts)
}

// Checksum returns the hex SHA-256 of data, used to tell document versions apart.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Len returns the number of indexed entries.
func (k *KnowledgeBase) Len() int { return len(k.entries) }

// Entries returns the indexed entries in document order.
func (k *KnowledgeBase) Entries() []Entry {
	out := make([]Entry, len(k.entries))
	copy(out, k.entries)
	return out
}

// Entry looks up an entry by id.
func (k *KnowledgeBase) Entry(id int) (Entry, bool) {
	i, ok := k.byID[id]
	if !ok {
		return Entry{}, false
	}
	return k.entries[i], true
}

// Title is the document title when the format carries one.
func (k *KnowledgeBase) Title() string { return k.title }

// Encoding is the source encoding the document was decoded from.
func (k *KnowledgeBase) Encoding() string { return k.encoding }

// Checksum identifies the document bytes this snapshot was built from.
func (k *KnowledgeBase) Checksum() string { return k.checksum }

// Generation is the build number stamped by WithGeneration, 0 if unset.
func (k *KnowledgeBase) Generation() int64 { return k.generation }

// WithGeneration returns a copy of k stamped with gen. The index data is
// shared; both snapshots stay read-only.
func (k *KnowledgeBase) WithGeneration(gen int64) *KnowledgeBase {
	c := *k
	c.generation = gen
	return &c
}

// BuiltAt reports when the snapshot was created.
func (k *KnowledgeBase) BuiltAt() time.Time { return k.builtAt }

// Warnings returns the parse warnings of the build.
func (k *KnowledgeBase) Warnings() []docparse.Warning {
	out := make([]docparse.Warning, len(k.warnings))
	copy(out, k.warnings)
	return out
}

// Dropped is the number of sections that normalized to zero tokens.
func (k *KnowledgeBase) Dropped() int { return k.dropped }

// VocabularySize is the number of distinct tokens in the index.
func (k *KnowledgeBase) VocabularySize() int { return len(k.vocab) }

// DocumentFrequency returns the number of entries containing token.
func (k *KnowledgeBase) DocumentFrequency(token string) int {
	if i, ok := k.vocab[token]; ok {
		return k.df[i]
	}
	return 0
}

// Options returns the options the snapshot was built with.
func (k *KnowledgeBase) Options() BuildOptions { return k.opts }

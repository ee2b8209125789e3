// Package textnorm turns raw text into the canonical token sequence used for
// both indexing and querying.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// DefaultMinLength is the shortest non-numeric token kept.
const DefaultMinLength = 2

// Stemmer reduces a token to its stem. Implementations must be idempotent:
// Stem(Stem(t)) == Stem(t).
type Stemmer interface {
	Stem(token string) string
}

// StemmerFunc adapts a plain function to Stemmer.
type StemmerFunc func(string) string

// Stem implements Stemmer.
func (f StemmerFunc) Stem(token string) string { return f(token) }

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithMinLength sets the minimum rune length for non-numeric tokens.
// Values below 1 are ignored.
func WithMinLength(n int) Option {
	return func(nz *Normalizer) {
		if n >= 1 {
			nz.minLength = n
		}
	}
}

// WithStopwords adds words to the built-in stopword set. Extra words go
// through the same case folding as the text itself.
func WithStopwords(words ...string) Option {
	return func(nz *Normalizer) {
		for _, w := range words {
			for _, t := range split(w) {
				nz.stop[t] = struct{}{}
			}
		}
	}
}

// WithoutDefaultStopwords starts from an empty stopword set.
func WithoutDefaultStopwords() Option {
	return func(nz *Normalizer) {
		nz.stop = make(map[string]struct{})
	}
}

// WithStemmer appends a stemming step after filtering.
func WithStemmer(s Stemmer) Option {
	return func(nz *Normalizer) {
		nz.stemmer = s
	}
}

// Normalizer is safe for concurrent use once constructed.
type Normalizer struct {
	minLength int
	stop      map[string]struct{}
	stemmer   Stemmer
}

// New returns a Normalizer with English and Russian stopwords and a
// minimum token length of DefaultMinLength.
func New(opts ...Option) *Normalizer {
	nz := &Normalizer{
		minLength: DefaultMinLength,
		stop:      make(map[string]struct{}, len(englishStopwords)+len(russianStopwords)),
	}
	for _, w := range englishStopwords {
		nz.stop[w] = struct{}{}
	}
	for _, w := range russianStopwords {
		nz.stop[w] = struct{}{}
	}
	for _, opt := range opts {
		opt(nz)
	}
	return nz
}

// MinLength reports the configured minimum token length.
func (nz *Normalizer) MinLength() int { return nz.minLength }

// IsStopword reports whether the already folded token is filtered out.
func (nz *Normalizer) IsStopword(token string) bool {
	_, ok := nz.stop[token]
	return ok
}

// Normalize returns the ordered token sequence for text. The result is nil
// when nothing survives filtering.
func (nz *Normalizer) Normalize(text string) []string {
	var out []string
	for _, tok := range split(text) {
		if nz.IsStopword(tok) {
			continue
		}
		if utf8.RuneCountInString(tok) < nz.minLength && !isNumeric(tok) {
			continue
		}
		if nz.stemmer != nil {
			tok = nz.stemmer.Stem(tok)
			if tok == "" {
				continue
			}
		}
		out = append(out, tok)
	}
	return out
}

// ё is written as е in most of the texts people type.
var yoFolder = strings.NewReplacer("ё", "е")

// split applies the case and punctuation folding and cuts text into raw
// tokens without any filtering.
func split(text string) []string {
	folded := yoFolder.Replace(strings.ToLower(norm.NFKC.String(text)))
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r))
	})
}

func isNumeric(tok string) bool {
	for _, r := range tok {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return tok != ""
}

package kbservice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		max       int
		want      string
		truncated bool
	}{
		{"short", "hello", 10, "hello", false},
		{"exact", "hello", 5, "hello", false},
		{"cut", "hello world", 5, "hello...", true},
		{"trailing space trimmed", "hello world", 6, "hello...", true},
		{"multibyte", "ёжик в тумане", 4, "ёжик...", true},
		{"no limit", "hello", 0, "hello", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, truncated := Excerpt(tt.body, tt.max)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.truncated, truncated)
		})
	}
}

func TestFormatAnswer(t *testing.T) {
	assert.Equal(t, ReplyNotFound, FormatAnswer(nil))
	assert.Equal(t, ReplyNotFound, FormatAnswer(&Answer{}))

	a := &Answer{Found: true, Title: "Reset password", Excerpt: "Use the link"}
	assert.Equal(t, "📌 Reset password\n\nUse the link", FormatAnswer(a))

	a.Truncated = true
	assert.Equal(t, "📌 Reset password\n\nUse the link\n\n"+replyLongHint, FormatAnswer(a))
}

func TestTopTerms(t *testing.T) {
	got := topTerms(map[string]float64{"b": 1, "a": 1, "c": 2, "d": 0.5}, 3)
	assert.Equal(t, []TermInfo{{"c", 2}, {"a", 1}, {"b", 1}}, got)
}

package kbservice

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Canned replies.
const (
	ReplyNotFound = "❓ Sorry, I could not find an exact answer to your question in the knowledge base.\n\n" +
		"You can:\n1️⃣ Rephrase the question\n2️⃣ Create a support ticket"
	ReplyUnavailable = "⚠️ Sorry, the knowledge base is temporarily unavailable. Please create a support ticket."
	replyLongHint    = "The answer is long. Create a support ticket to get the full information."
)

// Excerpt shortens body to at most max runes, appending "..." when it cut
// anything. It never splits a UTF-8 sequence.
func Excerpt(body string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(body) <= max {
		return body, false
	}
	n := 0
	for i := range body {
		if n == max {
			return strings.TrimRightFunc(body[:i], isSpace) + "...", true
		}
		n++
	}
	return body, false
}

func isSpace(r rune) bool { return r == ' ' || r == '\n' || r == '\t' }

// FormatAnswer renders a chat-style reply for a.
func FormatAnswer(a *Answer) string {
	if a == nil || !a.Found {
		return ReplyNotFound
	}
	var b strings.Builder
	b.WriteString("📌 ")
	b.WriteString(a.Title)
	if a.Excerpt != "" {
		b.WriteString("\n\n")
		b.WriteString(a.Excerpt)
	}
	if a.Truncated {
		b.WriteString("\n\n")
		b.WriteString(replyLongHint)
	}
	return b.String()
}

// topTerms returns the n heaviest terms, ties broken alphabetically.
func topTerms(weights map[string]float64, n int) []TermInfo {
	out := make([]TermInfo, 0, len(weights))
	for t, w := range weights {
		out = append(out, TermInfo{Term: t, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Term < out[j].Term
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

package docparse

import (
	"fmt"
	"strings"
)

// sectionBuilder applies the heading rule shared by every front-end: the
// front-ends only report headings and text in document order.
type sectionBuilder struct {
	level int
	doc   *Document

	open    bool
	title   string
	body    strings.Builder
	opened  bool // at least one section heading seen
	orphans bool // orphan-content warning already emitted
}

func newSectionBuilder(level int) *sectionBuilder {
	return &sectionBuilder{level: level, doc: &Document{}}
}

func (b *sectionBuilder) warn(line int, format string, args ...any) {
	b.doc.Warnings = append(b.doc.Warnings, Warning{Line: line, Message: fmt.Sprintf(format, args...)})
}

// heading reports a heading of the given level.
func (b *sectionBuilder) heading(level int, title string, line int) {
	title = collapse(title)
	switch {
	case level > b.level:
		b.boundary()
		b.text(title, line)
		b.boundary()
	case level == b.level:
		b.flush()
		if title == "" {
			b.warn(line, "h%d heading has no text", level)
		}
		b.open = true
		b.opened = true
		b.title = title
	default:
		b.flush()
	}
}

// text appends raw text to the open section. Whitespace is collapsed on flush.
func (b *sectionBuilder) text(s string, line int) {
	if !b.open {
		if !b.opened && !b.orphans && strings.TrimSpace(s) != "" {
			b.orphans = true
			b.warn(line, "content before the first h%d heading skipped", b.level)
		}
		return
	}
	b.body.WriteString(s)
}

// boundary separates block-level content so adjacent blocks never glue words.
func (b *sectionBuilder) boundary() {
	if b.open {
		b.body.WriteByte(' ')
	}
}

func (b *sectionBuilder) flush() {
	if b.open {
		b.doc.Sections = append(b.doc.Sections, Section{
			Title: b.title,
			Body:  collapse(b.body.String()),
		})
	}
	b.open = false
	b.title = ""
	b.body.Reset()
}

func (b *sectionBuilder) finish() *Document {
	b.flush()
	return b.doc
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

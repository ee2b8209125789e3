package docparse

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fumiama/go-docx"
)

// DOCXParser handles Word documents. Paragraph heading styles mark sections.
type DOCXParser struct{}

// Parse implements Parser.
func (p *DOCXParser) Parse(data []byte, headingLevel int) (*Document, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: parse docx: %v", ErrUndecodable, err)
	}

	b := newSectionBuilder(headingLevel)
	for i, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		// Paragraph index stands in for a line number.
		line := i + 1
		text := docxParagraphText(para)
		if level := docxHeadingLevel(para); level > 0 {
			b.heading(level, text, line)
			continue
		}
		b.text(text, line)
		b.boundary()
	}

	out := b.finish()
	out.Encoding = "utf-8"
	return out, nil
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if !strings.HasPrefix(style, "heading") || len(style) != len("heading")+1 {
		return 0
	}
	d := style[len(style)-1]
	if d < '1' || d > '6' {
		return 0
	}
	return int(d - '0')
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return buf.String()
}

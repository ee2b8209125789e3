package docparse

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// MarkdownParser handles Markdown documents, with optional YAML frontmatter.
type MarkdownParser struct{}

// Parse implements Parser.
func (p *MarkdownParser) Parse(data []byte, headingLevel int) (*Document, error) {
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, fmt.Errorf("%w: binary content in markdown", ErrUndecodable)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: markdown is not valid UTF-8", ErrUndecodable)
	}

	b := newSectionBuilder(headingLevel)
	fm, src, fmLine, fmErr := splitFrontmatter(data)
	if fmErr != nil {
		b.warn(1, "frontmatter is not valid YAML, treated as text: %v", fmErr)
	}

	root := goldmark.New().Parser().Parse(text.NewReader(src))
	lineOf := func(n ast.Node) int {
		if off := firstOffset(n); off >= 0 {
			return fmLine + bytes.Count(src[:off], []byte("\n")) + 1
		}
		return 0
	}

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			var buf strings.Builder
			inlineText(h, src, &buf)
			b.heading(h.Level, buf.String(), lineOf(h))
			continue
		}
		var buf strings.Builder
		blockText(n, src, &buf)
		b.text(buf.String(), lineOf(n))
		b.boundary()
	}

	doc := b.finish()
	if t, ok := fm["title"].(string); ok {
		doc.Title = strings.TrimSpace(t)
	}
	doc.Encoding = "utf-8"
	return doc, nil
}

// splitFrontmatter separates a leading "---" YAML block from the Markdown
// body. It returns the number of lines consumed so warnings keep pointing at
// the original line numbers. Invalid YAML leaves the content untouched.
func splitFrontmatter(data []byte) (map[string]any, []byte, int, error) {
	const delim = "---"
	if !bytes.HasPrefix(data, []byte(delim+"\n")) && !bytes.HasPrefix(data, []byte(delim+"\r\n")) {
		return nil, data, 0, nil
	}
	rest := data[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, data, 0, nil
	}
	block := rest[:idx]
	after := rest[idx+1+len(delim):]
	if nl := bytes.IndexByte(after, '\n'); nl >= 0 {
		after = after[nl+1:]
	} else {
		after = nil
	}

	var fm map[string]any
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return nil, data, 0, err
	}
	consumed := bytes.Count(data[:len(data)-len(after)], []byte("\n"))
	return fm, after, consumed, nil
}

// firstOffset returns the source offset of the first line of n, searching
// children for container blocks that carry no lines of their own.
func firstOffset(n ast.Node) int {
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		return n.Lines().At(0).Start
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if off := firstOffset(c); off >= 0 {
			return off
		}
	}
	return -1
}

func blockText(n ast.Node, src []byte, buf *strings.Builder) {
	switch n.Kind() {
	case ast.KindFencedCodeBlock, ast.KindCodeBlock:
		buf.Write(rawLines(n, src))
		return
	case ast.KindHTMLBlock:
		buf.WriteString(htmlText(rawLines(n, src)))
		return
	case ast.KindThematicBreak:
		return
	}
	if n.Type() == ast.TypeInline {
		inlineText(n, src, buf)
		return
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if c.Type() == ast.TypeBlock {
			blockText(c, src, buf)
			buf.WriteByte(' ')
			continue
		}
		inlineText(c, src, buf)
	}
}

func inlineText(n ast.Node, src []byte, buf *strings.Builder) {
	switch node := n.(type) {
	case *ast.Text:
		buf.Write(node.Segment.Value(src))
		if node.SoftLineBreak() || node.HardLineBreak() {
			buf.WriteByte(' ')
		}
		return
	case *ast.String:
		buf.Write(node.Value)
		return
	case *ast.AutoLink:
		buf.Write(node.Label(src))
		return
	case *ast.RawHTML:
		return
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		inlineText(c, src, buf)
	}
}

func rawLines(n ast.Node, src []byte) []byte {
	var out []byte
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		out = append(out, seg.Value(src)...)
		out = append(out, ' ')
	}
	return out
}

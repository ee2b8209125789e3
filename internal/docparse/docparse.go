// Package docparse splits a structured document into heading-delimited
// sections. A heading at the designated level opens a section; its body runs
// until the next heading of equal or shallower level.
package docparse

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultHeadingLevel is the heading level that opens a section when none is
// configured (h2 in HTML, ## in Markdown).
const DefaultHeadingLevel = 2

// ErrUndecodable is returned when the document bytes cannot be decoded at all.
var ErrUndecodable = errors.New("docparse: document cannot be decoded")

// Format names a supported source document dialect.
type Format string

// Supported formats.
const (
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
	FormatDOCX     Format = "docx"
	FormatPDF      Format = "pdf"
)

// Formats lists every supported format.
var Formats = []Format{FormatHTML, FormatMarkdown, FormatDOCX, FormatPDF}

// ParseFormat validates a format name. "md" is accepted as markdown.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatHTML, FormatMarkdown, FormatDOCX, FormatPDF:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	case "htm":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("docparse: unsupported format %q", s)
	}
}

// FormatFromName picks a format from a file name extension.
func FormatFromName(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".html", ".htm", ".xhtml":
		return FormatHTML, nil
	case ".md", ".markdown":
		return FormatMarkdown, nil
	case ".docx":
		return FormatDOCX, nil
	case ".pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("docparse: unsupported file extension %q", ext)
	}
}

// Section is one raw title/body pair in document order.
type Section struct {
	Title string
	Body  string
}

// Warning describes a fragment of the document that was skipped.
// Line is 1-based, or 0 when the front-end cannot tell.
type Warning struct {
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("line %d: %s", w.Line, w.Message)
	}
	return w.Message
}

// Document is the parser output.
type Document struct {
	Title    string
	Encoding string
	Sections []Section
	Warnings []Warning
}

// Parser converts raw document bytes into sections.
type Parser interface {
	Parse(data []byte, headingLevel int) (*Document, error)
}

// ForFormat returns the parser for f.
func ForFormat(f Format) (Parser, error) {
	switch f {
	case FormatHTML:
		return &HTMLParser{}, nil
	case FormatMarkdown:
		return &MarkdownParser{}, nil
	case FormatDOCX:
		return &DOCXParser{}, nil
	case FormatPDF:
		return &PDFParser{}, nil
	default:
		return nil, fmt.Errorf("docparse: unsupported format %q", f)
	}
}

// Options control Parse.
type Options struct {
	Format       Format
	HeadingLevel int
}

// Parse runs the parser for opts.Format. An empty format means HTML and a
// zero heading level means DefaultHeadingLevel.
func Parse(data []byte, opts Options) (*Document, error) {
	level := opts.HeadingLevel
	if level == 0 {
		level = DefaultHeadingLevel
	}
	if level < 1 || level > 6 {
		return nil, fmt.Errorf("docparse: heading level %d out of range 1-6", level)
	}
	format := opts.Format
	if format == "" {
		format = FormatHTML
	}
	p, err := ForFormat(format)
	if err != nil {
		return nil, err
	}
	return p.Parse(data, level)
}

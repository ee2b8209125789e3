package docparse

import (
	"bytes"
	"fmt"

	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser handles PDF files. PDF carries no heading markup, so every
// non-empty page becomes a section titled "Page N".
type PDFParser struct{}

// Parse implements Parser.
func (p *PDFParser) Parse(data []byte, headingLevel int) (*Document, error) {
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %v", ErrUndecodable, err)
	}

	b := newSectionBuilder(headingLevel)
	for i := 1; i <= reader.NumPage(); i++ {
		text, err := pageText(reader, i)
		if err != nil {
			b.warn(0, "page %d skipped: %v", i, err)
			continue
		}
		if collapse(text) == "" {
			continue
		}
		b.heading(headingLevel, fmt.Sprintf("Page %d", i), 0)
		b.text(text, 0)
	}

	out := b.finish()
	out.Encoding = "utf-8"
	return out, nil
}

// pageText extracts the plain text of page i. The pdf library panics on
// some malformed content streams; that is reported as an error for the page.
func pageText(reader *pdflib.Reader, i int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed content: %v", r)
		}
	}()
	page := reader.Page(i)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

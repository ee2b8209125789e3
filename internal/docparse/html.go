package docparse

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// HTMLParser handles HTML documents such as wiki exports.
type HTMLParser struct{}

var utf8BOM = []byte("\xef\xbb\xbf")

// Parse implements Parser.
func (p *HTMLParser) Parse(data []byte, headingLevel int) (*Document, error) {
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, fmt.Errorf("%w: binary content in html", ErrUndecodable)
	}
	src, encName, err := decodeHTML(data)
	if err != nil {
		return nil, err
	}

	root, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", ErrUndecodable, err)
	}

	b := newSectionBuilder(headingLevel)
	if encName == "utf-8" && !utf8.Valid(data) {
		b.warn(0, "invalid UTF-8 sequences replaced")
	}
	b.doc.Warnings = append(b.doc.Warnings, scanStrayEndTags(src)...)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.text(n.Data, 0)
			return
		case html.CommentNode, html.DoctypeNode:
			return
		case html.ElementNode:
			if level := tagHeadingLevel(n.Data); level > 0 {
				b.heading(level, headingText(n), 0)
				return
			}
			switch n.Data {
			case "script", "style", "noscript", "template", "head":
				return
			case "br", "hr":
				b.boundary()
				return
			}
		}

		block := n.Type == html.ElementNode && !inlineElements[n.Data]
		if block {
			b.boundary()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.boundary()
		}
	}

	if body := findBody(root); body != nil {
		walk(body)
	} else {
		walk(root)
	}

	doc := b.finish()
	doc.Title = findTitle(root)
	doc.Encoding = encName
	return doc, nil
}

// decodeHTML converts src to UTF-8. Valid UTF-8 is taken as is; anything else
// goes through meta/BOM sniffing so legacy code pages still decode.
func decodeHTML(data []byte) ([]byte, string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, "utf-8", nil
	}
	enc, name, _ := charset.DetermineEncoding(data, "")
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, "", fmt.Errorf("%w: decode %s: %v", ErrUndecodable, name, err)
	}
	return out, name, nil
}

// scanStrayEndTags reports end tags that have no matching open element.
// The tree builder drops most of them silently.
func scanStrayEndTags(src []byte) []Warning {
	z := html.NewTokenizer(bytes.NewReader(src))
	var (
		open []string
		out  []Warning
	)
	line := 1
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return out
		}
		start := line
		line += bytes.Count(z.Raw(), []byte("\n"))

		switch tt {
		case html.StartTagToken:
			name, _ := z.TagName()
			if tag := string(name); !voidElements[tag] {
				open = append(open, tag)
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			i := lastIndex(open, tag)
			if i < 0 {
				out = append(out, Warning{Line: start, Message: fmt.Sprintf("stray end tag </%s> skipped", tag)})
				continue
			}
			open = open[:i]
		}
	}
}

func lastIndex(stack []string, tag string) int {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == tag {
			return i
		}
	}
	return -1
}

func tagHeadingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

// headingText returns the heading text without trailing permalink anchors.
func headingText(n *html.Node) string {
	t := collapse(textContent(n))
	return strings.TrimSpace(strings.TrimRight(t, "¶#§ "))
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && !inlineElements[n.Data] {
			buf.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return collapse(textContent(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

// htmlText strips markup from an HTML fragment.
func htmlText(fragment []byte) string {
	z := html.NewTokenizer(bytes.NewReader(fragment))
	var buf strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapse(buf.String())
		case html.TextToken:
			if skip == 0 {
				buf.Write(z.Text())
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skip++
			} else if !inlineElements[tag] {
				buf.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if tag := string(name); (tag == "script" || tag == "style") && skip > 0 {
				skip--
			} else if !inlineElements[tag] {
				buf.WriteByte(' ')
			}
		}
	}
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true,
	"img": true, "input": true, "link": true, "meta": true, "param": true,
	"source": true, "track": true, "wbr": true,
}

var inlineElements = map[string]bool{
	"a": true, "abbr": true, "b": true, "bdi": true, "bdo": true, "cite": true,
	"code": true, "data": true, "del": true, "dfn": true, "em": true, "font": true,
	"i": true, "ins": true, "kbd": true, "mark": true, "q": true, "s": true,
	"samp": true, "small": true, "span": true, "strong": true, "sub": true,
	"sup": true, "time": true, "u": true, "var": true,
}

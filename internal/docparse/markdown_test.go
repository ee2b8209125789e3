package docparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wikiMarkdown = `---
title: FAQ
---
# FAQ

Intro paragraph.

## Reset password

Use the **forgot** password link.

- on the login page

### Details

More ` + "`details`" + ` here.

## Billing cycle
Invoices are issued monthly.
`

func TestMarkdownParser_Sections(t *testing.T) {
	doc, err := Parse([]byte(wikiMarkdown), Options{Format: FormatMarkdown})
	require.NoError(t, err)

	assert.Equal(t, "FAQ", doc.Title)
	assert.Equal(t, []Section{
		{Title: "Reset password", Body: "Use the forgot password link. on the login page Details More details here."},
		{Title: "Billing cycle", Body: "Invoices are issued monthly."},
	}, doc.Sections)

	require.Len(t, doc.Warnings, 1)
	assert.Equal(t, 6, doc.Warnings[0].Line)
	assert.Contains(t, doc.Warnings[0].Message, "before the first h2")
}

func TestMarkdownParser_CodeAndHTMLBlocks(t *testing.T) {
	src := "## Proxy\n\n```\nexport HTTPS_PROXY=proxy:3128\n```\n\n<div class=\"note\"><b>Ask</b> the admin</div>\n"
	doc, err := Parse([]byte(src), Options{Format: FormatMarkdown})
	require.NoError(t, err)

	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "export HTTPS_PROXY=proxy:3128 Ask the admin", doc.Sections[0].Body)
}

func TestMarkdownParser_EmptyHeading(t *testing.T) {
	doc, err := Parse([]byte("##\n\nbody text\n"), Options{Format: FormatMarkdown})
	require.NoError(t, err)

	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "body text", doc.Sections[0].Body)
	require.Len(t, doc.Warnings, 1)
	assert.Contains(t, doc.Warnings[0].Message, "no text")
}

func TestMarkdownParser_InvalidFrontmatter(t *testing.T) {
	doc, err := Parse([]byte("---\ntitle: [unclosed\n---\n\n## A\n\nbody\n"), Options{Format: FormatMarkdown})
	require.NoError(t, err)

	assert.Empty(t, doc.Title)
	require.NotEmpty(t, doc.Warnings)
	assert.Contains(t, doc.Warnings[0].Message, "frontmatter")
}

func TestMarkdownParser_InvalidUTF8(t *testing.T) {
	_, err := Parse([]byte("## A\n\xff\xfe body"), Options{Format: FormatMarkdown})
	assert.ErrorIs(t, err, ErrUndecodable)
}

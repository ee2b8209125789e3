// Package source gives access to the document the knowledge base is built from.
package source

import "context"

// Source provides the raw document bytes.
type Source interface {
	// Name identifies the source in logs and the build catalog.
	Name() string
	// Read returns the current document bytes.
	Read(ctx context.Context) ([]byte, error)
}

// Replacer is a Source whose content can be swapped for a new document.
type Replacer interface {
	Source
	// Replace atomically replaces the document with content.
	Replace(ctx context.Context, content []byte) error
}

package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// File implements Replacer backed by a single file on the local file system.
type File struct {
	path string // absolute
}

// NewFile creates a File source. The file does not have to exist yet, but
// the path must not name a directory.
func NewFile(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("source: resolve path: %w", err)
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return nil, fmt.Errorf("source: %s is a directory", abs)
	}
	return &File{path: abs}, nil
}

// Path returns the absolute file path.
func (f *File) Path() string { return f.path }

// Name implements Source.
func (f *File) Name() string { return f.path }

// Read implements Source.
func (f *File) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("source: read %s: %w", f.path, err)
	}
	return data, nil
}

// Replace writes content next to the target and renames it into place, so
// readers and the watcher never observe a half-written document.
func (f *File) Replace(ctx context.Context, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("source: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".askwiki-tmp-*")
	if err != nil {
		return fmt.Errorf("source: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("source: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("source: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("source: close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("source: rename: %w", err)
	}
	success = true
	return nil
}

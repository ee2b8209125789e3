package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/askwiki/internal/apperr"
	"github.com/starford/askwiki/internal/docparse"
	"github.com/starford/askwiki/internal/kb"
)

// Generation is one recorded knowledge base build.
type Generation struct {
	ID         int64     `json:"id"`
	Checksum   string    `json:"checksum"`
	Source     string    `json:"source"`
	Title      string    `json:"title,omitempty"`
	Entries    int       `json:"entries"`
	Dropped    int       `json:"dropped"`
	Warnings   int       `json:"warnings"`
	Vocabulary int       `json:"vocabulary"`
	BuiltAt    time.Time `json:"built_at"`
}

// EntrySummary is the catalog view of one indexed entry.
type EntrySummary struct {
	EntryID int    `json:"id"`
	Title   string `json:"title"`
	Tokens  int    `json:"tokens"`
}

// RecordSnapshot stores a generation row for k together with its entry
// summaries and warnings, all in one transaction, and returns the new id.
func (db *DB) RecordSnapshot(ctx context.Context, source string, k *kb.KnowledgeBase) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	warnings := k.Warnings()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO generations (checksum, source, title, entries, dropped, warnings, vocabulary, built_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, k.Checksum(), source, k.Title(), k.Len(), k.Dropped(), len(warnings), k.VocabularySize(), k.BuiltAt().UTC())
	if err != nil {
		return 0, fmt.Errorf("catalog: insert generation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("catalog: generation id: %w", err)
	}

	if entries := k.Entries(); len(entries) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO generation_entries (generation_id, entry_id, title, tokens) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return 0, fmt.Errorf("catalog: prepare entry insert: %w", err)
		}
		defer stmt.Close()
		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx, id, e.ID, e.Title, len(e.Tokens)); err != nil {
				return 0, fmt.Errorf("catalog: insert entry: %w", err)
			}
		}
	}

	if len(warnings) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO generation_warnings (generation_id, seq, line, message) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return 0, fmt.Errorf("catalog: prepare warning insert: %w", err)
		}
		defer stmt.Close()
		for i, w := range warnings {
			if _, err := stmt.ExecContext(ctx, id, i, w.Line, w.Message); err != nil {
				return 0, fmt.Errorf("catalog: insert warning: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("catalog: commit: %w", err)
	}
	return id, nil
}

const generationColumns = `id, checksum, source, title, entries, dropped, warnings, vocabulary, built_at`

func scanGeneration(row interface{ Scan(...any) error }) (*Generation, error) {
	var g Generation
	if err := row.Scan(&g.ID, &g.Checksum, &g.Source, &g.Title, &g.Entries, &g.Dropped, &g.Warnings, &g.Vocabulary, &g.BuiltAt); err != nil {
		return nil, err
	}
	return &g, nil
}

// Latest returns the most recent generation, or apperr.ErrNotFound.
func (db *DB) Latest(ctx context.Context) (*Generation, error) {
	g, err := scanGeneration(db.conn.QueryRowContext(ctx,
		`SELECT `+generationColumns+` FROM generations ORDER BY id DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: latest: %w", err)
	}
	return g, nil
}

// Get returns generation id, or apperr.ErrNotFound.
func (db *DB) Get(ctx context.Context, id int64) (*Generation, error) {
	g, err := scanGeneration(db.conn.QueryRowContext(ctx,
		`SELECT `+generationColumns+` FROM generations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get generation: %w", err)
	}
	return g, nil
}

// List returns up to limit generations, newest first.
func (db *DB) List(ctx context.Context, limit int) ([]Generation, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+generationColumns+` FROM generations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: list generations: %w", err)
	}
	defer rows.Close()

	out := []Generation{}
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan generation: %w", err)
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// Entries returns the entry summaries of a generation in id order.
func (db *DB) Entries(ctx context.Context, generationID int64) ([]EntrySummary, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT entry_id, title, tokens FROM generation_entries WHERE generation_id = ? ORDER BY entry_id`, generationID)
	if err != nil {
		return nil, fmt.Errorf("catalog: entries: %w", err)
	}
	defer rows.Close()

	out := []EntrySummary{}
	for rows.Next() {
		var e EntrySummary
		if err := rows.Scan(&e.EntryID, &e.Title, &e.Tokens); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Warnings returns the parse warnings of a generation in the order reported.
func (db *DB) Warnings(ctx context.Context, generationID int64) ([]docparse.Warning, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT line, message FROM generation_warnings WHERE generation_id = ? ORDER BY seq`, generationID)
	if err != nil {
		return nil, fmt.Errorf("catalog: warnings: %w", err)
	}
	defer rows.Close()

	out := []docparse.Warning{}
	for rows.Next() {
		var w docparse.Warning
		if err := rows.Scan(&w.Line, &w.Message); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep generations and returns how many
// were removed. Entry and warning rows go with them.
func (db *DB) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}
	res, err := db.conn.ExecContext(ctx, `
		DELETE FROM generations
		WHERE id NOT IN (SELECT id FROM generations ORDER BY id DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("catalog: prune: %w", err)
	}
	return res.RowsAffected()
}

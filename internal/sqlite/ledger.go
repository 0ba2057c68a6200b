// Package sqlite implements the repost ledger on a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mpruett/feedmirror/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS reposts (
	source_post_id TEXT PRIMARY KEY,
	reposted_at    TEXT NOT NULL
)`

// Ledger implements domain.Ledger. Each committed row maps a source post id to
// the time it was mirrored; rows are never updated or deleted.
type Ledger struct {
	db *sql.DB
}

// Open opens (or creates) the ledger database at path and ensures the schema
// exists. An empty or missing ledger means nothing has been mirrored yet. The
// caller should Close the ledger when done.
func Open(path string) (*Ledger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("ledger path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Has reports whether the source post id has been committed.
func (l *Ledger) Has(ctx context.Context, id string) (bool, error) {
	var one int
	err := l.db.QueryRowContext(ctx,
		`SELECT 1 FROM reposts WHERE source_post_id = ?`, id,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: lookup %s: %v", domain.ErrLedgerUnavailable, id, err)
	}
	return true, nil
}

// Commit durably records the id. The write is atomic per-id and idempotent:
// re-committing a present id is a no-op, so a crash between publish and commit
// can only relax at-most-once to at-least-once, never corrupt the ledger.
func (l *Ledger) Commit(ctx context.Context, id string, repostedAt time.Time) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("source post id is required")
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO reposts (source_post_id, reposted_at)
		VALUES (?, ?)
		ON CONFLICT(source_post_id) DO NOTHING`,
		id, repostedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: commit %s: %v", domain.ErrLedgerUnavailable, id, err)
	}
	return nil
}

// Count returns the total number of mirrored posts.
func (l *Ledger) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reposts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count: %v", domain.ErrLedgerUnavailable, err)
	}
	return n, nil
}

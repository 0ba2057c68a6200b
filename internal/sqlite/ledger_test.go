package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestLedger(t *testing.T) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() {
		_ = l.Close()
	})
	return l, path
}

func TestOpenCreatesMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "nested", "ledger.db")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("open ledger in missing dir: %v", err)
	}
	defer l.Close()

	if _, err := l.Count(context.Background()); err != nil {
		t.Fatalf("count on fresh ledger: %v", err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for blank path")
	}
}

func TestEmptyLedgerHasNothing(t *testing.T) {
	l, _ := openTestLedger(t)
	ctx := context.Background()

	seen, err := l.Has(ctx, "12345")
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if seen {
		t.Fatal("fresh ledger should not contain any id")
	}

	n, err := l.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("fresh ledger count = %d, want 0", n)
	}
}

func TestCommitThenHas(t *testing.T) {
	l, _ := openTestLedger(t)
	ctx := context.Background()

	if err := l.Commit(ctx, "12345", time.Now()); err != nil {
		t.Fatalf("commit: %v", err)
	}

	seen, err := l.Has(ctx, "12345")
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if !seen {
		t.Fatal("committed id should be present")
	}

	seen, err = l.Has(ctx, "67890")
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if seen {
		t.Fatal("uncommitted id should be absent")
	}
}

func TestCommitIsIdempotent(t *testing.T) {
	l, _ := openTestLedger(t)
	ctx := context.Background()

	if err := l.Commit(ctx, "12345", time.Now()); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := l.Commit(ctx, "12345", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("re-commit must be a no-op, got: %v", err)
	}

	n, err := l.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("count after duplicate commit = %d, want 1", n)
	}
}

func TestCommitRequiresID(t *testing.T) {
	l, _ := openTestLedger(t)
	if err := l.Commit(context.Background(), "", time.Now()); err == nil {
		t.Fatal("expected error for empty id")
	}
}

// Entries must survive a process restart: that persistence is what makes the
// at-least-once delivery guarantee hold.
func TestEntriesSurviveReopen(t *testing.T) {
	l, path := openTestLedger(t)
	ctx := context.Background()

	if err := l.Commit(ctx, "12345", time.Now()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	seen, err := reopened.Has(ctx, "12345")
	if err != nil {
		t.Fatalf("has after reopen: %v", err)
	}
	if !seen {
		t.Fatal("committed id lost across reopen")
	}
}

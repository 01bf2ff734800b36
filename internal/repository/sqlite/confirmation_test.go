package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/sakif/bin-confirm/internal/repository"
	"github.com/sakif/bin-confirm/internal/repository/repotest"
)

// newTestDB opens a file-backed database in a per-test temp dir. A file (not
// ":memory:") is used so the pool can hand out several connections, which is what the
// concurrency tests need to exercise.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := New(filepath.Join(t.TempDir(), "ledger.db"), logger)
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestConfirmationRepository(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repository.ConfirmationRepository {
		return newTestDB(t)
	})
}

func TestInMemory(t *testing.T) {
	db, err := New(":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New(:memory:) error = %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if _, err := db.InsertIfAbsent(ctx, "2024-06-03", "u1", "Ana", time.Now()); err != nil {
		t.Fatalf("InsertIfAbsent() error = %v", err)
	}
	list, err := db.ListByDay(ctx, "2024-06-03")
	if err != nil {
		t.Fatalf("ListByDay() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("ListByDay() returned %d, want 1", len(list))
	}
}

// History is kept: the previous day stays queryable after a new day starts.
func TestHistoryRetained(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	at := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

	if _, err := db.InsertIfAbsent(ctx, "2024-06-03", "u1", "Ana", at); err != nil {
		t.Fatalf("InsertIfAbsent() error = %v", err)
	}
	if _, err := db.InsertIfAbsent(ctx, "2024-06-04", "u2", "Bia", at.Add(24*time.Hour)); err != nil {
		t.Fatalf("InsertIfAbsent() error = %v", err)
	}

	old, err := db.ListByDay(ctx, "2024-06-03")
	if err != nil {
		t.Fatalf("ListByDay() error = %v", err)
	}
	if len(old) != 1 || old[0].UserID != "u1" {
		t.Errorf("ListByDay(previous day) = %+v, want u1 only", old)
	}
}

func TestPurgeBefore(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	for i, day := range []string{"2024-06-01", "2024-06-02", "2024-06-03"} {
		if _, err := db.InsertIfAbsent(ctx, day, "u1", "Ana", at.AddDate(0, 0, i)); err != nil {
			t.Fatalf("InsertIfAbsent(%s) error = %v", day, err)
		}
	}

	removed, err := db.PurgeBefore(ctx, "2024-06-03")
	if err != nil {
		t.Fatalf("PurgeBefore() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("PurgeBefore() removed %d, want 2", removed)
	}

	kept, err := db.ListByDay(ctx, "2024-06-03")
	if err != nil {
		t.Fatalf("ListByDay() error = %v", err)
	}
	if len(kept) != 1 {
		t.Errorf("ListByDay(kept day) returned %d, want 1", len(kept))
	}

	// A second purge is a no-op.
	removed, err = db.PurgeBefore(ctx, "2024-06-03")
	if err != nil {
		t.Fatalf("second PurgeBefore() error = %v", err)
	}
	if removed != 0 {
		t.Errorf("second PurgeBefore() removed %d, want 0", removed)
	}
}

// Data written by one process must be visible after reopening the file.
func TestPersistsAcrossReopen(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	db, err := New(path, logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := db.InsertIfAbsent(ctx, "2024-06-03", "u1", "Ana", time.Now()); err != nil {
		t.Fatalf("InsertIfAbsent() error = %v", err)
	}
	db.Close()

	reopened, err := New(path, logger)
	if err != nil {
		t.Fatalf("reopen New() error = %v", err)
	}
	defer reopened.Close()

	added, err := reopened.InsertIfAbsent(ctx, "2024-06-03", "u1", "Ana", time.Now())
	if err != nil {
		t.Fatalf("InsertIfAbsent() after reopen error = %v", err)
	}
	if added {
		t.Error("InsertIfAbsent() after reopen added = true, want false")
	}
}

func TestClosedDBReturnsError(t *testing.T) {
	db := newTestDB(t)
	db.Close()

	if _, err := db.ListByDay(context.Background(), "2024-06-03"); err == nil {
		t.Error("ListByDay() on closed db should error")
	}
}

package jsonfile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sakif/bin-confirm/internal/apperror"
	"github.com/sakif/bin-confirm/internal/repository"
	"github.com/sakif/bin-confirm/internal/repository/repotest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "confirmations.json")
	s, err := New(path, discardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s, path
}

func TestConfirmationRepository(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repository.ConfirmationRepository {
		s, _ := newTestStore(t)
		return s
	})
}

func TestRolloverIsIdempotent(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	if _, err := s.InsertIfAbsent(ctx, "2024-06-03", "u1", "Ana", time.Now()); err != nil {
		t.Fatalf("InsertIfAbsent() error = %v", err)
	}

	if _, err := s.ListByDay(ctx, "2024-06-04"); err != nil {
		t.Fatalf("first rollover error = %v", err)
	}
	once, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}

	if _, err := s.ListByDay(ctx, "2024-06-04"); err != nil {
		t.Fatalf("second rollover error = %v", err)
	}
	twice, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}

	if string(once) != string(twice) {
		t.Errorf("snapshot changed on second rollover:\nonce:  %s\ntwice: %s", once, twice)
	}

	snap, err := readSnapshot(path)
	if err != nil {
		t.Fatalf("readSnapshot() error = %v", err)
	}
	if snap.Date != "2024-06-04" || len(snap.Confirmations) != 0 || len(snap.HasVerified) != 0 {
		t.Errorf("snapshot after rollover = %+v, want empty 2024-06-04", snap)
	}
}

func TestStaleDayWriteConflicts(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.InsertIfAbsent(ctx, "2024-06-04", "u1", "Ana", time.Now()); err != nil {
		t.Fatalf("InsertIfAbsent() error = %v", err)
	}

	_, err := s.InsertIfAbsent(ctx, "2024-06-03", "u2", "Bia", time.Now())
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("InsertIfAbsent(older day) error = %v, want ErrConflict", err)
	}

	list, err := s.ListByDay(ctx, "2024-06-03")
	if err != nil {
		t.Fatalf("ListByDay(older day) error = %v", err)
	}
	if len(list) != 0 {
		t.Errorf("ListByDay(older day) = %+v, want []", list)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	if _, err := s.InsertIfAbsent(ctx, "2024-06-03", "u1", "Ana", time.Now()); err != nil {
		t.Fatalf("InsertIfAbsent() error = %v", err)
	}

	reopened, err := New(path, discardLogger())
	if err != nil {
		t.Fatalf("reopen New() error = %v", err)
	}
	ok, err := reopened.HasConfirmed(ctx, "2024-06-03", "u1")
	if err != nil {
		t.Fatalf("HasConfirmed() error = %v", err)
	}
	if !ok {
		t.Error("HasConfirmed() after reopen = false, want true")
	}
}

// Snapshots written by the older file format have no timestamps.
func TestReadsLegacySnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "confirmations.json")
	legacy := `{"date":"2024-06-03","confirmations":[{"name":"Ana","id":"u1"}],"hasVerified":["u1"]}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("writing legacy snapshot: %v", err)
	}

	s, err := New(path, discardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	added, err := s.InsertIfAbsent(context.Background(), "2024-06-03", "u1", "Ana", time.Now())
	if err != nil {
		t.Fatalf("InsertIfAbsent() error = %v", err)
	}
	if added {
		t.Error("InsertIfAbsent() for a user in hasVerified added = true, want false")
	}
}

func TestCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "confirmations.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("writing corrupt snapshot: %v", err)
	}

	if _, err := New(path, discardLogger()); err == nil {
		t.Error("New() with corrupt snapshot should error")
	}
}

func TestPurgeBefore(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.InsertIfAbsent(ctx, "2024-06-03", "u1", "Ana", time.Now()); err != nil {
		t.Fatalf("InsertIfAbsent() error = %v", err)
	}

	removed, err := s.PurgeBefore(ctx, "2024-06-03")
	if err != nil || removed != 0 {
		t.Errorf("PurgeBefore(same day) = %d, %v; want 0, nil", removed, err)
	}

	removed, err = s.PurgeBefore(ctx, "2024-06-05")
	if err != nil {
		t.Fatalf("PurgeBefore() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("PurgeBefore() removed %d, want 1", removed)
	}
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"u1", "u2", "u3"} {
		if _, err := s.InsertIfAbsent(ctx, "2024-06-03", id, "x", time.Now()); err != nil {
			t.Fatalf("InsertIfAbsent() error = %v", err)
		}
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("data dir contains %v, want only the snapshot", names)
	}
}

// Package jsonfile implements the confirmation ledger as a single JSON snapshot on
// disk, for deployments that want a human-readable file instead of a database.
//
// The snapshot only ever holds one day:
//
//	{"date": "2024-06-03", "confirmations": [{"name","id","timestamp"}], "hasVerified": ["id", ...]}
//
// When an operation arrives for a newer day the snapshot is replaced by an empty one
// for that day and persisted before the operation proceeds. Resetting to the same day
// twice writes the same empty snapshot, so racing rollovers converge.
//
// Every operation reloads the file under a single-writer mutex and rewrites it with
// write-to-temp + rename, so a crash never leaves a half-written snapshot and the
// process holds no state that could drift from what is on disk. The mutex only
// serialises writers inside one process: do not point two processes at one file.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/sakif/bin-confirm/internal/apperror"
	"github.com/sakif/bin-confirm/internal/model"
	"github.com/sakif/bin-confirm/internal/repository"
)

const filePermissions = 0o644

var _ repository.ConfirmationRepository = (*Store)(nil)

type entry struct {
	Name      string    `json:"name"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

type snapshot struct {
	Date          string   `json:"date"`
	Confirmations []entry  `json:"confirmations"`
	HasVerified   []string `json:"hasVerified"`
}

func emptySnapshot(day string) *snapshot {
	return &snapshot{Date: day, Confirmations: []entry{}, HasVerified: []string{}}
}

// Store is a file-backed ConfirmationRepository.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// New returns a Store persisting to path, creating the parent directory if needed.
// The file itself is created lazily on first write.
func New(path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("jsonfile: creating data directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		// Fail fast on a corrupt snapshot instead of on the first request.
		if _, err := readSnapshot(path); err != nil {
			return nil, err
		}
	}
	return &Store{path: path, logger: logger}, nil
}

func (s *Store) Close() error { return nil }

func (s *Store) InsertIfAbsent(_ context.Context, day, userID, userName string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.loadForDay(day)
	if err != nil {
		return false, err
	}

	if slices.Contains(snap.HasVerified, userID) {
		return false, nil
	}

	snap.Confirmations = append(snap.Confirmations, entry{Name: userName, ID: userID, Timestamp: at})
	snap.HasVerified = append(snap.HasVerified, userID)

	if err := s.write(snap); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) ListByDay(_ context.Context, day string) ([]model.Confirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.loadForDay(day)
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			// Asking for a day the snapshot has already moved past.
			return []model.Confirmation{}, nil
		}
		return nil, err
	}

	entries := slices.Clone(snap.Confirmations)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})

	confirmations := make([]model.Confirmation, 0, len(entries))
	for _, e := range entries {
		confirmations = append(confirmations, model.Confirmation{
			UserName:  e.Name,
			UserID:    e.ID,
			Timestamp: e.Timestamp,
			Day:       snap.Date,
		})
	}
	return confirmations, nil
}

func (s *Store) HasConfirmed(_ context.Context, day, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.loadForDay(day)
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return false, nil
		}
		return false, err
	}
	return slices.Contains(snap.HasVerified, userID), nil
}

// PurgeBefore rolls a snapshot older than day forward, dropping its entries.
func (s *Store) PurgeBefore(_ context.Context, day string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.read()
	if err != nil {
		return 0, err
	}
	if snap.Date == "" || snap.Date >= day {
		return 0, nil
	}

	removed := int64(len(snap.Confirmations))
	if err := s.write(emptySnapshot(day)); err != nil {
		return 0, err
	}
	return removed, nil
}

// loadForDay reads the snapshot and rolls it over to day if it belongs to an earlier
// day, persisting the reset. Caller must hold s.mu.
func (s *Store) loadForDay(day string) (*snapshot, error) {
	snap, err := s.read()
	if err != nil {
		return nil, err
	}

	switch {
	case snap.Date == day:
		return snap, nil
	case snap.Date != "" && snap.Date > day:
		return nil, apperror.Conflict("snapshot", fmt.Sprintf("stored day %s is newer than %s", snap.Date, day))
	}

	s.logger.Info("new day detected, resetting confirmations",
		slog.String("previous", snap.Date),
		slog.String("day", day),
	)
	fresh := emptySnapshot(day)
	if err := s.write(fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// read returns the stored snapshot, or an empty undated one if no file exists yet.
func (s *Store) read() (*snapshot, error) {
	snap, err := readSnapshot(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return emptySnapshot(""), nil
	}
	return snap, err
}

func readSnapshot(path string) (*snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("jsonfile: reading %s: %w", path, err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("jsonfile: decoding %s: %w", path, err)
	}
	if snap.Confirmations == nil {
		snap.Confirmations = []entry{}
	}
	if snap.HasVerified == nil {
		snap.HasVerified = []string{}
	}
	return &snap, nil
}

// write replaces the snapshot atomically: temp file in the same directory, fsync,
// then rename over the old file. Caller must hold s.mu.
func (s *Store) write(snap *snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: encoding snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("jsonfile: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("jsonfile: writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("jsonfile: syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("jsonfile: closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, filePermissions); err != nil {
		return fmt.Errorf("jsonfile: setting permissions: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("jsonfile: replacing snapshot: %w", err)
	}
	return nil
}

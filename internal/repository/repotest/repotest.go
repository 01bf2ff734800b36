// Package repotest holds the behavioural test suite every ConfirmationRepository
// backend must pass. Backend packages call Run from their own _test.go files.
package repotest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sakif/bin-confirm/internal/repository"
)

// Factory returns a fresh, empty repository. Cleanup is the factory's job.
type Factory func(t *testing.T) repository.ConfirmationRepository

const (
	day1 = "2024-06-03"
	day2 = "2024-06-04"
)

var base = time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)

// Run executes the whole suite as subtests.
func Run(t *testing.T, newRepo Factory) {
	t.Run("EmptyDay", func(t *testing.T) { testEmptyDay(t, newRepo(t)) })
	t.Run("InsertIsIdempotent", func(t *testing.T) { testInsertIsIdempotent(t, newRepo(t)) })
	t.Run("SameNameDifferentUsers", func(t *testing.T) { testSameNameDifferentUsers(t, newRepo(t)) })
	t.Run("OrderedByTimestamp", func(t *testing.T) { testOrderedByTimestamp(t, newRepo(t)) })
	t.Run("DayIsolation", func(t *testing.T) { testDayIsolation(t, newRepo(t)) })
	t.Run("HasConfirmed", func(t *testing.T) { testHasConfirmed(t, newRepo(t)) })
	t.Run("ConcurrentSameUser", func(t *testing.T) { testConcurrentSameUser(t, newRepo(t)) })
	t.Run("ConcurrentDistinctUsers", func(t *testing.T) { testConcurrentDistinctUsers(t, newRepo(t)) })
}

func mustInsert(t *testing.T, repo repository.ConfirmationRepository, day, userID, userName string, at time.Time) bool {
	t.Helper()
	added, err := repo.InsertIfAbsent(context.Background(), day, userID, userName, at)
	if err != nil {
		t.Fatalf("InsertIfAbsent(%s, %s) error = %v", day, userID, err)
	}
	return added
}

func mustList(t *testing.T, repo repository.ConfirmationRepository, day string) []string {
	t.Helper()
	list, err := repo.ListByDay(context.Background(), day)
	if err != nil {
		t.Fatalf("ListByDay(%s) error = %v", day, err)
	}
	if list == nil {
		t.Fatalf("ListByDay(%s) returned nil, want empty slice", day)
	}
	ids := make([]string, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.UserID)
	}
	return ids
}

func testEmptyDay(t *testing.T, repo repository.ConfirmationRepository) {
	if ids := mustList(t, repo, day1); len(ids) != 0 {
		t.Errorf("ListByDay() on empty store = %v, want []", ids)
	}
}

func testInsertIsIdempotent(t *testing.T, repo repository.ConfirmationRepository) {
	if !mustInsert(t, repo, day1, "u1", "Ana", base) {
		t.Fatal("first InsertIfAbsent() added = false, want true")
	}
	if mustInsert(t, repo, day1, "u1", "Ana", base.Add(time.Minute)) {
		t.Error("second InsertIfAbsent() added = true, want false")
	}

	list, err := repo.ListByDay(context.Background(), day1)
	if err != nil {
		t.Fatalf("ListByDay() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListByDay() returned %d confirmations, want 1", len(list))
	}
	if list[0].UserName != "Ana" || list[0].UserID != "u1" {
		t.Errorf("confirmation = %+v, want Ana/u1", list[0])
	}
	if !list[0].Timestamp.Equal(base) {
		t.Errorf("Timestamp = %v, want first insert time %v", list[0].Timestamp, base)
	}
}

func testSameNameDifferentUsers(t *testing.T, repo repository.ConfirmationRepository) {
	mustInsert(t, repo, day1, "u1", "Ana", base)
	if !mustInsert(t, repo, day1, "u2", "Ana", base.Add(time.Second)) {
		t.Error("InsertIfAbsent() for a second user with the same name added = false, want true")
	}
	if ids := mustList(t, repo, day1); len(ids) != 2 {
		t.Errorf("ListByDay() = %v, want two entries", ids)
	}
}

func testOrderedByTimestamp(t *testing.T, repo repository.ConfirmationRepository) {
	// Inserted out of timestamp order on purpose.
	mustInsert(t, repo, day1, "late", "Carla", base.Add(2*time.Hour))
	mustInsert(t, repo, day1, "early", "Bruno", base)
	mustInsert(t, repo, day1, "middle", "Ana", base.Add(time.Hour))

	got := mustList(t, repo, day1)
	want := []string{"early", "middle", "late"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("ListByDay() order = %v, want %v", got, want)
	}
}

func testDayIsolation(t *testing.T, repo repository.ConfirmationRepository) {
	mustInsert(t, repo, day1, "u1", "Ana", base)

	if ids := mustList(t, repo, day2); len(ids) != 0 {
		t.Errorf("ListByDay(next day) = %v, want []", ids)
	}

	// A new day accepts the same user again.
	if !mustInsert(t, repo, day2, "u1", "Ana", base.Add(24*time.Hour)) {
		t.Error("InsertIfAbsent() on the next day added = false, want true")
	}
	if ids := mustList(t, repo, day2); len(ids) != 1 {
		t.Errorf("ListByDay(next day) = %v, want one entry", ids)
	}
}

func testHasConfirmed(t *testing.T, repo repository.ConfirmationRepository) {
	ctx := context.Background()
	mustInsert(t, repo, day1, "u1", "Ana", base)

	tests := []struct {
		day, userID string
		want        bool
	}{
		{day1, "u1", true},
		{day1, "u2", false},
		{day2, "u1", false},
	}
	for _, tt := range tests {
		got, err := repo.HasConfirmed(ctx, tt.day, tt.userID)
		if err != nil {
			t.Fatalf("HasConfirmed(%s, %s) error = %v", tt.day, tt.userID, err)
		}
		if got != tt.want {
			t.Errorf("HasConfirmed(%s, %s) = %v, want %v", tt.day, tt.userID, got, tt.want)
		}
	}
}

func testConcurrentSameUser(t *testing.T, repo repository.ConfirmationRepository) {
	const workers = 16

	var (
		wg    sync.WaitGroup
		added atomic.Int32
		start = make(chan struct{})
		errs  = make(chan error, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			ok, err := repo.InsertIfAbsent(context.Background(), day1, "u1", "Ana", base.Add(time.Duration(i)*time.Millisecond))
			if err != nil {
				errs <- err
				return
			}
			if ok {
				added.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent InsertIfAbsent() error = %v", err)
	}
	if got := added.Load(); got != 1 {
		t.Errorf("%d calls observed added=true, want exactly 1", got)
	}
	if ids := mustList(t, repo, day1); len(ids) != 1 {
		t.Errorf("ListByDay() after race = %v, want one entry", ids)
	}
}

func testConcurrentDistinctUsers(t *testing.T, repo repository.ConfirmationRepository) {
	const workers = 12

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%02d", i)
			if _, err := repo.InsertIfAbsent(context.Background(), day1, userID, "neighbour", base.Add(time.Duration(i)*time.Second)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent InsertIfAbsent() error = %v", err)
	}
	if ids := mustList(t, repo, day1); len(ids) != workers {
		t.Errorf("ListByDay() returned %d entries, want %d (no lost inserts)", len(ids), workers)
	}
}

// Package service contains the confirmation ledger's business rules.
//
//	Handler (HTTP)  → parses requests, writes responses
//	Ledger          → validates input, decides "today", enforces the daily rules
//	Repository      → one of the storage backends
//
// The Ledger holds no confirmation state of its own. Each call computes today from the
// clock, talks to the injected repository and returns; rollover is therefore lazy and
// needs no background timer.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/bin-confirm/internal/apperror"
	"github.com/sakif/bin-confirm/internal/model"
	"github.com/sakif/bin-confirm/internal/repository"
)

const (
	MaxUserNameLength = 100
	MaxUserIDLength   = 128
)

// ConfirmResult is returned by Confirm. Confirmations always holds the full list of
// today's confirmations so callers can resynchronise, whether or not Added is true.
type ConfirmResult struct {
	Added         bool
	Confirmations []model.Confirmation
}

type Options struct {
	// Location decides where midnight is. Defaults to time.Local.
	Location *time.Location
	// RetentionDays is how many past days PurgeHistory keeps. 0 keeps everything.
	RetentionDays int
	// Now defaults to time.Now. Tests replace it.
	Now func() time.Time
}

type Ledger struct {
	repo          repository.ConfirmationRepository
	logger        *slog.Logger
	loc           *time.Location
	retentionDays int
	now           func() time.Time
}

func NewLedger(repo repository.ConfirmationRepository, logger *slog.Logger, opts Options) *Ledger {
	l := &Ledger{
		repo:          repo,
		logger:        logger,
		loc:           opts.Location,
		retentionDays: opts.RetentionDays,
		now:           opts.Now,
	}
	if l.loc == nil {
		l.loc = time.Local
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Now returns the current time in the ledger's location.
func (l *Ledger) Now() time.Time {
	return l.now().In(l.loc)
}

// Today returns the current calendar date (YYYY-MM-DD) in the ledger's location.
func (l *Ledger) Today() string {
	return model.DayOf(l.Now())
}

// Confirm records that userID confirmed the bin state today. A repeat call on the
// same day is a no-op reported as Added=false, not an error.
func (l *Ledger) Confirm(ctx context.Context, userID, userName string) (*ConfirmResult, error) {
	userID = strings.TrimSpace(userID)
	userName = strings.TrimSpace(userName)

	if err := validate(userID, userName); err != nil {
		return nil, err
	}

	now := l.Now()
	day := model.DayOf(now)

	added, err := l.repo.InsertIfAbsent(ctx, day, userID, userName, now)
	if err != nil {
		l.logger.Error("failed to record confirmation",
			slog.String("day", day),
			slog.String("userId", userID),
			slog.String("error", err.Error()),
		)
		return nil, storageError("recording confirmation", err)
	}

	if added {
		l.logger.Info("confirmation recorded",
			slog.String("day", day),
			slog.String("userId", userID),
			slog.String("userName", userName),
		)
	} else {
		l.logger.Debug("confirmation already recorded",
			slog.String("day", day),
			slog.String("userId", userID),
		)
	}

	confirmations, err := l.repo.ListByDay(ctx, day)
	if err != nil {
		l.logger.Error("failed to list confirmations after insert",
			slog.String("day", day),
			slog.String("error", err.Error()),
		)
		return nil, storageError("listing confirmations", err)
	}

	return &ConfirmResult{Added: added, Confirmations: confirmations}, nil
}

// ListToday returns today's confirmations, oldest first. No confirmations yet is an
// empty slice, never an error.
func (l *Ledger) ListToday(ctx context.Context) ([]model.Confirmation, error) {
	day := l.Today()

	confirmations, err := l.repo.ListByDay(ctx, day)
	if err != nil {
		l.logger.Error("failed to list confirmations",
			slog.String("day", day),
			slog.String("error", err.Error()),
		)
		return nil, storageError("listing confirmations", err)
	}
	if confirmations == nil {
		confirmations = []model.Confirmation{}
	}
	return confirmations, nil
}

// HasConfirmedToday reports whether userID already confirmed today.
func (l *Ledger) HasConfirmedToday(ctx context.Context, userID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, apperror.ValidationFailed("userId", "userId is required")
	}

	day := l.Today()
	ok, err := l.repo.HasConfirmed(ctx, day, userID)
	if err != nil {
		l.logger.Error("failed to check confirmation",
			slog.String("day", day),
			slog.String("userId", userID),
			slog.String("error", err.Error()),
		)
		return false, storageError("checking confirmation", err)
	}
	return ok, nil
}

// PurgeHistory deletes confirmations older than the retention window. Today is
// never purged regardless of the window.
func (l *Ledger) PurgeHistory(ctx context.Context) (int64, error) {
	if l.retentionDays <= 0 {
		return 0, nil
	}

	cutoff := model.DayOf(l.Now().AddDate(0, 0, -l.retentionDays))
	removed, err := l.repo.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, storageError("purging history", err)
	}

	l.logger.Info("confirmation history purged",
		slog.String("before", cutoff),
		slog.Int64("removed", removed),
	)
	return removed, nil
}

func validate(userID, userName string) error {
	if userID == "" {
		return apperror.ValidationFailed("userId", "userId is required")
	}
	if userName == "" {
		return apperror.ValidationFailed("userName", "userName is required")
	}
	if utf8.RuneCountInString(userName) > MaxUserNameLength {
		return apperror.ValidationFailed("userName",
			fmt.Sprintf("userName must be %d characters or less", MaxUserNameLength))
	}
	if len(userID) > MaxUserIDLength {
		return apperror.ValidationFailed("userId",
			fmt.Sprintf("userId must be %d bytes or less", MaxUserIDLength))
	}
	return nil
}

// storageError keeps application errors raised by a backend (e.g. a conflict) and
// classifies everything else as StorageUnavailable.
func storageError(op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Unavailable(op, err)
}

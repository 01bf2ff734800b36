// Package repository declares the storage contract of the confirmation ledger.
//
// Backends live in sub-packages (sqlite, postgres, redis, jsonfile). Each one must
// enforce the (day, userID) uniqueness inside the store itself: InsertIfAbsent is
// a single atomic step, never a read followed by a write.
package repository

import (
	"context"
	"time"

	"github.com/sakif/bin-confirm/internal/model"
)

type ConfirmationRepository interface {
	// InsertIfAbsent records a confirmation for (day, userID). It reports
	// added=false without error when one already exists for that pair.
	InsertIfAbsent(ctx context.Context, day, userID, userName string, at time.Time) (bool, error)

	// ListByDay returns the confirmations of day ordered by timestamp ascending.
	// An empty day yields an empty, non-nil slice.
	ListByDay(ctx context.Context, day string) ([]model.Confirmation, error)

	HasConfirmed(ctx context.Context, day, userID string) (bool, error)

	// PurgeBefore removes confirmations of days strictly before day.
	PurgeBefore(ctx context.Context, day string) (int64, error)

	Close() error
}

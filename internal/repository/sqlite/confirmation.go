package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/bin-confirm/internal/model"
	"github.com/sakif/bin-confirm/internal/repository"
)

var _ repository.ConfirmationRepository = (*DB)(nil)

// InsertIfAbsent records a confirmation unless (day, userID) already exists.
//
// ON CONFLICT DO NOTHING:
// The uniqueness check and the insert are one statement, so SQLite decides atomically
// which of two concurrent calls wins. The loser affects zero rows and reports
// added=false. A separate SELECT-then-INSERT would let both pass the SELECT.
func (db *DB) InsertIfAbsent(ctx context.Context, day, userID, userName string, at time.Time) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO confirmations (id, day, user_id, user_name, recorded_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (day, user_id) DO NOTHING`,
		xid.New().String(),
		day,
		userID,
		userName,
		at.UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: inserting confirmation for %s on %s: %w", userID, day, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}

	db.logger.Debug("sqlite insert",
		slog.String("day", day),
		slog.String("userId", userID),
		slog.Bool("added", rowsAffected == 1),
	)
	return rowsAffected == 1, nil
}

// ListByDay returns the day's confirmations, oldest first. rowid breaks timestamp ties.
func (db *DB) ListByDay(ctx context.Context, day string) ([]model.Confirmation, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_id, user_name, recorded_at
		 FROM confirmations
		 WHERE day = ?
		 ORDER BY recorded_at ASC, rowid ASC`,
		day,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing confirmations for %s: %w", day, err)
	}
	defer rows.Close()

	confirmations := make([]model.Confirmation, 0)
	for rows.Next() {
		var (
			c          model.Confirmation
			recordedAt int64
		)
		if err := rows.Scan(&c.UserID, &c.UserName, &recordedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning confirmation row: %w", err)
		}
		c.Day = day
		c.Timestamp = time.Unix(0, recordedAt)
		confirmations = append(confirmations, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating confirmations: %w", err)
	}

	return confirmations, nil
}

// HasConfirmed reports whether userID has a confirmation on day.
func (db *DB) HasConfirmed(ctx context.Context, day, userID string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM confirmations WHERE day = ? AND user_id = ?)`,
		day, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking confirmation for %s on %s: %w", userID, day, err)
	}
	return exists, nil
}

// PurgeBefore deletes history older than day. Day keys are ISO dates, so string
// comparison orders them chronologically.
func (db *DB) PurgeBefore(ctx context.Context, day string) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM confirmations WHERE day < ?`,
		day,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: purging confirmations before %s: %w", day, err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return removed, nil
}

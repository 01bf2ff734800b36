package handler_test

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/sakif/bin-confirm/internal/model"
	"github.com/sakif/bin-confirm/internal/service"
)

// MockLedger implements handler.Ledger with canned results.
type MockLedger struct {
	CapturedUserID   string
	CapturedUserName string

	ConfirmRes *service.ConfirmResult
	ConfirmErr error

	ListRes []model.Confirmation
	ListErr error

	CheckRes bool
	CheckErr error

	Clock time.Time
}

func (m *MockLedger) Confirm(_ context.Context, userID, userName string) (*service.ConfirmResult, error) {
	m.CapturedUserID = userID
	m.CapturedUserName = userName
	if m.ConfirmErr != nil {
		return nil, m.ConfirmErr
	}
	return m.ConfirmRes, nil
}

func (m *MockLedger) ListToday(context.Context) ([]model.Confirmation, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.ListRes, nil
}

func (m *MockLedger) HasConfirmedToday(_ context.Context, userID string) (bool, error) {
	m.CapturedUserID = userID
	if m.CheckErr != nil {
		return false, m.CheckErr
	}
	return m.CheckRes, nil
}

func (m *MockLedger) Now() time.Time { return m.Clock }

func (m *MockLedger) Today() string { return model.DayOf(m.Clock) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

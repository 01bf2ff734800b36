package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/bin-confirm/internal/apperror"
	"github.com/sakif/bin-confirm/internal/model"
	"github.com/sakif/bin-confirm/internal/service"
)

// maxConfirmBody caps POST /confirmations bodies; a valid one is well under 1 KiB.
const maxConfirmBody = 4 << 10

// Ledger is the subset of *service.Ledger the HTTP layer uses.
// Handlers depend on this interface so tests can swap in a mock.
type Ledger interface {
	Confirm(ctx context.Context, userID, userName string) (*service.ConfirmResult, error)
	ListToday(ctx context.Context) ([]model.Confirmation, error)
	HasConfirmedToday(ctx context.Context, userID string) (bool, error)
	Today() string
	Now() time.Time
}

// ConfirmationHandler serves the confirmation ledger API.
type ConfirmationHandler struct {
	ledger Ledger
	logger *slog.Logger
}

func NewConfirmationHandler(ledger Ledger, logger *slog.Logger) *ConfirmationHandler {
	return &ConfirmationHandler{ledger: ledger, logger: logger}
}

// confirmRequest accepts both the current camelCase fields and the snake_case
// fields older page builds still post.
type confirmRequest struct {
	UserName       string `json:"userName"`
	UserID         string `json:"userId"`
	LegacyUserName string `json:"user_name"`
	LegacyUserID   string `json:"user_id"`
}

func (r confirmRequest) name() string {
	if r.UserName != "" {
		return r.UserName
	}
	return r.LegacyUserName
}

func (r confirmRequest) id() string {
	if r.UserID != "" {
		return r.UserID
	}
	return r.LegacyUserID
}

type confirmResponse struct {
	Success       bool                 `json:"success"`
	Added         bool                 `json:"added"`
	Confirmations []model.Confirmation `json:"confirmations"`
}

type checkResponse struct {
	Verified bool `json:"verified"`
}

// HandleList returns today's confirmations, oldest first.
//
// HTTP: GET /confirmations
//
// This endpoint never fails: a storage error is logged and answered with [] so the
// page keeps rendering.
func (h *ConfirmationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	confirmations, err := h.ledger.ListToday(r.Context())
	if err != nil {
		h.logger.Warn("listing confirmations failed, serving empty list",
			slog.String("error", err.Error()),
		)
		confirmations = []model.Confirmation{}
	}
	writeJSON(w, http.StatusOK, confirmations)
}

// HandleConfirm records the caller's confirmation for today.
//
// HTTP: POST /confirmations
// REQUEST BODY: {"userName": "Ana", "userId": "9f1c..."}
// RESPONSE:     {"success": true, "added": true, "confirmations": [...]}
//
// A repeat confirmation is not an error: it answers 200 with added=false.
func (h *ConfirmationHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxConfirmBody)

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid confirmation JSON", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}

	result, err := h.ledger.Confirm(r.Context(), req.id(), req.name())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, confirmResponse{
		Success:       true,
		Added:         result.Added,
		Confirmations: result.Confirmations,
	})
}

// HandleCheck reports whether a user has already confirmed today.
//
// HTTP: GET /confirmations/check?userId=9f1c...
//
// A missing userId is a 400. Storage errors degrade to {"verified": false}; the page
// then simply offers the confirm button again, which is idempotent.
func (h *ConfirmationHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = r.URL.Query().Get("user_id")
	}

	verified, err := h.ledger.HasConfirmedToday(r.Context(), userID)
	if err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			writeError(w, err)
			return
		}
		h.logger.Warn("checking confirmation failed, reporting unverified",
			slog.String("userId", userID),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, http.StatusOK, checkResponse{Verified: verified})
}

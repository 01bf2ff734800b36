package handler

import (
	"net/http"
	"time"

	"github.com/sakif/bin-confirm/internal/schedule"
)

// StatusHandler reports whether the bin should be open right now.
type StatusHandler struct {
	schedule schedule.Schedule
	clock    Clock
}

// Clock supplies the current time and calendar day. *service.Ledger satisfies it,
// so the status endpoint and the ledger agree on the timezone.
type Clock interface {
	Now() time.Time
	Today() string
}

func NewStatusHandler(sched schedule.Schedule, clock Clock) *StatusHandler {
	return &StatusHandler{schedule: sched, clock: clock}
}

type statusResponse struct {
	Open     bool   `json:"open"`
	Message  string `json:"message"`
	Subtitle string `json:"subtitle"`
	Day      string `json:"day"`
}

// HandleStatus serves GET /status.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	now := h.clock.Now()
	st := h.schedule.Status(now)

	writeJSON(w, http.StatusOK, statusResponse{
		Open:     st.Open,
		Message:  st.Message,
		Subtitle: st.Subtitle,
		Day:      h.clock.Today(),
	})
}

// HandleHealth serves GET /healthz. It does not touch storage.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

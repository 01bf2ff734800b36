// Package handler contains the HTTP handlers: the JSON API over the confirmation
// ledger and the single HTML page that drives it.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the request (query params, body)
//  2. Call the ledger or the schedule
//  3. Write the response
//
// Business rules (validation, what "today" is, deduplication) live in the service
// package, never here.
package handler

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/sakif/bin-confirm/internal/schedule"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageHandler renders the confirmation page.
// Templates are parsed once at construction and reused for every request.
type PageHandler struct {
	templates *template.Template
	schedule  schedule.Schedule
	clock     Clock
	logger    *slog.Logger
}

type pageData struct {
	Title    string
	Day      string
	Open     bool
	Message  string
	Subtitle string
}

// NewPageHandler parses base.html together with page.html: base defines the layout
// and pulls in the "content" block that page.html defines.
func NewPageHandler(sched schedule.Schedule, clock Clock, logger *slog.Logger) (*PageHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/base.html", "templates/page.html")
	if err != nil {
		return nil, err
	}

	return &PageHandler{
		templates: tmpl,
		schedule:  sched,
		clock:     clock,
		logger:    logger,
	}, nil
}

// HandlePage serves GET /. The bin status is rendered server-side for the first
// paint; the script in page.html then loads the list and the caller's own state.
func (h *PageHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	st := h.schedule.Status(h.clock.Now())
	data := pageData{
		Title:    "Lixeira do condomínio",
		Day:      h.clock.Today(),
		Open:     st.Open,
		Message:  st.Message,
		Subtitle: st.Subtitle,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render template",
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/pubflow/pubflow/pkg/pubflow"
)

// JobsHandler exposes the discoverability and maintenance jobs. The routes
// are meant to be called by an external scheduler, not by end users.
type JobsHandler struct {
	service pubflow.Service
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(service pubflow.Service) *JobsHandler {
	return &JobsHandler{service: service}
}

// Routes returns the routes for jobs
func (h *JobsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/sitemap", h.GenerateSitemap)
	r.Post("/feeds", h.GenerateFeeds)
	r.Post("/alias-sweep", h.SweepOrphanAliases)

	return r
}

// GenerateSitemap regenerates the sitemap shards. A run overlapping a
// previous one is rejected with 409.
func (h *JobsHandler) GenerateSitemap(w http.ResponseWriter, r *http.Request) {
	if err := h.service.GenerateSitemap(r.Context()); err != nil {
		slog.Error("Sitemap generation failed", "error", err)
		writeError(w, err)
		return
	}

	slog.Info("Sitemap generated")
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// GenerateFeeds regenerates the RSS feeds.
func (h *JobsHandler) GenerateFeeds(w http.ResponseWriter, r *http.Request) {
	if err := h.service.GenerateFeeds(r.Context()); err != nil {
		slog.Error("Feed generation failed", "error", err)
		writeError(w, err)
		return
	}

	slog.Info("Feeds generated")
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// SweepOrphanAliases removes alias bindings that never resolved to an
// entity. The optional older_than_hours parameter overrides the default
// grace period.
func (h *JobsHandler) SweepOrphanAliases(w http.ResponseWriter, r *http.Request) {
	olderThan := pubflow.OrphanGracePeriod
	if hoursStr := r.URL.Query().Get("older_than_hours"); hoursStr != "" {
		hours, err := strconv.Atoi(hoursStr)
		if err != nil || hours < 0 {
			http.Error(w, "Invalid older_than_hours parameter", http.StatusBadRequest)
			return
		}
		olderThan = time.Duration(hours) * time.Hour
	}

	removed, err := h.service.SweepOrphanAliases(r.Context(), olderThan)
	if err != nil {
		slog.Error("Alias sweep failed", "error", err)
		writeError(w, err)
		return
	}

	slog.Info("Orphan aliases swept", "removed", removed)
	render.JSON(w, r, map[string]int64{"removed": removed})
}

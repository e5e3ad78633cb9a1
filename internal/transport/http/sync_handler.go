package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "ceapulse/internal/errors"
	syncjob "ceapulse/internal/sync"
)

// SyncRunner triggers one movement-detection sync run.
type SyncRunner interface {
	Run(ctx context.Context) (*syncjob.RunStats, error)
	Running() bool
}

// SyncHandler exposes the sync trigger and its status.
type SyncHandler struct {
	runner       SyncRunner
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewSyncHandler creates the sync handler.
func NewSyncHandler(runner SyncRunner, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *SyncHandler {
	return &SyncHandler{
		runner:       runner,
		logger:       logger.With(slog.String("component", "sync_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the sync routes. The caller is expected to wrap them
// with API key authentication.
func (h *SyncHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/", h.TriggerSync)
	r.Get("/status", h.GetStatus)

	return r
}

// TriggerSync runs one sync synchronously and returns its stats. A run
// already in flight yields a 409; the caller retries later.
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	stats, err := h.runner.Run(r.Context())
	if err != nil {
		if errors.Is(err, apierrors.ErrSyncInProgress) {
			h.errorHandler.HandleError(w, r, apierrors.ErrSyncInProgress)
			return
		}

		h.logger.ErrorContext(r.Context(), "sync run failed",
			slog.String("error", err.Error()))
		// failed runs still carry their stats for diagnosis
		if stats != nil {
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, stats)
			return
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, stats)
}

// GetStatus reports whether a sync run is in flight.
func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]bool{"running": h.runner.Running()})
}

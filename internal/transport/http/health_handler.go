package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"ceapulse/pkg/contracts"
)

// HealthHandler serves liveness and version information.
type HealthHandler struct {
	startedAt time.Time
}

// NewHealthHandler creates the health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{startedAt: time.Now()}
}

// Routes returns the health routes.
func (h *HealthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/", h.GetHealth)
	return r
}

// GetHealth reports process liveness plus build information.
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	info := contracts.GetVersionInfo()
	render.JSON(w, r, map[string]interface{}{
		"status":  "healthy",
		"version": info.Version,
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

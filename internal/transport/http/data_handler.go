// Package http holds the HTTP transport layer: route wiring and the
// handlers that translate between requests and the service layer.
package http

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "ceapulse/internal/errors"
	"ceapulse/internal/services"
	"ceapulse/internal/store"
	"ceapulse/pkg/contracts/domain"
)

// monthPattern validates "YYYY-MM" range parameters.
var monthPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// DataService is the read-side surface the data handler serves.
type DataService interface {
	GetOverview(ctx context.Context) (*services.Overview, error)
	GetLeaderboard(ctx context.Context, start, end string, limit int) ([]domain.SalespersonTotal, error)
	GetDateRange(ctx context.Context) (*services.DateRange, error)
	GetSalesperson(ctx context.Context, regNum string) (*services.SalespersonDetail, error)
	WriteWorkbook(ctx context.Context, w io.Writer) error
}

// MovementSource serves the stored movement history.
type MovementSource interface {
	ListMovements(ctx context.Context, search string, page, pageSize int) (*store.MovementPage, error)
}

// DataHandler serves the analytics read endpoints.
type DataHandler struct {
	service      DataService
	movements    MovementSource
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDataHandler creates a data handler. movements may be nil in the
// file-based deployment, which has no movement store; the movement
// routes then report 404.
func NewDataHandler(service DataService, movements MovementSource, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DataHandler {
	return &DataHandler{
		service:      service,
		movements:    movements,
		logger:       logger.With(slog.String("component", "data_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the data routes.
func (h *DataHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/overview", h.GetOverview)
	r.Get("/leaderboard", h.GetLeaderboard)
	r.Get("/date-range", h.GetDateRange)
	r.Get("/salespersons/{regNum}", h.GetSalesperson)
	r.Get("/movements", h.GetMovements)
	r.Get("/workbook", h.DownloadWorkbook)

	return r
}

// GetOverview serves the dashboard's headline aggregates.
func (h *DataHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.GetOverview(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, overview)
}

// GetLeaderboard serves the date-range ranking. start and end are
// optional "YYYY-MM" query parameters; either side may be open.
func (h *DataHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")

	if start != "" && !monthPattern.MatchString(start) {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("start", "must be YYYY-MM"))
		return
	}
	if end != "" && !monthPattern.MatchString(end) {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("end", "must be YYYY-MM"))
		return
	}
	if start != "" && end != "" && start > end {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("start", "must not be after end"))
		return
	}

	limit := parsePositiveInt(r.URL.Query().Get("limit"), 0)

	ranked, err := h.service.GetLeaderboard(r.Context(), start, end, limit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"start":        start,
		"end":          end,
		"salespersons": ranked,
	})
}

// GetDateRange serves the span of months the data set covers.
func (h *DataHandler) GetDateRange(w http.ResponseWriter, r *http.Request) {
	dateRange, err := h.service.GetDateRange(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, dateRange)
}

// GetSalesperson serves one salesperson's detail view.
func (h *DataHandler) GetSalesperson(w http.ResponseWriter, r *http.Request) {
	regNum := chi.URLParam(r, "regNum")
	if regNum == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("regNum", "registration number is required"))
		return
	}

	detail, err := h.service.GetSalesperson(r.Context(), regNum)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, detail)
}

// GetMovements serves a page of the movement history, newest first.
func (h *DataHandler) GetMovements(w http.ResponseWriter, r *http.Request) {
	if h.movements == nil {
		h.errorHandler.HandleError(w, r, apierrors.NotFoundError("movement history"))
		return
	}

	query := r.URL.Query()
	page := parsePositiveInt(query.Get("page"), 1)
	pageSize := parsePositiveInt(query.Get("page_size"), 25)

	result, err := h.movements.ListMovements(r.Context(), query.Get("search"), page, pageSize)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "movement listing failed",
			slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// DownloadWorkbook streams the aggregates as a spreadsheet download.
// The workbook is built per request; failures after the first byte is
// written cannot change the status code, so it is buffered first.
func (h *DataHandler) DownloadWorkbook(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.service.WriteWorkbook(r.Context(), &buf); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="cea-aggregates.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.ErrorContext(r.Context(), "workbook download interrupted",
			slog.String("error", err.Error()))
	}
}

func parsePositiveInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

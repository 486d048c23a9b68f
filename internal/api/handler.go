// Package api serves the ranked tables, leaderboards and snapshots over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"equity-monitor/internal/domain"
	"equity-monitor/internal/observability"
	"equity-monitor/internal/orchestrator"
	"equity-monitor/internal/ranking"
	"equity-monitor/internal/storage"
)

// Service is the read and tag-edit surface the handler depends on.
// *orchestrator.Orchestrator implements it.
type Service interface {
	Rankings(ctx context.Context, asOf time.Time) ([]domain.RankedRow, error)
	Leaderboard(ctx context.Context, asOf time.Time, by ranking.GroupBy) ([]ranking.LeaderboardRow, error)
	Snapshot(ctx context.Context, date time.Time) (*domain.Snapshot, error)
	LatestSnapshot(ctx context.Context) (*domain.Snapshot, error)
	SnapshotDates(ctx context.Context) ([]time.Time, error)
	SetTags(ctx context.Context, instrument string, tags domain.Tags) error
	Instrument(ctx context.Context, instrument string) (*domain.InstrumentMetadata, error)
}

var _ Service = (*orchestrator.Orchestrator)(nil)

// Handler routes API requests to a Service.
type Handler struct {
	service  Service
	validate *validator.Validate
	metrics  *observability.Metrics
	exporter http.Handler
	now      func() time.Time
	logger   *log.Logger
}

// Options for creating Handler.
type Options struct {
	Service        Service
	Metrics        *observability.Metrics
	MetricsHandler http.Handler // served at /metrics when set
	Clock          func() time.Time
	Logger         *log.Logger
}

// NewHandler creates a new Handler.
func NewHandler(opts Options) *Handler {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		service:  opts.Service,
		validate: validator.New(),
		metrics:  opts.Metrics,
		exporter: opts.MetricsHandler,
		now:      now,
		logger:   logger,
	}
}

// Routes returns the router with all endpoints mounted.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.instrument)

	r.Get("/health", h.health)
	if h.exporter != nil {
		r.Method(http.MethodGet, "/metrics", h.exporter)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/rankings", h.rankings)
		r.Get("/leaderboards/{group}", h.leaderboard)
		r.Route("/snapshots", func(r chi.Router) {
			r.Get("/", h.snapshotDates)
			r.Get("/latest", h.latestSnapshot)
			r.Get("/{date}", h.snapshot)
		})
		r.Put("/instruments/{instrument}/tags", h.setTags)
	})
	return r
}

// instrument counts requests by route pattern and status code.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.metrics.RecordHTTPRequest(route, status)
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// rankings computes the table live. ?as_of=YYYY-MM-DD recomputes history.
func (h *Handler) rankings(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}
	rows, err := h.service.Rankings(r.Context(), asOf)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, newTable(asOf, rows))
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	by, err := ranking.ParseGroupBy(chi.URLParam(r, "group"))
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "INVALID_GROUP", err.Error())
		return
	}
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}
	board, err := h.service.Leaderboard(r.Context(), asOf, by)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, newLeaderboard(asOf, by, board))
}

func (h *Handler) snapshotDates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.service.SnapshotDates(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := DatesResponse{Dates: make([]string, 0, len(dates))}
	for _, d := range dates {
		out.Dates = append(out.Dates, d.Format(domain.DateLayout))
	}
	render.JSON(w, r, out)
}

func (h *Handler) latestSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.LatestSnapshot(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, newTable(snap.ScanDate, snap.Rows))
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	date, err := domain.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "INVALID_DATE", "date must be YYYY-MM-DD")
		return
	}
	snap, err := h.service.Snapshot(r.Context(), date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, newTable(snap.ScanDate, snap.Rows))
}

func (h *Handler) setTags(w http.ResponseWriter, r *http.Request) {
	instrument := strings.ToUpper(chi.URLParam(r, "instrument"))

	var req TagsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "INVALID_JSON", "request body must be {\"tags\": [...]}")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}

	if err := h.service.SetTags(r.Context(), instrument, domain.NewTags(req.Tags...)); err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.service.Instrument(r.Context(), instrument)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, TagsResponse{Instrument: m.Instrument, Tags: tagList(m.Tags)})
}

// asOf parses ?as_of, defaulting to today. Writes a 400 on a bad value.
func (h *Handler) asOf(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return domain.Day(h.now()), true
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "INVALID_DATE", "as_of must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}

// fail maps service errors to status codes.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrNoData):
		h.writeError(w, r, http.StatusNotFound, "NO_DATA", "no data for the requested date")
	case errors.Is(err, storage.ErrNotFound):
		h.writeError(w, r, http.StatusNotFound, "NOT_FOUND", "instrument not found")
	case errors.Is(err, storage.ErrInvalidInput):
		h.writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	default:
		h.logger.Printf("ERROR: %s %s: %v", r.Method, r.URL.Path, err)
		h.writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Code: code, Message: msg})
}

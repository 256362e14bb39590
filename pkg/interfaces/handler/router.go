package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vsinha/picktrack/pkg/application/dto"
	"github.com/vsinha/picktrack/pkg/domain/entities"
	"github.com/vsinha/picktrack/pkg/domain/repositories"
	"github.com/vsinha/picktrack/pkg/infrastructure/logging"
	"github.com/vsinha/picktrack/pkg/infrastructure/metrics"
)

// ProgressReader reports picking progress
type ProgressReader interface {
	Progress(ctx context.Context, orderID string) (*dto.ProgressReport, error)
}

// Inspector runs the read-only reconciliation checks
type Inspector interface {
	DetectExcessPicks(ctx context.Context, orderID string) ([]dto.ExcessPick, error)
	Audit(ctx context.Context, orderID string) (*dto.AuditReport, error)
}

// Handler groups dependencies for route handlers.
type Handler struct {
	orders    repositories.OrderRepository
	progress  ProgressReader
	inspector Inspector
	logger    *zap.Logger
}

// NewRouter builds the read-only report API. Orders may be addressed by ID
// or SO number.
func NewRouter(orders repositories.OrderRepository, progress ProgressReader, inspector Inspector, logger *zap.Logger) http.Handler {
	h := &Handler{orders: orders, progress: progress, inspector: inspector, logger: logging.OrDefault(logger)}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.instrument)

	r.Get("/healthz", h.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/orders/{orderID}", func(r chi.Router) {
		r.Get("/progress", h.getProgress)
		r.Get("/excess-picks", h.getExcessPicks)
		r.Get("/audit", h.getAudit)
	})

	return r
}

// unmatchedRoute labels requests that matched no route pattern
const unmatchedRoute = "unmatched"

// instrument counts requests by route pattern and status and logs them
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := unmatchedRoute
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		h.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) getProgress(w http.ResponseWriter, r *http.Request) {
	order, ok := h.resolve(w, r)
	if !ok {
		return
	}
	report, err := h.progress.Progress(r.Context(), order.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) getExcessPicks(w http.ResponseWriter, r *http.Request) {
	order, ok := h.resolve(w, r)
	if !ok {
		return
	}
	picks, err := h.inspector.DetectExcessPicks(r.Context(), order.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if picks == nil {
		picks = []dto.ExcessPick{}
	}
	writeJSON(w, http.StatusOK, picks)
}

func (h *Handler) getAudit(w http.ResponseWriter, r *http.Request) {
	order, ok := h.resolve(w, r)
	if !ok {
		return
	}
	report, err := h.inspector.Audit(r.Context(), order.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (*entities.Order, bool) {
	order, err := repositories.ResolveOrder(r.Context(), h.orders, chi.URLParam(r, "orderID"))
	if err != nil {
		h.fail(w, err)
		return nil, false
	}
	return order, true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, entities.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	h.logger.Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/Alexmontesino96/GymAPI-sub008/pkg/errors"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/feed"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/insights"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/logging"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/models"
)

const (
	defaultFeedLimit    = 20
	maxFeedLimit        = 100
	defaultRankingLimit = 10
	maxRankingLimit     = 50
)

// TenantResolver extracts the tenant id from a request. It is injected so
// handlers stay decoupled from the middleware wiring.
type TenantResolver func(r *http.Request) string

// FeedHandlers serves the read side of the activity feed.
type FeedHandlers struct {
	feed       *feed.Publisher
	insights   *insights.Service
	tenant     TenantResolver
	errHandler *apperrors.Handler
	logger     *logging.Logger
}

func NewFeedHandlers(f *feed.Publisher, ins *insights.Service, tenant TenantResolver, errHandler *apperrors.Handler, logger *logging.Logger) *FeedHandlers {
	return &FeedHandlers{
		feed:       f,
		insights:   ins,
		tenant:     tenant,
		errHandler: errHandler,
		logger:     logger,
	}
}

// GetFeed returns a page of published activities, newest first.
func (h *FeedHandlers) GetFeed(w http.ResponseWriter, r *http.Request) {
	tenantID := h.tenant(r)

	limit, err := parseBounded(r, "limit", defaultFeedLimit, maxFeedLimit)
	if err != nil {
		h.errHandler.Handle(w, err)
		return
	}
	offset, err := parseOffset(r)
	if err != nil {
		h.errHandler.Handle(w, err)
		return
	}

	activities, hasMore := h.feed.GetFeed(r.Context(), tenantID, limit, offset)
	if activities == nil {
		activities = []models.AggregatedActivity{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"activities": activities,
		"count":      len(activities),
		"has_more":   hasMore,
	})
}

// GetRealtime returns the current anonymized occupancy snapshot.
func (h *FeedHandlers) GetRealtime(w http.ResponseWriter, r *http.Request) {
	stats := h.insights.GetRealtimeStats(r.Context(), h.tenant(r))
	writeJSON(w, http.StatusOK, stats)
}

// GetInsights returns motivational insight messages derived from aggregates.
func (h *FeedHandlers) GetInsights(w http.ResponseWriter, r *http.Request) {
	list := h.insights.GetInsights(r.Context(), h.tenant(r))
	if list == nil {
		list = []models.Insight{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"insights": list,
	})
}

// GetRanking returns an anonymous ranking for a metric and period.
func (h *FeedHandlers) GetRanking(w http.ResponseWriter, r *http.Request) {
	metric := chi.URLParam(r, "metric")
	if !insights.ValidMetric(metric) {
		h.errHandler.Handle(w, apperrors.ValidationErrorf("INVALID_METRIC", "Unknown ranking metric: %s", metric))
		return
	}

	period := r.URL.Query().Get("period")
	if period == "" {
		period = "weekly"
	}
	if !insights.ValidPeriod(period) {
		h.errHandler.Handle(w, apperrors.ValidationErrorf("INVALID_PERIOD", "Unknown ranking period: %s", period))
		return
	}

	limit, err := parseBounded(r, "limit", defaultRankingLimit, maxRankingLimit)
	if err != nil {
		h.errHandler.Handle(w, err)
		return
	}

	ranking := h.insights.GetRanking(r.Context(), h.tenant(r), metric, period, limit)
	writeJSON(w, http.StatusOK, ranking)
}

func parseBounded(r *http.Request, name string, def, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 || v > max {
		return 0, apperrors.ValidationErrorf("INVALID_"+strings.ToUpper(name), "%s must be an integer between 1 and %d", name, max).
			WithDetail(name, raw)
	}
	return v, nil
}

func parseOffset(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("offset")
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperrors.ValidationErrorf("INVALID_OFFSET", "offset must be a non-negative integer").
			WithDetail("offset", raw)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Get().Error("failed to encode response", zap.Error(err))
	}
}

// Package insights derives read-only realtime stats, motivational messages
// and anonymized rankings from the engine's counters. It only ever sees
// pre-aggregated counts: per-user records cannot reach this code path.
package insights

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Alexmontesino96/GymAPI-sub008/pkg/config"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/logging"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/models"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/privacy"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/store"
)

// Periods accepted by GetRanking.
var validPeriods = map[string]bool{
	"daily":  true,
	"weekly": true,
}

// metricUnits maps each supported ranking metric to its display unit. The
// map doubles as the metric whitelist.
var metricUnits = map[string]string{
	"consistency":      "sessions",
	"class_popularity": "checkins",
	"achievements":     "unlocks",
}

// labeledMetrics are metrics whose bucket names are coarse, already-public
// labels (class or achievement names). Other metrics expose position and
// value only: member-derived buckets could be re-identified by label.
var labeledMetrics = map[string]bool{
	"class_popularity": true,
	"achievements":     true,
}

// ValidMetric reports whether metric is a supported ranking metric.
func ValidMetric(metric string) bool {
	_, ok := metricUnits[metric]
	return ok
}

// ValidPeriod reports whether period is a supported ranking period.
func ValidPeriod(period string) bool {
	return validPeriods[period]
}

// Service computes derived views over current counters. Every disclosure
// passes through the anonymity policy.
type Service struct {
	store     store.Store
	policy    *privacy.Policy
	peakHours []config.Span
	logger    *logging.Logger
	now       func() time.Time
}

// NewService creates an insights service.
func NewService(s store.Store, policy *privacy.Policy, peakHours []config.Span, logger *logging.Logger) *Service {
	return &Service{
		store:     s,
		policy:    policy,
		peakHours: peakHours,
		logger:    logger,
		now:       time.Now,
	}
}

// GetRealtimeStats returns the current training snapshot for a tenant.
// Counts below the cohort floor are reported as zero and areas below the
// floor are omitted entirely. Store failure degrades to an empty snapshot.
func (s *Service) GetRealtimeStats(ctx context.Context, tenantID string) models.RealtimeStats {
	stats := models.RealtimeStats{
		ByArea:     make(map[string]int64),
		IsPeakTime: s.isPeakTime(),
	}

	total, ok, err := s.store.Get(ctx, store.Key{
		TenantID: tenantID, Namespace: store.NamespaceRealtime, Metric: "training_count",
	})
	if err != nil {
		s.logger.WithError(err).Warn("realtime stats degraded to empty",
			zap.String("tenant_id", tenantID))
		return stats
	}
	if ok && s.policy.CanPublish(total, models.KindClassCheckin) {
		stats.TotalTraining = total
	}

	prefix := store.Prefix(tenantID, store.NamespaceRealtime, "training_area")
	areas, err := s.store.ScanPrefix(ctx, prefix, 100)
	if err != nil {
		s.logger.WithError(err).Warn("area scan degraded to empty",
			zap.String("tenant_id", tenantID))
		return stats
	}
	for _, entry := range areas {
		if s.policy.CanPublish(entry.Value, models.KindClassCheckin) {
			stats.ByArea[store.BucketOf(entry.Key, prefix)] = entry.Value
		}
	}
	return stats
}

// GetInsights derives the current motivational messages for a tenant. Only
// counters that clear the cohort floor contribute; no counter, no message.
func (s *Service) GetInsights(ctx context.Context, tenantID string) []models.Insight {
	insights := make([]models.Insight, 0, 4)

	type source struct {
		namespace string
		metric    string
		kind      models.EventKind
		insight   string
		format    string
	}
	sources := []source{
		{store.NamespaceRealtime, "training_count", models.KindClassCheckin, "momentum", "%d people are training right now, come join them!"},
		{store.NamespaceDaily, "checkins_count", models.KindClassCheckin, "attendance", "%d check-ins today and counting"},
		{store.NamespaceDaily, "achievements_count", models.KindAchievementUnlocked, "achievement", "%d achievements unlocked today"},
		{store.NamespaceDaily, "records_count", models.KindPersonalRecord, "record", "%d personal records set today"},
	}

	day := store.DayBucket(s.now())
	for _, src := range sources {
		key := store.Key{TenantID: tenantID, Namespace: src.namespace, Metric: src.metric}
		if src.namespace == store.NamespaceDaily {
			key.Bucket = day
		}
		value, ok, err := s.store.Get(ctx, key)
		if err != nil {
			s.logger.WithError(err).Warn("insights degraded to empty",
				zap.String("tenant_id", tenantID))
			return []models.Insight{}
		}
		if !ok || !s.policy.CanPublish(value, src.kind) {
			continue
		}
		insights = append(insights, models.Insight{
			Message: fmt.Sprintf(src.format, value),
			Type:    src.insight,
		})
	}

	if s.isPeakTime() {
		insights = append(insights, models.Insight{
			Message: "Peak hours: classes fill up fast",
			Type:    "peak",
		})
	}
	return insights
}

// GetRanking computes an anonymized leaderboard snapshot from the ranking
// counters of one metric and period. A ranking whose underlying population
// is below the ranking cohort floor comes back empty rather than short.
func (s *Service) GetRanking(ctx context.Context, tenantID, metric, period string, limit int) models.Ranking {
	ranking := models.Ranking{
		Type:     metric,
		Period:   period,
		Rankings: []models.RankingEntry{},
		Unit:     metricUnits[metric],
	}

	// only the current window's bucket is read; last week's counters are
	// invisible even before their TTL reaps them
	prefix := store.Prefix(tenantID, store.RankNamespace(period), metric) + store.PeriodBucket(period, s.now()) + ":"
	entries, err := s.store.ScanPrefix(ctx, prefix, 1000)
	if err != nil {
		s.logger.WithError(err).Warn("ranking degraded to empty",
			zap.String("tenant_id", tenantID),
			zap.String("metric", metric))
		return ranking
	}

	if !s.policy.CanPublishRanking(len(entries)) {
		return ranking
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Value != entries[j].Value {
			return entries[i].Value > entries[j].Value
		}
		return entries[i].Key < entries[j].Key
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	for i, entry := range entries {
		row := models.RankingEntry{Position: i + 1, Value: entry.Value}
		if labeledMetrics[metric] {
			row.Label = store.BucketOf(entry.Key, prefix)
		}
		ranking.Rankings = append(ranking.Rankings, row)
	}
	return ranking
}

func (s *Service) isPeakTime() bool {
	hour := s.now().Hour()
	for _, span := range s.peakHours {
		if span.Contains(hour) {
			return true
		}
	}
	return false
}

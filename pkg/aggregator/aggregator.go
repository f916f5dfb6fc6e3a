// Package aggregator converts raw business events into anonymous,
// cohort-gated activity publications. It is the only writer of the engine's
// counters and the only producer of feed entries.
package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/Alexmontesino96/GymAPI-sub008/pkg/events"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/feed"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/logging"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/metrics"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/models"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/privacy"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/store"
)

// Config holds the aggregator's TTL classes and operation timeout.
type Config struct {
	RealtimeTTL   time.Duration
	DailyTTL      time.Duration
	WeeklyTTL     time.Duration
	FeedTTL       time.Duration
	DedupeTTL     time.Duration
	OpTimeout     time.Duration
	DedupeEntries int
}

// Aggregator receives typed business events, updates counters atomically and
// publishes cohort-cleared AggregatedActivity values. Handlers never return
// errors: the feed is best-effort and must not be able to fail an upstream
// business transaction.
type Aggregator struct {
	store     store.Store
	policy    *privacy.Policy
	feed      *feed.Publisher
	broadcast events.Broadcaster
	cfg       Config
	dedupe    *lru.LRU[string, struct{}]
	logger    *logging.Logger
	metrics   *metrics.Metrics
}

// New creates an aggregator. metrics may be nil.
func New(s store.Store, policy *privacy.Policy, publisher *feed.Publisher, broadcast events.Broadcaster, cfg Config, logger *logging.Logger, m *metrics.Metrics) *Aggregator {
	if cfg.DedupeEntries <= 0 {
		cfg.DedupeEntries = 4096
	}
	if cfg.WeeklyTTL <= 0 {
		cfg.WeeklyTTL = 7 * 24 * time.Hour
	}
	return &Aggregator{
		store:     s,
		policy:    policy,
		feed:      publisher,
		broadcast: broadcast,
		cfg:       cfg,
		dedupe:    lru.NewLRU[string, struct{}](cfg.DedupeEntries, nil, cfg.DedupeTTL),
		logger:    logger,
		metrics:   m,
	}
}

// OnClassCheckin records a class check-in. The session id doubles as the
// dedupe key so a retried upstream call increments at most once.
func (a *Aggregator) OnClassCheckin(ctx context.Context, ev CheckinEvent) {
	a.process(ctx, models.ActivityEvent{
		TenantID:   ev.TenantID,
		Kind:       models.KindClassCheckin,
		OccurredAt: time.Now(),
		DedupeKey:  ev.SessionID,
		Attributes: ev.attributes(),
	})
}

// OnAchievementUnlocked records an achievement unlock.
func (a *Aggregator) OnAchievementUnlocked(ctx context.Context, ev AchievementEvent) {
	a.process(ctx, models.ActivityEvent{
		TenantID:   ev.TenantID,
		Kind:       models.KindAchievementUnlocked,
		OccurredAt: time.Now(),
		Attributes: ev.attributes(),
	})
}

// OnPersonalRecord records a personal record.
func (a *Aggregator) OnPersonalRecord(ctx context.Context, ev PersonalRecordEvent) {
	a.process(ctx, models.ActivityEvent{
		TenantID:   ev.TenantID,
		Kind:       models.KindPersonalRecord,
		OccurredAt: time.Now(),
		Attributes: ev.attributes(),
	})
}

// OnClassNearCapacity records a class filling up. The occupancy count is the
// cohort: a nearly-full class with fewer members than the threshold is never
// announced.
func (a *Aggregator) OnClassNearCapacity(ctx context.Context, ev CapacityEvent) {
	a.process(ctx, models.ActivityEvent{
		TenantID:   ev.TenantID,
		Kind:       models.KindClassNearCapacity,
		OccurredAt: time.Now(),
		DedupeKey:  fmt.Sprintf("capacity:%s:%d", ev.ClassName, ev.Current),
		Attributes: ev.attributes(),
	})
}

// process runs the shared pipeline: validate, dedupe, count, gate, publish.
func (a *Aggregator) process(ctx context.Context, ev models.ActivityEvent) {
	a.markReceived(ev.Kind)

	if ev.TenantID == "" {
		a.drop(ev, "missing_tenant", nil)
		return
	}
	if err := privacy.ValidateAttributes(ev.Kind, ev.Attributes); err != nil {
		a.drop(ev, "validation", err)
		return
	}
	dedupeKey := a.dedupeKey(ev)
	if dedupeKey != "" {
		if _, seen := a.dedupe.Get(dedupeKey); seen {
			a.markDropped(ev.Kind, "duplicate")
			return
		}
	}

	opCtx, cancel := context.WithTimeout(ctx, a.cfg.OpTimeout)
	defer cancel()

	count, err := a.count(opCtx, ev)
	if err != nil {
		a.drop(ev, "store", err)
		return
	}
	if dedupeKey != "" {
		// marked only after the increments land, so an out-of-band retry of
		// a store-failed event is not rejected as a duplicate
		a.dedupe.Add(dedupeKey, struct{}{})
	}

	if !a.policy.CanPublish(count, ev.Kind) {
		// the expected, common case: stay silent below the cohort floor
		return
	}

	activity := a.buildActivity(ev, count)
	a.feed.Publish(opCtx, activity)
	a.broadcast.Publish(ev.TenantID, activity)
	a.markPublished(ev.Kind)

	a.logger.Info("activity published",
		zap.String("tenant_id", ev.TenantID),
		zap.String("kind", string(ev.Kind)),
		zap.Int64("count", count))
}

// dedupeKey returns the tenant-scoped dedupe window key for an event, or ""
// when the event carries no dedupe key.
func (a *Aggregator) dedupeKey(ev models.ActivityEvent) string {
	if ev.DedupeKey == "" {
		return ""
	}
	return ev.TenantID + ":" + string(ev.Kind) + ":" + ev.DedupeKey
}

// count applies the kind's counter updates and returns the value the cohort
// gate evaluates. The switch is exhaustive over the closed event-kind set.
// Daily and ranking counters carry a time bucket so each window starts at
// zero instead of riding a refreshed TTL forever.
func (a *Aggregator) count(ctx context.Context, ev models.ActivityEvent) (int64, error) {
	day := store.DayBucket(ev.OccurredAt)

	switch ev.Kind {
	case models.KindClassCheckin:
		total, err := a.increment(ctx, store.Key{
			TenantID: ev.TenantID, Namespace: store.NamespaceRealtime, Metric: "training_count",
		}, a.cfg.RealtimeTTL)
		if err != nil {
			return 0, err
		}
		if area := ev.Attributes["class_name"]; area != "" {
			if _, err := a.increment(ctx, store.Key{
				TenantID: ev.TenantID, Namespace: store.NamespaceRealtime, Metric: "training_area", Bucket: area,
			}, a.cfg.RealtimeTTL); err != nil {
				return 0, err
			}
			if err := a.countRanking(ctx, ev, "class_popularity", area); err != nil {
				return 0, err
			}
		}
		if _, err := a.increment(ctx, store.Key{
			TenantID: ev.TenantID, Namespace: store.NamespaceDaily, Metric: "checkins_count", Bucket: day,
		}, a.cfg.DailyTTL); err != nil {
			return 0, err
		}
		return total, nil

	case models.KindAchievementUnlocked:
		total, err := a.increment(ctx, store.Key{
			TenantID: ev.TenantID, Namespace: store.NamespaceDaily, Metric: "achievements_count", Bucket: day,
		}, a.cfg.DailyTTL)
		if err != nil {
			return 0, err
		}
		if kind := ev.Attributes["achievement_type"]; kind != "" {
			if err := a.countRanking(ctx, ev, "achievements", kind); err != nil {
				return 0, err
			}
		}
		return total, nil

	case models.KindPersonalRecord:
		return a.increment(ctx, store.Key{
			TenantID: ev.TenantID, Namespace: store.NamespaceDaily, Metric: "records_count", Bucket: day,
		}, a.cfg.DailyTTL)

	case models.KindClassNearCapacity:
		// no counter: the class occupancy itself is the cohort
		current, err := parseCount(ev.Attributes["current"])
		if err != nil {
			return 0, err
		}
		return current, nil
	}
	return 0, fmt.Errorf("unsupported event kind %q", ev.Kind)
}

// countRanking updates the daily and weekly leaderboard counters of one
// metric label. Each period's key is bucketed by its window, e.g.
// "2025-W03:Yoga", so the window, not the TTL refresh, bounds the tally.
func (a *Aggregator) countRanking(ctx context.Context, ev models.ActivityEvent, metric, label string) error {
	for _, period := range []string{"daily", "weekly"} {
		ttl := a.cfg.DailyTTL
		if period == "weekly" {
			ttl = a.cfg.WeeklyTTL
		}
		if _, err := a.increment(ctx, store.Key{
			TenantID:  ev.TenantID,
			Namespace: store.RankNamespace(period),
			Metric:    metric,
			Bucket:    store.PeriodBucket(period, ev.OccurredAt) + ":" + label,
		}, ttl); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) increment(ctx context.Context, key store.Key, ttl time.Duration) (int64, error) {
	start := time.Now()
	value, err := a.store.Increment(ctx, key, 1, ttl)
	if a.metrics != nil {
		a.metrics.StoreOpDuration.WithLabelValues("increment").Observe(time.Since(start).Seconds())
	}
	return value, err
}

// buildActivity renders the published unit. It copies nothing from the
// event's attributes except coarse display values already cleared by the
// whitelist.
func (a *Aggregator) buildActivity(ev models.ActivityEvent, count int64) *models.AggregatedActivity {
	now := time.Now()
	activity := &models.AggregatedActivity{
		ID:          uuid.New().String(),
		TenantID:    ev.TenantID,
		Kind:        ev.Kind,
		Count:       count,
		PublishedAt: now,
		ExpiresAt:   now.Add(a.cfg.FeedTTL),
	}

	switch ev.Kind {
	case models.KindClassCheckin:
		activity.Icon = "🏋️"
		activity.Message = fmt.Sprintf("%d people training right now", count)
	case models.KindAchievementUnlocked:
		activity.Icon = "🏆"
		activity.Message = fmt.Sprintf("%d achievements unlocked today", count)
	case models.KindPersonalRecord:
		activity.Icon = "⚡"
		activity.Message = fmt.Sprintf("%d personal records set today", count)
	case models.KindClassNearCapacity:
		activity.Icon = "🔥"
		activity.Message = fmt.Sprintf("%s is filling up: %s of %s spots taken",
			ev.Attributes["class_name"], ev.Attributes["current"], ev.Attributes["capacity"])
	}
	return activity
}

func (a *Aggregator) drop(ev models.ActivityEvent, reason string, err error) {
	a.markDropped(ev.Kind, reason)
	logger := a.logger
	if err != nil {
		logger = logger.WithError(err)
	}
	logger.Warn("event dropped",
		zap.String("tenant_id", ev.TenantID),
		zap.String("kind", string(ev.Kind)),
		zap.String("reason", reason))
}

func (a *Aggregator) markReceived(kind models.EventKind) {
	if a.metrics != nil {
		a.metrics.EventsReceived.WithLabelValues(string(kind)).Inc()
	}
}

func (a *Aggregator) markDropped(kind models.EventKind, reason string) {
	if a.metrics != nil {
		a.metrics.EventsDropped.WithLabelValues(string(kind), reason).Inc()
	}
}

func (a *Aggregator) markPublished(kind models.EventKind) {
	if a.metrics != nil {
		a.metrics.ActivitiesPublished.WithLabelValues(string(kind)).Inc()
	}
}

func parseCount(s string) (int64, error) {
	var n int64
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid count %q: %w", s, err)
	}
	return n, nil
}

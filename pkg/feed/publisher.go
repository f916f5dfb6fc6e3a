// Package feed maintains the bounded, time-ordered list of published
// activities per tenant, backed by the ephemeral store's feed TTL class.
package feed

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/Alexmontesino96/GymAPI-sub008/pkg/logging"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/models"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/store"
)

const feedMetric = "activities"

// Publisher appends published activities to per-tenant capped lists and
// serves paginated reads. Reads never block writes; a read racing an append
// may see either view.
type Publisher struct {
	store    store.Store
	maxItems int
	ttl      time.Duration
	logger   *logging.Logger
}

// NewPublisher creates a feed publisher.
func NewPublisher(s store.Store, maxItems int, ttl time.Duration, logger *logging.Logger) *Publisher {
	return &Publisher{
		store:    s,
		maxItems: maxItems,
		ttl:      ttl,
		logger:   logger,
	}
}

// Publish appends an activity to its tenant's feed, evicting the oldest
// entry beyond the cap. Failures are logged and swallowed: the feed is
// advisory and must not fail the caller.
func (p *Publisher) Publish(ctx context.Context, activity *models.AggregatedActivity) {
	data, err := json.Marshal(activity)
	if err != nil {
		p.logger.WithError(err).Warn("feed: failed to encode activity",
			zap.String("tenant_id", activity.TenantID))
		return
	}

	key := store.Key{TenantID: activity.TenantID, Namespace: store.NamespaceFeed, Metric: feedMetric}
	if err := p.store.PushFront(ctx, key, data, p.maxItems, p.ttl); err != nil {
		p.logger.WithError(err).Warn("feed: failed to publish activity",
			zap.String("tenant_id", activity.TenantID),
			zap.String("kind", string(activity.Kind)))
	}
}

// GetFeed returns up to limit activities starting at offset, newest first,
// and whether more remain. Store failure degrades to an empty feed.
func (p *Publisher) GetFeed(ctx context.Context, tenantID string, limit, offset int) ([]models.AggregatedActivity, bool) {
	key := store.Key{TenantID: tenantID, Namespace: store.NamespaceFeed, Metric: feedMetric}

	// one extra entry decides has_more without a second read
	raw, err := p.store.Range(ctx, key, offset, limit+1)
	if err != nil {
		p.logger.WithError(err).Warn("feed: read degraded to empty",
			zap.String("tenant_id", tenantID))
		return []models.AggregatedActivity{}, false
	}

	// decided before expired entries are filtered: a page with an expired
	// entry may still have live entries beyond it
	hasMore := len(raw) > limit

	now := time.Now()
	items := make([]models.AggregatedActivity, 0, len(raw))
	for _, data := range raw {
		var a models.AggregatedActivity
		if err := json.Unmarshal(data, &a); err != nil {
			p.logger.WithError(err).Warn("feed: skipping undecodable entry",
				zap.String("tenant_id", tenantID))
			continue
		}
		if a.Expired(now) {
			continue
		}
		items = append(items, a)
	}

	if len(items) > limit {
		items = items[:limit]
	}
	return items, hasMore
}

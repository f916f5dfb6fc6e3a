package aggregator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alexmontesino96/GymAPI-sub008/pkg/events"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/feed"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/logging"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/models"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/privacy"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/store"
)

// captureBroadcaster records live publications for assertions.
type captureBroadcaster struct {
	published []*models.AggregatedActivity
}

func (c *captureBroadcaster) Publish(tenantID string, activity *models.AggregatedActivity) {
	c.published = append(c.published, activity)
}

func testConfig() Config {
	return Config{
		RealtimeTTL:   5 * time.Minute,
		DailyTTL:      24 * time.Hour,
		WeeklyTTL:     7 * 24 * time.Hour,
		FeedTTL:       time.Hour,
		DedupeTTL:     2 * time.Minute,
		OpTimeout:     300 * time.Millisecond,
		DedupeEntries: 128,
	}
}

func newTestAggregator(t *testing.T) (*Aggregator, *feed.Publisher, *captureBroadcaster, *store.MemStore) {
	t.Helper()
	ms := store.NewMemStore(time.Hour)
	t.Cleanup(ms.Close)

	logger := logging.Get()
	publisher := feed.NewPublisher(ms, 100, time.Hour, logger)
	broadcast := &captureBroadcaster{}
	policy := privacy.NewPolicy(3, 5)

	agg := New(ms, policy, publisher, broadcast, testConfig(), logger, nil)
	return agg, publisher, broadcast, ms
}

func checkin(tenant, class, session string) CheckinEvent {
	return CheckinEvent{
		TenantID:  tenant,
		ClassName: class,
		ClassID:   "class-" + class,
		SessionID: session,
	}
}

func TestCheckinsBelowCohortStaySilent(t *testing.T) {
	agg, publisher, broadcast, _ := newTestAggregator(t)
	ctx := context.Background()

	agg.OnClassCheckin(ctx, checkin("7", "Yoga", "s-1"))
	agg.OnClassCheckin(ctx, checkin("7", "Yoga", "s-2"))

	items, _ := publisher.GetFeed(ctx, "7", 10, 0)
	assert.Empty(t, items, "two check-ins are below the cohort floor")
	assert.Empty(t, broadcast.published)
}

func TestThirdCheckinPublishesOnce(t *testing.T) {
	agg, publisher, broadcast, _ := newTestAggregator(t)
	ctx := context.Background()

	agg.OnClassCheckin(ctx, checkin("7", "Yoga", "s-1"))
	agg.OnClassCheckin(ctx, checkin("7", "Yoga", "s-2"))
	agg.OnClassCheckin(ctx, checkin("7", "Yoga", "s-3"))

	items, hasMore := publisher.GetFeed(ctx, "7", 10, 0)
	require.Len(t, items, 1)
	assert.False(t, hasMore)
	assert.Equal(t, models.KindClassCheckin, items[0].Kind)
	assert.Equal(t, int64(3), items[0].Count)
	assert.Equal(t, "3 people training right now", items[0].Message)
	assert.Equal(t, "7", items[0].TenantID)
	assert.NotEmpty(t, items[0].ID)

	require.Len(t, broadcast.published, 1)
	assert.Equal(t, items[0].ID, broadcast.published[0].ID)
}

func TestDuplicateSessionCountsOnce(t *testing.T) {
	agg, publisher, _, ms := newTestAggregator(t)
	ctx := context.Background()

	agg.OnClassCheckin(ctx, checkin("7", "Yoga", "s-1"))
	agg.OnClassCheckin(ctx, checkin("7", "Yoga", "s-1"))
	agg.OnClassCheckin(ctx, checkin("7", "Yoga", "s-1"))

	total, ok, err := ms.Get(ctx, store.Key{
		TenantID: "7", Namespace: store.NamespaceRealtime, Metric: "training_count",
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), total, "retried session must increment once")

	items, _ := publisher.GetFeed(ctx, "7", 10, 0)
	assert.Empty(t, items)
}

func TestCheckinUpdatesAreaAndRankingCounters(t *testing.T) {
	agg, _, _, ms := newTestAggregator(t)
	ctx := context.Background()

	agg.OnClassCheckin(ctx, checkin("7", "Yoga", "s-1"))
	agg.OnClassCheckin(ctx, checkin("7", "HIIT", "s-2"))
	agg.OnClassCheckin(ctx, checkin("7", "Yoga", "s-3"))

	area, ok, err := ms.Get(ctx, store.Key{
		TenantID: "7", Namespace: store.NamespaceRealtime, Metric: "training_area", Bucket: "Yoga",
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(2), area)

	for _, period := range []string{"daily", "weekly"} {
		rank, ok, err := ms.Get(ctx, store.Key{
			TenantID:  "7",
			Namespace: store.RankNamespace(period),
			Metric:    "class_popularity",
			Bucket:    store.PeriodBucket(period, time.Now()) + ":Yoga",
		})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(2), rank, "period %s", period)
	}

	daily, _, err := ms.Get(ctx, store.Key{
		TenantID: "7", Namespace: store.NamespaceDaily, Metric: "checkins_count", Bucket: store.DayBucket(time.Now()),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), daily)
}

func TestTenantsCountIndependently(t *testing.T) {
	agg, publisher, _, _ := newTestAggregator(t)
	ctx := context.Background()

	agg.OnClassCheckin(ctx, checkin("7", "Yoga", "s-1"))
	agg.OnClassCheckin(ctx, checkin("7", "Yoga", "s-2"))
	agg.OnClassCheckin(ctx, checkin("8", "Yoga", "s-3"))

	for _, tenant := range []string{"7", "8"} {
		items, _ := publisher.GetFeed(ctx, tenant, 10, 0)
		assert.Empty(t, items, "tenant %s must not cross the floor on mixed counts", tenant)
	}
}

func TestMissingTenantIsDropped(t *testing.T) {
	agg, publisher, _, ms := newTestAggregator(t)
	ctx := context.Background()

	agg.OnClassCheckin(ctx, checkin("", "Yoga", "s-1"))

	entries, err := ms.ScanPrefix(ctx, "gym:", 0)
	require.NoError(t, err)
	assert.Empty(t, entries, "no counter may move for a tenantless event")

	items, _ := publisher.GetFeed(ctx, "", 10, 0)
	assert.Empty(t, items)
}

func TestIdentityAttributeRejectsEvent(t *testing.T) {
	agg, _, _, ms := newTestAggregator(t)
	ctx := context.Background()

	agg.process(ctx, models.ActivityEvent{
		TenantID:   "7",
		Kind:       models.KindClassCheckin,
		OccurredAt: time.Now(),
		Attributes: map[string]string{
			"class_name": "Yoga",
			"user_id":    "1234",
		},
	})

	entries, err := ms.ScanPrefix(ctx, store.TenantPrefix("7"), 0)
	require.NoError(t, err)
	assert.Empty(t, entries, "identity-bearing event must not touch any counter")
}

func TestAchievementsGateOnDailyTotal(t *testing.T) {
	agg, publisher, _, _ := newTestAggregator(t)
	ctx := context.Background()

	ev := AchievementEvent{TenantID: "7", AchievementType: "streak_7_days"}
	agg.OnAchievementUnlocked(ctx, ev)
	agg.OnAchievementUnlocked(ctx, ev)

	items, _ := publisher.GetFeed(ctx, "7", 10, 0)
	assert.Empty(t, items)

	agg.OnAchievementUnlocked(ctx, ev)
	items, _ = publisher.GetFeed(ctx, "7", 10, 0)
	require.Len(t, items, 1)
	assert.Equal(t, "3 achievements unlocked today", items[0].Message)
	assert.Equal(t, "🏆", items[0].Icon)
}

func TestPersonalRecordsGateOnDailyTotal(t *testing.T) {
	agg, publisher, _, _ := newTestAggregator(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		agg.OnPersonalRecord(ctx, PersonalRecordEvent{TenantID: "7", RecordType: "deadlift"})
	}

	items, _ := publisher.GetFeed(ctx, "7", 10, 0)
	require.Len(t, items, 1)
	assert.Equal(t, "3 personal records set today", items[0].Message)
}

func TestCapacityEventUsesOccupancyAsCohort(t *testing.T) {
	agg, publisher, _, _ := newTestAggregator(t)
	ctx := context.Background()

	// Two members in a nearly-full class is still too few to announce.
	agg.OnClassNearCapacity(ctx, CapacityEvent{TenantID: "7", ClassName: "Spinning", Current: 2, Capacity: 3})
	items, _ := publisher.GetFeed(ctx, "7", 10, 0)
	assert.Empty(t, items)

	agg.OnClassNearCapacity(ctx, CapacityEvent{TenantID: "7", ClassName: "Spinning", Current: 18, Capacity: 20})
	items, _ = publisher.GetFeed(ctx, "7", 10, 0)
	require.Len(t, items, 1)
	assert.Equal(t, int64(18), items[0].Count)
	assert.Equal(t, "Spinning is filling up: 18 of 20 spots taken", items[0].Message)
}

func TestDuplicateCapacitySnapshotAnnouncesOnce(t *testing.T) {
	agg, publisher, _, _ := newTestAggregator(t)
	ctx := context.Background()

	ev := CapacityEvent{TenantID: "7", ClassName: "Spinning", Current: 18, Capacity: 20}
	agg.OnClassNearCapacity(ctx, ev)
	agg.OnClassNearCapacity(ctx, ev)

	items, _ := publisher.GetFeed(ctx, "7", 10, 0)
	assert.Len(t, items, 1)
}

// flakyStore passes through to a real store but fails increments while down.
type flakyStore struct {
	store.Store
	down bool
}

func (f *flakyStore) Increment(ctx context.Context, key store.Key, delta int64, ttl time.Duration) (int64, error) {
	if f.down {
		return 0, fmt.Errorf("store down")
	}
	return f.Store.Increment(ctx, key, delta, ttl)
}

func TestRetryAfterStoreFailureIsNotDeduplicated(t *testing.T) {
	ms := store.NewMemStore(time.Hour)
	t.Cleanup(ms.Close)
	fs := &flakyStore{Store: ms, down: true}

	logger := logging.Get()
	publisher := feed.NewPublisher(ms, 100, time.Hour, logger)
	agg := New(fs, privacy.NewPolicy(3, 5), publisher, &captureBroadcaster{}, testConfig(), logger, nil)
	ctx := context.Background()
	key := store.Key{TenantID: "7", Namespace: store.NamespaceRealtime, Metric: "training_count"}

	// Dropped while the store is down; the dedupe key must not be burned.
	agg.OnClassCheckin(ctx, checkin("7", "Yoga", "s-1"))

	fs.down = false
	agg.OnClassCheckin(ctx, checkin("7", "Yoga", "s-1"))

	total, ok, err := ms.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), total, "retry after outage must count")

	// A genuine duplicate after the successful retry still no-ops.
	agg.OnClassCheckin(ctx, checkin("7", "Yoga", "s-1"))
	total, _, err = ms.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

// failingStore errors on every operation to simulate an outage.
type failingStore struct{}

func (failingStore) Increment(context.Context, store.Key, int64, time.Duration) (int64, error) {
	return 0, fmt.Errorf("store down")
}
func (failingStore) Get(context.Context, store.Key) (int64, bool, error) {
	return 0, false, fmt.Errorf("store down")
}
func (failingStore) SetIfAbsent(context.Context, store.Key, time.Duration) (bool, error) {
	return false, fmt.Errorf("store down")
}
func (failingStore) PushFront(context.Context, store.Key, []byte, int, time.Duration) error {
	return fmt.Errorf("store down")
}
func (failingStore) Range(context.Context, store.Key, int, int) ([][]byte, error) {
	return nil, fmt.Errorf("store down")
}
func (failingStore) ScanPrefix(context.Context, string, int) ([]store.ScanEntry, error) {
	return nil, fmt.Errorf("store down")
}
func (failingStore) Health(context.Context) store.HealthInfo {
	return store.HealthInfo{Connected: false}
}

func TestStoreOutageDropsEventSilently(t *testing.T) {
	logger := logging.Get()
	publisher := feed.NewPublisher(failingStore{}, 100, time.Hour, logger)
	agg := New(failingStore{}, privacy.NewPolicy(3, 5), publisher, events.NopBroadcaster{}, testConfig(), logger, nil)

	// Must not panic or publish.
	agg.OnClassCheckin(context.Background(), checkin("7", "Yoga", "s-1"))
}

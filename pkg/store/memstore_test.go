package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *MemStore {
	t.Helper()
	ms := NewMemStore(time.Hour)
	t.Cleanup(ms.Close)
	return ms
}

func TestIncrementCreatesAndAccumulates(t *testing.T) {
	ms := newTestStore(t)
	ctx := context.Background()
	key := Key{TenantID: "7", Namespace: NamespaceRealtime, Metric: "training_count"}

	v, err := ms.Increment(ctx, key, 1, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = ms.Increment(ctx, key, 2, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	got, ok, err := ms.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), got)
}

func TestGetMissingKey(t *testing.T) {
	ms := newTestStore(t)

	_, ok, err := ms.Get(context.Background(), Key{TenantID: "7", Namespace: NamespaceDaily, Metric: "nope"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExpiredCounterIsInvisible(t *testing.T) {
	ms := newTestStore(t)
	ctx := context.Background()
	key := Key{TenantID: "7", Namespace: NamespaceRealtime, Metric: "training_count"}

	_, err := ms.Increment(ctx, key, 5, 10*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, ok, err := ms.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "expired counter must read as absent")

	// A fresh increment starts from zero, not from the stale value.
	v, err := ms.Increment(ctx, key, 1, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestIncrementRefreshesTTL(t *testing.T) {
	ms := newTestStore(t)
	ctx := context.Background()
	key := Key{TenantID: "7", Namespace: NamespaceRealtime, Metric: "training_count"}

	_, err := ms.Increment(ctx, key, 1, 30*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	_, err = ms.Increment(ctx, key, 1, 30*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	v, ok, err := ms.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(2), v)
}

func TestSetIfAbsent(t *testing.T) {
	ms := newTestStore(t)
	ctx := context.Background()
	key := Key{TenantID: "7", Namespace: NamespaceDedupe, Metric: "checkin", Bucket: "session-1"}

	first, err := ms.SetIfAbsent(ctx, key, 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := ms.SetIfAbsent(ctx, key, 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, second)

	time.Sleep(30 * time.Millisecond)
	again, err := ms.SetIfAbsent(ctx, key, 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, again, "mark must be reusable after expiry")
}

func TestPushFrontAndRange(t *testing.T) {
	ms := newTestStore(t)
	ctx := context.Background()
	key := Key{TenantID: "7", Namespace: NamespaceFeed, Metric: "activities"}

	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, ms.PushFront(ctx, key, []byte(v), 0, time.Minute))
	}

	out, err := ms.Range(ctx, key, 0, 0)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "c", string(out[0]), "newest first")
	assert.Equal(t, "a", string(out[2]))

	page, err := ms.Range(ctx, key, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", string(page[0]))

	empty, err := ms.Range(ctx, key, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPushFrontTrimsToMaxLen(t *testing.T) {
	ms := newTestStore(t)
	ctx := context.Background()
	key := Key{TenantID: "7", Namespace: NamespaceFeed, Metric: "activities"}

	for _, v := range []string{"a", "b", "c", "d"} {
		require.NoError(t, ms.PushFront(ctx, key, []byte(v), 3, time.Minute))
	}

	out, err := ms.Range(ctx, key, 0, 0)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "d", string(out[0]))
	assert.Equal(t, "b", string(out[2]), "oldest entry evicted")
}

func TestScanPrefixIsolatesTenants(t *testing.T) {
	ms := newTestStore(t)
	ctx := context.Background()

	_, err := ms.Increment(ctx, Key{TenantID: "7", Namespace: NamespaceRealtime, Metric: "training_area", Bucket: "Yoga"}, 3, time.Minute)
	require.NoError(t, err)
	_, err = ms.Increment(ctx, Key{TenantID: "7", Namespace: NamespaceRealtime, Metric: "training_area", Bucket: "HIIT"}, 5, time.Minute)
	require.NoError(t, err)
	_, err = ms.Increment(ctx, Key{TenantID: "8", Namespace: NamespaceRealtime, Metric: "training_area", Bucket: "Yoga"}, 9, time.Minute)
	require.NoError(t, err)

	entries, err := ms.ScanPrefix(ctx, Prefix("7", NamespaceRealtime, "training_area"), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Sorted by key.
	assert.Equal(t, "HIIT", BucketOf(entries[0].Key, Prefix("7", NamespaceRealtime, "training_area")))
	assert.Equal(t, int64(5), entries[0].Value)
	assert.Equal(t, "Yoga", BucketOf(entries[1].Key, Prefix("7", NamespaceRealtime, "training_area")))
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	ms := NewMemStore(10 * time.Millisecond)
	defer ms.Close()
	ctx := context.Background()

	_, err := ms.Increment(ctx, Key{TenantID: "7", Namespace: NamespaceRealtime, Metric: "gone"}, 1, 5*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)

	ms.mu.RLock()
	_, present := ms.data[Key{TenantID: "7", Namespace: NamespaceRealtime, Metric: "gone"}.String()]
	ms.mu.RUnlock()
	assert.False(t, present, "sweep must physically delete expired entries")
}

func TestHealthCountsByNamespace(t *testing.T) {
	ms := newTestStore(t)
	ctx := context.Background()

	_, err := ms.Increment(ctx, Key{TenantID: "7", Namespace: NamespaceRealtime, Metric: "training_count"}, 1, time.Minute)
	require.NoError(t, err)
	_, err = ms.Increment(ctx, Key{TenantID: "7", Namespace: NamespaceDaily, Metric: "checkins_count"}, 1, time.Minute)
	require.NoError(t, err)
	_, err = ms.Increment(ctx, Key{TenantID: "7", Namespace: RankNamespace("weekly"), Metric: "class_popularity", Bucket: "Yoga"}, 1, time.Minute)
	require.NoError(t, err)

	info := ms.Health(ctx)
	assert.True(t, info.Connected)
	assert.Positive(t, info.ApproxMemoryBytes)
	assert.Equal(t, 1, info.KeyCountsByNamespace[NamespaceRealtime])
	assert.Equal(t, 1, info.KeyCountsByNamespace[NamespaceDaily])
	assert.Equal(t, 1, info.KeyCountsByNamespace["rank:weekly"])
}

func TestCancelledContextFailsFast(t *testing.T) {
	ms := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	key := Key{TenantID: "7", Namespace: NamespaceRealtime, Metric: "training_count"}
	if _, err := ms.Increment(ctx, key, 1, time.Minute); err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if _, _, err := ms.Get(ctx, key); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestConcurrentIncrementAndGet(t *testing.T) {
	ms := newTestStore(t)
	ctx := context.Background()
	key := Key{TenantID: "7", Namespace: NamespaceRealtime, Metric: "training_count"}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_, err := ms.Increment(ctx, key, 1, time.Minute)
			require.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_, _, err := ms.Get(ctx, key)
			require.NoError(t, err)
		}
	}()
	wg.Wait()

	v, ok, err := ms.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(500), v)
}

func TestKeyString(t *testing.T) {
	k := Key{TenantID: "7", Namespace: NamespaceRealtime, Metric: "training_area", Bucket: "Yoga"}
	assert.Equal(t, "gym:7:realtime:training_area:Yoga", k.String())

	k.Bucket = ""
	assert.Equal(t, "gym:7:realtime:training_area", k.String())

	assert.Equal(t, NamespaceRealtime, NamespaceOf("gym:7:realtime:training_count"))
	assert.Equal(t, "rank:daily", NamespaceOf("gym:7:rank:daily:class_popularity:Yoga"))
	assert.Equal(t, "", NamespaceOf("not-a-key"))
}

func TestTimeBuckets(t *testing.T) {
	at := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "2025-01-15", DayBucket(at))
	assert.Equal(t, "2025-W03", WeekBucket(at))
	assert.Equal(t, "2025-01-15", PeriodBucket("daily", at))
	assert.Equal(t, "2025-W03", PeriodBucket("weekly", at))

	// Late December can fall into the next ISO year's first week.
	assert.Equal(t, "2026-W01", WeekBucket(time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC)))
}

package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Counter namespaces. Each namespace carries its own TTL class.
const (
	NamespaceRealtime = "realtime"
	NamespaceDaily    = "daily"
	NamespaceFeed     = "feed"
	NamespaceDedupe   = "dedupe"
)

// RankNamespace returns the namespace for ranking counters of a period,
// e.g. "rank:weekly".
func RankNamespace(period string) string {
	return "rank:" + period
}

// Key is a composite counter key. TenantID is mandatory: every stored key is
// prefixed with the tenant namespace so cross-tenant collision is impossible
// by construction.
type Key struct {
	TenantID  string
	Namespace string
	Metric    string
	Bucket    string
}

// String renders the canonical key form gym:<tenant>:<ns>:<metric>[:<bucket>].
func (k Key) String() string {
	if k.Bucket == "" {
		return fmt.Sprintf("gym:%s:%s:%s", k.TenantID, k.Namespace, k.Metric)
	}
	return fmt.Sprintf("gym:%s:%s:%s:%s", k.TenantID, k.Namespace, k.Metric, k.Bucket)
}

// TenantPrefix returns the key prefix owned by a tenant.
func TenantPrefix(tenantID string) string {
	return "gym:" + tenantID + ":"
}

// Prefix returns the key prefix for one tenant namespace and metric,
// covering all buckets.
func Prefix(tenantID, namespace, metric string) string {
	return fmt.Sprintf("gym:%s:%s:%s:", tenantID, namespace, metric)
}

// DayBucket returns the daily time bucket for t, e.g. "2025-01-15". Windowed
// counters carry their bucket in the key so a new window starts from zero
// instead of inheriting a refreshed TTL.
func DayBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// WeekBucket returns the ISO-week time bucket for t, e.g. "2025-W03".
func WeekBucket(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// PeriodBucket returns the time bucket for a ranking period at t.
func PeriodBucket(period string, t time.Time) string {
	if period == "weekly" {
		return WeekBucket(t)
	}
	return DayBucket(t)
}

// NamespaceOf extracts the namespace segment from a canonical key string.
// Returns "" for keys that do not follow the canonical form.
func NamespaceOf(key string) string {
	parts := strings.SplitN(key, ":", 4)
	if len(parts) < 4 || parts[0] != "gym" {
		return ""
	}
	// rank namespaces span two segments ("rank:weekly")
	if parts[2] == "rank" {
		sub := strings.SplitN(parts[3], ":", 2)
		return "rank:" + sub[0]
	}
	return parts[2]
}

// BucketOf extracts the bucket segment from a key known to match prefix.
func BucketOf(key, prefix string) string {
	return strings.TrimPrefix(key, prefix)
}

// ScanEntry is one result of a bounded prefix scan.
type ScanEntry struct {
	Key   string
	Value int64
}

// HealthInfo is a read-only snapshot of store condition.
type HealthInfo struct {
	Connected            bool           `json:"store_connected"`
	ApproxMemoryBytes    int64          `json:"approx_memory_bytes"`
	KeyCountsByNamespace map[string]int `json:"key_counts_by_namespace"`
}

// Store is the ephemeral state contract. Every value carries a TTL and
// vanishes on expiration; there is no delete operation. All mutation is
// performed as a single store-side operation so concurrent producers never
// lose updates.
type Store interface {
	// Increment atomically adds delta to the counter at key, creating it on
	// first use, and refreshes the TTL. Returns the new value.
	Increment(ctx context.Context, key Key, delta int64, ttl time.Duration) (int64, error)

	// Get reads the counter at key. The second return is false if the key
	// does not exist or has expired.
	Get(ctx context.Context, key Key) (int64, bool, error)

	// SetIfAbsent marks key if it is not already present, with the given
	// TTL. Returns true when the mark was newly set.
	SetIfAbsent(ctx context.Context, key Key, ttl time.Duration) (bool, error)

	// PushFront prepends value to the list at key, trimming it to maxLen and
	// refreshing the TTL.
	PushFront(ctx context.Context, key Key, value []byte, maxLen int, ttl time.Duration) error

	// Range reads up to limit list entries starting at offset, newest first.
	Range(ctx context.Context, key Key, offset, limit int) ([][]byte, error)

	// ScanPrefix returns up to limit live counters under prefix. Bounded and
	// non-blocking; intended for diagnostics and ranking reads only.
	ScanPrefix(ctx context.Context, prefix string, limit int) ([]ScanEntry, error)

	// Health reports connectivity and footprint within a bounded time.
	Health(ctx context.Context) HealthInfo
}

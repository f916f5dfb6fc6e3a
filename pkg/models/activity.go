package models

import "time"

// EventKind identifies the closed set of business events the engine aggregates.
type EventKind string

const (
	KindClassCheckin        EventKind = "class_checkin"
	KindAchievementUnlocked EventKind = "achievement_unlocked"
	KindPersonalRecord      EventKind = "personal_record"
	KindClassNearCapacity   EventKind = "class_near_capacity"
)

// Kinds returns every supported event kind.
func Kinds() []EventKind {
	return []EventKind{
		KindClassCheckin,
		KindAchievementUnlocked,
		KindPersonalRecord,
		KindClassNearCapacity,
	}
}

// Valid reports whether k is a member of the supported set.
func (k EventKind) Valid() bool {
	switch k {
	case KindClassCheckin, KindAchievementUnlocked, KindPersonalRecord, KindClassNearCapacity:
		return true
	}
	return false
}

// ActivityEvent is the transient ingestion unit. It is never persisted and its
// attributes carry only coarse, non-identifying values validated against the
// per-kind whitelist.
type ActivityEvent struct {
	TenantID   string            `json:"tenant_id"`
	Kind       EventKind         `json:"event_kind"`
	OccurredAt time.Time         `json:"occurred_at"`
	DedupeKey  string            `json:"dedupe_key,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// AggregatedActivity is the unit published to the feed and to live subscribers.
// Count is at least the minimum cohort at publication time and the structure
// carries no per-user reference of any kind.
type AggregatedActivity struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Kind        EventKind `json:"kind"`
	Message     string    `json:"message"`
	Icon        string    `json:"icon"`
	Count       int64     `json:"count"`
	PublishedAt time.Time `json:"published_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the activity's disclosure window has passed.
func (a *AggregatedActivity) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

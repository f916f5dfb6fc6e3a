package aggregator

import "strconv"

// Inbound payloads are deliberately minimal: only whitelisted, coarse fields
// may appear, so identity never enters the pipeline.

// CheckinEvent is emitted when a member checks in to a class session.
type CheckinEvent struct {
	TenantID  string
	ClassName string
	ClassID   string
	SessionID string
}

// AchievementEvent is emitted when an achievement is unlocked.
type AchievementEvent struct {
	TenantID         string
	AchievementType  string
	AchievementLevel string
}

// PersonalRecordEvent is emitted when a personal record is set.
type PersonalRecordEvent struct {
	TenantID   string
	RecordType string
}

// CapacityEvent is emitted when a class approaches its capacity.
type CapacityEvent struct {
	TenantID  string
	ClassName string
	Current   int
	Capacity  int
}

func (e CheckinEvent) attributes() map[string]string {
	return map[string]string{
		"class_name": e.ClassName,
		"class_id":   e.ClassID,
		"session_id": e.SessionID,
	}
}

func (e AchievementEvent) attributes() map[string]string {
	return map[string]string{
		"achievement_type":  e.AchievementType,
		"achievement_level": e.AchievementLevel,
	}
}

func (e PersonalRecordEvent) attributes() map[string]string {
	return map[string]string{
		"record_type": e.RecordType,
	}
}

func (e CapacityEvent) attributes() map[string]string {
	return map[string]string{
		"class_name": e.ClassName,
		"current":    strconv.Itoa(e.Current),
		"capacity":   strconv.Itoa(e.Capacity),
	}
}

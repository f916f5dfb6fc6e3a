// Package privacy is the single place that encodes the anonymity policy.
// Every publication path routes through Policy before disclosure.
package privacy

import (
	"fmt"

	"github.com/Alexmontesino96/GymAPI-sub008/pkg/models"
)

// Policy decides whether an aggregate may be disclosed. It is pure logic
// with no side effects.
type Policy struct {
	minCohort int
	perKind   map[models.EventKind]int
	ranking   int
}

// NewPolicy creates a policy with the default minimum cohort and the ranking
// floor. Ranking positions leak more than raw counts, so rankings get their
// own, higher threshold.
func NewPolicy(minCohort, rankingMinCohort int) *Policy {
	return &Policy{
		minCohort: minCohort,
		perKind:   make(map[models.EventKind]int),
		ranking:   rankingMinCohort,
	}
}

// SetKindFloor overrides the cohort floor for one event kind.
func (p *Policy) SetKindFloor(kind models.EventKind, floor int) {
	p.perKind[kind] = floor
}

// MinCohortFor returns the cohort floor applied to an event kind.
func (p *Policy) MinCohortFor(kind models.EventKind) int {
	if floor, ok := p.perKind[kind]; ok {
		return floor
	}
	return p.minCohort
}

// RankingMinCohort returns the population floor for leaderboards.
func (p *Policy) RankingMinCohort() int {
	return p.ranking
}

// CanPublish reports whether an aggregate count for kind may be disclosed.
func (p *Policy) CanPublish(count int64, kind models.EventKind) bool {
	return count >= int64(p.MinCohortFor(kind))
}

// CanPublishRanking reports whether a leaderboard over population many
// contributors may be disclosed.
func (p *Policy) CanPublishRanking(population int) bool {
	return population >= p.ranking
}

// identityKeys are attribute names that can carry or derive an identity.
// They are rejected at ingestion regardless of event kind.
var identityKeys = map[string]bool{
	"user_id":      true,
	"member_id":    true,
	"username":     true,
	"name":         true,
	"display_name": true,
	"first_name":   true,
	"last_name":    true,
	"email":        true,
	"phone":        true,
	"auth0_id":     true,
	"picture":      true,
}

// attributeWhitelist enumerates the permitted attribute keys per event kind.
// Anything not listed is dropped with the event.
var attributeWhitelist = map[models.EventKind]map[string]bool{
	models.KindClassCheckin: {
		"class_name": true,
		"class_id":   true,
		"session_id": true,
	},
	models.KindAchievementUnlocked: {
		"achievement_type":  true,
		"achievement_level": true,
	},
	models.KindPersonalRecord: {
		"record_type": true,
	},
	models.KindClassNearCapacity: {
		"class_name": true,
		"current":    true,
		"capacity":   true,
	},
}

// ValidateAttributes checks an event's attributes against the kind's
// whitelist and the identity blacklist. A non-nil error means the event must
// be dropped.
func ValidateAttributes(kind models.EventKind, attrs map[string]string) error {
	allowed, ok := attributeWhitelist[kind]
	if !ok {
		return fmt.Errorf("unknown event kind %q", kind)
	}
	for key := range attrs {
		if identityKeys[key] {
			return fmt.Errorf("attribute %q is identity-bearing", key)
		}
		if !allowed[key] {
			return fmt.Errorf("attribute %q is not permitted for kind %q", key, kind)
		}
	}
	return nil
}

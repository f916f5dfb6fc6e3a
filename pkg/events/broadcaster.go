// Package events decouples event publication from the subscriber hub, in the
// same way producers are decoupled from the aggregator.
package events

import "github.com/Alexmontesino96/GymAPI-sub008/pkg/models"

// Broadcaster delivers newly published activities to live subscribers of a
// tenant. Delivery is best-effort: implementations must never block the
// caller on a slow subscriber.
type Broadcaster interface {
	Publish(tenantID string, activity *models.AggregatedActivity)
}

// hubInterface is the narrow surface the dispatcher needs from the hub.
type hubInterface interface {
	Publish(tenantID string, activity *models.AggregatedActivity)
}

// HubBroadcaster implements Broadcaster on top of the subscriber hub.
type HubBroadcaster struct {
	hub hubInterface
}

// NewHubBroadcaster creates a broadcaster backed by a hub.
func NewHubBroadcaster(hub hubInterface) *HubBroadcaster {
	return &HubBroadcaster{hub: hub}
}

// Publish implements Broadcaster.
func (b *HubBroadcaster) Publish(tenantID string, activity *models.AggregatedActivity) {
	if b.hub == nil {
		return
	}
	b.hub.Publish(tenantID, activity)
}

// NopBroadcaster discards every publication. Used where no live delivery is
// wired, e.g. tests of the aggregation pipeline alone.
type NopBroadcaster struct{}

// Publish implements Broadcaster.
func (NopBroadcaster) Publish(string, *models.AggregatedActivity) {}

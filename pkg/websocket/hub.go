package websocket

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Alexmontesino96/GymAPI-sub008/pkg/logging"
	"github.com/Alexmontesino96/GymAPI-sub008/pkg/models"
)

// Subscriber is one live feed subscription, scoped to exactly one tenant.
// It owns no durable state; unsubscribing drops every association.
type Subscriber struct {
	ID       string
	TenantID string
	C        chan *models.AggregatedActivity
}

// Hub is the registry of open subscriptions keyed by tenant. It is owned by
// the process composition root and passed by reference to anything that
// publishes; there is no package-level instance.
type Hub struct {
	mu         sync.RWMutex
	tenants    map[string]map[*Subscriber]struct{}
	sendBuffer int
	stopped    bool
	logger     *logging.Logger

	// observers, set once at construction
	onDrop        func(tenantID string)
	onCountChange func(total int)
}

// NewHub creates a hub whose subscribers buffer sendBuffer frames each.
func NewHub(sendBuffer int, logger *logging.Logger) *Hub {
	return &Hub{
		tenants:    make(map[string]map[*Subscriber]struct{}),
		sendBuffer: sendBuffer,
		logger:     logger,
	}
}

// OnDrop registers a callback invoked whenever a frame is dropped for a slow
// subscriber. Must be called before the hub is shared.
func (h *Hub) OnDrop(fn func(tenantID string)) {
	h.onDrop = fn
}

// OnCountChange registers a callback invoked with the new total whenever a
// subscription opens or closes. Must be called before the hub is shared.
func (h *Hub) OnCountChange(fn func(total int)) {
	h.onCountChange = fn
}

// notifyCount must be called with h.mu held.
func (h *Hub) notifyCount() {
	if h.onCountChange == nil {
		return
	}
	total := 0
	for _, set := range h.tenants {
		total += len(set)
	}
	h.onCountChange(total)
}

// Subscribe opens a subscription for one tenant.
func (h *Hub) Subscribe(tenantID string) *Subscriber {
	sub := &Subscriber{
		ID:       uuid.New().String(),
		TenantID: tenantID,
		C:        make(chan *models.AggregatedActivity, h.sendBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		close(sub.C)
		return sub
	}
	set, ok := h.tenants[tenantID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.tenants[tenantID] = set
	}
	set[sub] = struct{}{}
	h.notifyCount()

	h.logger.Debug("subscriber registered",
		zap.String("tenant_id", tenantID),
		zap.String("subscriber_id", sub.ID),
		zap.Int("tenant_subscribers", len(set)))
	return sub
}

// Unsubscribe removes a subscription and closes its channel. Safe to call
// more than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.tenants[sub.TenantID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.tenants, sub.TenantID)
	}
	close(sub.C)
	h.notifyCount()

	h.logger.Debug("subscriber unregistered",
		zap.String("tenant_id", sub.TenantID),
		zap.String("subscriber_id", sub.ID))
}

// Publish fans an activity out to every current subscriber of the tenant,
// non-blockingly. When a subscriber's buffer is full its oldest frame is
// dropped so one slow connection never stalls the rest.
func (h *Hub) Publish(tenantID string, activity *models.AggregatedActivity) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.stopped {
		return
	}
	for sub := range h.tenants[tenantID] {
		select {
		case sub.C <- activity:
		default:
			// full buffer: evict the oldest frame, then retry once
			select {
			case <-sub.C:
			default:
			}
			select {
			case sub.C <- activity:
			default:
			}
			if h.onDrop != nil {
				h.onDrop(tenantID)
			}
			h.logger.Warn("subscriber buffer full, dropped oldest frame",
				zap.String("tenant_id", tenantID),
				zap.String("subscriber_id", sub.ID))
		}
	}
}

// SubscriberCount returns the number of open subscriptions for a tenant.
func (h *Hub) SubscriberCount(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.tenants[tenantID])
}

// TotalSubscribers returns the number of open subscriptions across tenants.
func (h *Hub) TotalSubscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, set := range h.tenants {
		total += len(set)
	}
	return total
}

// Stop closes every subscription and rejects new ones.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return
	}
	h.stopped = true
	for tenantID, set := range h.tenants {
		for sub := range set {
			close(sub.C)
		}
		delete(h.tenants, tenantID)
	}
	h.notifyCount()
	h.logger.Info("subscriber hub stopped")
}

package websocket

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Alexmontesino96/GymAPI-sub008/pkg/logging"
)

// FeedHandler upgrades HTTP requests to live feed subscriptions. Each
// connection maps to exactly one hub subscription for one tenant.
type FeedHandler struct {
	hub    *Hub
	logger *logging.Logger
}

// NewFeedHandler creates a feed WebSocket handler.
func NewFeedHandler(hub *Hub, logger *logging.Logger) *FeedHandler {
	return &FeedHandler{hub: hub, logger: logger}
}

// ServeHTTP handles WebSocket upgrades on the feed stream endpoint. The
// tenant id arrives as a query parameter, forwarded by the gateway that
// authenticated the caller.
func (h *FeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		http.Error(w, `{"error":"missing tenant_id"}`, http.StatusBadRequest)
		return
	}

	conn, err := UpgradeHTTP(w, r)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	sub := h.hub.Subscribe(tenantID)
	h.logger.Info("feed stream connected",
		zap.String("tenant_id", tenantID),
		zap.String("subscriber_id", sub.ID),
		zap.String("remote", conn.RemoteAddr()))

	go h.readPump(conn, sub)
	go h.writePump(conn, sub)
}

// readPump drains inbound frames so close and pong handling work, and reaps
// the subscription as soon as the peer goes away.
func (h *FeedHandler) readPump(conn *Conn, sub *Subscriber) {
	defer func() {
		h.hub.Unsubscribe(sub)
		conn.Close()
	}()

	for {
		if err := conn.ReadDiscard(); err != nil {
			if !conn.IsClosed() {
				h.logger.Debug("feed stream read closed",
					zap.String("subscriber_id", sub.ID),
					zap.Error(err))
			}
			return
		}
	}
}

// writePump forwards published activities as JSON frames and pings the peer
// to detect dead connections.
func (h *FeedHandler) writePump(conn *Conn, sub *Subscriber) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case activity, ok := <-sub.C:
			if !ok {
				return
			}
			if err := conn.WriteJSON(activity); err != nil {
				h.logger.Debug("feed stream write failed",
					zap.String("subscriber_id", sub.ID),
					zap.Error(err))
				h.hub.Unsubscribe(sub)
				return
			}

		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				h.hub.Unsubscribe(sub)
				return
			}
		}
	}
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Alexmontesino96/GymAPI-sub008/pkg/store"
)

// healthTimeout bounds how long a health probe may hold the request.
const healthTimeout = 500 * time.Millisecond

// HealthHandler reports service condition without leaking stored content.
type HealthHandler struct {
	store store.Store
}

func NewHealthHandler(s store.Store) *HealthHandler {
	return &HealthHandler{store: s}
}

// Liveness answers process-up probes. It touches nothing.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Health reports store connectivity and footprint. A slow or dead store
// degrades the payload instead of hanging the probe.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	done := make(chan store.HealthInfo, 1)
	go func() {
		done <- h.store.Health(ctx)
	}()

	var info store.HealthInfo
	select {
	case info = <-done:
	case <-ctx.Done():
		info = store.HealthInfo{Connected: false}
	}
	if info.KeyCountsByNamespace == nil {
		info.KeyCountsByNamespace = map[string]int{}
	}

	writeJSON(w, http.StatusOK, info)
}

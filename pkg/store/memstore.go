package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// entry is a stored value with TTL. A key holds either a counter or a list,
// never both.
type entry struct {
	counter   int64
	list      [][]byte
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

func (e *entry) size(key string) int64 {
	n := int64(len(key)) + 8
	for _, v := range e.list {
		n += int64(len(v))
	}
	return n
}

// MemStore is an in-process implementation of Store with per-key TTL and a
// background sweep. Expiration is the only deletion path.
type MemStore struct {
	mu      sync.RWMutex
	data    map[string]*entry
	stopped chan struct{}
	stopOne sync.Once
}

// scanCap bounds how many keys a single Health or ScanPrefix call may visit.
const scanCap = 10000

// NewMemStore creates a store sweeping expired entries every interval.
func NewMemStore(cleanupInterval time.Duration) *MemStore {
	ms := &MemStore{
		data:    make(map[string]*entry),
		stopped: make(chan struct{}),
	}
	go ms.sweep(cleanupInterval)
	return ms
}

// Close stops the background sweep.
func (ms *MemStore) Close() {
	ms.stopOne.Do(func() { close(ms.stopped) })
}

// Increment implements Store.
func (ms *MemStore) Increment(ctx context.Context, key Key, delta int64, ttl time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	k := key.String()
	now := time.Now()

	ms.mu.Lock()
	defer ms.mu.Unlock()

	e, ok := ms.data[k]
	if !ok || e.expired(now) {
		e = &entry{}
		ms.data[k] = e
	}
	e.counter += delta
	e.expiresAt = now.Add(ttl)
	return e.counter, nil
}

// Get implements Store.
func (ms *MemStore) Get(ctx context.Context, key Key) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	k := key.String()
	now := time.Now()

	// entry fields are mutated under the write lock, so they must be read
	// before releasing ours
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	e, ok := ms.data[k]
	if !ok || e.expired(now) {
		return 0, false, nil
	}
	return e.counter, true, nil
}

// SetIfAbsent implements Store.
func (ms *MemStore) SetIfAbsent(ctx context.Context, key Key, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	k := key.String()
	now := time.Now()

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if e, ok := ms.data[k]; ok && !e.expired(now) {
		return false, nil
	}
	ms.data[k] = &entry{counter: 1, expiresAt: now.Add(ttl)}
	return true, nil
}

// PushFront implements Store.
func (ms *MemStore) PushFront(ctx context.Context, key Key, value []byte, maxLen int, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	k := key.String()
	now := time.Now()

	ms.mu.Lock()
	defer ms.mu.Unlock()

	e, ok := ms.data[k]
	if !ok || e.expired(now) {
		e = &entry{}
		ms.data[k] = e
	}
	e.list = append([][]byte{value}, e.list...)
	if maxLen > 0 && len(e.list) > maxLen {
		e.list = e.list[:maxLen]
	}
	e.expiresAt = now.Add(ttl)
	return nil
}

// Range implements Store.
func (ms *MemStore) Range(ctx context.Context, key Key, offset, limit int) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k := key.String()
	now := time.Now()

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	e, ok := ms.data[k]
	if !ok || e.expired(now) || offset >= len(e.list) {
		return nil, nil
	}

	end := len(e.list)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	out := make([][]byte, end-offset)
	for i, v := range e.list[offset:end] {
		cp := make([]byte, len(v))
		copy(cp, v)
		out[i] = cp
	}
	return out, nil
}

// ScanPrefix implements Store. Results are sorted by key for stable output.
func (ms *MemStore) ScanPrefix(ctx context.Context, prefix string, limit int) ([]ScanEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now()

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []ScanEntry
	visited := 0
	for k, e := range ms.data {
		visited++
		if visited > scanCap {
			break
		}
		if !strings.HasPrefix(k, prefix) || e.expired(now) {
			continue
		}
		out = append(out, ScanEntry{Key: k, Value: e.counter})
		if limit > 0 && len(out) >= limit {
			break
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Health implements Store.
func (ms *MemStore) Health(ctx context.Context) HealthInfo {
	info := HealthInfo{
		Connected:            true,
		KeyCountsByNamespace: make(map[string]int),
	}
	if ctx.Err() != nil {
		info.Connected = false
		return info
	}

	now := time.Now()

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	visited := 0
	for k, e := range ms.data {
		visited++
		if visited > scanCap {
			break
		}
		if e.expired(now) {
			continue
		}
		info.ApproxMemoryBytes += e.size(k)
		if ns := NamespaceOf(k); ns != "" {
			info.KeyCountsByNamespace[ns]++
		}
	}
	return info
}

// sweep periodically removes expired entries
func (ms *MemStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ms.stopped:
			return
		case <-ticker.C:
			now := time.Now()
			ms.mu.Lock()
			for k, e := range ms.data {
				if e.expired(now) {
					delete(ms.data, k)
				}
			}
			ms.mu.Unlock()
		}
	}
}

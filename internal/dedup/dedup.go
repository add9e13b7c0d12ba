// Package dedup remembers inbound message IDs so redelivered webhook events
// are processed once.
package dedup

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long a message ID is remembered.
const DefaultTTL = time.Hour

// Tracker records message IDs.
type Tracker interface {
	// MarkIfNew records id and reports whether it had not been seen within the TTL.
	MarkIfNew(ctx context.Context, id string) (bool, error)
	Close() error
}

// MemoryTracker keeps IDs in process memory. Expired entries are swept lazily.
type MemoryTracker struct {
	mu        sync.Mutex
	ttl       time.Duration
	seen      map[string]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryTracker creates an in-memory tracker. ttl <= 0 uses DefaultTTL.
func NewMemoryTracker(ttl time.Duration) *MemoryTracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryTracker{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

// MarkIfNew implements Tracker.
func (t *MemoryTracker) MarkIfNew(_ context.Context, id string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if now.Sub(t.lastSweep) >= t.ttl {
		t.sweep(now)
	}

	if expires, ok := t.seen[id]; ok && now.Before(expires) {
		return false, nil
	}
	t.seen[id] = now.Add(t.ttl)
	return true, nil
}

func (t *MemoryTracker) sweep(now time.Time) {
	for id, expires := range t.seen {
		if !now.Before(expires) {
			delete(t.seen, id)
		}
	}
	t.lastSweep = now
}

// Len returns the number of remembered IDs, expired ones included until the next sweep.
func (t *MemoryTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}

// Close implements Tracker.
func (t *MemoryTracker) Close() error { return nil }

// Package pending holds confirmed-but-undelivered selections until the
// delivery scanner can resolve an artifact for them or their TTL expires.
package pending

import (
	"context"
	"sync"
	"time"

	"github.com/tradepoll/delivery-service/internal/domain"
)

// Resolver maps a pending selection to a ready-to-queue send job.
// It returns (job, true, nil) when the option's artifact exists, (_, false,
// nil) when nothing is deliverable yet, and a non-nil error on lookup
// failure. Not-found and errors both leave the entry pending for the next
// scan pass; only errors are reported to the caller's hook.
type Resolver func(ctx context.Context, key domain.SelectionKey) (domain.SendJob, bool, error)

// Set is the pending-delivery set: at most one live entry per SelectionKey,
// each stamped with its insertion time.
//
// Producers (the confirmation handler) and the single scanner goroutine
// share the set under one mutex. The mutex is held only for short, bounded
// critical sections; artifact lookups never run under it.
type Set struct {
	mu    sync.Mutex
	items map[domain.SelectionKey]time.Time

	now   func() time.Time
	onErr func(key domain.SelectionKey, err error)
}

// New returns an empty set. onErr is invoked once per failed resolver call
// during ScanAndDrain (nil = ignore); the entry stays pending either way.
func New(onErr func(domain.SelectionKey, error)) *Set {
	if onErr == nil {
		onErr = func(domain.SelectionKey, error) {}
	}
	return &Set{
		items: make(map[domain.SelectionKey]time.Time),
		now:   time.Now,
		onErr: onErr,
	}
}

// Add inserts the key with the current time. It reports whether a new entry
// was created; adding a key that is already pending is an idempotent no-op.
func (s *Set) Add(key domain.SelectionKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[key]; exists {
		return false
	}
	s.items[key] = s.now()
	return true
}

// Len returns the number of pending entries.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// ScanAndDrain performs one atomic scan pass:
//
//  1. Under the lock: entries older than ttl are removed (stale, dropped
//     silently) and the remainder is snapshotted.
//  2. Without the lock: the resolver runs against the snapshot. Slow work
//     (DB and disk lookups) therefore never blocks producers.
//  3. Under the lock again: every snapshotted key that resolved to a job is
//     removed. Keys added during step 2 were not in the snapshot and are
//     untouched; a snapshotted key cannot be concurrently re-added because
//     it is still present (and deduplicated) until this step.
//
// The returned jobs are not yet queued; the caller enqueues them after this
// method returns, so a selection's entry is always removed before its job
// exists anywhere else (at most one outstanding job per key).
func (s *Set) ScanAndDrain(ctx context.Context, ttl time.Duration, resolve Resolver) []domain.SendJob {
	now := s.now()

	s.mu.Lock()
	snapshot := make([]domain.SelectionKey, 0, len(s.items))
	for key, addedAt := range s.items {
		if now.Sub(addedAt) > ttl {
			delete(s.items, key) // stale: dropped silently, no job
			continue
		}
		snapshot = append(snapshot, key)
	}
	s.mu.Unlock()

	var jobs []domain.SendJob
	var delivered []domain.SelectionKey
	for _, key := range snapshot {
		job, ok, err := resolve(ctx, key)
		if err != nil {
			// Isolated per item: the entry stays pending and is retried
			// on the next pass.
			s.onErr(key, err)
			continue
		}
		if !ok {
			continue
		}
		jobs = append(jobs, job)
		delivered = append(delivered, key)
	}

	if len(delivered) > 0 {
		s.mu.Lock()
		for _, key := range delivered {
			delete(s.items, key)
		}
		s.mu.Unlock()
	}

	return jobs
}

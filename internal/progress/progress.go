// Package progress exposes a read-only feed of pipeline activity. The core
// never renders anything; external consumers poll snapshots and draw them
// however they like.
package progress

import (
	"maps"
	"sync"
)

// Snapshot is a point-in-time copy of run progress. It shares no memory with
// the tracker.
type Snapshot struct {
	Counts    map[string]int
	Workers   map[string]string
	Completed int
	Total     int
}

// Tracker aggregates per-status counts and per-worker activity. Counts are
// mutated only by the aggregator; activity by the owning worker.
type Tracker struct {
	mu        sync.Mutex
	counts    map[string]int
	workers   map[string]string
	completed int
	total     int
}

// NewTracker builds a tracker for a run of total parts.
func NewTracker(total int) *Tracker {
	return &Tracker{
		counts:  make(map[string]int),
		workers: make(map[string]string),
		total:   total,
	}
}

// Record tallies one terminal outcome.
func (t *Tracker) Record(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[status]++
	t.completed++
}

// SetWorker publishes what a worker is currently doing. An empty activity
// marks the worker idle.
func (t *Tracker) SetWorker(id, activity string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if activity == "" {
		delete(t.workers, id)
		return
	}
	t.workers[id] = activity
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Counts:    maps.Clone(t.counts),
		Workers:   maps.Clone(t.workers),
		Completed: t.completed,
		Total:     t.total,
	}
}

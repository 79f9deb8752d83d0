// Package analytics provides lightweight in-process usage counters.
//
// The Tracker is deliberately plain process-scoped state: construct
// one near main and pass it to whoever needs it. There is no package
// level singleton, so tests and parallel services never share counts
// by accident.
package analytics

import (
	"sort"
	"sync"
	"time"
)

// Tracker accumulates named event counts.
type Tracker struct {
	mu        sync.Mutex
	counts    map[string]int64
	startedAt time.Time
}

// Well-known event names
const (
	EventDocumentUploaded  = "document_uploaded"
	EventDocumentExtracted = "document_extracted"
	EventReconcileRun      = "reconcile_run"
	EventTransactionsTotal = "transactions_scored"
	EventMatchesFound      = "matches_found"
	EventVendorsCreated    = "vendors_created"
	EventQBOAPICall        = "qbo_api_call"
)

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		counts:    make(map[string]int64),
		startedAt: time.Now().UTC(),
	}
}

// Incr adds 1 to the named counter.
func (t *Tracker) Incr(event string) {
	t.Add(event, 1)
}

// Add adds n to the named counter.
func (t *Tracker) Add(event string, n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[event] += n
}

// Count returns the current value of a counter.
func (t *Tracker) Count(event string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[event]
}

// Snapshot returns all counters plus tracker uptime. Event names are
// sorted so output is stable.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	events := make([]Event, 0, len(t.counts))
	for name, count := range t.counts {
		events = append(events, Event{Name: name, Count: count})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Name < events[j].Name })

	return Snapshot{
		StartedAt: t.startedAt,
		Uptime:    time.Since(t.startedAt),
		Events:    events,
	}
}

// Event is one named counter value.
type Event struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Snapshot is a point-in-time view of all counters.
type Snapshot struct {
	StartedAt time.Time     `json:"started_at"`
	Uptime    time.Duration `json:"uptime"`
	Events    []Event       `json:"events"`
}

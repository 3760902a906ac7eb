// Package httpapi exposes a minimal read-only dashboard feed over HTTP: a
// point-in-time status summary and a Server-Sent-Events stream of the
// engine's telemetry. It is the transport for an external terminal-UI or
// analytics collaborator, not a UI itself. Grounded on the teacher's
// cli/root.go Echo server setup (middleware stack, background Start plus
// graceful Shutdown), stripped of the teacher's auth/queue/db wiring since
// this feed has no end users, only local/CI observers.
package httpapi

import (
	"sync"

	"forge.evalgo.org/telemetry"
)

// Snapshot is the JSON body served by GET /status.
type Snapshot struct {
	TargetsStarted   int `json:"targets_started"`
	TargetsCompleted int `json:"targets_completed"`
	TargetsFailed    int `json:"targets_failed"`
	CacheHits        int `json:"cache_hits"`
	CacheMisses      int `json:"cache_misses"`
	BuildsStarted    int `json:"builds_started"`
	BuildsCompleted  int `json:"builds_completed"`
}

// Feed is a telemetry.Publisher subscriber: it keeps a running Snapshot and
// fans every event out to any number of subscribed SSE clients.
type Feed struct {
	mu          sync.Mutex
	snapshot    Snapshot
	subscribers map[chan telemetry.Event]struct{}
}

// NewFeed constructs an empty Feed.
func NewFeed() *Feed {
	return &Feed{subscribers: make(map[chan telemetry.Event]struct{})}
}

// Publish implements telemetry.Publisher: update the running snapshot, then
// fan the event out to every subscriber without blocking on a slow reader.
func (f *Feed) Publish(event telemetry.Event) {
	f.mu.Lock()
	switch event.Type {
	case telemetry.TypeTargetStarted:
		f.snapshot.TargetsStarted++
	case telemetry.TypeTargetCompleted:
		f.snapshot.TargetsCompleted++
	case telemetry.TypeTargetFailed:
		f.snapshot.TargetsFailed++
	case telemetry.TypeCacheHit:
		f.snapshot.CacheHits++
	case telemetry.TypeCacheMiss:
		f.snapshot.CacheMisses++
	case telemetry.TypeGraphBuildStarted:
		f.snapshot.BuildsStarted++
	case telemetry.TypeGraphBuildCompleted:
		f.snapshot.BuildsCompleted++
	}
	subs := make([]chan telemetry.Event, 0, len(f.subscribers))
	for ch := range f.subscribers {
		subs = append(subs, ch)
	}
	f.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			// Slow subscriber: drop the event rather than block the publisher.
		}
	}
}

// Snapshot returns a copy of the current counters.
func (f *Feed) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

// Subscribe registers a new channel that receives every subsequent event.
// Callers must call the returned unsubscribe func when done.
func (f *Feed) Subscribe() (ch chan telemetry.Event, unsubscribe func()) {
	ch = make(chan telemetry.Event, 32)
	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	return ch, func() {
		f.mu.Lock()
		delete(f.subscribers, ch)
		f.mu.Unlock()
		close(ch)
	}
}

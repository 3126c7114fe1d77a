// Package progress - broker.go is the broadcast primitive connecting the
// orchestrator to progress consumers.
package progress

import (
	"sync"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls further behind loses intermediate events rather than blocking the
// emitting worker.
const subscriberBuffer = 64

// Broker fans report progress events out to subscribers. Each report has a
// single producer; publishing never blocks. After a terminal event the
// report's channels are closed and torn down.
type Broker struct {
	mu      sync.Mutex
	subs    map[string]map[chan Event]struct{}
	last    map[string]int
	done    map[string]bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan Event]struct{}),
		last: make(map[string]int),
		done: make(map[string]bool),
	}
}

// Subscribe registers a consumer for a report's stream. The returned channel
// is closed after the terminal event (or on unsubscribe). Subscribing to an
// already-terminated report yields a closed channel.
func (b *Broker) Subscribe(reportID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done[reportID] {
		close(ch)
		return ch, func() {}
	}

	if b.subs[reportID] == nil {
		b.subs[reportID] = make(map[chan Event]struct{})
	}
	b.subs[reportID][ch] = struct{}{}

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.subs[reportID]; ok {
			if _, still := set[ch]; still {
				delete(set, ch)
				close(ch)
			}
		}
	}
	return ch, unsubscribe
}

// Publish emits an event on a report's stream. Progress values are clamped
// to be monotonically non-decreasing per report. Slow or absent subscribers
// are skipped, never waited on. A terminal event closes and removes the
// report's stream; events published after it are dropped.
func (b *Broker) Publish(reportID string, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done[reportID] {
		return
	}

	if ev.Progress < b.last[reportID] {
		ev.Progress = b.last[reportID]
	} else {
		b.last[reportID] = ev.Progress
	}

	for ch := range b.subs[reportID] {
		select {
		case ch <- ev:
		default: // subscriber is behind; drop rather than block
		}
	}

	if ev.Terminal() {
		for ch := range b.subs[reportID] {
			close(ch)
		}
		delete(b.subs, reportID)
		delete(b.last, reportID)
		b.done[reportID] = true
	}
}

// Reporter binds a broker to one report identifier and owns the producer
// side of that report's stream.
type Reporter struct {
	broker   *Broker
	reportID string
}

// NewReporter creates the single producer for a report's stream.
func (b *Broker) NewReporter(reportID string) *Reporter {
	return &Reporter{broker: b, reportID: reportID}
}

// Status emits a status message at the given progress value.
func (r *Reporter) Status(progress int, message string) {
	r.broker.Publish(r.reportID, Event{Type: EventStatus, Progress: progress, Message: message})
}

// Step emits a progress event positioned within a phase's sub-range.
func (r *Reporter) Step(phase Phase, done, total int, message string, counts map[string]int) {
	r.broker.Publish(r.reportID, Event{
		Type:     EventProgress,
		Progress: phase.At(done, total),
		Message:  message,
		Counts:   counts,
	})
}

// Complete emits the terminal success event and tears the stream down.
func (r *Reporter) Complete(message string, counts map[string]int) {
	r.broker.Publish(r.reportID, Event{
		Type:     EventComplete,
		Progress: 100,
		Message:  message,
		Counts:   counts,
	})
}

// Error emits the terminal failure event and tears the stream down.
func (r *Reporter) Error(message string) {
	r.broker.Publish(r.reportID, Event{Type: EventError, Progress: 100, Message: message})
}

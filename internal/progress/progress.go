// Package progress provides a single-writer broadcast channel that turns
// orchestration milestones into a live per-report progress stream.
package progress

// EventType discriminates progress stream events.
type EventType string

// Event types. Complete and Error are the only reliable termination
// signals; consumers must tolerate dropped intermediate events.
const (
	EventStatus   EventType = "status"
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is a single entry in a report's progress stream.
type Event struct {
	Type     EventType      `json:"type"`
	Progress int            `json:"progress"`
	Message  string         `json:"message"`
	Counts   map[string]int `json:"counts,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// Phase is a fixed sub-range of the 0-100 progress scale. Phase boundaries
// are strictly ordered: provider calls fully precede classification, which
// fully precedes aggregation, which fully precedes synthesis.
type Phase struct {
	Start int
	End   int
}

// The pipeline's fixed phases.
var (
	PhaseProviderCalls  = Phase{Start: 0, End: 70}
	PhaseClassification = Phase{Start: 70, End: 80}
	PhaseAggregation    = Phase{Start: 80, End: 95}
	PhaseSynthesis      = Phase{Start: 95, End: 100}
)

// At maps a completed/total ratio into the phase's sub-range.
func (p Phase) At(done, total int) int {
	if total <= 0 || done >= total {
		return p.End
	}
	if done < 0 {
		done = 0
	}
	return p.Start + (p.End-p.Start)*done/total
}

package health

import (
	"sync"
	"time"
)

// Progress tracks the turn count of one synthesis run. All methods are safe
// for concurrent use.
type Progress struct {
	mu       sync.Mutex
	runID    string
	total    int
	done     int
	started  time.Time
	finished time.Time
	err      string
}

// ProgressSnapshot is the JSON body served by /status.
type ProgressSnapshot struct {
	RunID      string  `json:"run_id,omitempty"`
	State      string  `json:"state"`
	TurnsDone  int     `json:"turns_done"`
	TurnsTotal int     `json:"turns_total"`
	Elapsed    float64 `json:"elapsed_seconds"`
	Error      string  `json:"error,omitempty"`
}

// Progress states.
const (
	StateIdle    = "idle"
	StateRunning = "running"
	StateDone    = "done"
	StateFailed  = "failed"
)

// Start resets p for a run of total turns.
func (p *Progress) Start(runID string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runID = runID
	p.total = total
	p.done = 0
	p.started = time.Now()
	p.finished = time.Time{}
	p.err = ""
}

// TurnDone records one finished turn.
func (p *Progress) TurnDone() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
}

// Finish marks the run as over; a non-nil err marks it failed.
func (p *Progress) Finish(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished = time.Now()
	if err != nil {
		p.err = err.Error()
	}
}

// Snapshot returns the current state of the run.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := ProgressSnapshot{
		RunID:      p.runID,
		State:      StateIdle,
		TurnsDone:  p.done,
		TurnsTotal: p.total,
		Error:      p.err,
	}
	switch {
	case p.started.IsZero():
		return s
	case p.finished.IsZero():
		s.State = StateRunning
		s.Elapsed = time.Since(p.started).Seconds()
	default:
		s.State = StateDone
		if p.err != "" {
			s.State = StateFailed
		}
		s.Elapsed = p.finished.Sub(p.started).Seconds()
	}
	return s
}

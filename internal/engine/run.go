package engine

import "sort"

// TaskState is the per-run lifecycle state of one task.
type TaskState int

const (
	StateIdle TaskState = iota
	StateQueued
	StateRunning
	StateProgressed
	StateSucceeded
	StateFailed
	StateSkipped
)

func (s TaskState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateProgressed:
		return "progressed"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state can no longer change within the
// current run.
func (s TaskState) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateSkipped:
		return true
	default:
		return false
	}
}

// Active reports whether the task has been handed to the executor and
// has not yet reached a terminal state.
func (s TaskState) Active() bool {
	switch s {
	case StateQueued, StateRunning, StateProgressed:
		return true
	default:
		return false
	}
}

// Run is one execution wave over the downward closure of its trigger
// roots. Membership in States doubles as closure membership.
type Run struct {
	ID     uint64
	Roots  map[string]struct{}
	States map[string]TaskState
	Failed []string
}

func newRun(id uint64) *Run {
	return &Run{
		ID:     id,
		Roots:  make(map[string]struct{}),
		States: make(map[string]TaskState),
	}
}

// Has reports closure membership.
func (r *Run) Has(task string) bool {
	_, ok := r.States[task]
	return ok
}

// Done reports whether every closure member is terminal. Long-lived
// tasks in Running or Progressed hold the run open.
func (r *Run) Done() bool {
	for _, st := range r.States {
		if !st.Terminal() {
			return false
		}
	}
	return true
}

// Tasks returns the closure member names, sorted.
func (r *Run) Tasks() []string {
	out := make([]string, 0, len(r.States))
	for name := range r.States {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RootNames returns the trigger roots, sorted.
func (r *Run) RootNames() []string {
	out := make([]string, 0, len(r.Roots))
	for name := range r.Roots {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

package engine

import "fmt"

// Behaviour controls what happens to triggers that arrive while a run
// is active and cannot join it.
type Behaviour int

const (
	// BehaviourQueue keeps pending triggers per task, bounded by the
	// queue capacity, and drains them into a new run when the active
	// run closes.
	BehaviourQueue Behaviour = iota

	// BehaviourReplace keeps only the most recent pending trigger,
	// discarding everything queued before it.
	BehaviourReplace
)

// ParseBehaviour maps the config spelling onto a Behaviour.
func ParseBehaviour(s string) (Behaviour, error) {
	switch s {
	case "", "queue":
		return BehaviourQueue, nil
	case "replace":
		return BehaviourReplace, nil
	default:
		return 0, fmt.Errorf("unknown while_running behaviour %q", s)
	}
}

// Trigger is one pending (task, reason) pair.
type Trigger struct {
	Task   string
	Reason TriggerReason
}

// SubmitOutcome tells the caller whether a submission created a new
// pending entry or folded into an existing one.
type SubmitOutcome int

const (
	OutcomeQueued SubmitOutcome = iota
	OutcomeCoalesced
)

// TriggerQueue holds triggers that arrived while their task was
// already started or finished inside the active run. Entries are
// bounded per task; a duplicate reason coalesces into the existing
// entry, and overflow drops the oldest entry for that task.
type TriggerQueue struct {
	behaviour Behaviour
	capacity  int
	pending   map[string][]TriggerReason
	order     []string
}

// NewTriggerQueue builds a queue with the given per-task capacity.
// Capacity below one is clamped to one.
func NewTriggerQueue(behaviour Behaviour, capacity int) *TriggerQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &TriggerQueue{
		behaviour: behaviour,
		capacity:  capacity,
		pending:   make(map[string][]TriggerReason),
	}
}

// Submit records a pending trigger for task.
func (q *TriggerQueue) Submit(task string, reason TriggerReason) SubmitOutcome {
	if q.behaviour == BehaviourReplace {
		q.pending = map[string][]TriggerReason{task: {reason}}
		q.order = []string{task}
		return OutcomeQueued
	}

	reasons, ok := q.pending[task]
	if !ok {
		q.pending[task] = []TriggerReason{reason}
		q.order = append(q.order, task)
		return OutcomeQueued
	}
	for _, r := range reasons {
		if r == reason {
			return OutcomeCoalesced
		}
	}
	reasons = append(reasons, reason)
	if len(reasons) > q.capacity {
		reasons = reasons[len(reasons)-q.capacity:]
	}
	q.pending[task] = reasons
	return OutcomeCoalesced
}

// DrainReady empties the queue and returns one trigger per pending
// task, in submission order, carrying the oldest surviving reason.
func (q *TriggerQueue) DrainReady() []Trigger {
	if len(q.order) == 0 {
		return nil
	}
	out := make([]Trigger, 0, len(q.order))
	for _, task := range q.order {
		reasons := q.pending[task]
		if len(reasons) == 0 {
			continue
		}
		out = append(out, Trigger{Task: task, Reason: reasons[0]})
	}
	q.pending = make(map[string][]TriggerReason)
	q.order = nil
	return out
}

// Pending returns the number of tasks with at least one queued trigger.
func (q *TriggerQueue) Pending() int {
	return len(q.order)
}

// Empty reports whether nothing is queued.
func (q *TriggerQueue) Empty() bool {
	return len(q.order) == 0
}

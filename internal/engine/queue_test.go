package engine

import "testing"

func TestQueueCoalescesSameReason(t *testing.T) {
	q := NewTriggerQueue(BehaviourQueue, 1)

	if got := q.Submit("a", ReasonFileChange); got != OutcomeQueued {
		t.Fatalf("first submit = %v, want queued", got)
	}
	if got := q.Submit("a", ReasonFileChange); got != OutcomeCoalesced {
		t.Fatalf("second submit = %v, want coalesced", got)
	}
	if q.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", q.Pending())
	}

	drained := q.DrainReady()
	if len(drained) != 1 || drained[0].Task != "a" {
		t.Fatalf("drained = %v, want one trigger for a", drained)
	}
	if !q.Empty() {
		t.Fatalf("queue should be empty after drain")
	}
}

func TestQueueCapacityDropsOldest(t *testing.T) {
	q := NewTriggerQueue(BehaviourQueue, 1)

	q.Submit("a", ReasonFileChange)
	q.Submit("a", ReasonSchedule)

	drained := q.DrainReady()
	if len(drained) != 1 {
		t.Fatalf("drained = %v, want one entry", drained)
	}
	if drained[0].Reason != ReasonSchedule {
		t.Fatalf("reason = %v, want the newer one to survive overflow", drained[0].Reason)
	}
}

func TestQueuePreservesSubmissionOrder(t *testing.T) {
	q := NewTriggerQueue(BehaviourQueue, 1)

	q.Submit("b", ReasonFileChange)
	q.Submit("a", ReasonFileChange)
	q.Submit("c", ReasonFileChange)

	drained := q.DrainReady()
	want := []string{"b", "a", "c"}
	if len(drained) != len(want) {
		t.Fatalf("drained %d entries, want %d", len(drained), len(want))
	}
	for i, tr := range drained {
		if tr.Task != want[i] {
			t.Fatalf("drained[%d] = %s, want %s", i, tr.Task, want[i])
		}
	}
}

func TestReplaceBehaviourKeepsOnlyLatest(t *testing.T) {
	q := NewTriggerQueue(BehaviourReplace, 1)

	q.Submit("a", ReasonFileChange)
	q.Submit("b", ReasonFileChange)
	q.Submit("c", ReasonSchedule)

	drained := q.DrainReady()
	if len(drained) != 1 || drained[0].Task != "c" {
		t.Fatalf("drained = %v, want only the latest trigger", drained)
	}
}

func TestDrainEmptyQueue(t *testing.T) {
	q := NewTriggerQueue(BehaviourQueue, 1)
	if got := q.DrainReady(); got != nil {
		t.Fatalf("drained = %v, want nil", got)
	}
}

func TestParseBehaviour(t *testing.T) {
	if b, err := ParseBehaviour(""); err != nil || b != BehaviourQueue {
		t.Fatalf("empty spelling: %v, %v", b, err)
	}
	if b, err := ParseBehaviour("replace"); err != nil || b != BehaviourReplace {
		t.Fatalf("replace spelling: %v, %v", b, err)
	}
	if _, err := ParseBehaviour("latest"); err == nil {
		t.Fatalf("unknown spelling should error")
	}
}

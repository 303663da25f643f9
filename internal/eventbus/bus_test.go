package eventbus

import (
	"testing"
	"time"
)

func TestPublishFanout(t *testing.T) {
	b := New()

	ch1, unsub1 := b.Subscribe(4)
	ch2, unsub2 := b.Subscribe(4)
	defer unsub1()
	defer unsub2()

	b.Publish(Event{Type: TypeTaskFailed, Data: TaskEvent{Task: "build", ExitCode: 2}})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Type != TypeTaskFailed {
				t.Fatalf("type = %q", ev.Type)
			}
			te, ok := ev.Data.(TaskEvent)
			if !ok || te.Task != "build" || te.ExitCode != 2 {
				t.Fatalf("data = %#v", ev.Data)
			}
			if ev.Time.IsZero() {
				t.Fatalf("publish should stamp the time")
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber did not receive event")
		}
	}
}

func TestPublishDropsWhenSubscriberFull(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	// Second publish must not block even though nobody reads.
	done := make(chan struct{})
	go func() {
		b.Publish(Event{Type: TypeTaskQueued})
		b.Publish(Event{Type: TypeTaskQueued})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a full subscriber")
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe(1)
	unsub()
	unsub()
	b.Publish(Event{Type: TypeRunStarted})
}

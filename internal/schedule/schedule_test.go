package schedule

import (
	"testing"

	"watchdag/internal/dag"
	"watchdag/internal/engine"
	"watchdag/pkg/logx"
)

type dropSink struct{}

func (dropSink) Submit(engine.Event) bool { return true }

func TestRegisterAcceptsCronAndDescriptors(t *testing.T) {
	s := New(dropSink{}, logx.Nop())
	err := s.Register([]*dag.Task{
		{Name: "five", Cmd: "true", Schedule: "*/5 * * * *"},
		{Name: "hourly", Cmd: "true", Schedule: "@hourly"},
		{Name: "interval", Cmd: "true", Schedule: "@every 30s"},
		{Name: "plain", Cmd: "true"},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got := s.Entries(); got != 3 {
		t.Fatalf("entries = %d, want 3", got)
	}
}

func TestRegisterRejectsBadSpec(t *testing.T) {
	s := New(dropSink{}, logx.Nop())
	err := s.Register([]*dag.Task{
		{Name: "bad", Cmd: "true", Schedule: "every day at noon"},
	})
	if err == nil {
		t.Fatalf("bad schedule spec should be rejected")
	}
}

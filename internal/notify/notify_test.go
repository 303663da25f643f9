package notify

import (
	"strings"
	"testing"
	"time"

	"watchdag/internal/eventbus"
	"watchdag/pkg/logx"
)

func TestDisabledConfigBuildsNoopService(t *testing.T) {
	s, err := New(Config{Enabled: false}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Enabled() {
		t.Fatalf("disabled config must build a disabled service")
	}
}

func TestEnabledConfigRequiresToken(t *testing.T) {
	if _, err := New(Config{Enabled: true, ChatID: 1}, logx.Nop()); err == nil {
		t.Fatalf("missing token should error")
	}
	if _, err := New(Config{Enabled: true, Token: "x"}, logx.Nop()); err == nil {
		t.Fatalf("missing chat id should error")
	}
}

func TestFormatTaskFailure(t *testing.T) {
	s := &Service{seen: map[string]time.Time{}}

	msg := s.format(eventbus.Event{
		Type: eventbus.TypeTaskFailed,
		Data: eventbus.TaskEvent{RunID: 7, Task: "build", ExitCode: 2},
	})
	if !strings.Contains(msg, "build") || !strings.Contains(msg, "exit 2") {
		t.Fatalf("message = %q", msg)
	}

	// Same task failing again inside the dedup window stays quiet.
	if again := s.format(eventbus.Event{
		Type: eventbus.TypeTaskFailed,
		Data: eventbus.TaskEvent{RunID: 8, Task: "build", ExitCode: 2},
	}); again != "" {
		t.Fatalf("repeat failure should be suppressed, got %q", again)
	}
}

func TestFormatIgnoresCleanRuns(t *testing.T) {
	s := &Service{seen: map[string]time.Time{}}

	if msg := s.format(eventbus.Event{
		Type: eventbus.TypeRunFinished,
		Data: eventbus.RunEvent{RunID: 3},
	}); msg != "" {
		t.Fatalf("clean run should not notify, got %q", msg)
	}

	msg := s.format(eventbus.Event{
		Type: eventbus.TypeRunFinished,
		Data: eventbus.RunEvent{RunID: 3, Failed: []string{"test"}},
	})
	if !strings.Contains(msg, "test") {
		t.Fatalf("failed run message = %q", msg)
	}
}

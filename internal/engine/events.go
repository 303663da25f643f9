package engine

import "fmt"

// TriggerReason records why a task was triggered.
type TriggerReason int

const (
	ReasonFileChange TriggerReason = iota
	ReasonStdout
	ReasonSchedule
	ReasonStartup
)

func (r TriggerReason) String() string {
	switch r {
	case ReasonFileChange:
		return "file_change"
	case ReasonStdout:
		return "stdout"
	case ReasonSchedule:
		return "schedule"
	case ReasonStartup:
		return "startup"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Outcome is the terminal result of one dispatched process instance.
type Outcome struct {
	Success  bool
	ExitCode int
}

// Event is the tagged union consumed by the scheduler. Producers (the
// watcher, the cron feed, process monitors, the signal handler) submit
// events; the engine service serializes them onto one channel.
type Event interface{ event() }

// TaskTriggered asks the scheduler to run a task (and, transitively,
// its dependents). File changes, cron schedules, stdout trigger
// patterns and startup seeding all arrive as this event.
type TaskTriggered struct {
	Task   string
	Reason TriggerReason
}

// TaskStarted reports that the executor spawned the task's process.
type TaskStarted struct {
	Task string
}

// TaskProgressed reports logical forward movement of a long-lived task
// whose process is still alive.
type TaskProgressed struct {
	Task string
}

// TaskCompleted reports process exit. Exactly one per dispatched
// instance, never delivered before that instance's progress events.
type TaskCompleted struct {
	Task    string
	Outcome Outcome
}

// ShutdownRequested asks for a graceful stop: running tasks finish,
// long-lived tasks are cancelled.
type ShutdownRequested struct{}

func (TaskTriggered) event()     {}
func (TaskStarted) event()       {}
func (TaskProgressed) event()    {}
func (TaskCompleted) event()     {}
func (ShutdownRequested) event() {}

// Command is the tagged union emitted by the scheduler for the outer
// shell to act on. An empty command list is the no-op.
type Command interface{ command() }

// Dispatch asks the executor to spawn the task's command.
type Dispatch struct {
	Task string
}

// CancelLongLived asks the executor to stop a long-lived process.
type CancelLongLived struct {
	Task string
}

// Shutdown tells the engine loop to stop once in-flight work drains.
type Shutdown struct{}

func (Dispatch) command()        {}
func (CancelLongLived) command() {}
func (Shutdown) command()        {}

package dag

import (
	"regexp"
	"time"
)

// Task is the static description of one schedulable command, fixed at
// load time. Long-lived vs regular tasks share the one type; the
// optional progress/trigger fields are simply unset for regular tasks.
type Task struct {
	// Name uniquely identifies the task across the graph.
	Name string

	// Cmd is the shell command executed via `sh -c`.
	Cmd string

	// After lists the names of tasks that must make progress before
	// this one runs.
	After []string

	// LongLived marks a command expected to keep running; progress,
	// not exit, signals forward movement.
	LongLived bool

	// Rerun controls what a retrigger does to a running long-lived
	// task: false (default) only retriggers the downstream closure,
	// true cancels the process and queues a restart.
	Rerun bool

	// ProgressPattern marks the task as progressed when a stdout line
	// matches.
	ProgressPattern *regexp.Regexp

	// TriggerPattern retriggers the task's dependents when a stdout
	// line matches.
	TriggerPattern *regexp.Regexp

	// ProgressAfter marks the task as progressed once the duration has
	// elapsed since process start, independent of output.
	ProgressAfter time.Duration

	// Watch and Exclude are the effective glob pattern sets after
	// defaults have been applied.
	Watch   []string
	Exclude []string

	// UseHash switches change detection from raw fs events to content
	// hashing for paths matched by this task.
	UseHash bool

	// Schedule optionally fires time-based triggers (cron spec,
	// descriptor, or "@every" interval).
	Schedule string
}

// HasStdoutRules reports whether stdout lines need pattern matching.
func (t *Task) HasStdoutRules() bool {
	return t.ProgressPattern != nil || t.TriggerPattern != nil
}

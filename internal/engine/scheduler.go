package engine

import (
	"watchdag/internal/dag"
	"watchdag/internal/eventbus"
	"watchdag/pkg/logx"
)

// Scheduler is the pure decision core. Step consumes one event and
// returns the commands the shell must execute; it performs no I/O
// beyond logging and never blocks. Callers must serialize Step.
type Scheduler struct {
	graph *dag.Graph
	queue *TriggerQueue
	log   logx.Logger
	bus   eventbus.Bus

	runSeq       uint64
	run          *Run
	restarting   map[string]struct{}
	shuttingDown bool
}

func NewScheduler(graph *dag.Graph, queue *TriggerQueue, log logx.Logger, bus eventbus.Bus) *Scheduler {
	return &Scheduler{
		graph:      graph,
		queue:      queue,
		log:        log.With(logx.String("component", "scheduler")),
		bus:        bus,
		restarting: make(map[string]struct{}),
	}
}

// Idle reports whether no run is active.
func (s *Scheduler) Idle() bool { return s.run == nil }

// PendingTriggers returns the number of tasks queued for a future run.
func (s *Scheduler) PendingTriggers() int { return s.queue.Pending() }

// ShuttingDown reports whether a shutdown request has been processed.
func (s *Scheduler) ShuttingDown() bool { return s.shuttingDown }

// CurrentRunID returns the active run's id, or the id of the last run
// when idle.
func (s *Scheduler) CurrentRunID() uint64 {
	if s.run != nil {
		return s.run.ID
	}
	return s.runSeq
}

// Step advances the state machine by one event.
func (s *Scheduler) Step(ev Event) []Command {
	switch ev := ev.(type) {
	case TaskTriggered:
		return s.handleTriggered(ev.Task, ev.Reason)
	case TaskStarted:
		s.handleStarted(ev.Task)
		return nil
	case TaskProgressed:
		return s.handleProgressed(ev.Task)
	case TaskCompleted:
		return s.handleCompleted(ev.Task, ev.Outcome)
	case ShutdownRequested:
		return s.handleShutdown()
	default:
		s.log.Warn("dropping unknown event", logx.Any("event", ev))
		return nil
	}
}

func (s *Scheduler) handleTriggered(name string, reason TriggerReason) []Command {
	task, ok := s.graph.Task(name)
	if !ok {
		s.log.Warn("trigger for unknown task", logx.String("task", name))
		return nil
	}
	if s.shuttingDown {
		s.log.Debug("ignoring trigger during shutdown", logx.String("task", name))
		return nil
	}

	if reason == ReasonStdout {
		// A stdout trigger fires the task's direct dependents; the
		// emitting task itself restarts only when configured to.
		var cmds []Command
		for _, dep := range s.graph.DependentsOf(name) {
			cmds = append(cmds, s.applyTrigger(dep, reason)...)
		}
		if task.Rerun {
			cmds = append(cmds, s.applyTrigger(name, reason)...)
		}
		return cmds
	}
	return s.applyTrigger(name, reason)
}

func (s *Scheduler) applyTrigger(name string, reason TriggerReason) []Command {
	if s.run == nil {
		return s.startRun([]Trigger{{Task: name, Reason: reason}})
	}

	st, member := s.run.States[name]
	if !member {
		// Fold the new root into the active run so shared dependents
		// execute once per wave instead of once per root.
		return s.extendRun(name, reason)
	}

	switch {
	case st == StateIdle || st == StateQueued:
		s.log.Debug("trigger coalesced into active run",
			logx.String("task", name),
			logx.Uint64("run", s.run.ID),
			logx.String("state", st.String()))
		return nil
	case st == StateRunning || st == StateProgressed:
		if task, ok := s.graph.Task(name); ok && task.LongLived {
			if task.Rerun {
				s.queue.Submit(name, reason)
				s.restarting[name] = struct{}{}
				s.log.Info("cancelling long-lived task for restart", logx.String("task", name))
				return []Command{CancelLongLived{Task: name}}
			}
			// Leave the live process alone and rerun only what sits
			// below it.
			s.log.Debug("retriggering downstream of live task", logx.String("task", name))
			var cmds []Command
			for _, dep := range s.graph.DependentsOf(name) {
				cmds = append(cmds, s.applyTrigger(dep, reason)...)
			}
			return cmds
		}
		fallthrough
	default:
		if st.Terminal() && s.heldOpen() {
			// The run never closes while a long-lived member is alive,
			// so finished downstream tasks re-execute in place instead
			// of queueing behind a close that won't come.
			s.log.Info("re-running task inside held-open run",
				logx.String("task", name), logx.Uint64("run", s.run.ID))
			s.resetForRerun(name)
			return s.advance()
		}
		out := s.queue.Submit(name, reason)
		s.log.Debug("trigger queued for next run",
			logx.String("task", name),
			logx.String("reason", reason.String()),
			logx.Bool("coalesced", out == OutcomeCoalesced))
		return nil
	}
}

// heldOpen reports whether a live long-lived member is keeping the
// active run from ever closing.
func (s *Scheduler) heldOpen() bool {
	for name, st := range s.run.States {
		if st != StateRunning && st != StateProgressed {
			continue
		}
		if task, ok := s.graph.Task(name); ok && task.LongLived {
			return true
		}
	}
	return false
}

// resetForRerun returns a finished task and its finished transitive
// dependents to idle so advance can dispatch them again.
func (s *Scheduler) resetForRerun(name string) {
	if !s.run.States[name].Terminal() {
		return
	}
	s.run.States[name] = StateIdle
	for _, dep := range s.graph.DependentsOf(name) {
		if st, ok := s.run.States[dep]; ok && st.Terminal() {
			s.resetForRerun(dep)
		}
	}
}

func (s *Scheduler) startRun(triggers []Trigger) []Command {
	s.runSeq++
	run := newRun(s.runSeq)
	for _, tr := range triggers {
		if _, ok := s.graph.Task(tr.Task); !ok {
			continue
		}
		run.Roots[tr.Task] = struct{}{}
		for member := range s.graph.DownwardClosure(tr.Task) {
			run.States[member] = StateIdle
		}
	}
	if len(run.States) == 0 {
		return nil
	}
	s.run = run
	s.log.Info("run started",
		logx.Uint64("run", run.ID),
		logx.Strings("roots", run.RootNames()),
		logx.Int("tasks", len(run.States)))
	s.publish(eventbus.TypeRunStarted, eventbus.RunEvent{
		RunID: run.ID,
		Roots: run.RootNames(),
		Tasks: run.Tasks(),
	})
	return s.advance()
}

func (s *Scheduler) extendRun(name string, reason TriggerReason) []Command {
	run := s.run
	run.Roots[name] = struct{}{}
	added := 0
	for member := range s.graph.DownwardClosure(name) {
		if _, ok := run.States[member]; !ok {
			run.States[member] = StateIdle
			added++
		}
	}
	s.log.Info("run extended",
		logx.Uint64("run", run.ID),
		logx.String("task", name),
		logx.String("reason", reason.String()),
		logx.Int("added", added))
	s.publish(eventbus.TypeRunExtended, eventbus.RunEvent{
		RunID: run.ID,
		Roots: run.RootNames(),
		Tasks: run.Tasks(),
	})
	return s.advance()
}

// advance queues every idle closure member whose dependencies are
// satisfied. Topological order keeps command emission deterministic.
func (s *Scheduler) advance() []Command {
	var cmds []Command
	for _, name := range s.graph.Names() {
		st, ok := s.run.States[name]
		if !ok || st != StateIdle {
			continue
		}
		if !s.depsSatisfied(name) {
			continue
		}
		s.run.States[name] = StateQueued
		s.publish(eventbus.TypeTaskQueued, eventbus.TaskEvent{RunID: s.run.ID, Task: name})
		cmds = append(cmds, Dispatch{Task: name})
	}
	return cmds
}

// depsSatisfied treats dependencies outside the run closure as already
// satisfied; those inside must have succeeded or reported progress.
func (s *Scheduler) depsSatisfied(name string) bool {
	for _, dep := range s.graph.DependenciesOf(name) {
		st, ok := s.run.States[dep]
		if !ok {
			continue
		}
		if st != StateSucceeded && st != StateProgressed {
			return false
		}
	}
	return true
}

func (s *Scheduler) handleStarted(name string) {
	if s.run == nil || s.run.States[name] != StateQueued {
		return
	}
	s.run.States[name] = StateRunning
	s.log.Debug("task started", logx.String("task", name), logx.Uint64("run", s.run.ID))
	s.publish(eventbus.TypeTaskStarted, eventbus.TaskEvent{RunID: s.run.ID, Task: name})
}

func (s *Scheduler) handleProgressed(name string) []Command {
	if s.run == nil || !s.run.Has(name) {
		s.log.Debug("progress outside active run", logx.String("task", name))
		return nil
	}
	switch s.run.States[name] {
	case StateRunning:
		s.run.States[name] = StateProgressed
		s.log.Info("task progressed", logx.String("task", name), logx.Uint64("run", s.run.ID))
		s.publish(eventbus.TypeTaskProgress, eventbus.TaskEvent{RunID: s.run.ID, Task: name})
		cmds := s.advance()
		return append(cmds, s.maybeClose()...)
	case StateProgressed:
		// Repeated progress matches are expected; the first one did
		// the unblocking.
		return nil
	default:
		return nil
	}
}

func (s *Scheduler) handleCompleted(name string, out Outcome) []Command {
	if s.run == nil || !s.run.Has(name) {
		s.log.Debug("completion outside active run",
			logx.String("task", name), logx.Int("exit_code", out.ExitCode))
		return nil
	}
	st := s.run.States[name]
	if st.Terminal() {
		// Cancelled-at-shutdown race: the process was already spawned
		// when the task was marked skipped.
		s.log.Debug("completion for settled task",
			logx.String("task", name), logx.String("state", st.String()))
		return nil
	}

	if _, ok := s.restarting[name]; ok {
		delete(s.restarting, name)
		if !out.Success {
			// Killed by the restart cancel, not a real failure. The
			// queued trigger brings the task back in the next run.
			s.run.States[name] = StateSkipped
			s.publish(eventbus.TypeTaskSkipped, eventbus.TaskEvent{RunID: s.run.ID, Task: name})
			return s.maybeClose()
		}
	}

	if s.shuttingDown && !out.Success {
		if task, ok := s.graph.Task(name); ok && task.LongLived {
			// Killed by the shutdown cancel, not a real failure.
			s.run.States[name] = StateSkipped
			s.publish(eventbus.TypeTaskSkipped, eventbus.TaskEvent{RunID: s.run.ID, Task: name})
			return s.maybeClose()
		}
	}

	var cmds []Command
	if out.Success {
		s.run.States[name] = StateSucceeded
		s.log.Info("task succeeded", logx.String("task", name), logx.Uint64("run", s.run.ID))
		s.publish(eventbus.TypeTaskSucceeded, eventbus.TaskEvent{RunID: s.run.ID, Task: name})
		cmds = s.advance()
	} else {
		s.run.States[name] = StateFailed
		s.log.Error("task failed",
			logx.String("task", name),
			logx.Uint64("run", s.run.ID),
			logx.Int("exit_code", out.ExitCode))
		s.publish(eventbus.TypeTaskFailed, eventbus.TaskEvent{
			RunID: s.run.ID, Task: name, ExitCode: out.ExitCode,
		})
		s.skipDependents(name)
	}
	return append(cmds, s.maybeClose()...)
}

// skipDependents marks every still-idle transitive dependent skipped.
// Dependents already queued or running are left to finish on their own.
func (s *Scheduler) skipDependents(name string) {
	for _, dep := range s.graph.DependentsOf(name) {
		st, ok := s.run.States[dep]
		if !ok || st != StateIdle {
			continue
		}
		s.run.States[dep] = StateSkipped
		s.log.Warn("task skipped",
			logx.String("task", dep),
			logx.String("blocked_by", name),
			logx.Uint64("run", s.run.ID))
		s.publish(eventbus.TypeTaskSkipped, eventbus.TaskEvent{RunID: s.run.ID, Task: dep})
		s.skipDependents(dep)
	}
}

func (s *Scheduler) maybeClose() []Command {
	if s.run == nil || !s.run.Done() {
		return nil
	}
	run := s.run
	s.run = nil
	// Failed membership is computed at close so a rerun inside a
	// held-open run can clear an earlier failure.
	run.Failed = nil
	for _, name := range run.Tasks() {
		if run.States[name] == StateFailed {
			run.Failed = append(run.Failed, name)
		}
	}
	s.log.Info("run finished",
		logx.Uint64("run", run.ID),
		logx.Int("failed", len(run.Failed)))
	s.publish(eventbus.TypeRunFinished, eventbus.RunEvent{
		RunID:  run.ID,
		Roots:  run.RootNames(),
		Tasks:  run.Tasks(),
		Failed: run.Failed,
	})
	if s.shuttingDown {
		return nil
	}
	if pending := s.queue.DrainReady(); len(pending) > 0 {
		return s.startRun(pending)
	}
	return nil
}

func (s *Scheduler) handleShutdown() []Command {
	s.shuttingDown = true
	cmds := []Command{Shutdown{}}
	if s.run == nil {
		return cmds
	}
	for _, name := range s.run.Tasks() {
		switch s.run.States[name] {
		case StateQueued, StateIdle:
			s.run.States[name] = StateSkipped
			s.publish(eventbus.TypeTaskSkipped, eventbus.TaskEvent{RunID: s.run.ID, Task: name})
		case StateRunning, StateProgressed:
			if task, ok := s.graph.Task(name); ok && task.LongLived {
				cmds = append(cmds, CancelLongLived{Task: name})
			}
		}
	}
	// Closing here covers the case where nothing was left running.
	return append(cmds, s.maybeClose()...)
}

func (s *Scheduler) publish(typ string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: data})
}

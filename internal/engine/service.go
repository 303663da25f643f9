package engine

import (
	"context"
	"sync"

	"watchdag/internal/dag"
	"watchdag/pkg/logx"
)

// Executor spawns and cancels task processes on behalf of the engine.
// Implementations report back through Service.Submit.
type Executor interface {
	Start(task *dag.Task, runID uint64)
	Cancel(task string)
}

// Options tunes the engine loop.
type Options struct {
	// ExitWhenIdle stops the loop as soon as no run is active and no
	// trigger is pending. Used for one-shot invocations.
	ExitWhenIdle bool

	// EventBuffer sizes the inbound event channel.
	EventBuffer int
}

// Service owns the single goroutine that serializes all scheduler
// events. Everything the watcher, cron feed and executor produce
// funnels through Submit.
type Service struct {
	log   logx.Logger
	graph *dag.Graph
	sched *Scheduler
	exec  Executor
	opts  Options

	events   chan Event
	stopped  chan struct{}
	draining bool
	once     sync.Once
}

func NewService(graph *dag.Graph, sched *Scheduler, log logx.Logger, opts Options) *Service {
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 256
	}
	return &Service{
		log:     log.With(logx.String("component", "engine")),
		graph:   graph,
		sched:   sched,
		opts:    opts,
		events:  make(chan Event, opts.EventBuffer),
		stopped: make(chan struct{}),
	}
}

// SetExecutor binds the executor. The executor reports back through
// Submit, so the two are built in sequence; call before Run.
func (s *Service) SetExecutor(exec Executor) { s.exec = exec }

// Submit hands an event to the engine loop. It blocks while the loop
// is busy and reports false once the loop has stopped.
func (s *Service) Submit(ev Event) bool {
	select {
	case <-s.stopped:
		return false
	default:
	}
	select {
	case s.events <- ev:
		return true
	case <-s.stopped:
		return false
	}
}

// Run drives the event loop until shutdown drains or ctx is cancelled.
// Meant to be started under the supervisor.
func (s *Service) Run(ctx context.Context) error {
	defer s.once.Do(func() { close(s.stopped) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			s.apply(s.sched.Step(ev))
			if s.done() {
				return nil
			}
		}
	}
}

// done reports whether the loop may exit: either shutdown has been
// requested and all in-flight work settled, or one-shot mode finished.
func (s *Service) done() bool {
	if !s.sched.Idle() {
		return false
	}
	if s.draining {
		return true
	}
	return s.opts.ExitWhenIdle && s.sched.PendingTriggers() == 0
}

func (s *Service) apply(cmds []Command) {
	for _, cmd := range cmds {
		switch cmd := cmd.(type) {
		case Dispatch:
			task, ok := s.graph.Task(cmd.Task)
			if !ok {
				s.log.Error("dispatch for unknown task", logx.String("task", cmd.Task))
				continue
			}
			s.exec.Start(task, s.sched.CurrentRunID())
		case CancelLongLived:
			s.exec.Cancel(cmd.Task)
		case Shutdown:
			s.draining = true
		}
	}
}

// Package schedule fires time-based task triggers from cron specs.
package schedule

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"watchdag/internal/dag"
	"watchdag/internal/engine"
	"watchdag/pkg/logx"
)

// EventSink receives the triggers fired by cron entries. Satisfied by
// engine.Service.
type EventSink interface {
	Submit(ev engine.Event) bool
}

// Service wraps one cron runner over every task that declares a
// schedule. Standard five-field specs, descriptors like @hourly and
// @every intervals are accepted.
type Service struct {
	mu sync.Mutex

	log    logx.Logger
	sink   EventSink
	parser cron.Parser
	c      *cron.Cron
	count  int

	started bool
}

func New(sink EventSink, log logx.Logger) *Service {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Service{
		log:    log.With(logx.String("component", "schedule")),
		sink:   sink,
		parser: parser,
		c:      cron.New(cron.WithParser(parser)),
	}
}

// Register adds cron entries for every task with a schedule. Called
// before Start.
func (s *Service) Register(tasks []*dag.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range tasks {
		if t.Schedule == "" {
			continue
		}
		name := t.Name
		_, err := s.c.AddFunc(t.Schedule, func() {
			s.log.Debug("schedule fired", logx.String("task", name))
			s.sink.Submit(engine.TaskTriggered{Task: name, Reason: engine.ReasonSchedule})
		})
		if err != nil {
			return fmt.Errorf("task %q: bad schedule %q: %w", t.Name, t.Schedule, err)
		}
		s.count++
	}
	return nil
}

// Entries returns how many schedules are registered.
func (s *Service) Entries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Run starts the cron runner and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.count == 0 {
		s.mu.Unlock()
		<-ctx.Done()
		return nil
	}
	s.started = true
	s.c.Start()
	s.mu.Unlock()

	<-ctx.Done()
	stopped := s.c.Stop()
	<-stopped.Done()
	return nil
}

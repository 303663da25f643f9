package supervisor

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"watchdag/pkg/logx"
)

// Supervisor manages goroutines tied to a shared context.
//   - Named goroutines (for logging/debug)
//   - Panic recovery
//   - Graceful stop with timeout-aware waiting
//
// Process monitors, the watcher loop and the engine loop all run under
// one supervisor so shutdown has a single join point.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc

	started atomic.Uint64
	active  atomic.Int64

	log logx.Logger

	doneOnce sync.Once
	doneCh   chan struct{}
	wg       sync.WaitGroup
}

type Option func(*Supervisor)

func WithLogger(log logx.Logger) Option {
	return func(s *Supervisor) { s.log = log }
}

func New(parent context.Context, opts ...Option) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	s := &Supervisor{
		ctx:    ctx,
		cancel: cancel,
		doneCh: make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Counters reports best-effort goroutine counts (operational signal only).
func (s *Supervisor) Counters() (active int64, started uint64) {
	return s.active.Load(), s.started.Load()
}

// Go starts a named goroutine under the supervisor context.
// Panics are recovered and logged; they never take the process down.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	s.started.Add(1)
	s.active.Add(1)

	go func() {
		start := time.Now()
		defer s.wg.Done()
		defer s.active.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("panic in supervised goroutine",
					logx.String("name", name),
					logx.Any("panic", r),
					logx.String("stack", string(debug.Stack())))
			}
		}()

		err := fn(s.ctx)
		if err != nil && s.ctx.Err() == nil {
			s.log.Warn("supervised goroutine returned error",
				logx.String("name", name),
				logx.Err(err),
				logx.Duration("ran", time.Since(start)))
		} else {
			s.log.Debug("supervised goroutine stopped",
				logx.String("name", name),
				logx.Duration("ran", time.Since(start)))
		}
	}()
}

// Stop cancels the shared context and waits for all goroutines, bounded
// by the given context.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.cancel()

	s.doneOnce.Do(func() {
		go func() {
			s.wg.Wait()
			close(s.doneCh)
		}()
	})

	select {
	case <-s.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

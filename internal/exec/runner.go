package exec

import (
	"bufio"
	"context"
	"io"
	osexec "os/exec"
	"sync"
	"time"

	"watchdag/internal/dag"
	"watchdag/internal/engine"
	"watchdag/internal/runtime/supervisor"
	"watchdag/pkg/logx"
)

const (
	shell        = "sh"
	maxLineBytes = 1 << 20
	waitDelay    = 5 * time.Second
)

// EventSink receives lifecycle events produced by running processes.
// Satisfied by engine.Service.
type EventSink interface {
	Submit(ev engine.Event) bool
}

type proc struct {
	gen    uint64
	cancel context.CancelFunc
}

// Runner implements engine.Executor on top of real shell processes.
type Runner struct {
	log  logx.Logger
	sup  *supervisor.Supervisor
	sink EventSink

	mu    sync.Mutex
	gen   uint64
	procs map[string]proc
}

func NewRunner(sup *supervisor.Supervisor, sink EventSink, log logx.Logger) *Runner {
	return &Runner{
		log:   log.With(logx.String("component", "exec")),
		sup:   sup,
		sink:  sink,
		procs: make(map[string]proc),
	}
}

// Start spawns the task's command in a supervised goroutine. Map entries
// carry a generation so a finished instance's cleanup cannot touch a
// newer instance registered under the same name: the engine may dispatch
// the replacement as soon as it sees the completion event, before the
// old goroutine's deferred forget has run.
func (r *Runner) Start(task *dag.Task, runID uint64) {
	ctx, cancel := context.WithCancel(r.sup.Context())

	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.procs[task.Name] = proc{gen: gen, cancel: cancel}
	r.mu.Unlock()

	r.sup.Go("task:"+task.Name, func(context.Context) error {
		defer cancel()
		defer r.forget(task.Name, gen)
		r.run(ctx, task, runID)
		return nil
	})
}

// Cancel stops the task's live process, if any. The resulting exit
// surfaces as a normal completion event.
func (r *Runner) Cancel(task string) {
	r.mu.Lock()
	p, ok := r.procs[task]
	r.mu.Unlock()
	if ok {
		r.log.Info("cancelling task process", logx.String("task", task))
		p.cancel()
	}
}

// forget drops the map entry only when it still belongs to the exiting
// instance. A newer generation under the same name is left alone.
func (r *Runner) forget(task string, gen uint64) {
	r.mu.Lock()
	if p, ok := r.procs[task]; ok && p.gen == gen {
		delete(r.procs, task)
	}
	r.mu.Unlock()
}

func (r *Runner) run(ctx context.Context, task *dag.Task, runID uint64) {
	log := r.log.With(logx.String("task", task.Name), logx.Uint64("run", runID))

	cmd := osexec.CommandContext(ctx, shell, "-c", task.Cmd)
	cmd.WaitDelay = waitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		log.Error("stdout pipe", logx.Err(err))
		r.sink.Submit(engine.TaskCompleted{Task: task.Name, Outcome: engine.Outcome{ExitCode: -1}})
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		log.Error("stderr pipe", logx.Err(err))
		r.sink.Submit(engine.TaskCompleted{Task: task.Name, Outcome: engine.Outcome{ExitCode: -1}})
		return
	}

	if err := cmd.Start(); err != nil {
		log.Error("spawn failed", logx.Err(err), logx.String("cmd", task.Cmd))
		r.sink.Submit(engine.TaskCompleted{Task: task.Name, Outcome: engine.Outcome{ExitCode: -1}})
		return
	}
	log.Debug("process started", logx.Int("pid", cmd.Process.Pid))
	r.sink.Submit(engine.TaskStarted{Task: task.Name})

	stopTimer := r.startProgressTimer(ctx, task)
	defer stopTimer()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.drainStderr(log, stderr)
	}()

	// Stdout is scanned here, before Wait, so progress and trigger
	// events always precede the completion event.
	r.scanStdout(log, task, stdout)
	wg.Wait()

	werr := cmd.Wait()
	code := cmd.ProcessState.ExitCode()
	if werr == nil {
		log.Debug("process exited", logx.Int("exit_code", code))
	} else {
		log.Debug("process exited", logx.Int("exit_code", code), logx.Err(werr))
	}
	r.sink.Submit(engine.TaskCompleted{
		Task:    task.Name,
		Outcome: engine.Outcome{Success: werr == nil, ExitCode: code},
	})
}

// startProgressTimer arms the wall-clock progress fallback for
// long-lived tasks that configure one.
func (r *Runner) startProgressTimer(ctx context.Context, task *dag.Task) func() {
	if task.ProgressAfter <= 0 {
		return func() {}
	}
	timer := time.AfterFunc(task.ProgressAfter, func() {
		if ctx.Err() == nil {
			r.sink.Submit(engine.TaskProgressed{Task: task.Name})
		}
	})
	return func() { timer.Stop() }
}

func (r *Runner) scanStdout(log logx.Logger, task *dag.Task, rd io.Reader) {
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := sc.Text()
		log.Debug("stdout", logx.String("line", line))
		if task.ProgressPattern != nil && task.ProgressPattern.MatchString(line) {
			r.sink.Submit(engine.TaskProgressed{Task: task.Name})
		}
		if task.TriggerPattern != nil && task.TriggerPattern.MatchString(line) {
			log.Debug("stdout trigger matched")
			r.sink.Submit(engine.TaskTriggered{Task: task.Name, Reason: engine.ReasonStdout})
		}
	}
	if err := sc.Err(); err != nil {
		log.Debug("stdout read ended", logx.Err(err))
	}
}

func (r *Runner) drainStderr(log logx.Logger, rd io.Reader) {
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		log.Debug("stderr", logx.String("line", sc.Text()))
	}
}

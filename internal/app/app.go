// Package app assembles the configured services into one running
// process: config, graph, engine, executor, watcher, schedules and
// notifier, all supervised together.
package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"watchdag/internal/config"
	"watchdag/internal/dag"
	"watchdag/internal/engine"
	"watchdag/internal/eventbus"
	"watchdag/internal/exec"
	"watchdag/internal/hashes"
	"watchdag/internal/notify"
	"watchdag/internal/runtime/supervisor"
	"watchdag/internal/schedule"
	"watchdag/internal/watch"
	"watchdag/pkg/logx"
)

const shutdownGrace = 15 * time.Second

// Options come from the command line and override config values.
type Options struct {
	ConfigPath string
	Once       bool
	Task       string
	LogLevel   string
	LogFile    string
}

// App holds everything built from one config load.
type App struct {
	opts  Options
	cfg   *config.File
	tasks []*dag.Task
	graph *dag.Graph

	logs *logx.Service
	log  logx.Logger
	bus  eventbus.Bus
}

// New loads the config, builds the task graph and prepares logging.
// Nothing is started yet.
func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	logCfg := logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.ConsoleLogging(),
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
	if opts.LogLevel != "" {
		logCfg.Level = opts.LogLevel
	}
	if opts.LogFile != "" {
		logCfg.File = logx.FileConfig{Enabled: true, Path: opts.LogFile}
	}
	logs, log := logx.New(logCfg)

	tasks, err := cfg.BuildTasks()
	if err != nil {
		logs.Close()
		return nil, err
	}
	graph, err := dag.Build(tasks)
	if err != nil {
		logs.Close()
		return nil, err
	}
	if opts.Task != "" {
		if _, ok := graph.Task(opts.Task); !ok {
			logs.Close()
			return nil, fmt.Errorf("unknown task %q", opts.Task)
		}
	}

	return &App{
		opts:  opts,
		cfg:   cfg,
		tasks: tasks,
		graph: graph,
		logs:  logs,
		log:   log,
		bus:   eventbus.New(),
	}, nil
}

// PrintPlan writes the resolved graph in execution order without
// running anything.
func (a *App) PrintPlan(w io.Writer) {
	fmt.Fprintf(w, "%d tasks, roots: %s\n\n", a.graph.Len(), strings.Join(a.graph.Roots(), ", "))
	for _, name := range a.graph.Names() {
		t, _ := a.graph.Task(name)
		fmt.Fprintf(w, "%s:\n  cmd: %s\n", name, t.Cmd)
		if len(t.After) > 0 {
			fmt.Fprintf(w, "  after: %s\n", strings.Join(t.After, ", "))
		}
		if len(t.Watch) > 0 {
			fmt.Fprintf(w, "  watch: %s\n", strings.Join(t.Watch, ", "))
		}
		if t.LongLived {
			fmt.Fprintln(w, "  long_lived: true")
		}
		if t.Schedule != "" {
			fmt.Fprintf(w, "  schedule: %s\n", t.Schedule)
		}
	}
}

// Run starts every service, seeds the startup triggers and blocks
// until the engine drains or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	defer a.logs.Close()

	sup := supervisor.New(context.Background(), supervisor.WithLogger(a.log))

	behaviour, err := engine.ParseBehaviour(a.cfg.Config.WhileRunning)
	if err != nil {
		return err
	}
	queue := engine.NewTriggerQueue(behaviour, a.cfg.Config.QueueLength)
	sched := engine.NewScheduler(a.graph, queue, a.log, a.bus)
	eng := engine.NewService(a.graph, sched, a.log, engine.Options{ExitWhenIdle: a.opts.Once})

	runner := exec.NewRunner(sup, eng, a.log)
	eng.SetExecutor(runner)

	tracker, err := a.openTracker()
	if err != nil {
		return err
	}
	defer tracker.Close()

	notifier, err := notify.New(notify.Config{
		Enabled:    a.cfg.Notify.Telegram.Enabled,
		Token:      a.cfg.Notify.Telegram.Token,
		ChatID:     a.cfg.Notify.Telegram.ChatID,
		RatePerSec: a.cfg.Notify.Telegram.RatePerSec,
	}, a.log)
	if err != nil {
		return err
	}

	crons := schedule.New(eng, a.log)
	if !a.opts.Once {
		if err := crons.Register(a.tasks); err != nil {
			return err
		}
	}

	engDone := make(chan struct{})
	sup.Go("engine", func(ctx context.Context) error {
		defer close(engDone)
		return eng.Run(ctx)
	})
	if !a.opts.Once {
		watcher := watch.New(".", a.tasks, tracker, eng, a.log)
		sup.Go("watch", watcher.Run)
		if crons.Entries() > 0 {
			sup.Go("schedule", crons.Run)
		}
	}
	if notifier.Enabled() {
		sup.Go("notify", func(ctx context.Context) error {
			return notifier.Run(ctx, a.bus)
		})
	}

	a.seed(eng)
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	select {
	case <-ctx.Done():
		a.log.Info("shutdown requested")
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
		eng.Submit(engine.ShutdownRequested{})
		select {
		case <-engDone:
		case <-time.After(shutdownGrace):
			a.log.Warn("shutdown grace expired, killing remaining tasks")
		}
	case <-engDone:
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return sup.Stop(stopCtx)
}

// openTracker opens the digest store only when some task wants content
// hashing.
func (a *App) openTracker() (*hashes.Tracker, error) {
	needed := false
	for _, t := range a.tasks {
		if t.UseHash && len(t.Watch) > 0 {
			needed = true
			break
		}
	}
	if !needed || a.opts.Once {
		return nil, nil
	}
	store, err := hashes.Open(hashes.Config{
		Driver: a.cfg.Hashes.Driver,
		Path:   a.cfg.Hashes.Path,
	}, a.log)
	if err != nil {
		return nil, fmt.Errorf("opening hash store: %w", err)
	}
	return hashes.NewTracker(store, a.log), nil
}

// seed queues the startup triggers: the named task when -task is
// given, otherwise every root of the graph.
func (a *App) seed(eng *engine.Service) {
	if a.opts.Task != "" {
		eng.Submit(engine.TaskTriggered{Task: a.opts.Task, Reason: engine.ReasonStartup})
		return
	}
	for _, root := range a.graph.Roots() {
		eng.Submit(engine.TaskTriggered{Task: root, Reason: engine.ReasonStartup})
	}
}

package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"watchdag/internal/dag"
	"watchdag/internal/engine"
	"watchdag/internal/hashes"
	"watchdag/pkg/logx"
)

// debounceWindow suppresses the event bursts editors produce for a
// single save. Real coalescing happens in the engine; this only cuts
// per-save noise before hashing.
const debounceWindow = 100 * time.Millisecond

// EventSink receives triggers derived from fs events. Satisfied by
// engine.Service.
type EventSink interface {
	Submit(ev engine.Event) bool
}

type profile struct {
	task    *dag.Task
	matcher *Matcher
}

// Service owns the recursive watcher for one project root.
type Service struct {
	log      logx.Logger
	root     string
	profiles []profile
	tracker  *hashes.Tracker
	sink     EventSink

	recent map[string]time.Time
}

// New builds a watcher service over root. Tasks without watch patterns
// are skipped; if none remain the service is still valid and Run just
// waits for cancellation.
func New(root string, tasks []*dag.Task, tracker *hashes.Tracker, sink EventSink, log logx.Logger) *Service {
	s := &Service{
		log:     log.With(logx.String("component", "watch")),
		root:    root,
		tracker: tracker,
		sink:    sink,
		recent:  make(map[string]time.Time),
	}
	for _, t := range tasks {
		if len(t.Watch) == 0 {
			continue
		}
		s.profiles = append(s.profiles, profile{
			task:    t,
			matcher: NewMatcher(t.Watch, t.Exclude),
		})
	}
	return s
}

// Watched returns the number of tasks with active watch profiles.
func (s *Service) Watched() int { return len(s.profiles) }

// Run watches until ctx is cancelled. Meant to be started under the
// supervisor.
func (s *Service) Run(ctx context.Context) error {
	if len(s.profiles) == 0 {
		<-ctx.Done()
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := s.addTree(w, s.root); err != nil {
		return err
	}
	s.log.Info("watching", logx.String("root", s.root), logx.Int("tasks", len(s.profiles)))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			s.handle(ctx, w, ev)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("watcher error", logx.Err(err))
		}
	}
}

// addTree registers dir and every subdirectory. Hidden directories and
// common dependency trees are skipped; new directories appearing later
// are picked up from create events.
func (s *Service) addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			s.log.Debug("walk error", logx.String("path", p), logx.Err(err))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.Add(p); err != nil {
			s.log.Warn("watch add failed", logx.String("path", p), logx.Err(err))
		}
		return nil
	})
}

func skipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	switch name {
	case "node_modules", "target", "vendor":
		return true
	default:
		return false
	}
}

func (s *Service) handle(ctx context.Context, w *fsnotify.Watcher, ev fsnotify.Event) {
	if ev.Op&fsnotify.Create != 0 {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if !skipDir(filepath.Base(ev.Name)) {
				if err := s.addTree(w, ev.Name); err != nil {
					s.log.Warn("watch add failed", logx.String("path", ev.Name), logx.Err(err))
				}
			}
			return
		}
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	rel, err := filepath.Rel(s.root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	// One digest per event regardless of how many tasks match.
	hashChecked, hashChanged := false, false
	for _, p := range s.profiles {
		if !p.matcher.Match(rel) {
			continue
		}
		if s.debounced(p.task.Name, rel) {
			continue
		}
		if p.task.UseHash {
			if !hashChecked {
				hashChanged = s.tracker.Changed(ctx, ev.Name)
				hashChecked = true
			}
			if !hashChanged {
				s.log.Debug("content unchanged",
					logx.String("task", p.task.Name), logx.String("path", rel))
				continue
			}
		}
		s.log.Debug("change triggers task",
			logx.String("task", p.task.Name),
			logx.String("path", rel),
			logx.String("op", ev.Op.String()))
		s.sink.Submit(engine.TaskTriggered{Task: p.task.Name, Reason: engine.ReasonFileChange})
	}
}

// debounced reports whether the same task/path pair fired within the
// debounce window.
func (s *Service) debounced(task, rel string) bool {
	key := task + "\x00" + rel
	now := time.Now()
	if last, ok := s.recent[key]; ok && now.Sub(last) < debounceWindow {
		return true
	}
	s.recent[key] = now
	if len(s.recent) > 4096 {
		cutoff := now.Add(-debounceWindow)
		for k, v := range s.recent {
			if v.Before(cutoff) {
				delete(s.recent, k)
			}
		}
	}
	return false
}

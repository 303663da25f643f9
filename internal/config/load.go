package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"

	yaml "go.yaml.in/yaml/v3"

	"watchdag/internal/dag"
)

// DefaultPath is the config file looked up when -config is not given.
const DefaultPath = "watchdag.yaml"

// Load reads and strictly decodes the YAML config, applies defaults,
// and runs section-level validation. Graph-level validation (unknown
// dependencies, cycles) happens in dag.Build.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes config bytes. Unknown fields are rejected so typos
// surface at startup instead of silently configuring nothing.
func Parse(b []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config is empty")
		}
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	f.applyDefaults()
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) applyDefaults() {
	if f.Config.WhileRunning == "" {
		f.Config.WhileRunning = WhileRunningQueue
	}
	if f.Config.QueueLength == 0 {
		f.Config.QueueLength = 1
	}
	if f.Logging.Level == "" {
		f.Logging.Level = "info"
	}
	if f.Hashes.Driver == "" {
		f.Hashes.Driver = "file"
	}
	if f.Hashes.Path == "" {
		switch f.Hashes.Driver {
		case "sqlite", "sqlite3":
			f.Hashes.Path = ".watchdag/hashes.db"
		default:
			f.Hashes.Path = ".watchdag/hashes"
		}
	}
}

// ConsoleLogging resolves the console flag; default on.
func (f *File) ConsoleLogging() bool {
	return f.Logging.Console == nil || *f.Logging.Console
}

func (f *File) validate() error {
	switch f.Config.WhileRunning {
	case WhileRunningQueue, WhileRunningReplace:
	default:
		return fmt.Errorf("config.while_running: expected %q or %q, got %q",
			WhileRunningQueue, WhileRunningReplace, f.Config.WhileRunning)
	}
	if f.Config.QueueLength < 1 {
		return fmt.Errorf("config.queue_length must be >= 1 (got %d)", f.Config.QueueLength)
	}
	if len(f.Tasks) == 0 {
		return fmt.Errorf("config must define at least one task")
	}
	for name, t := range f.Tasks {
		if t.Cmd == "" {
			return fmt.Errorf("tasks.%s: cmd is required", name)
		}
	}
	return nil
}

// BuildTasks converts task definitions into the static task model:
// effective watch patterns, compiled stdout regexes, parsed durations.
func (f *File) BuildTasks() ([]*dag.Task, error) {
	names := make([]string, 0, len(f.Tasks))
	for name := range f.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	tasks := make([]*dag.Task, 0, len(names))
	for _, name := range names {
		def := f.Tasks[name]

		t := &dag.Task{
			Name:      name,
			Cmd:       def.Cmd,
			After:     append([]string(nil), def.After...),
			LongLived: def.LongLived,
			Rerun:     def.EffectiveRerun(),
			Watch:     effectivePatterns(def.Watch, f.Default.Watch, def.AppendDefaultWatch),
			Exclude:   effectivePatterns(def.Exclude, f.Default.Exclude, def.AppendDefaultExclude),
			UseHash:   def.EffectiveUseHash(f.Default),
			Schedule:  def.Schedule,
		}

		var err error
		if def.ProgressOnStdout != "" {
			t.ProgressPattern, err = regexp.Compile(def.ProgressOnStdout)
			if err != nil {
				return nil, fmt.Errorf("tasks.%s.progress_on_stdout: %w", name, err)
			}
		}
		if def.TriggerOnStdout != "" {
			t.TriggerPattern, err = regexp.Compile(def.TriggerOnStdout)
			if err != nil {
				return nil, fmt.Errorf("tasks.%s.trigger_on_stdout: %w", name, err)
			}
		}
		t.ProgressAfter, err = ParseDurationField("tasks."+name+".progress_on_time", def.ProgressOnTime)
		if err != nil {
			return nil, err
		}

		tasks = append(tasks, t)
	}
	return tasks, nil
}

// effectivePatterns applies the default + append rules: an explicit
// task list replaces the default unless append is set, in which case
// the default is concatenated after it.
func effectivePatterns(taskList, defaultList []string, appendDefault bool) []string {
	switch {
	case taskList != nil && appendDefault:
		out := append([]string(nil), taskList...)
		return append(out, defaultList...)
	case taskList != nil:
		return append([]string(nil), taskList...)
	default:
		return append([]string(nil), defaultList...)
	}
}

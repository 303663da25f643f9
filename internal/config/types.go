package config

// File mirrors the on-disk YAML layout:
//
//	config:
//	  while_running: queue
//	  queue_length: 1
//	default:
//	  watch: ["src/**/*.go"]
//	  exclude: ["**/*_test.go"]
//	  use_hash: true
//	tasks:
//	  build:
//	    cmd: go build ./...
//	  test:
//	    cmd: go test ./...
//	    after: [build]
//
// All sections except tasks are optional and have defaults.
type File struct {
	Config  Section            `yaml:"config"`
	Default DefaultSection     `yaml:"default"`
	Logging LoggingSection     `yaml:"logging"`
	Hashes  HashesSection      `yaml:"hashes"`
	Notify  NotifySection      `yaml:"notify"`
	Tasks   map[string]TaskDef `yaml:"tasks"`
}

// Section controls behaviour when triggers arrive while a run is active.
type Section struct {
	// WhileRunning is "queue" (default: remember triggers and run them
	// after the active run finishes) or "replace" (keep only the
	// latest pending trigger).
	WhileRunning string `yaml:"while_running"`

	// QueueLength bounds the number of pending triggers remembered per
	// task. Default 1.
	QueueLength int `yaml:"queue_length"`
}

// DefaultSection supplies watch/exclude/use_hash defaults for tasks
// that do not override them.
type DefaultSection struct {
	Watch   []string `yaml:"watch"`
	Exclude []string `yaml:"exclude"`
	UseHash *bool    `yaml:"use_hash"`
}

type LoggingSection struct {
	Level   string         `yaml:"level"`
	Console *bool          `yaml:"console"`
	File    LogFileSection `yaml:"file"`
}

type LogFileSection struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// HashesSection configures the content-hash store used by tasks with
// use_hash enabled.
type HashesSection struct {
	// Driver is "file" (default) or "sqlite".
	Driver string `yaml:"driver"`
	// Path to the store; defaults to .watchdag/hashes for the file
	// driver and .watchdag/hashes.db for sqlite.
	Path string `yaml:"path"`
}

type NotifySection struct {
	Telegram TelegramSection `yaml:"telegram"`
}

type TelegramSection struct {
	Enabled    bool   `yaml:"enabled"`
	Token      string `yaml:"token"`
	ChatID     int64  `yaml:"chat_id"`
	RatePerSec int    `yaml:"rate_per_sec"`
}

// TaskDef is one `tasks.<name>` entry.
type TaskDef struct {
	Cmd string `yaml:"cmd"`

	// After waits for every listed task before this one runs.
	After []string `yaml:"after"`

	// Watch/Exclude override the defaults; nil means "use default".
	Watch   []string `yaml:"watch"`
	Exclude []string `yaml:"exclude"`

	// Append flags merge the task lists with the default lists instead
	// of replacing them.
	AppendDefaultWatch   bool `yaml:"append_default_watch"`
	AppendDefaultExclude bool `yaml:"append_default_exclude"`

	UseHash *bool `yaml:"use_hash"`

	LongLived bool  `yaml:"long_lived"`
	Rerun     *bool `yaml:"rerun"`

	ProgressOnStdout string `yaml:"progress_on_stdout"`
	TriggerOnStdout  string `yaml:"trigger_on_stdout"`
	ProgressOnTime   string `yaml:"progress_on_time"`

	// Schedule fires time-based triggers: a cron spec ("*/5 * * * *"),
	// a descriptor ("@hourly"), or an interval ("@every 30s").
	Schedule string `yaml:"schedule"`
}

const (
	WhileRunningQueue   = "queue"
	WhileRunningReplace = "replace"
)

// EffectiveUseHash resolves the per-task flag against the default.
func (d TaskDef) EffectiveUseHash(def DefaultSection) bool {
	if d.UseHash != nil {
		return *d.UseHash
	}
	if def.UseHash != nil {
		return *def.UseHash
	}
	return false
}

// EffectiveRerun resolves the rerun flag; the default is to leave a
// running long-lived process alone and only retrigger downstream.
func (d TaskDef) EffectiveRerun() bool {
	return d.Rerun != nil && *d.Rerun
}

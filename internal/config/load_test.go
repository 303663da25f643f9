package config

import (
	"strings"
	"testing"
	"time"

	"watchdag/internal/dag"
)

const sampleConfig = `
config:
  while_running: queue
default:
  watch: ["src/**/*.go"]
  exclude: ["**/*_test.go"]
  use_hash: true
tasks:
  build:
    cmd: go build ./...
  test:
    cmd: go test ./...
    after: [build]
    watch: ["testdata/**"]
    append_default_watch: true
  serve:
    cmd: ./bin/serve
    after: [build]
    long_lived: true
    rerun: true
    progress_on_stdout: "listening on"
    progress_on_time: 30s
    use_hash: false
  nightly:
    cmd: ./scripts/report.sh
    schedule: "@every 24h"
`

func TestParseSampleConfig(t *testing.T) {
	f, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if f.Config.WhileRunning != WhileRunningQueue {
		t.Fatalf("while_running = %q", f.Config.WhileRunning)
	}
	if f.Config.QueueLength != 1 {
		t.Fatalf("queue_length default = %d, want 1", f.Config.QueueLength)
	}
	if f.Logging.Level != "info" {
		t.Fatalf("logging level default = %q, want info", f.Logging.Level)
	}
	if f.Hashes.Driver != "file" || f.Hashes.Path != ".watchdag/hashes" {
		t.Fatalf("hashes defaults = %q %q", f.Hashes.Driver, f.Hashes.Path)
	}

	tasks, err := f.BuildTasks()
	if err != nil {
		t.Fatalf("BuildTasks: %v", err)
	}
	byName := map[string]bool{}
	for _, task := range tasks {
		byName[task.Name] = true
	}
	for _, want := range []string{"build", "test", "serve", "nightly"} {
		if !byName[want] {
			t.Fatalf("missing task %s in %v", want, tasks)
		}
	}
}

func TestBuildTasksResolvesEffectiveSettings(t *testing.T) {
	f, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	tasks, err := f.BuildTasks()
	if err != nil {
		t.Fatalf("BuildTasks: %v", err)
	}
	byName := map[string]*dag.Task{}
	for _, task := range tasks {
		byName[task.Name] = task
	}

	build := byName["build"]
	if len(build.Watch) != 1 || build.Watch[0] != "src/**/*.go" {
		t.Fatalf("build watch = %v, want default", build.Watch)
	}
	if !build.UseHash {
		t.Fatalf("build should inherit use_hash from default")
	}

	test := byName["test"]
	if len(test.Watch) != 2 || test.Watch[0] != "testdata/**" || test.Watch[1] != "src/**/*.go" {
		t.Fatalf("test watch = %v, want own list plus appended default", test.Watch)
	}

	serve := byName["serve"]
	if serve.UseHash {
		t.Fatalf("serve overrides use_hash to false")
	}
	if !serve.LongLived || !serve.Rerun {
		t.Fatalf("serve flags = %+v", serve)
	}
	if serve.ProgressPattern == nil || !serve.ProgressPattern.MatchString("listening on :8080") {
		t.Fatalf("serve progress pattern not compiled")
	}
	if serve.ProgressAfter != 30*time.Second {
		t.Fatalf("serve progress_on_time = %v", serve.ProgressAfter)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("tasks:\n  a:\n    cmd: true\n    comand: oops\n"))
	if err == nil {
		t.Fatalf("typo in task field should be rejected")
	}
}

func TestParseRejectsMissingCmd(t *testing.T) {
	_, err := Parse([]byte("tasks:\n  a:\n    after: []\n"))
	if err == nil || !strings.Contains(err.Error(), "cmd is required") {
		t.Fatalf("err = %v, want cmd is required", err)
	}
}

func TestParseRejectsBadWhileRunning(t *testing.T) {
	_, err := Parse([]byte("config:\n  while_running: latest\ntasks:\n  a:\n    cmd: true\n"))
	if err == nil {
		t.Fatalf("bad while_running should be rejected")
	}
}

func TestParseRejectsBadRegex(t *testing.T) {
	f, err := Parse([]byte("tasks:\n  a:\n    cmd: true\n    progress_on_stdout: '['\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := f.BuildTasks(); err == nil {
		t.Fatalf("invalid regex should fail task building")
	}
}

func TestParseDurationField(t *testing.T) {
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: %v %v", d, err)
	}
	if d, err := ParseDurationField("x", "1m30s"); err != nil || d != 90*time.Second {
		t.Fatalf("1m30s: %v %v", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatalf("negative duration should error")
	}
	if _, err := ParseDurationField("x", "soon"); err == nil {
		t.Fatalf("garbage duration should error")
	}
}

func TestParseEmptyConfig(t *testing.T) {
	if _, err := Parse(nil); err == nil {
		t.Fatalf("empty config should be rejected")
	}
}

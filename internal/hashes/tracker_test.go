package hashes

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"watchdag/pkg/logx"
)

func openFileStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "hashes")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return st
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hashes")

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()

	if _, ok, err := st.Get(ctx, "src/main.go"); err != nil || ok {
		t.Fatalf("empty store Get = %v %v", ok, err)
	}
	if err := st.Put(ctx, "src/main.go", "abc"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := st.Put(ctx, "with space/file.go", "def"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen and read back.
	st, err = Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()

	d, ok, err := st.Get(ctx, "src/main.go")
	if err != nil || !ok || d != "abc" {
		t.Fatalf("Get = %q %v %v", d, ok, err)
	}
	d, ok, err = st.Get(ctx, "with space/file.go")
	if err != nil || !ok || d != "def" {
		t.Fatalf("Get path with space = %q %v %v", d, ok, err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "redis", Path: "x"}, logx.Nop()); err == nil {
		t.Fatalf("unknown driver should error")
	}
}

func TestOpenNoneDriver(t *testing.T) {
	st, err := Open(Config{Driver: "none"}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("none driver = %v %v, want nil nil", st, err)
	}
}

func TestTrackerDetectsContentChanges(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "input.txt")
	if err := os.WriteFile(file, []byte("one"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	tr := NewTracker(openFileStore(t), logx.Nop())
	defer tr.Close()
	ctx := context.Background()

	if !tr.Changed(ctx, file) {
		t.Fatalf("first sighting counts as a change")
	}
	if tr.Changed(ctx, file) {
		t.Fatalf("unchanged content must not count as a change")
	}

	if err := os.WriteFile(file, []byte("two"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if !tr.Changed(ctx, file) {
		t.Fatalf("rewritten content is a change")
	}
	if tr.Changed(ctx, file) {
		t.Fatalf("second sighting of same content is not a change")
	}
}

func TestTrackerTreatsRemovalAsChange(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "input.txt")
	if err := os.WriteFile(file, []byte("one"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	tr := NewTracker(openFileStore(t), logx.Nop())
	defer tr.Close()
	ctx := context.Background()

	tr.Changed(ctx, file)
	if err := os.Remove(file); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !tr.Changed(ctx, file) {
		t.Fatalf("removal is a change")
	}
	if tr.Changed(ctx, file) {
		t.Fatalf("still-missing file is not a repeated change")
	}

	// Re-create with the original bytes: still a change relative to
	// the removal marker.
	if err := os.WriteFile(file, []byte("one"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if !tr.Changed(ctx, file) {
		t.Fatalf("re-created file is a change after removal")
	}
}

func TestNilTrackerAlwaysChanges(t *testing.T) {
	var tr *Tracker
	if !tr.Changed(context.Background(), "whatever") {
		t.Fatalf("disabled tracker must never suppress triggers")
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hashes.db")
	st, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()
	ctx := context.Background()

	if err := st.Put(ctx, "a.go", "111"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := st.Put(ctx, "a.go", "222"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	d, ok, err := st.Get(ctx, "a.go")
	if err != nil || !ok || d != "222" {
		t.Fatalf("Get = %q %v %v", d, ok, err)
	}
	if _, ok, _ := st.Get(ctx, "missing.go"); ok {
		t.Fatalf("missing key should not be found")
	}
}

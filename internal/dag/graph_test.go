package dag

import (
	"errors"
	"sort"
	"strings"
	"testing"
)

func mk(name string, after ...string) *Task {
	return &Task{Name: name, Cmd: "true", After: after}
}

func TestBuildTopologicalOrder(t *testing.T) {
	g, err := Build([]*Task{
		mk("deploy", "test"),
		mk("test", "build"),
		mk("build"),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	pos := map[string]int{}
	for i, name := range g.Names() {
		pos[name] = i
	}
	if pos["build"] > pos["test"] || pos["test"] > pos["deploy"] {
		t.Fatalf("order %v does not respect dependencies", g.Names())
	}
}

func TestBuildRejectsUnknownDependency(t *testing.T) {
	_, err := Build([]*Task{mk("a", "nope")})
	var ue *UnknownTaskError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want UnknownTaskError", err)
	}
	if ue.Task != "a" || ue.Dependency != "nope" {
		t.Fatalf("got %+v", ue)
	}
}

func TestBuildRejectsCycle(t *testing.T) {
	_, err := Build([]*Task{
		mk("a", "c"),
		mk("b", "a"),
		mk("c", "b"),
	})
	var ce *CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want CycleError", err)
	}
	if !strings.Contains(ce.Error(), "->") {
		t.Fatalf("cycle error should name the path, got %q", ce.Error())
	}
	if len(ce.Path) < 2 || ce.Path[0] != ce.Path[len(ce.Path)-1] {
		t.Fatalf("path %v should start and end at the same task", ce.Path)
	}
}

func TestBuildRejectsSelfDependency(t *testing.T) {
	_, err := Build([]*Task{mk("a", "a")})
	var ce *CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want CycleError", err)
	}
}

func TestBuildRejectsDuplicateNames(t *testing.T) {
	if _, err := Build([]*Task{mk("a"), mk("a")}); err == nil {
		t.Fatalf("duplicate names should be rejected")
	}
}

func TestDownwardClosure(t *testing.T) {
	g, err := Build([]*Task{
		mk("a"),
		mk("b", "a"),
		mk("c", "a"),
		mk("d", "b", "c"),
		mk("x"),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	got := g.DownwardClosure("a")
	want := []string{"a", "b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("closure = %v, want %v", got, want)
	}
	for _, name := range want {
		if _, ok := got[name]; !ok {
			t.Fatalf("closure missing %s", name)
		}
	}
	if _, ok := got["x"]; ok {
		t.Fatalf("independent task must stay outside the closure")
	}

	leaf := g.DownwardClosure("d")
	if len(leaf) != 1 {
		t.Fatalf("leaf closure = %v, want only d", leaf)
	}
}

func TestRootsAndDependents(t *testing.T) {
	g, err := Build([]*Task{
		mk("a"),
		mk("b", "a"),
		mk("c", "a"),
		mk("x"),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	roots := g.Roots()
	sort.Strings(roots)
	if len(roots) != 2 || roots[0] != "a" || roots[1] != "x" {
		t.Fatalf("roots = %v, want [a x]", roots)
	}

	deps := g.DependentsOf("a")
	if len(deps) != 2 || deps[0] != "b" || deps[1] != "c" {
		t.Fatalf("dependents = %v, want [b c]", deps)
	}
	if got := g.DependentsOf("b"); len(got) != 0 {
		t.Fatalf("dependents of leaf = %v, want none", got)
	}
}

package watch

import "testing"

func TestMatcherDoubleStar(t *testing.T) {
	m := NewMatcher([]string{"src/**/*.go"}, nil)

	cases := []struct {
		path string
		want bool
	}{
		{"src/main.go", true},
		{"src/a/b/c/handler.go", true},
		{"src/main.rs", false},
		{"lib/src/main.go", false},
		{"main.go", false},
	}
	for _, c := range cases {
		if got := m.Match(c.path); got != c.want {
			t.Fatalf("Match(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestMatcherBareNameMatchesAnyDepth(t *testing.T) {
	m := NewMatcher([]string{"*.lock"}, nil)

	if !m.Match("Cargo.lock") {
		t.Fatalf("bare pattern should match at the root")
	}
	if !m.Match("deep/nested/yarn.lock") {
		t.Fatalf("bare pattern should match at any depth")
	}
	if m.Match("deep/nested/lockfile") {
		t.Fatalf("non-matching name")
	}
}

func TestMatcherExcludeWins(t *testing.T) {
	m := NewMatcher([]string{"**/*.go"}, []string{"**/*_test.go", "vendor/**"})

	if !m.Match("pkg/x.go") {
		t.Fatalf("plain source should match")
	}
	if m.Match("pkg/x_test.go") {
		t.Fatalf("exclude must win over include")
	}
	if m.Match("vendor/lib/lib.go") {
		t.Fatalf("vendored file must be excluded")
	}
}

func TestMatcherEmptyIncludesMatchEverything(t *testing.T) {
	m := NewMatcher(nil, []string{".git/**"})

	if !m.Match("anything/at/all.txt") {
		t.Fatalf("empty include set should match everything")
	}
	if m.Match(".git/HEAD") {
		t.Fatalf("exclude still applies")
	}
}

func TestMatcherDoubleStarCrossesZeroSegments(t *testing.T) {
	m := NewMatcher([]string{"a/**/b.txt"}, nil)

	if !m.Match("a/b.txt") {
		t.Fatalf("** should match zero segments")
	}
	if !m.Match("a/x/y/b.txt") {
		t.Fatalf("** should match multiple segments")
	}
	if m.Match("a/x/y/c.txt") {
		t.Fatalf("suffix still has to match")
	}
}

func TestMatcherTrailingDoubleStar(t *testing.T) {
	m := NewMatcher([]string{"build/**"}, nil)

	if !m.Match("build/out/bin") {
		t.Fatalf("trailing ** should match the whole subtree")
	}
	if m.Match("builds/out/bin") {
		t.Fatalf("prefix segment must match exactly")
	}
}

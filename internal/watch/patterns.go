package watch

import (
	"path"
	"path/filepath"
	"strings"
)

// Matcher decides whether a slash-separated relative path belongs to a
// task's watch set. Patterns use glob syntax with ** crossing
// directory separators:
//
//   - *  matches any run of non-separator characters
//   - ** matches any number of whole path segments, including none
//   - ?  matches one non-separator character
//   - [abc] matches a character class
//
// A pattern without a separator (like "*.lock") matches the base name
// at any depth. Excludes win over includes. A Matcher is safe for
// concurrent use after construction.
type Matcher struct {
	includes []string
	excludes []string
}

func NewMatcher(includes, excludes []string) *Matcher {
	return &Matcher{includes: includes, excludes: excludes}
}

// Match reports whether rel is included: not hit by any exclude, and
// hit by at least one include (an empty include set includes all).
func (m *Matcher) Match(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, p := range m.excludes {
		if matchGlob(p, rel) {
			return false
		}
	}
	if len(m.includes) == 0 {
		return true
	}
	for _, p := range m.includes {
		if matchGlob(p, rel) {
			return true
		}
	}
	return false
}

func matchGlob(pattern, rel string) bool {
	if !strings.Contains(pattern, "/") && !strings.Contains(pattern, "**") {
		ok, _ := path.Match(pattern, path.Base(rel))
		return ok
	}
	return matchSegments(strings.Split(pattern, "/"), strings.Split(rel, "/"))
}

// matchSegments matches pattern segments against path segments, with
// "**" consuming zero or more whole segments.
func matchSegments(pat, segs []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			if len(pat) == 1 {
				return true
			}
			for i := 0; i <= len(segs); i++ {
				if matchSegments(pat[1:], segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		if ok, _ := path.Match(pat[0], segs[0]); !ok {
			return false
		}
		pat = pat[1:]
		segs = segs[1:]
	}
	return len(segs) == 0
}

package dag

import (
	"fmt"
	"strings"
)

// CycleError reports a dependency cycle found at build time. Path holds
// the tasks forming the cycle, first task repeated at the end.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return "dependency cycle detected"
	}
	return "dependency cycle detected: " + strings.Join(e.Path, " -> ")
}

// UnknownTaskError reports an `after` reference to a task that does not
// exist.
type UnknownTaskError struct {
	Task       string
	Dependency string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("task %q has unknown dependency %q", e.Task, e.Dependency)
}

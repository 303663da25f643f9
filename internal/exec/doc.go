// Package exec turns dispatch commands into shell processes and feeds
// their lifecycle back to the engine as events.
//
// Each task command runs as `sh -c` under a supervised goroutine.
// Stdout is scanned line by line in the waiting goroutine itself, so
// every progress and trigger match is submitted before the process's
// completion event. Stderr is drained separately and surfaced in the
// debug log.
package exec

// Package engine schedules dependency-ordered task runs.
//
// The core is a pure state machine (Scheduler.Step): one inbound event,
// a list of outbound commands, no goroutines, no process handling. The
// surrounding Service serializes events from all producers onto a
// single loop and forwards commands to the executor, so the scheduler
// itself never needs locks.
//
// A run covers the downward closure of its trigger roots. Triggers for
// tasks outside an active run's closure extend that run instead of
// spawning a second one, which keeps shared dependents at one execution
// per wave. Triggers for tasks that already started wait in a bounded
// per-task queue and seed the next run when the current one closes.
package engine

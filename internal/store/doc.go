// Package store provides SQLite-backed storage for scenario runs and their
// step traces.
//
// A run is one execution of a scenario; each step of the run records the
// operation, the write mode it ran under, its outcome and a canonical JSON
// snapshot of what it produced.
//
// # Critical Patterns
//
// Logical ordering: steps are ordered by their seq (the harness step clock),
// never by wall time. Queries use ORDER BY seq ASC, id ASC COLLATE BINARY so
// results are identical across replays.
//
// Content-addressed steps: step ids come from canon.StepID, so writing the
// same step twice is a no-op (ON CONFLICT(id) DO NOTHING).
//
// Reruns: BeginRun with an existing run id clears that run's steps, which
// lets fixed run ids be reused for deterministic scenarios.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package store

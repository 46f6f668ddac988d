// Package async holds the scheduling primitives used to defer work to a
// later turn: a Scheduler abstraction with goroutine and manual
// implementations, and a Coalescer that folds many triggers into one run.
package async

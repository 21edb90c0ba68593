// Package services wires the triad subsystems together and exposes them
// through a registry consumed by the HTTP layer and the daemon.
//
// The WorkflowService owns the in-flight workflow index: each started
// workflow gets its own orchestrator instance, satisfying the
// one-orchestrator-per-workflow concurrency rule, and snapshots for
// readers come from the event bus so observers never race the
// executing goroutine.
package services

// Package orchestrator drives the fixed three-phase pipeline: planner,
// verifier, implementer. One orchestrator instance owns one workflow at
// a time; phases run strictly in order, each seeded with the previous
// phase's raw output, and a phase failure stops the pipeline without
// discarding what earlier phases produced.
//
// The planner's model is health-checked before any task is created so a
// dead endpoint never enters the pipeline. Action-level failures inside
// a phase never fail the workflow; only a failed model call or a
// configuration error does.
package orchestrator

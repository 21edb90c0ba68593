// Package workflow defines the domain model for triad's three-phase agent
// pipeline: workflows, their phase tasks, the actions extracted from model
// output, and the results of executing those actions.
//
// # Lifecycle
//
// A Workflow is one end-to-end run of the fixed planner → verifier →
// implementer sequence, triggered by a single user request. Each phase is
// recorded as exactly one Task appended to the workflow; each task holds
// the raw model output (Thinking), the ordered Actions extracted from it,
// and the Results of executing them. Workflows, tasks, and actions share
// one status lifecycle:
//
//	pending → in_progress → completed | failed
//
// Transitions never regress and terminal statuses never change; SetStatus
// silently ignores anything else. A workflow is completed iff its
// implementer task completed, and failed as soon as any phase fails.
//
// # Registries
//
// ModelRegistry and AgentRegistry resolve the configured models and agents
// by id, and AgentRegistry resolves the single enabled agent for a role.
// Registries are instance-owned and built from caller-supplied
// configuration; there is no process-wide state.
package workflow

package events

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/triad/internal/logging"
	"github.com/fyrsmithlabs/triad/internal/workflow"
)

// WorkflowEvents publishes workflow lifecycle events as JSON snapshots.
//
// Subjects:
//
//	workflow.{id}.started
//	workflow.{id}.phase.{role}
//	workflow.{id}.completed
//	workflow.{id}.failed
//	workflow.{id}.task.{taskID}.started|completed|failed
//	workflow.{id}.action.{actionID}.executed
//
// Publishing is best effort: failures are logged and never reach workflow
// state. A nil *WorkflowEvents is valid and publishes nothing.
type WorkflowEvents struct {
	bus Bus
	log *logging.Logger
}

// NewWorkflowEvents creates the typed publisher on top of bus.
func NewWorkflowEvents(bus Bus, log *logging.Logger) *WorkflowEvents {
	return &WorkflowEvents{bus: bus, log: log.Named("events")}
}

func (e *WorkflowEvents) WorkflowStarted(ctx context.Context, w *workflow.Workflow) {
	e.publish(ctx, fmt.Sprintf("workflow.%s.started", w.ID), w)
}

func (e *WorkflowEvents) PhaseStarted(ctx context.Context, w *workflow.Workflow, role workflow.Role) {
	e.publish(ctx, fmt.Sprintf("workflow.%s.phase.%s", w.ID, role), w)
}

func (e *WorkflowEvents) WorkflowCompleted(ctx context.Context, w *workflow.Workflow) {
	e.publish(ctx, fmt.Sprintf("workflow.%s.completed", w.ID), w)
}

func (e *WorkflowEvents) WorkflowFailed(ctx context.Context, w *workflow.Workflow) {
	e.publish(ctx, fmt.Sprintf("workflow.%s.failed", w.ID), w)
}

func (e *WorkflowEvents) TaskStarted(ctx context.Context, workflowID string, t *workflow.Task) {
	e.publish(ctx, fmt.Sprintf("workflow.%s.task.%s.started", workflowID, t.ID), t)
}

func (e *WorkflowEvents) TaskCompleted(ctx context.Context, workflowID string, t *workflow.Task) {
	e.publish(ctx, fmt.Sprintf("workflow.%s.task.%s.completed", workflowID, t.ID), t)
}

func (e *WorkflowEvents) TaskFailed(ctx context.Context, workflowID string, t *workflow.Task) {
	e.publish(ctx, fmt.Sprintf("workflow.%s.task.%s.failed", workflowID, t.ID), t)
}

func (e *WorkflowEvents) ActionExecuted(ctx context.Context, workflowID string, a *workflow.Action) {
	e.publish(ctx, fmt.Sprintf("workflow.%s.action.%s.executed", workflowID, a.ID), a)
}

func (e *WorkflowEvents) publish(ctx context.Context, subject string, payload any) {
	if e == nil || e.bus == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		e.log.Warn(ctx, "failed to encode event payload",
			zap.String("subject", subject),
			zap.Error(err))
		return
	}
	if err := e.bus.Publish(ctx, subject, data); err != nil {
		e.log.Warn(ctx, "failed to publish event",
			zap.String("subject", subject),
			zap.Error(err))
	}
}

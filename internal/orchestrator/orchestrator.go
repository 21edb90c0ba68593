package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/triad/internal/events"
	"github.com/fyrsmithlabs/triad/internal/gateway"
	"github.com/fyrsmithlabs/triad/internal/logging"
	"github.com/fyrsmithlabs/triad/internal/workflow"
)

const tracerName = "github.com/fyrsmithlabs/triad/internal/orchestrator"

// maxSeedExcerpt bounds how much of a phase's raw output is carried
// into the next phase's task description.
const maxSeedExcerpt = 500

// ErrAlreadyExecuting is returned when Execute is called on an
// orchestrator that is already driving a workflow. Each workflow needs
// its own orchestrator instance.
var ErrAlreadyExecuting = errors.New("orchestrator is already executing a workflow")

// TaskRunner drives one phase of a workflow.
type TaskRunner interface {
	RunTask(ctx context.Context, wf *workflow.Workflow, task *workflow.Task, agent *workflow.AgentConfig, model *workflow.ModelConfig) *workflow.Response
}

// GatewayFactory resolves the gateway serving a model configuration.
// The orchestrator uses it only for the pre-flight health check.
type GatewayFactory interface {
	ForModel(cfg *workflow.ModelConfig) (gateway.Gateway, error)
}

// ProgressCallback receives phase transitions as they happen.
type ProgressCallback func(role workflow.Role, status workflow.Status)

// Options wires an Orchestrator to its collaborators. Agents, Models,
// Runner and Gateways are required; Events and Progress degrade
// gracefully when nil.
type Options struct {
	Agents   *workflow.AgentRegistry
	Models   *workflow.ModelRegistry
	Runner   TaskRunner
	Gateways GatewayFactory
	Events   *events.WorkflowEvents
	Progress ProgressCallback
}

// Orchestrator runs one workflow at a time through the fixed
// planner-verifier-implementer sequence.
type Orchestrator struct {
	agents   *workflow.AgentRegistry
	models   *workflow.ModelRegistry
	runner   TaskRunner
	gateways GatewayFactory
	events   *events.WorkflowEvents
	progress ProgressCallback
	tracer   trace.Tracer
	log      *logging.Logger

	executing atomic.Bool
}

// New validates the options and builds an orchestrator.
func New(opts Options, log *logging.Logger) (*Orchestrator, error) {
	if opts.Agents == nil {
		return nil, errors.New("orchestrator: agent registry is required")
	}
	if opts.Models == nil {
		return nil, errors.New("orchestrator: model registry is required")
	}
	if opts.Runner == nil {
		return nil, errors.New("orchestrator: task runner is required")
	}
	if opts.Gateways == nil {
		return nil, errors.New("orchestrator: gateway factory is required")
	}

	return &Orchestrator{
		agents:   opts.Agents,
		models:   opts.Models,
		runner:   opts.Runner,
		gateways: opts.Gateways,
		events:   opts.Events,
		progress: opts.Progress,
		tracer:   otel.Tracer(tracerName),
		log:      log.Named("orchestrator"),
	}, nil
}

// Executing reports whether a workflow is currently running on this
// instance. Observational only; there is no mid-phase interrupt.
func (o *Orchestrator) Executing() bool {
	return o.executing.Load()
}

// Execute drives wf through the three phases. The workflow is mutated
// in place and is terminal when Execute returns; the returned error
// mirrors wf.LastError on failure. A second Execute while one is in
// flight fails fast with ErrAlreadyExecuting, leaving wf untouched.
func (o *Orchestrator) Execute(ctx context.Context, wf *workflow.Workflow) error {
	if !o.executing.CompareAndSwap(false, true) {
		return ErrAlreadyExecuting
	}
	defer o.executing.Store(false)

	ctx, span := o.tracer.Start(ctx, "orchestrator.execute",
		trace.WithAttributes(attribute.String("workflow.id", wf.ID)))
	defer span.End()

	wf.SetStatus(workflow.StatusInProgress)
	o.events.WorkflowStarted(ctx, wf)
	o.log.Info(ctx, "workflow started",
		zap.String("workflow_id", wf.ID),
		zap.String("title", wf.Title))

	// The planner's model is probed before any task exists; a dead
	// endpoint fails the workflow with zero tasks.
	_, plannerModel, err := o.resolve(workflow.RolePlanner)
	if err != nil {
		return o.fail(ctx, span, wf, err)
	}
	gw, err := o.gateways.ForModel(plannerModel)
	if err != nil {
		return o.fail(ctx, span, wf, err)
	}
	if hs := gw.HealthCheck(ctx); !hs.Healthy {
		msg := hs.Error
		if msg == "" {
			msg = "model health check failed"
		}
		return o.fail(ctx, span, wf, errors.New(msg))
	}

	var seed string
	for _, role := range workflow.AllRoles() {
		select {
		case <-ctx.Done():
			return o.fail(ctx, span, wf, ctx.Err())
		default:
		}

		agent, model, err := o.resolve(role)
		if err != nil {
			return o.fail(ctx, span, wf, err)
		}

		task := phaseTask(wf, role, agent, seed)
		wf.AddTask(task)
		o.events.PhaseStarted(ctx, wf, role)
		o.report(role, workflow.StatusInProgress)

		resp := o.runPhase(ctx, wf, task, agent, model)
		if !resp.Success {
			o.report(role, workflow.StatusFailed)
			return o.fail(ctx, span, wf,
				fmt.Errorf("%s phase failed: %s", role, resp.Error))
		}
		o.report(role, workflow.StatusCompleted)
		seed = resp.Content

		if role == workflow.RoleImplementer {
			for _, res := range task.Results {
				wf.AddResult(res)
			}
		}
	}

	wf.SetStatus(workflow.StatusCompleted)
	o.events.WorkflowCompleted(ctx, wf)
	o.log.Info(ctx, "workflow completed",
		zap.String("workflow_id", wf.ID),
		zap.Int("results", len(wf.Results)))
	return nil
}

// runPhase executes one task inside its own child span.
func (o *Orchestrator) runPhase(ctx context.Context, wf *workflow.Workflow, task *workflow.Task, agent *workflow.AgentConfig, model *workflow.ModelConfig) *workflow.Response {
	ctx, span := o.tracer.Start(ctx, "orchestrator.phase",
		trace.WithAttributes(
			attribute.String("workflow.id", wf.ID),
			attribute.String("phase.role", string(task.Role)),
		))
	defer span.End()

	resp := o.runner.RunTask(ctx, wf, task, agent, model)
	if !resp.Success {
		span.RecordError(errors.New(resp.Error))
	}
	return resp
}

// resolve looks up the single enabled agent for role and its model.
func (o *Orchestrator) resolve(role workflow.Role) (*workflow.AgentConfig, *workflow.ModelConfig, error) {
	agent, err := o.agents.EnabledByRole(role)
	if err != nil {
		return nil, nil, err
	}
	model, err := o.models.Get(agent.ModelID)
	if err != nil {
		return nil, nil, fmt.Errorf("agent %q: %w", agent.ID, err)
	}
	return agent, model, nil
}

func (o *Orchestrator) fail(ctx context.Context, span trace.Span, wf *workflow.Workflow, err error) error {
	span.RecordError(err)
	wf.Fail(err)
	o.events.WorkflowFailed(ctx, wf)
	o.log.Error(ctx, "workflow failed",
		zap.String("workflow_id", wf.ID),
		zap.Error(err))
	return err
}

func (o *Orchestrator) report(role workflow.Role, status workflow.Status) {
	if o.progress != nil {
		o.progress(role, status)
	}
}

// phaseTask builds the task for one phase. Verifier and implementer
// descriptions carry a bounded excerpt of the previous phase's raw
// output so each phase builds on the one before it.
func phaseTask(wf *workflow.Workflow, role workflow.Role, agent *workflow.AgentConfig, seed string) *workflow.Task {
	switch role {
	case workflow.RoleVerifier:
		desc := "Review the plan below for gaps, risks, and missing steps:\n\n" +
			excerpt(seed, maxSeedExcerpt)
		return workflow.NewTask(role, agent.ID, "Verify: "+wf.Title, desc)
	case workflow.RoleImplementer:
		desc := "Implement the following request. Emit each file as a " +
			"'FILE: <name>' line followed by a fenced code block.\n\n" +
			"Request:\n" + wf.Description + "\n\n" +
			"Verified plan:\n" + excerpt(seed, maxSeedExcerpt)
		return workflow.NewTask(role, agent.ID, "Implement: "+wf.Title, desc)
	default:
		desc := "Create a step-by-step plan for the following request:\n\n" +
			wf.Description
		return workflow.NewTask(role, agent.ID, "Plan: "+wf.Title, desc)
	}
}

// excerpt cuts s at n characters, appending a marker when cut.
func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... (truncated)"
}

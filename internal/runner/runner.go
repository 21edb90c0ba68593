// Package runner drives one pipeline phase: it assembles the phase
// prompt, calls the model gateway, extracts typed actions from the raw
// output, and executes them sequentially. The model call decides the
// task's fate; individual action failures are recorded as failed
// Results without failing the task, so partial output survives.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/triad/internal/events"
	"github.com/fyrsmithlabs/triad/internal/extraction"
	"github.com/fyrsmithlabs/triad/internal/gateway"
	"github.com/fyrsmithlabs/triad/internal/logging"
	"github.com/fyrsmithlabs/triad/internal/workflow"
	"github.com/fyrsmithlabs/triad/pkg/secrets"
)

const tracerName = "github.com/fyrsmithlabs/triad/internal/runner"

// maxThinkingExcerpt bounds how much of an earlier phase's raw output
// is replayed into later prompts.
const maxThinkingExcerpt = 500

// GatewayFactory resolves the gateway serving a model configuration.
type GatewayFactory interface {
	ForModel(cfg *workflow.ModelConfig) (gateway.Gateway, error)
}

// ActionExecutor dispatches one extracted action.
type ActionExecutor interface {
	Execute(ctx context.Context, action *workflow.Action) (*workflow.Result, error)
}

// ContextBuilder supplies the workspace context block for prompts.
type ContextBuilder interface {
	Build(ctx context.Context) (string, error)
}

// Options wires a Runner to its collaborators. Gateways, Extractor and
// Executor are required; the rest degrade gracefully when nil.
type Options struct {
	Gateways  GatewayFactory
	Extractor extraction.ActionExtractor
	Executor  ActionExecutor
	Context   ContextBuilder
	Events    *events.WorkflowEvents
	Scrubber  *secrets.Scrubber
}

// Runner executes one task per call. Safe for concurrent use across
// workflows; per-task state lives on the task itself.
type Runner struct {
	gateways  GatewayFactory
	extractor extraction.ActionExtractor
	executor  ActionExecutor
	builder   ContextBuilder
	events    *events.WorkflowEvents
	scrubber  *secrets.Scrubber
	tracer    trace.Tracer
	log       *logging.Logger
}

// NewRunner validates the options and builds a runner.
func NewRunner(opts Options, log *logging.Logger) (*Runner, error) {
	if opts.Gateways == nil {
		return nil, errors.New("runner: gateway factory is required")
	}
	if opts.Extractor == nil {
		return nil, errors.New("runner: action extractor is required")
	}
	if opts.Executor == nil {
		return nil, errors.New("runner: action executor is required")
	}

	return &Runner{
		gateways:  opts.Gateways,
		extractor: opts.Extractor,
		executor:  opts.Executor,
		builder:   opts.Context,
		events:    opts.Events,
		scrubber:  opts.Scrubber,
		tracer:    otel.Tracer(tracerName),
		log:       log.Named("runner"),
	}, nil
}

// RunTask drives one phase of the workflow. The returned Response
// reports failure only when the model call itself failed; action-level
// failures stay on the task as failed Results.
func (r *Runner) RunTask(ctx context.Context, wf *workflow.Workflow, task *workflow.Task, agent *workflow.AgentConfig, model *workflow.ModelConfig) *workflow.Response {
	ctx, span := r.tracer.Start(ctx, "runner.run_task",
		trace.WithAttributes(
			attribute.String("workflow.id", wf.ID),
			attribute.String("task.id", task.ID),
			attribute.String("task.role", string(task.Role)),
			attribute.String("model.id", model.ID),
		),
	)
	defer span.End()

	task.SetStatus(workflow.StatusInProgress)
	r.events.TaskStarted(ctx, wf.ID, task)
	r.log.Info(ctx, "task started",
		zap.String("task_id", task.ID),
		zap.String("role", string(task.Role)),
		zap.String("model_id", model.ID))

	prompt := r.buildPrompt(ctx, wf, task)

	gw, err := r.gateways.ForModel(model)
	if err != nil {
		return r.fail(ctx, span, wf, task, fmt.Errorf("resolving gateway: %w", err))
	}

	resp, err := gw.Generate(ctx, &gateway.GenerateRequest{
		Prompt:      prompt,
		System:      agent.SystemPrompt,
		Temperature: model.Temperature,
		MaxTokens:   model.MaxTokens,
	})
	if err != nil {
		return r.fail(ctx, span, wf, task, fmt.Errorf("model call failed: %w", err))
	}

	task.Thinking = resp.Content
	for _, action := range r.extractor.Extract(resp.Content) {
		task.AddAction(action)
	}
	span.SetAttributes(
		attribute.Int("task.actions", len(task.Actions)),
		attribute.Int("model.input_tokens", resp.Usage.InputTokens),
		attribute.Int("model.output_tokens", resp.Usage.OutputTokens),
	)

	// Sequential execution keeps file writes and commands ordered the
	// way the model emitted them.
	for _, action := range task.Actions {
		r.runAction(ctx, wf, task, action)
	}

	task.SetStatus(workflow.StatusCompleted)
	r.events.TaskCompleted(ctx, wf.ID, task)
	r.log.Info(ctx, "task completed",
		zap.String("task_id", task.ID),
		zap.String("role", string(task.Role)),
		zap.Int("actions", len(task.Actions)))

	return &workflow.Response{
		TaskID:  task.ID,
		Role:    task.Role,
		Content: resp.Content,
		Success: true,
	}
}

// runAction executes one action and records its Result on the task.
// Actions that arrive already terminal (the extractor's synthesized
// fallback) are not re-executed.
func (r *Runner) runAction(ctx context.Context, wf *workflow.Workflow, task *workflow.Task, action *workflow.Action) {
	if action.Status.Terminal() {
		return
	}

	action.SetStatus(workflow.StatusInProgress)

	res, err := r.executor.Execute(ctx, action)
	if err != nil {
		res = workflow.NewFailedResult(action.Type, action.Title, err)
	}

	if res.Success {
		action.SetStatus(workflow.StatusCompleted)
		action.Result = res.Description
	} else {
		action.SetStatus(workflow.StatusFailed)
		action.Error = res.Description
		r.log.Warn(ctx, "action failed",
			zap.String("action_id", action.ID),
			zap.String("type", string(action.Type)),
			zap.String("error", res.Description))
	}

	task.AddResult(res)
	r.events.ActionExecuted(ctx, wf.ID, action)
}

func (r *Runner) fail(ctx context.Context, span trace.Span, wf *workflow.Workflow, task *workflow.Task, err error) *workflow.Response {
	span.RecordError(err)
	task.Fail(err)
	r.events.TaskFailed(ctx, wf.ID, task)
	r.log.Error(ctx, "task failed",
		zap.String("task_id", task.ID),
		zap.String("role", string(task.Role)),
		zap.Error(err))

	return &workflow.Response{
		TaskID:  task.ID,
		Role:    task.Role,
		Success: false,
		Error:   err.Error(),
	}
}

// buildPrompt concatenates the workspace context block, the previous
// work summary, and the phase's own description.
func (r *Runner) buildPrompt(ctx context.Context, wf *workflow.Workflow, task *workflow.Task) string {
	var sb strings.Builder

	if r.builder != nil {
		block, err := r.builder.Build(ctx)
		if err != nil {
			r.log.Warn(ctx, "context block unavailable", zap.Error(err))
		} else if block != "" {
			sb.WriteString(block)
			sb.WriteString("\n\n")
		}
	}

	if prev := r.previousWork(ctx, wf); prev != "" {
		sb.WriteString(prev)
		sb.WriteString("\n\n")
	}

	sb.WriteString(task.Description)
	return sb.String()
}

// previousWork summarizes every completed task so later phases build on
// earlier output: title, role, a bounded thinking excerpt, and action
// titles. Model output can echo credentials it saw in context, so the
// block passes through the scrubber.
func (r *Runner) previousWork(ctx context.Context, wf *workflow.Workflow) string {
	var sb strings.Builder
	for _, t := range wf.CompletedTasks() {
		fmt.Fprintf(&sb, "## %s (%s)\n", t.Title, t.Role)
		if t.Thinking != "" {
			sb.WriteString(excerpt(t.Thinking, maxThinkingExcerpt))
			sb.WriteString("\n")
		}
		for _, a := range t.Actions {
			fmt.Fprintf(&sb, "- %s\n", a.Title)
		}
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		return ""
	}

	block := "Previous work:\n\n" + strings.TrimRight(sb.String(), "\n")
	if r.scrubber != nil {
		scrubbed, err := r.scrubber.Scrub("previous_work", block)
		if err != nil {
			r.log.Warn(ctx, "scrubbing previous work failed", zap.Error(err))
		} else {
			block = scrubbed.Content
		}
	}
	return block
}

// excerpt cuts s at n characters, appending a marker when cut.
func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... (truncated)"
}

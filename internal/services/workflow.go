package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/triad/internal/events"
	"github.com/fyrsmithlabs/triad/internal/logging"
	"github.com/fyrsmithlabs/triad/internal/orchestrator"
	"github.com/fyrsmithlabs/triad/internal/workflow"
)

// ErrEmptyRequest is returned when a workflow is started with a blank
// request.
var ErrEmptyRequest = errors.New("workflow request is empty")

// WorkflowOptions wires a WorkflowService to its collaborators. All
// fields except Events are required; Bus doubles as the snapshot feed.
type WorkflowOptions struct {
	Agents   *workflow.AgentRegistry
	Models   *workflow.ModelRegistry
	Runner   orchestrator.TaskRunner
	Gateways orchestrator.GatewayFactory
	Bus      events.Bus
	Events   *events.WorkflowEvents
}

// WorkflowService starts workflows and tracks them in an
// instance-owned index. Each Start spawns a dedicated orchestrator, so
// concurrent workflows never share execution state.
//
// Reads never touch a running workflow directly: the orchestrator
// publishes a JSON snapshot of the workflow on every lifecycle
// transition, and the service keeps the latest decoded snapshot per
// id. Once a workflow is terminal it is immutable and the live value
// replaces the snapshot.
type WorkflowService struct {
	agents   *workflow.AgentRegistry
	models   *workflow.ModelRegistry
	runner   orchestrator.TaskRunner
	gateways orchestrator.GatewayFactory
	bus      events.Bus
	events   *events.WorkflowEvents
	log      *logging.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	sub     events.Subscription
	wg      sync.WaitGroup

	mu        sync.RWMutex
	snapshots map[string]*workflow.Workflow
	order     []string
	closed    bool
}

// NewWorkflowService validates the options, subscribes to workflow
// lifecycle events, and returns a ready service.
func NewWorkflowService(opts WorkflowOptions, log *logging.Logger) (*WorkflowService, error) {
	if opts.Agents == nil || opts.Models == nil {
		return nil, errors.New("workflow service: agent and model registries are required")
	}
	if opts.Runner == nil {
		return nil, errors.New("workflow service: task runner is required")
	}
	if opts.Gateways == nil {
		return nil, errors.New("workflow service: gateway factory is required")
	}
	if opts.Bus == nil {
		return nil, errors.New("workflow service: event bus is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &WorkflowService{
		agents:    opts.Agents,
		models:    opts.Models,
		runner:    opts.Runner,
		gateways:  opts.Gateways,
		bus:       opts.Bus,
		events:    opts.Events,
		log:       log.Named("workflows"),
		baseCtx:   ctx,
		cancel:    cancel,
		snapshots: make(map[string]*workflow.Workflow),
	}

	sub, err := opts.Bus.Subscribe("workflow.>", s.onEvent)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribing to workflow events: %w", err)
	}
	s.sub = sub
	return s, nil
}

// Start creates a workflow for the request and runs it asynchronously
// on a fresh orchestrator. The returned workflow is the initial
// pending snapshot; progress is observed through Get.
func (s *WorkflowService) Start(ctx context.Context, request string) (*workflow.Workflow, error) {
	if strings.TrimSpace(request) == "" {
		return nil, ErrEmptyRequest
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Agents:   s.agents,
		Models:   s.models,
		Runner:   s.runner,
		Gateways: s.gateways,
		Events:   s.events,
	}, s.log)
	if err != nil {
		return nil, err
	}

	wf := workflow.NewWorkflow(request)
	initial := *wf

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.New("workflow service is closed")
	}
	s.snapshots[wf.ID] = &initial
	s.order = append(s.order, wf.ID)
	s.wg.Add(1)
	s.mu.Unlock()

	s.log.Info(ctx, "workflow accepted",
		zap.String("workflow_id", wf.ID),
		zap.String("title", wf.Title))

	go func() {
		defer s.wg.Done()

		// The request context ends with the HTTP request; the workflow
		// runs on the service's lifetime instead.
		if err := orch.Execute(s.baseCtx, wf); err != nil {
			s.log.Warn(context.Background(), "workflow ended with failure",
				zap.String("workflow_id", wf.ID),
				zap.Error(err))
		}

		// Terminal workflows are immutable; the live value is now safe
		// to hand to readers and supersedes any event-fed snapshot.
		s.mu.Lock()
		s.snapshots[wf.ID] = wf
		s.mu.Unlock()
	}()

	return &initial, nil
}

// Get returns the latest snapshot of the workflow. The returned value
// is read-only.
func (s *WorkflowService) Get(id string) (*workflow.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.snapshots[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", workflow.ErrWorkflowNotFound, id)
	}
	return wf, nil
}

// List returns the latest snapshot of every workflow in creation
// order.
func (s *WorkflowService) List() []*workflow.Workflow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*workflow.Workflow, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.snapshots[id])
	}
	return out
}

// Close stops accepting workflows, cancels in-flight ones, and waits
// for their goroutines to finish. The bus itself is not closed; the
// registry owns it.
func (s *WorkflowService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
	}
	s.wg.Wait()
}

// onEvent feeds workflow-level lifecycle events back into the snapshot
// index. Task and action subjects carry other payload types and are
// skipped, as are ids this service never started.
func (s *WorkflowService) onEvent(ctx context.Context, subject string, data []byte) error {
	tokens := strings.Split(subject, ".")
	if len(tokens) < 3 || tokens[0] != "workflow" {
		return nil
	}
	switch tokens[2] {
	case "started", "completed", "failed", "phase":
	default:
		return nil
	}

	var snap workflow.Workflow
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decoding workflow snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, known := s.snapshots[tokens[1]]; !known {
		return nil
	}
	// A terminal snapshot already stored by the runner goroutine must
	// not be replaced by a stale in-flight one.
	if s.snapshots[tokens[1]].Status.Terminal() {
		return nil
	}
	s.snapshots[tokens[1]] = &snap
	return nil
}

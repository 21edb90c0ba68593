package runner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/triad/internal/config"
	"github.com/fyrsmithlabs/triad/internal/events"
	"github.com/fyrsmithlabs/triad/internal/executor"
	"github.com/fyrsmithlabs/triad/internal/extraction"
	"github.com/fyrsmithlabs/triad/internal/gateway"
	"github.com/fyrsmithlabs/triad/internal/logging"
	"github.com/fyrsmithlabs/triad/internal/workflow"
	"github.com/fyrsmithlabs/triad/internal/workspace"
	"github.com/fyrsmithlabs/triad/pkg/secrets"
)

type fakeGateway struct {
	mu      sync.Mutex
	lastReq *gateway.GenerateRequest
	resp    *gateway.GenerateResponse
	err     error
}

func (f *fakeGateway) Generate(_ context.Context, req *gateway.GenerateRequest) (*gateway.GenerateResponse, error) {
	f.mu.Lock()
	f.lastReq = req
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeGateway) HealthCheck(context.Context) *gateway.HealthStatus {
	if f.err != nil {
		return &gateway.HealthStatus{Error: f.err.Error()}
	}
	return &gateway.HealthStatus{Healthy: true}
}

func (f *fakeGateway) request() *gateway.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

type fakeFactory struct {
	gw  gateway.Gateway
	err error
}

func (f *fakeFactory) ForModel(*workflow.ModelConfig) (gateway.Gateway, error) {
	return f.gw, f.err
}

func testAgent() *workflow.AgentConfig {
	return &workflow.AgentConfig{
		ID:           "agent-planner",
		Role:         workflow.RolePlanner,
		SystemPrompt: "You are the planner.",
		ModelID:      "model-test",
		Enabled:      true,
	}
}

func testModel() *workflow.ModelConfig {
	return &workflow.ModelConfig{
		ID:          "model-test",
		Provider:    "anthropic",
		Model:       "test-model",
		APIKey:      config.Secret("sk-ant-test12345678"),
		Temperature: 0.4,
		MaxTokens:   2048,
		Enabled:     true,
	}
}

func modelReply(content string) *gateway.GenerateResponse {
	return &gateway.GenerateResponse{
		Content:    content,
		Model:      "test-model",
		StopReason: "end_turn",
		Usage:      gateway.TokenUsage{InputTokens: 10, OutputTokens: 20},
	}
}

// newTestRunner wires a runner with a fake gateway and real extractor
// and executor over an in-memory workspace.
func newTestRunner(t *testing.T, gw *fakeGateway, opts func(*Options)) (*Runner, *workspace.Store) {
	t.Helper()

	store, err := workspace.NewStore("")
	require.NoError(t, err)

	log := logging.NewTestLogger()
	o := Options{
		Gateways:  &fakeFactory{gw: gw},
		Extractor: extraction.NewMarkerExtractor(nil),
		Executor:  executor.NewExecutor(store, nil, nil, log.Logger),
	}
	if opts != nil {
		opts(&o)
	}

	r, err := NewRunner(o, log.Logger)
	require.NoError(t, err)
	return r, store
}

func TestRunTask_Success(t *testing.T) {
	output := "Here is the server.\n\n" +
		"FILE: server.js\n" +
		"```javascript\n" +
		"const http = require('http')\n" +
		"```\n"
	gw := &fakeGateway{resp: modelReply(output)}
	r, store := newTestRunner(t, gw, nil)

	wf := workflow.NewWorkflow("build a web server")
	task := workflow.NewTask(workflow.RolePlanner, "agent-planner", "Plan", "plan the server")
	wf.AddTask(task)

	resp := r.RunTask(context.Background(), wf, task, testAgent(), testModel())

	require.True(t, resp.Success)
	assert.Equal(t, task.ID, resp.TaskID)
	assert.Equal(t, workflow.RolePlanner, resp.Role)
	assert.Equal(t, output, resp.Content)

	assert.Equal(t, workflow.StatusCompleted, task.Status)
	assert.Equal(t, output, task.Thinking)
	require.Len(t, task.Actions, 1)
	assert.Equal(t, workflow.ActionCreateFile, task.Actions[0].Type)
	assert.Equal(t, workflow.StatusCompleted, task.Actions[0].Status)
	require.Len(t, task.Results, 1)
	assert.True(t, task.Results[0].Success)
	assert.Equal(t, task.ID, task.Results[0].TaskID)

	f, err := store.Get("server.js")
	require.NoError(t, err)
	assert.Equal(t, "const http = require('http')", f.Content)

	req := gw.request()
	require.NotNil(t, req)
	assert.Equal(t, "You are the planner.", req.System)
	assert.InDelta(t, 0.4, req.Temperature, 0.001)
	assert.Equal(t, 2048, req.MaxTokens)
	assert.Contains(t, req.Prompt, "plan the server")
}

func TestRunTask_ModelFailure(t *testing.T) {
	gw := &fakeGateway{err: errors.New("max retries exceeded: server error (500)")}
	r, _ := newTestRunner(t, gw, nil)

	wf := workflow.NewWorkflow("build something")
	task := workflow.NewTask(workflow.RolePlanner, "agent-planner", "Plan", "plan it")
	wf.AddTask(task)

	resp := r.RunTask(context.Background(), wf, task, testAgent(), testModel())

	require.False(t, resp.Success)
	assert.Contains(t, resp.Error, "model call failed")
	assert.Contains(t, resp.Error, "server error (500)")

	assert.Equal(t, workflow.StatusFailed, task.Status)
	assert.Contains(t, task.Error, "model call failed")
	assert.Empty(t, task.Actions)
	assert.Empty(t, task.Thinking)
}

func TestRunTask_ActionFailureDoesNotFailTask(t *testing.T) {
	// The file block succeeds; the marker action resolves to modify_file
	// with no usable path and fails.
	output := "FILE: index.js\n" +
		"```javascript\n" +
		"console.log('hi')\n" +
		"```\n\n" +
		"Action: modify the routing layer\n"
	gw := &fakeGateway{resp: modelReply(output)}
	r, _ := newTestRunner(t, gw, nil)

	wf := workflow.NewWorkflow("patch the app")
	task := workflow.NewTask(workflow.RoleImplementer, "agent-impl", "Implement", "do it")
	wf.AddTask(task)

	resp := r.RunTask(context.Background(), wf, task, testAgent(), testModel())

	require.True(t, resp.Success)
	assert.Equal(t, workflow.StatusCompleted, task.Status)

	require.Len(t, task.Actions, 2)
	assert.Equal(t, workflow.StatusCompleted, task.Actions[0].Status)
	assert.Equal(t, workflow.StatusFailed, task.Actions[1].Status)
	assert.NotEmpty(t, task.Actions[1].Error)

	require.Len(t, task.Results, 2)
	assert.True(t, task.Results[0].Success)
	assert.False(t, task.Results[1].Success)
	assert.Contains(t, task.Results[1].Description, "missing required parameter")
}

func TestRunTask_SynthesizedActionNotReExecuted(t *testing.T) {
	gw := &fakeGateway{resp: modelReply("The request looks reasonable overall.")}
	r, _ := newTestRunner(t, gw, nil)

	wf := workflow.NewWorkflow("assess something")
	task := workflow.NewTask(workflow.RoleVerifier, "agent-verifier", "Verify", "verify it")
	wf.AddTask(task)

	resp := r.RunTask(context.Background(), wf, task, testAgent(), testModel())

	require.True(t, resp.Success)
	require.Len(t, task.Actions, 1)
	assert.Equal(t, workflow.ActionAnalyzeCode, task.Actions[0].Type)
	assert.Equal(t, workflow.StatusCompleted, task.Actions[0].Status)
	assert.Empty(t, task.Results)
}

func TestRunTask_PromptAssembly(t *testing.T) {
	gw := &fakeGateway{resp: modelReply("ok")}
	r, _ := newTestRunner(t, gw, func(o *Options) {
		o.Context = contextBuilderFunc(func(context.Context) (string, error) {
			return "Project Files:\n- package.json (json)", nil
		})
	})

	wf := workflow.NewWorkflow("extend the app")
	planned := workflow.NewTask(workflow.RolePlanner, "agent-planner", "Plan the app", "plan it")
	planned.Thinking = strings.Repeat("plan detail ", 60)
	planned.AddAction(workflow.NewAction(workflow.ActionCreateFile, "Create server.js", "", nil))
	planned.SetStatus(workflow.StatusInProgress)
	planned.SetStatus(workflow.StatusCompleted)
	wf.AddTask(planned)

	task := workflow.NewTask(workflow.RoleVerifier, "agent-verifier", "Verify", "verify the plan")
	wf.AddTask(task)

	resp := r.RunTask(context.Background(), wf, task, testAgent(), testModel())
	require.True(t, resp.Success)

	prompt := gw.request().Prompt
	assert.Contains(t, prompt, "Project Files:\n- package.json (json)")
	assert.Contains(t, prompt, "Previous work:")
	assert.Contains(t, prompt, "## Plan the app (planner)")
	assert.Contains(t, prompt, "... (truncated)")
	assert.Contains(t, prompt, "- Create server.js")
	assert.True(t, strings.HasSuffix(prompt, "verify the plan"))

	// Context block precedes previous work, which precedes the task
	// description.
	ctxIdx := strings.Index(prompt, "Project Files:")
	prevIdx := strings.Index(prompt, "Previous work:")
	descIdx := strings.Index(prompt, "verify the plan")
	assert.Less(t, ctxIdx, prevIdx)
	assert.Less(t, prevIdx, descIdx)
}

func TestRunTask_PendingTasksExcludedFromPreviousWork(t *testing.T) {
	gw := &fakeGateway{resp: modelReply("ok")}
	r, _ := newTestRunner(t, gw, nil)

	wf := workflow.NewWorkflow("extend the app")
	pending := workflow.NewTask(workflow.RolePlanner, "agent-planner", "Unfinished plan", "plan it")
	wf.AddTask(pending)

	task := workflow.NewTask(workflow.RoleVerifier, "agent-verifier", "Verify", "verify the plan")
	wf.AddTask(task)

	r.RunTask(context.Background(), wf, task, testAgent(), testModel())

	prompt := gw.request().Prompt
	assert.NotContains(t, prompt, "Previous work:")
	assert.NotContains(t, prompt, "Unfinished plan")
}

func TestRunTask_PreviousWorkScrubbed(t *testing.T) {
	const leaked = "sk-proj-abc123def456ghi789jkl012mno345pqr678stu901xyz"

	scrubber, err := secrets.NewScrubber(secrets.Options{})
	require.NoError(t, err)

	gw := &fakeGateway{resp: modelReply("ok")}
	r, _ := newTestRunner(t, gw, func(o *Options) {
		o.Scrubber = scrubber
	})

	wf := workflow.NewWorkflow("extend the app")
	planned := workflow.NewTask(workflow.RolePlanner, "agent-planner", "Plan", "plan it")
	planned.Thinking = "use the key " + leaked + " for the API"
	planned.SetStatus(workflow.StatusInProgress)
	planned.SetStatus(workflow.StatusCompleted)
	wf.AddTask(planned)

	task := workflow.NewTask(workflow.RoleVerifier, "agent-verifier", "Verify", "verify the plan")
	wf.AddTask(task)

	r.RunTask(context.Background(), wf, task, testAgent(), testModel())

	prompt := gw.request().Prompt
	assert.NotContains(t, prompt, leaked)
	assert.Contains(t, prompt, "[REDACTED:")
}

func TestRunTask_GatewayResolutionFailure(t *testing.T) {
	store, err := workspace.NewStore("")
	require.NoError(t, err)
	log := logging.NewTestLogger()

	r, err := NewRunner(Options{
		Gateways:  &fakeFactory{err: errors.New(`unknown model provider "mistral"`)},
		Extractor: extraction.NewMarkerExtractor(nil),
		Executor:  executor.NewExecutor(store, nil, nil, log.Logger),
	}, log.Logger)
	require.NoError(t, err)

	wf := workflow.NewWorkflow("build something")
	task := workflow.NewTask(workflow.RolePlanner, "agent-planner", "Plan", "plan it")
	wf.AddTask(task)

	resp := r.RunTask(context.Background(), wf, task, testAgent(), testModel())

	require.False(t, resp.Success)
	assert.Contains(t, resp.Error, "resolving gateway")
	assert.Equal(t, workflow.StatusFailed, task.Status)
}

func TestRunTask_PublishesEvents(t *testing.T) {
	bus := events.NewMemoryBus(logging.NewTestLogger().Logger)
	t.Cleanup(bus.Close)

	var mu sync.Mutex
	var subjects []string
	_, err := bus.Subscribe("workflow.>", func(_ context.Context, subject string, _ []byte) error {
		mu.Lock()
		subjects = append(subjects, subject)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	output := "FILE: a.txt\n```\nhello\n```\n"
	gw := &fakeGateway{resp: modelReply(output)}
	r, _ := newTestRunner(t, gw, func(o *Options) {
		o.Events = events.NewWorkflowEvents(bus, logging.NewTestLogger().Logger)
	})

	wf := workflow.NewWorkflow("emit events")
	task := workflow.NewTask(workflow.RolePlanner, "agent-planner", "Plan", "plan it")
	wf.AddTask(task)

	resp := r.RunTask(context.Background(), wf, task, testAgent(), testModel())
	require.True(t, resp.Success)

	want := []string{
		"workflow." + wf.ID + ".task." + task.ID + ".started",
		"workflow." + wf.ID + ".action." + task.Actions[0].ID + ".executed",
		"workflow." + wf.ID + ".task." + task.ID + ".completed",
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(subjects) == len(want)
	}, 2*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, want, subjects)
}

func TestNewRunner_Validation(t *testing.T) {
	store, err := workspace.NewStore("")
	require.NoError(t, err)
	log := logging.NewTestLogger()

	valid := Options{
		Gateways:  &fakeFactory{gw: &fakeGateway{}},
		Extractor: extraction.NewMarkerExtractor(nil),
		Executor:  executor.NewExecutor(store, nil, nil, log.Logger),
	}

	tests := []struct {
		name   string
		mutate func(*Options)
		want   string
	}{
		{"no gateways", func(o *Options) { o.Gateways = nil }, "gateway factory"},
		{"no extractor", func(o *Options) { o.Extractor = nil }, "action extractor"},
		{"no executor", func(o *Options) { o.Executor = nil }, "action executor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid
			tt.mutate(&o)
			_, err := NewRunner(o, log.Logger)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	r, err := NewRunner(valid, log.Logger)
	require.NoError(t, err)
	assert.NotNil(t, r)
}

// contextBuilderFunc adapts a function to the ContextBuilder interface.
type contextBuilderFunc func(context.Context) (string, error)

func (f contextBuilderFunc) Build(ctx context.Context) (string, error) {
	return f(ctx)
}

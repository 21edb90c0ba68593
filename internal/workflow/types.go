package workflow

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies one of the three fixed pipeline phases.
type Role string

const (
	// RolePlanner breaks the request into a plan.
	RolePlanner Role = "planner"

	// RoleVerifier reviews the plan for gaps and risks.
	RoleVerifier Role = "verifier"

	// RoleImplementer produces the files and commands that realize the plan.
	RoleImplementer Role = "implementer"
)

// AllRoles returns the three roles in execution order.
func AllRoles() []Role {
	return []Role{RolePlanner, RoleVerifier, RoleImplementer}
}

// Valid reports whether r is one of the three pipeline roles.
func (r Role) Valid() bool {
	switch r {
	case RolePlanner, RoleVerifier, RoleImplementer:
		return true
	}
	return false
}

// Status tracks the lifecycle of workflows, tasks, and actions.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is completed or failed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// statusRank orders statuses so transitions can never move backwards.
var statusRank = map[Status]int{
	StatusPending:    0,
	StatusInProgress: 1,
	StatusCompleted:  2,
	StatusFailed:     2,
}

// ActionType is the closed set of instructions the executor can dispatch.
type ActionType string

const (
	ActionCreateFile       ActionType = "create_file"
	ActionModifyFile       ActionType = "modify_file"
	ActionDeleteFile       ActionType = "delete_file"
	ActionExecuteCommand   ActionType = "execute_command"
	ActionInstallPackage   ActionType = "install_package"
	ActionUninstallPackage ActionType = "uninstall_package"
	ActionSearchWeb        ActionType = "search_web"
	ActionAnalyzeCode      ActionType = "analyze_code"
)

// Action is one typed, executable instruction extracted from a model's
// free-text response. An action is owned exclusively by the task that
// produced it and is never reused across workflows.
type Action struct {
	ID          string                 `json:"id"`
	Type        ActionType             `json:"type"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
	Status      Status                 `json:"status"`
	Result      string                 `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// NewAction creates a pending action of the given type.
func NewAction(actionType ActionType, title, description string, params map[string]interface{}) *Action {
	return &Action{
		ID:          uuid.New().String(),
		Type:        actionType,
		Title:       title,
		Description: description,
		Parameters:  params,
		Status:      StatusPending,
	}
}

// SetStatus advances the action's status. Transitions never regress and a
// terminal status never changes.
func (a *Action) SetStatus(s Status) {
	if a.Status.Terminal() || statusRank[s] < statusRank[a.Status] {
		return
	}
	a.Status = s
}

// Result records the outcome of executing one action. Results are
// immutable once created; they are appended to the producing task and,
// for the implementer phase, to the workflow's aggregate list.
type Result struct {
	ID          string                 `json:"id"`
	Type        ActionType             `json:"type"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Success     bool                   `json:"success"`
	AgentID     string                 `json:"agent_id"`
	TaskID      string                 `json:"task_id"`
	CreatedAt   time.Time              `json:"created_at"`
}

// NewResult creates a successful result for an executed action.
func NewResult(actionType ActionType, title, description string, data map[string]interface{}) *Result {
	return &Result{
		ID:          uuid.New().String(),
		Type:        actionType,
		Title:       title,
		Description: description,
		Data:        data,
		Success:     true,
		CreatedAt:   time.Now(),
	}
}

// NewFailedResult creates a failed result whose description carries the
// causing error's message.
func NewFailedResult(actionType ActionType, title string, err error) *Result {
	return &Result{
		ID:          uuid.New().String(),
		Type:        actionType,
		Title:       title,
		Description: err.Error(),
		Success:     false,
		CreatedAt:   time.Now(),
	}
}

// Task is the execution record of one phase within a workflow.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	AgentID     string    `json:"agent_id"`
	Role        Role      `json:"role"`
	Thinking    string    `json:"thinking,omitempty"`
	Actions     []*Action `json:"actions"`
	Results     []*Result `json:"results"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewTask creates a pending task for one phase.
func NewTask(role Role, agentID, title, description string) *Task {
	now := time.Now()
	return &Task{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		Status:      StatusPending,
		AgentID:     agentID,
		Role:        role,
		Actions:     []*Action{},
		Results:     []*Result{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// SetStatus advances the task's status and bumps UpdatedAt. Transitions
// never regress and a terminal status never changes.
func (t *Task) SetStatus(s Status) {
	if t.Status.Terminal() || statusRank[s] < statusRank[t.Status] {
		return
	}
	t.Status = s
	t.UpdatedAt = time.Now()
}

// Fail marks the task failed and records the causing error.
func (t *Task) Fail(err error) {
	t.SetStatus(StatusFailed)
	if err != nil {
		t.Error = err.Error()
	}
}

// AddAction appends an extracted action to the task.
func (t *Task) AddAction(a *Action) {
	t.Actions = append(t.Actions, a)
	t.UpdatedAt = time.Now()
}

// AddResult appends an execution result to the task, stamping it with the
// task and agent identity.
func (t *Task) AddResult(r *Result) {
	r.TaskID = t.ID
	r.AgentID = t.AgentID
	t.Results = append(t.Results, r)
	t.UpdatedAt = time.Now()
}

// Workflow is one end-to-end run of the three-phase pipeline.
type Workflow struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Tasks       []*Task   `json:"tasks"`
	Results     []*Result `json:"results"`
	LastError   string    `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// maxTitleLen bounds the display title derived from a request.
const maxTitleLen = 80

// NewWorkflow creates a pending workflow from a user request. The title is
// the request's first line, truncated for display; the description keeps
// the raw request.
func NewWorkflow(request string) *Workflow {
	now := time.Now()
	return &Workflow{
		ID:          uuid.New().String(),
		Title:       titleFromRequest(request),
		Description: request,
		Status:      StatusPending,
		Tasks:       []*Task{},
		Results:     []*Result{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func titleFromRequest(request string) string {
	title := strings.TrimSpace(request)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen-3] + "..."
	}
	return title
}

// SetStatus advances the workflow's status and bumps UpdatedAt.
// Transitions never regress and a terminal status never changes.
func (w *Workflow) SetStatus(s Status) {
	if w.Status.Terminal() || statusRank[s] < statusRank[w.Status] {
		return
	}
	w.Status = s
	w.UpdatedAt = time.Now()
}

// Fail marks the workflow failed and records the causing error.
func (w *Workflow) Fail(err error) {
	w.SetStatus(StatusFailed)
	if err != nil {
		w.LastError = err.Error()
	}
}

// AddTask appends a phase task. The task list is append-only: tasks are
// never removed or reordered once added.
func (w *Workflow) AddTask(t *Task) {
	w.Tasks = append(w.Tasks, t)
	w.UpdatedAt = time.Now()
}

// AddResult appends a result to the workflow's aggregate list.
func (w *Workflow) AddResult(r *Result) {
	w.Results = append(w.Results, r)
	w.UpdatedAt = time.Now()
}

// TaskByRole returns the phase task for the given role, or nil if that
// phase has not been entered.
func (w *Workflow) TaskByRole(role Role) *Task {
	for _, t := range w.Tasks {
		if t.Role == role {
			return t
		}
	}
	return nil
}

// CompletedTasks returns the tasks that have completed, in execution order.
func (w *Workflow) CompletedTasks() []*Task {
	var out []*Task
	for _, t := range w.Tasks {
		if t.Status == StatusCompleted {
			out = append(out, t)
		}
	}
	return out
}

// Response summarizes one task runner invocation for the orchestrator:
// whether the model call itself succeeded, and the raw output used to seed
// the next phase. Action-level failures do not make a response unsuccessful.
type Response struct {
	TaskID  string `json:"task_id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

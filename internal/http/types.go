package http

import "time"

// StartWorkflowRequest is the request body for POST /api/v1/workflows.
type StartWorkflowRequest struct {
	Request string `json:"request"`
}

// StartWorkflowResponse is the response body for POST /api/v1/workflows.
// The workflow runs asynchronously; poll GET /api/v1/workflows/{id} for
// progress.
type StartWorkflowResponse struct {
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
}

// WorkflowSummary is one entry in the workflow listing.
type WorkflowSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	Tasks     int       `json:"tasks"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListWorkflowsResponse is the response body for GET /api/v1/workflows.
type ListWorkflowsResponse struct {
	Workflows []WorkflowSummary `json:"workflows"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

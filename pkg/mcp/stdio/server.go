// Package stdio serves the MCP protocol over stdin/stdout, delegating
// every tool call to the triad HTTP daemon.
//
// Architecture:
//
//	MCP client → stdio (this server) → HTTP client → triad daemon
package stdio

import (
	"context"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server implements MCP stdio transport with HTTP delegation to the
// triad daemon.
type Server struct {
	mcpServer *mcpsdk.Server
	client    *DaemonClient
}

// NewServer creates a stdio MCP server talking to the daemon at
// daemonURL (e.g. "http://localhost:9090").
func NewServer(daemonURL string) (*Server, error) {
	if daemonURL == "" {
		return nil, fmt.Errorf("daemonURL cannot be empty")
	}

	mcpServer := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "triad",
		Version: "1.0.0",
	}, nil)

	s := &Server{
		mcpServer: mcpServer,
		client:    NewDaemonClient(daemonURL),
	}
	s.registerTools()
	return s, nil
}

// Run serves MCP over stdin/stdout until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{}); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "workflow_start",
		Description: "Start a three-phase AI workflow (plan, verify, implement) for a natural-language request. Returns the workflow id; the pipeline runs asynchronously.",
	}, s.handleWorkflowStart)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "workflow_status",
		Description: "Get the current status of a workflow: overall state, per-phase task states, and executed action results.",
	}, s.handleWorkflowStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "status",
		Description: "Get triad daemon health and version.",
	}, s.handleStatus)
}

// WorkflowStartParams defines parameters for the workflow_start tool.
type WorkflowStartParams struct {
	Request string `json:"request" jsonschema:"The natural-language request to run through the pipeline"`
}

// WorkflowStatusParams defines parameters for the workflow_status tool.
type WorkflowStatusParams struct {
	WorkflowID string `json:"workflow_id" jsonschema:"The id returned by workflow_start"`
}

// StatusParams defines parameters for the status tool (none needed).
type StatusParams struct{}

// handleWorkflowStart delegates to POST /api/v1/workflows.
func (s *Server) handleWorkflowStart(ctx context.Context, req *mcpsdk.CallToolRequest, params *WorkflowStartParams) (*mcpsdk.CallToolResult, any, error) {
	if strings.TrimSpace(params.Request) == "" {
		return nil, nil, fmt.Errorf("request cannot be empty")
	}

	var response map[string]interface{}
	err := s.client.Post(ctx, "/api/v1/workflows",
		map[string]interface{}{"request": params.Request}, &response)
	if err != nil {
		return nil, nil, fmt.Errorf("workflow start failed: %w", err)
	}

	workflowID, _ := response["workflow_id"].(string)
	status, _ := response["status"].(string)

	return textResult(fmt.Sprintf(
		"Workflow started\n\nID: %s\nStatus: %s\n\nUse workflow_status with this id to follow progress.",
		workflowID, status)), nil, nil
}

// handleWorkflowStatus delegates to GET /api/v1/workflows/{id}.
func (s *Server) handleWorkflowStatus(ctx context.Context, req *mcpsdk.CallToolRequest, params *WorkflowStatusParams) (*mcpsdk.CallToolResult, any, error) {
	if params.WorkflowID == "" {
		return nil, nil, fmt.Errorf("workflow_id cannot be empty")
	}

	var response map[string]interface{}
	if err := s.client.Get(ctx, "/api/v1/workflows/"+params.WorkflowID, &response); err != nil {
		return nil, nil, fmt.Errorf("workflow status failed: %w", err)
	}

	var sb strings.Builder
	title, _ := response["title"].(string)
	status, _ := response["status"].(string)
	fmt.Fprintf(&sb, "Workflow: %s\nStatus: %s\n", title, status)
	if lastError, ok := response["last_error"].(string); ok && lastError != "" {
		fmt.Fprintf(&sb, "Error: %s\n", lastError)
	}

	if tasks, ok := response["tasks"].([]interface{}); ok && len(tasks) > 0 {
		sb.WriteString("\nPhases:\n")
		for _, t := range tasks {
			task, ok := t.(map[string]interface{})
			if !ok {
				continue
			}
			role, _ := task["role"].(string)
			taskStatus, _ := task["status"].(string)
			actions, _ := task["actions"].([]interface{})
			fmt.Fprintf(&sb, "- %s: %s (%d action(s))\n", role, taskStatus, len(actions))
		}
	}

	if results, ok := response["results"].([]interface{}); ok && len(results) > 0 {
		fmt.Fprintf(&sb, "\nResults: %d\n", len(results))
		for _, r := range results {
			result, ok := r.(map[string]interface{})
			if !ok {
				continue
			}
			resultTitle, _ := result["title"].(string)
			success, _ := result["success"].(bool)
			mark := "ok"
			if !success {
				mark = "failed"
			}
			fmt.Fprintf(&sb, "- %s: %s\n", resultTitle, mark)
		}
	}

	return textResult(sb.String()), nil, nil
}

// handleStatus delegates to GET /health.
func (s *Server) handleStatus(ctx context.Context, req *mcpsdk.CallToolRequest, params *StatusParams) (*mcpsdk.CallToolResult, any, error) {
	var response map[string]interface{}
	if err := s.client.Get(ctx, "/health", &response); err != nil {
		return nil, nil, fmt.Errorf("status check failed: %w", err)
	}

	status, _ := response["status"].(string)
	version, _ := response["version"].(string)

	return textResult(fmt.Sprintf(
		"triad daemon is reachable\n\nStatus: %s\nVersion: %s", status, version)), nil, nil
}

func textResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: text},
		},
	}
}

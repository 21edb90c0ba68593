// Package main implements the triadctl CLI for operations against the
// triadd HTTP server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the triadd HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "triadctl",
	Short: "CLI for the triad workflow daemon",
	Long: `triadctl is a command-line interface for the triadd HTTP server.
It starts workflows, inspects their progress, and checks daemon health.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9090", "triadd server URL")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(healthCmd)
}

// runCmd starts a workflow and follows it to completion
var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Start a workflow and follow it to completion",
	Long: `Start a workflow from a free-text request and poll the daemon until
the pipeline finishes, printing each phase as it completes.

Examples:
  # Run a workflow
  triadctl run "add a healthcheck endpoint to the gateway"

  # Start without waiting
  triadctl run --detach "write a fizzbuzz script"

  # Use a different server
  triadctl run --server http://localhost:8080 "refactor the parser"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

// statusCmd shows one workflow
var statusCmd = &cobra.Command{
	Use:   "status <workflow-id>",
	Short: "Show the status of a workflow",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

// listCmd lists known workflows
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List workflows known to the daemon",
	RunE:  runList,
}

// healthCmd checks daemon health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check triadd server health",
	Long: `Check the health status of the triadd HTTP server.

Examples:
  # Check health
  triadctl health

  # Check health on a different server
  triadctl health --server http://localhost:8080`,
	RunE: runHealth,
}

var detach bool

func init() {
	runCmd.Flags().BoolVar(&detach, "detach", false, "start the workflow without waiting for it to finish")
}

// pollInterval is how often `run` re-fetches the workflow while waiting.
const pollInterval = 2 * time.Second

// StartWorkflowRequest matches internal/http/types.go StartWorkflowRequest
type StartWorkflowRequest struct {
	Request string `json:"request"`
}

// StartWorkflowResponse matches internal/http/types.go StartWorkflowResponse
type StartWorkflowResponse struct {
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
}

// Workflow mirrors the daemon's workflow JSON, trimmed to the fields
// the CLI renders.
type Workflow struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	LastError string `json:"last_error"`
	Tasks     []struct {
		Role    string `json:"role"`
		Status  string `json:"status"`
		Error   string `json:"error"`
		Results []struct {
			Type    string `json:"type"`
			Title   string `json:"title"`
			Success bool   `json:"success"`
		} `json:"results"`
	} `json:"tasks"`
}

// ListWorkflowsResponse matches internal/http/types.go ListWorkflowsResponse
type ListWorkflowsResponse struct {
	Workflows []struct {
		ID        string    `json:"id"`
		Title     string    `json:"title"`
		Status    string    `json:"status"`
		Tasks     int       `json:"tasks"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"workflows"`
}

// HealthResponse matches internal/http/types.go HealthResponse
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// runRun handles the run command
func runRun(cmd *cobra.Command, args []string) error {
	request := strings.Join(args, " ")

	reqJSON, err := json.Marshal(StartWorkflowRequest{Request: request})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/workflows", serverURL)
	httpReq, err := http.NewRequest("POST", url, bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return statusError(resp)
	}

	var startResp StartWorkflowResponse
	if err := json.NewDecoder(resp.Body).Decode(&startResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Workflow started: %s\n", startResp.WorkflowID)
	if detach {
		fmt.Printf("Follow it with: triadctl status %s\n", startResp.WorkflowID)
		return nil
	}

	return followWorkflow(startResp.WorkflowID)
}

// followWorkflow polls until the workflow reaches a terminal status,
// printing each phase transition once.
func followWorkflow(id string) error {
	printed := map[string]string{}

	for {
		wf, err := fetchWorkflow(id)
		if err != nil {
			return err
		}

		for _, task := range wf.Tasks {
			if printed[task.Role] == task.Status {
				continue
			}
			printed[task.Role] = task.Status
			line := fmt.Sprintf("  %-11s %s", task.Role, task.Status)
			if task.Error != "" {
				line += ": " + task.Error
			}
			fmt.Println(line)
		}

		switch wf.Status {
		case "completed":
			fmt.Printf("Workflow completed: %s\n", wf.Title)
			printResults(wf)
			return nil
		case "failed":
			printResults(wf)
			return fmt.Errorf("workflow failed: %s", wf.LastError)
		}

		time.Sleep(pollInterval)
	}
}

// printResults lists the implementer's executed actions.
func printResults(wf *Workflow) {
	for _, task := range wf.Tasks {
		for _, r := range task.Results {
			mark := "ok"
			if !r.Success {
				mark = "FAILED"
			}
			fmt.Printf("  [%s] %s: %s\n", mark, r.Type, r.Title)
		}
	}
}

// runStatus handles the status command
func runStatus(cmd *cobra.Command, args []string) error {
	wf, err := fetchWorkflow(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Workflow: %s\n", wf.ID)
	fmt.Printf("Title:    %s\n", wf.Title)
	fmt.Printf("Status:   %s\n", wf.Status)
	if wf.LastError != "" {
		fmt.Printf("Error:    %s\n", wf.LastError)
	}
	for _, task := range wf.Tasks {
		fmt.Printf("  %-11s %s", task.Role, task.Status)
		if task.Error != "" {
			fmt.Printf(": %s", task.Error)
		}
		fmt.Println()
	}
	printResults(wf)

	return nil
}

// fetchWorkflow retrieves one workflow from the daemon.
func fetchWorkflow(id string) (*Workflow, error) {
	url := fmt.Sprintf("%s/api/v1/workflows/%s", serverURL, id)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var wf Workflow
	if err := json.NewDecoder(resp.Body).Decode(&wf); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &wf, nil
}

// runList handles the list command
func runList(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/api/v1/workflows", serverURL)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	var listResp ListWorkflowsResponse
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(listResp.Workflows) == 0 {
		fmt.Println("No workflows")
		return nil
	}

	fmt.Printf("%-36s  %-11s  %-5s  %s\n", "ID", "STATUS", "TASKS", "TITLE")
	for _, wf := range listResp.Workflows {
		fmt.Printf("%-36s  %-11s  %-5d  %s\n", wf.ID, wf.Status, wf.Tasks, wf.Title)
	}

	return nil
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/health", serverURL)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to %s: %v\n", url, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	var healthResp HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Server Status: %s\n", healthResp.Status)
	if healthResp.Version != "" {
		fmt.Printf("Version:       %s\n", healthResp.Version)
	}
	fmt.Printf("Server URL:    %s\n", serverURL)

	return nil
}

// statusError turns a non-OK HTTP response into an error carrying the body.
func statusError(resp *http.Response) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
	}
	return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

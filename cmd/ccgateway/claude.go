package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Run a development task through claude-code",
	RunE:  runExecute,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a project with claude-code",
	RunE:  runAnalyze,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the claude-code version and task totals",
	RunE:  runStatus,
}

var taskCmd = &cobra.Command{
	Use:   "task [task-id]",
	Short: "Show a task recorded by the gateway",
	Args:  cobra.ExactArgs(1),
	RunE:  runTask,
}

var (
	taskDescription string
	projectPath     string
	taskContext     string
	taskPriority    string
	analysisType    string
)

func init() {
	executeCmd.Flags().StringVar(&taskDescription, "task", "", "Task description (required)")
	executeCmd.Flags().StringVar(&projectPath, "path", "", "Project path relative to the projects root (required)")
	executeCmd.Flags().StringVar(&taskContext, "context", "", "Additional context for the task")
	executeCmd.Flags().StringVar(&taskPriority, "priority", "", "Priority (low, medium, high, critical)")
	executeCmd.MarkFlagRequired("task")
	executeCmd.MarkFlagRequired("path")

	analyzeCmd.Flags().StringVar(&projectPath, "path", "", "Project path relative to the projects root (required)")
	analyzeCmd.Flags().StringVar(&analysisType, "type", "", "Analysis type (structure, health, dependencies, issues)")
	analyzeCmd.MarkFlagRequired("path")
}

func runExecute(cmd *cobra.Command, args []string) error {
	body := map[string]string{
		"task_description": taskDescription,
		"project_path":     projectPath,
	}
	if taskContext != "" {
		body["context"] = taskContext
	}
	if taskPriority != "" {
		body["priority"] = taskPriority
	}

	resp, err := apiPost("/claude-code/execute", body)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			if id, ok := apiErr.body["task_id"].(string); ok {
				fmt.Fprintf(os.Stderr, "Task %s failed\n", id)
			}
		}
		return err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Task:   %s\n", result["task_id"])
	fmt.Printf("Status: %s\n", result["status"])
	fmt.Println("\n--- RESULTS ---")
	fmt.Println(result["results"])
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	body := map[string]string{"project_path": projectPath}
	if analysisType != "" {
		body["analysis_type"] = analysisType
	}

	resp, err := apiPost("/claude-code/analyze", body)
	if err != nil {
		return err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Analysis: %s of %s\n\n", result["analysis_type"], result["project_path"])
	fmt.Println(result["results"])
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/claude-code/status")
	if err != nil {
		return err
	}

	var status struct {
		Status            string `json:"status"`
		ClaudeCodeVersion string `json:"claude_code_version"`
		ServerUptimeMS    int64  `json:"server_uptime_ms"`
		Tasks             struct {
			Total     int `json:"total"`
			Running   int `json:"running"`
			Completed int `json:"completed"`
			Failed    int `json:"failed"`
		} `json:"tasks"`
	}
	if err := json.Unmarshal(resp, &status); err != nil {
		return err
	}

	fmt.Printf("Status:      %s\n", status.Status)
	fmt.Printf("Claude Code: %s\n", status.ClaudeCodeVersion)
	fmt.Printf("Uptime:      %dms\n\n", status.ServerUptimeMS)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TOTAL\tRUNNING\tCOMPLETED\tFAILED")
	fmt.Fprintf(w, "%d\t%d\t%d\t%d\n", status.Tasks.Total, status.Tasks.Running, status.Tasks.Completed, status.Tasks.Failed)
	return w.Flush()
}

func runTask(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/claude-code/task/" + url.PathEscape(args[0]))
	if err != nil {
		return err
	}

	var task map[string]interface{}
	if err := json.Unmarshal(resp, &task); err != nil {
		return err
	}

	fmt.Printf("ID:          %s\n", task["task_id"])
	fmt.Printf("Description: %s\n", task["task_description"])
	fmt.Printf("Project:     %s\n", task["project_path"])
	fmt.Printf("Priority:    %s\n", task["priority"])
	fmt.Printf("Status:      %s\n", task["status"])
	fmt.Printf("Started:     %s\n", task["started_at"])
	if ctx, ok := task["context"].(string); ok && ctx != "" {
		fmt.Printf("Context:     %s\n", ctx)
	}
	if at, ok := task["completed_at"].(string); ok {
		fmt.Printf("Completed:   %s\n", at)
	}
	if at, ok := task["failed_at"].(string); ok {
		fmt.Printf("Failed:      %s\n", at)
	}
	if results, ok := task["results"].(string); ok {
		fmt.Println("\n--- RESULTS ---")
		fmt.Println(results)
	}
	if msg, ok := task["error"].(string); ok {
		fmt.Println("\n--- ERROR ---")
		fmt.Println(msg)
	}
	return nil
}

// --- Helpers ---

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

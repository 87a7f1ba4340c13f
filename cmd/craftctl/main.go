// Package main implements the craftctl CLI for manual operations
// against the craftd HTTP server.
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
	// serverURL is the base URL for the craftd HTTP server
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
	Use:   "craftctl",
	Short: "CLI for craftd HTTP server operations",
	Long: `craftctl is a command-line interface for interacting with the craftd
HTTP server. It provides commands for creating projects, checking
their status and playing sabotage challenges.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8000", "craftd server URL")
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(dojoCmd)
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check craftd server health",
	Long: `Check the health status of the craftd HTTP server.

Examples:
  # Check health
  craftctl health

  # Check health on a different server
  craftctl health --server http://localhost:9000`,
	RunE: runHealth,
}

var (
	createName  string
	createStack []string
)

// createCmd starts a project generation pipeline
var createCmd = &cobra.Command{
	Use:   "create <goal>",
	Short: "Create a project from a goal",
	Long: `Start the generation pipeline for a new project. Returns immediately
with the project id; use 'craftctl status <id>' to follow progress.

Examples:
  # Create a Python project
  craftctl create "a CLI calculator with history"

  # Name it and pick a stack
  craftctl create --name calc --stack python "a CLI calculator"`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

// statusCmd shows a project's current state
var statusCmd = &cobra.Command{
	Use:   "status <project-id>",
	Short: "Show project status and files",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	createCmd.Flags().StringVar(&createName, "name", "", "project name")
	createCmd.Flags().StringSliceVar(&createStack, "stack", nil, "tech stack (e.g. python, javascript)")
}

// CreateProjectRequest matches internal/http CreateProjectRequest.
type CreateProjectRequest struct {
	Name      string   `json:"project_name,omitempty"`
	Goal      string   `json:"goal"`
	TechStack []string `json:"tech_stack,omitempty"`
}

// CreateProjectResponse matches internal/http CreateProjectResponse.
type CreateProjectResponse struct {
	ProjectID string `json:"project_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// ProjectSnapshot is the subset of the project state the CLI renders.
type ProjectSnapshot struct {
	ProjectID string   `json:"project_id"`
	Name      string   `json:"project_name"`
	Goal      string   `json:"goal"`
	Status    string   `json:"status"`
	Files     []string `json:"files"`
	Errors    []string `json:"errors"`
}

// HealthResponse matches internal/http HealthResponse.
type HealthResponse struct {
	Status string `json:"status"`
}

func runHealth(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to %s: %v\n", serverURL, err)
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	var healthResp HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Server Status: %s\n", healthResp.Status)
	fmt.Printf("Server URL: %s\n", serverURL)
	return nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	resp, err := postJSON("/api/projects", CreateProjectRequest{
		Name:      createName,
		Goal:      args[0],
		TechStack: createStack,
	}, 30*time.Second)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	var created CreateProjectResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Project ID: %s\n", created.ProjectID)
	fmt.Printf("Status:     %s\n", created.Status)
	fmt.Printf("\nFollow progress with: craftctl status %s\n", created.ProjectID)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(fmt.Sprintf("%s/api/projects/%s", serverURL, args[0]))
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	var snap ProjectSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Project: %s (%s)\n", snap.Name, snap.ProjectID)
	fmt.Printf("Goal:    %s\n", snap.Goal)
	fmt.Printf("Status:  %s\n", snap.Status)
	if len(snap.Files) > 0 {
		fmt.Printf("Files:\n")
		for _, f := range snap.Files {
			fmt.Printf("  %s\n", f)
		}
	}
	if len(snap.Errors) > 0 {
		fmt.Printf("Errors:\n")
		for _, e := range snap.Errors {
			fmt.Printf("  %s\n", strings.TrimSpace(e))
		}
	}
	return nil
}

// postJSON sends a JSON POST to the server.
func postJSON(path string, body any, timeout time.Duration) (*http.Response, error) {
	reqJSON, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", serverURL+path, bytes.NewReader(reqJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to %s%s: %w", serverURL, path, err)
	}
	return resp, nil
}

// checkStatus turns a non-2xx response into an error with the body.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
	}
	return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
}

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Diagnosis requests block on one reasoning engine round trip, so the
// client timeout is generous.
const requestTimeout = 120 * time.Second

// FixCommand matches internal/diagnose FixCommand
type FixCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
	RiskLevel   string `json:"risk_level"`
}

// RelatedRunbook matches internal/http RelatedRunbook
type RelatedRunbook struct {
	Title          string  `json:"title"`
	Filename       string  `json:"filename"`
	RelevanceScore float64 `json:"relevance_score"`
	Summary        string  `json:"summary,omitempty"`
}

// DiagnoseRequest matches internal/http DiagnoseRequest
type DiagnoseRequest struct {
	ErrorMessage         string `json:"error_message"`
	PodName              string `json:"pod_name,omitempty"`
	DeploymentName       string `json:"deployment_name,omitempty"`
	Namespace            string `json:"namespace,omitempty"`
	IncludeClusterHealth bool   `json:"include_cluster_health,omitempty"`
}

// DiagnoseResponse matches internal/http DiagnoseResponse
type DiagnoseResponse struct {
	RequestID       string           `json:"request_id"`
	Timestamp       string           `json:"timestamp"`
	Severity        string           `json:"severity"`
	ErrorCategory   string           `json:"error_category"`
	RootCause       string           `json:"root_cause"`
	Explanation     string           `json:"explanation"`
	FixCommands     []FixCommand     `json:"fix_commands"`
	PreventionTips  []string         `json:"prevention_tips"`
	RelatedRunbooks []RelatedRunbook `json:"related_runbooks"`
}

// RunbookRequest matches internal/http RunbookRequest
type RunbookRequest struct {
	ErrorMessage string `json:"error_message"`
	TopK         int    `json:"top_k,omitempty"`
}

// RunbookMatch matches internal/runbooks Match
type RunbookMatch struct {
	Title     string  `json:"title"`
	Filename  string  `json:"filename"`
	Relevance float64 `json:"relevance_score"`
	Excerpt   string  `json:"summary"`
}

// RunbookResponse matches internal/http RunbookResponse
type RunbookResponse struct {
	Query        string         `json:"query"`
	Results      []RunbookMatch `json:"results"`
	TotalMatched int            `json:"total_matched"`
}

// NodeIssue matches internal/http NodeIssue
type NodeIssue struct {
	Name       string   `json:"name"`
	Status     string   `json:"status"`
	Conditions []string `json:"conditions"`
}

// ClusterHealthResponse matches internal/http ClusterHealthResponse
type ClusterHealthResponse struct {
	ClusterStatus string      `json:"cluster_status"`
	TotalNodes    int         `json:"total_nodes"`
	ReadyNodes    int         `json:"ready_nodes"`
	NodeIssues    []NodeIssue `json:"node_issues,omitempty"`
	Warnings      []string    `json:"warnings,omitempty"`
}

// HealthResponse matches internal/http HealthResponse
type HealthResponse struct {
	Status        string `json:"status"`
	Service       string `json:"service"`
	Version       string `json:"version"`
	K8sConnected  bool   `json:"k8s_connected"`
	LLMConfigured bool   `json:"llm_configured"`
}

// postJSON sends a POST request and decodes the JSON response into out.
func postJSON(path string, body, out any) error {
	reqJSON, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := serverURL + path
	httpReq, err := http.NewRequest("POST", url, bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: requestTimeout}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// getJSON sends a GET request and decodes the JSON response into out.
func getJSON(path string, out any) error {
	url := serverURL + path

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
	}
	return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
}

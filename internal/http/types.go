package http

import (
	"github.com/fyrsmithlabs/incidentd/internal/classifier"
	"github.com/fyrsmithlabs/incidentd/internal/cluster"
	"github.com/fyrsmithlabs/incidentd/internal/diagnose"
	"github.com/fyrsmithlabs/incidentd/internal/runbooks"
)

// DiagnoseRequest is the request body for POST /api/v1/diagnose.
type DiagnoseRequest struct {
	// ErrorMessage is the raw error log, build output, or natural
	// language question.
	ErrorMessage string `json:"error_message"`
	// PodName optionally names a pod to inspect.
	PodName string `json:"pod_name,omitempty"`
	// DeploymentName optionally names a deployment to inspect.
	DeploymentName string `json:"deployment_name,omitempty"`
	// Namespace defaults to "default".
	Namespace string `json:"namespace,omitempty"`
	// IncludeClusterHealth also collects a namespace overview.
	IncludeClusterHealth bool `json:"include_cluster_health,omitempty"`
}

// RelatedRunbook references a matching runbook document.
type RelatedRunbook struct {
	Title          string  `json:"title"`
	Filename       string  `json:"filename"`
	RelevanceScore float64 `json:"relevance_score"`
	Summary        string  `json:"summary,omitempty"`
}

// DiagnoseResponse is the structured diagnosis returned from
// POST /api/v1/diagnose. It is built once per request and never stored
// beyond the response.
type DiagnoseResponse struct {
	RequestID        string                      `json:"request_id"`
	Timestamp        string                      `json:"timestamp"`
	Severity         classifier.Severity         `json:"severity"`
	ErrorCategory    classifier.ErrorCategory    `json:"error_category"`
	RootCause        string                      `json:"root_cause"`
	Explanation      string                      `json:"explanation"`
	FixCommands      []diagnose.FixCommand       `json:"fix_commands"`
	PreventionTips   []string                    `json:"prevention_tips"`
	RelatedRunbooks  []RelatedRunbook            `json:"related_runbooks"`
	ClusterContext   *cluster.Snapshot           `json:"cluster_context,omitempty"`
	ClassifiedErrors []classifier.Classification `json:"classified_errors,omitempty"`
}

// RunbookRequest is the request body for POST /api/v1/runbooks/suggest.
type RunbookRequest struct {
	ErrorMessage string `json:"error_message"`
	TopK         int    `json:"top_k,omitempty"`
}

// RunbookResponse is the response body for POST /api/v1/runbooks/suggest.
type RunbookResponse struct {
	Query        string           `json:"query"`
	Results      []runbooks.Match `json:"results"`
	TotalMatched int              `json:"total_matched"`
}

// NodeIssue summarizes a degraded node in the cluster health response.
type NodeIssue struct {
	Name           string   `json:"name"`
	Status         string   `json:"status"`
	Conditions     []string `json:"conditions"`
	MemoryPressure bool     `json:"memory_pressure"`
	DiskPressure   bool     `json:"disk_pressure"`
}

// ClusterHealthResponse is the response body for GET /api/v1/cluster/health.
type ClusterHealthResponse struct {
	RequestID     string      `json:"request_id"`
	Timestamp     string      `json:"timestamp"`
	ClusterStatus string      `json:"cluster_status"`
	TotalNodes    int         `json:"total_nodes"`
	ReadyNodes    int         `json:"ready_nodes"`
	NodeIssues    []NodeIssue `json:"node_issues,omitempty"`
	Warnings      []string    `json:"warnings,omitempty"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Service       string `json:"service"`
	Version       string `json:"version"`
	K8sConnected  bool   `json:"k8s_connected"`
	LLMConfigured bool   `json:"llm_configured"`
}

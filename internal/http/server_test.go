package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/fyrsmithlabs/incidentd/internal/classifier"
	"github.com/fyrsmithlabs/incidentd/internal/cluster"
	"github.com/fyrsmithlabs/incidentd/internal/diagnose"
	"github.com/fyrsmithlabs/incidentd/internal/llm"
	"github.com/fyrsmithlabs/incidentd/internal/runbooks"
)

type stubClient struct {
	reply string
	err   error
}

func (s *stubClient) Generate(_ context.Context, _, _ string) (string, error) {
	return s.reply, s.err
}

func writeRunbook(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newTestServer(t *testing.T, client llm.Client, collector *cluster.Collector) *Server {
	t.Helper()

	dir := t.TempDir()
	writeRunbook(t, dir, "oom.md", "# OOMKilled Remediation\nRaise memory limits when containers are OOMKilled.")
	writeRunbook(t, dir, "crashloop.md", "# CrashLoopBackOff Guide\nInspect previous container logs for CrashLoopBackOff pods.")

	store := runbooks.NewStore(dir, zap.NewNop())
	diagnoser, err := diagnose.NewService(store, client, zap.NewNop(), 3)
	require.NoError(t, err)

	srv, err := NewServer(diagnoser, store, collector, zap.NewNop(), &Config{
		Host:          "127.0.0.1",
		Port:          0,
		RateLimit:     1000,
		Burst:         1000,
		Version:       "test",
		LLMConfigured: client != nil,
		TopK:          3,
	})
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewServerValidation(t *testing.T) {
	store := runbooks.NewStore(t.TempDir(), zap.NewNop())
	diagnoser, err := diagnose.NewService(store, nil, zap.NewNop(), 0)
	require.NoError(t, err)

	_, err = NewServer(nil, store, nil, zap.NewNop(), nil)
	assert.Error(t, err)

	_, err = NewServer(diagnoser, nil, nil, zap.NewNop(), nil)
	assert.Error(t, err)

	_, err = NewServer(diagnoser, store, nil, nil, nil)
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "incidentd", resp.Service)
	assert.Equal(t, "test", resp.Version)
	assert.False(t, resp.K8sConnected)
	assert.False(t, resp.LLMConfigured)
}

func TestDiagnoseRequiresErrorMessage(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/diagnose", DiagnoseRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDiagnoseMockMode(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/diagnose", DiagnoseRequest{
		ErrorMessage: "container OOMKilled memory limit exceeded",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DiagnoseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Len(t, resp.RequestID, 8)
	assert.NotEmpty(t, resp.Timestamp)
	assert.Equal(t, classifier.SeverityCritical, resp.Severity)
	assert.Equal(t, classifier.CategoryOOMKilled, resp.ErrorCategory)
	assert.Contains(t, resp.RootCause, "[MOCK]")
	assert.GreaterOrEqual(t, len(resp.FixCommands), 2)
	assert.GreaterOrEqual(t, len(resp.PreventionTips), 2)
	assert.NotEmpty(t, resp.ClassifiedErrors)
	assert.Nil(t, resp.ClusterContext)

	require.NotEmpty(t, resp.RelatedRunbooks)
	assert.Equal(t, "oom.md", resp.RelatedRunbooks[0].Filename)
	assert.Equal(t, "OOMKilled Remediation", resp.RelatedRunbooks[0].Title)
	assert.Greater(t, resp.RelatedRunbooks[0].RelevanceScore, 0.0)
}

func TestDiagnoseEngineReply(t *testing.T) {
	reply := `{"root_cause":"memory limit too low","severity":"CRITICAL","error_category":"OOMKilled","explanation":"container exceeded its limit","fix_commands":[{"command":"kubectl edit deployment app","description":"raise limits","risk_level":"MEDIUM"}],"prevention_tips":["set limits from load tests"],"related_runbooks":["oom.md"]}`
	srv := newTestServer(t, &stubClient{reply: reply}, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/diagnose", DiagnoseRequest{
		ErrorMessage: "pod was OOMKilled",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DiagnoseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "memory limit too low", resp.RootCause)
	assert.Equal(t, classifier.SeverityCritical, resp.Severity)
	assert.Equal(t, classifier.CategoryOOMKilled, resp.ErrorCategory)
	require.Len(t, resp.FixCommands, 1)
	assert.Equal(t, "kubectl edit deployment app", resp.FixCommands[0].Command)
}

func TestDiagnoseMergesEngineNamedRunbooks(t *testing.T) {
	// The keyword search finds nothing for this error text; the
	// diagnosis names one real runbook and one invented filename.
	reply := `{"root_cause":"x","severity":"HIGH","error_category":"CrashLoopBackOff","explanation":"y","related_runbooks":["crashloop.md","invented.md"]}`
	srv := newTestServer(t, &stubClient{reply: reply}, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/diagnose", DiagnoseRequest{
		ErrorMessage: "upstream connect timeout",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DiagnoseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.Len(t, resp.RelatedRunbooks, 1)
	assert.Equal(t, "crashloop.md", resp.RelatedRunbooks[0].Filename)
	assert.Equal(t, "CrashLoopBackOff Guide", resp.RelatedRunbooks[0].Title)
	assert.NotEmpty(t, resp.RelatedRunbooks[0].Summary)
	assert.Zero(t, resp.RelatedRunbooks[0].RelevanceScore)
}

func TestDiagnoseRevalidatesEngineEnums(t *testing.T) {
	reply := `{"root_cause":"x","severity":"SEVERE","error_category":"SomethingNew","explanation":"y"}`
	srv := newTestServer(t, &stubClient{reply: reply}, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/diagnose", DiagnoseRequest{
		ErrorMessage: "pod was OOMKilled with exit code 137",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DiagnoseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	// Highest classified severity replaces the invalid one; the
	// unrecognized category collapses to Unknown.
	assert.Equal(t, classifier.SeverityCritical, resp.Severity)
	assert.Equal(t, classifier.CategoryUnknown, resp.ErrorCategory)
}

func TestDiagnoseRevalidationWithoutClassifications(t *testing.T) {
	reply := `{"root_cause":"x","severity":"SEVERE","error_category":"SomethingNew","explanation":"y"}`
	srv := newTestServer(t, &stubClient{reply: reply}, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/diagnose", DiagnoseRequest{
		ErrorMessage: "something vague happened",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DiagnoseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, classifier.SeverityMedium, resp.Severity)
	assert.Equal(t, classifier.CategoryUnknown, resp.ErrorCategory)
	assert.Empty(t, resp.ClassifiedErrors)
}

func TestDiagnoseAttachesClusterContext(t *testing.T) {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "api-7f9", Namespace: "prod"},
		Status: corev1.PodStatus{
			Phase: corev1.PodRunning,
			ContainerStatuses: []corev1.ContainerStatus{
				{
					Name:         "api",
					RestartCount: 12,
					State: corev1.ContainerState{
						Waiting: &corev1.ContainerStateWaiting{Reason: "CrashLoopBackOff"},
					},
				},
			},
		},
	}
	collector := cluster.NewCollector(fake.NewSimpleClientset(pod), nil, zap.NewNop())
	srv := newTestServer(t, nil, collector)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/diagnose", DiagnoseRequest{
		ErrorMessage: "pod is in CrashLoopBackOff",
		PodName:      "api-7f9",
		Namespace:    "prod",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DiagnoseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.ClusterContext)
	assert.Equal(t, "api-7f9", resp.ClusterContext.Name)
	require.Len(t, resp.ClusterContext.Containers, 1)
	assert.Equal(t, "CrashLoopBackOff", resp.ClusterContext.Containers[0].Reason)
}

func TestDiagnoseWithoutCollectorIgnoresPodName(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/diagnose", DiagnoseRequest{
		ErrorMessage: "pod is in CrashLoopBackOff",
		PodName:      "api-7f9",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DiagnoseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.ClusterContext)
}

func TestLegacyAnalyzeRoute(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := doJSON(t, srv, http.MethodPost, "/analyze-error", DiagnoseRequest{
		ErrorMessage: "ImagePullBackOff on deploy",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DiagnoseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, classifier.CategoryImagePull, resp.ErrorCategory)
}

func TestRunbookSuggest(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/runbooks/suggest", RunbookRequest{
		ErrorMessage: "container OOMKilled memory",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RunbookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "container OOMKilled memory", resp.Query)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "oom.md", resp.Results[0].Filename)
	assert.Equal(t, len(resp.Results), resp.TotalMatched)
}

func TestRunbookSuggestNoMatches(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/runbooks/suggest", RunbookRequest{
		ErrorMessage: "zzzz qqqq",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RunbookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Results)
	assert.Zero(t, resp.TotalMatched)
}

func TestRunbookSuggestValidation(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/runbooks/suggest", RunbookRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/runbooks/suggest", RunbookRequest{
		ErrorMessage: "oom",
		TopK:         -1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClusterHealthWithoutCollector(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/cluster/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ClusterHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "UNKNOWN", resp.ClusterStatus)
	assert.NotEmpty(t, resp.Warnings)
}

func TestClusterHealthDegraded(t *testing.T) {
	ready := &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: "node-a"},
		Status: corev1.NodeStatus{
			Conditions: []corev1.NodeCondition{
				{Type: corev1.NodeReady, Status: corev1.ConditionTrue},
			},
		},
	}
	pressured := &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: "node-b"},
		Status: corev1.NodeStatus{
			Conditions: []corev1.NodeCondition{
				{Type: corev1.NodeReady, Status: corev1.ConditionFalse},
				{Type: corev1.NodeMemoryPressure, Status: corev1.ConditionTrue},
			},
		},
	}
	collector := cluster.NewCollector(fake.NewSimpleClientset(ready, pressured), nil, zap.NewNop())
	srv := newTestServer(t, nil, collector)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/cluster/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ClusterHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "DEGRADED", resp.ClusterStatus)
	assert.Equal(t, 2, resp.TotalNodes)
	assert.Equal(t, 1, resp.ReadyNodes)
	require.Len(t, resp.NodeIssues, 1)
	assert.Equal(t, "node-b", resp.NodeIssues[0].Name)
	assert.Contains(t, resp.NodeIssues[0].Conditions, "MemoryPressure")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := doJSON(t, srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
}

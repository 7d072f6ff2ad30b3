package diagnose

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/incidentd/internal/classifier"
	"github.com/fyrsmithlabs/incidentd/internal/cluster"
	"github.com/fyrsmithlabs/incidentd/internal/runbooks"
)

// mockClient implements llm.Client for testing.
type mockClient struct {
	reply string
	err   error
	calls int
}

func (m *mockClient) Generate(ctx context.Context, system, prompt string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func emptyStore(t *testing.T) *runbooks.Store {
	t.Helper()
	return runbooks.NewStore(t.TempDir(), zap.NewNop())
}

func storeWithRunbook(t *testing.T, name, content string) *runbooks.Store {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	return runbooks.NewStore(dir, zap.NewNop())
}

func TestNewServiceRequiresStore(t *testing.T) {
	_, err := NewService(nil, nil, zap.NewNop(), 0)
	assert.Error(t, err)
}

func TestDiagnoseMockMode(t *testing.T) {
	svc, err := NewService(emptyStore(t), nil, zap.NewNop(), 0)
	require.NoError(t, err)

	cs := classifier.Classify("Pod OOMKilled in production")
	analysis := svc.Diagnose(context.Background(), "Pod OOMKilled in production", cs, nil)

	assert.Equal(t, "CRITICAL", analysis.Severity)
	assert.Equal(t, "OOMKilled", analysis.ErrorCategory)
	assert.Contains(t, analysis.RootCause, "[MOCK]")
	assert.GreaterOrEqual(t, len(analysis.FixCommands), 2)
	assert.GreaterOrEqual(t, len(analysis.PreventionTips), 2)
	assert.Contains(t, analysis.Explanation, "Pod OOMKilled in production")
}

func TestDiagnoseMockModeNoClassifications(t *testing.T) {
	svc, err := NewService(emptyStore(t), nil, zap.NewNop(), 0)
	require.NoError(t, err)

	analysis := svc.Diagnose(context.Background(), "something inexplicable", nil, nil)

	assert.Equal(t, "MEDIUM", analysis.Severity)
	assert.Equal(t, "Unknown", analysis.ErrorCategory)
	assert.GreaterOrEqual(t, len(analysis.FixCommands), 2)
}

func TestDiagnoseMockModeEchoBounded(t *testing.T) {
	svc, err := NewService(emptyStore(t), nil, zap.NewNop(), 0)
	require.NoError(t, err)

	long := "OOMKilled " + strings.Repeat("x", 2000)
	analysis := svc.Diagnose(context.Background(), long, classifier.Classify(long), nil)

	// Only the first 500 characters of input are echoed back.
	assert.NotContains(t, analysis.Explanation, long)
	assert.Contains(t, analysis.Explanation, long[:500])
}

func TestDiagnoseFallbackOnInvocationError(t *testing.T) {
	client := &mockClient{err: errors.New("context deadline exceeded")}
	svc, err := NewService(emptyStore(t), client, zap.NewNop(), 0)
	require.NoError(t, err)

	cs := classifier.Classify("CrashLoopBackOff observed")
	analysis := svc.Diagnose(context.Background(), "CrashLoopBackOff observed", cs, nil)

	// Exactly one call, never retried.
	assert.Equal(t, 1, client.calls)

	// Fallback shape: exactly 1 command, 1 tip, wording distinct from
	// mock mode.
	assert.Len(t, analysis.FixCommands, 1)
	assert.Len(t, analysis.PreventionTips, 1)
	assert.NotContains(t, analysis.RootCause, "[MOCK]")
	assert.Contains(t, analysis.Explanation, "context deadline exceeded")
	assert.Equal(t, "CRITICAL", analysis.Severity)
	assert.Equal(t, "CrashLoopBackOff", analysis.ErrorCategory)
}

func TestDiagnoseFallbackWithoutClassifications(t *testing.T) {
	client := &mockClient{err: errors.New("boom")}
	svc, err := NewService(emptyStore(t), client, zap.NewNop(), 0)
	require.NoError(t, err)

	analysis := svc.Diagnose(context.Background(), "mystery", nil, nil)

	assert.Equal(t, "MEDIUM", analysis.Severity)
	assert.Equal(t, "Unknown", analysis.ErrorCategory)
}

func TestDiagnoseParsesEngineReply(t *testing.T) {
	client := &mockClient{reply: `{
		"root_cause": "Memory limit too low",
		"severity": "CRITICAL",
		"error_category": "OOMKilled",
		"explanation": "The container was killed at 256Mi.",
		"fix_commands": [
			{"command": "kubectl top pod web-1 -n prod", "description": "Check usage", "risk_level": "LOW"},
			{"command": "kubectl set resources ...", "description": "Raise limit", "risk_level": "MEDIUM"}
		],
		"prevention_tips": ["Right-size limits", "Add alerts"],
		"related_runbooks": ["oom.md"]
	}`}
	svc, err := NewService(emptyStore(t), client, zap.NewNop(), 0)
	require.NoError(t, err)

	analysis := svc.Diagnose(context.Background(), "OOMKilled", classifier.Classify("OOMKilled"), nil)

	assert.Equal(t, "Memory limit too low", analysis.RootCause)
	assert.Equal(t, "OOMKilled", analysis.ErrorCategory)
	require.Len(t, analysis.FixCommands, 2)
	assert.Equal(t, []string{"oom.md"}, analysis.RelatedRunbooks)
}

func TestDiagnoseAttachesMatchedRunbooks(t *testing.T) {
	store := storeWithRunbook(t, "oom.md", "# OOMKilled\noomkilled recovery steps")
	svc, err := NewService(store, nil, zap.NewNop(), 0)
	require.NoError(t, err)

	analysis := svc.Diagnose(context.Background(), "oomkilled", classifier.Classify("oomkilled"), nil)
	assert.Equal(t, []string{"oom.md"}, analysis.RelatedRunbooks)
}

func TestDiagnoseHonorsConfiguredTopK(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.md", "b.md", "c.md"} {
		content := "# Runbook\noomkilled memory remediation"
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	store := runbooks.NewStore(dir, zap.NewNop())

	svc, err := NewService(store, nil, zap.NewNop(), 1)
	require.NoError(t, err)

	analysis := svc.Diagnose(context.Background(), "oomkilled memory", nil, nil)
	assert.Len(t, analysis.RelatedRunbooks, 1)

	// A non-positive value falls back to the store default.
	svc, err = NewService(store, nil, zap.NewNop(), -1)
	require.NoError(t, err)
	assert.Equal(t, runbooks.DefaultTopK, svc.topK)
}

func TestDiagnoseMockModeEchoCutsAtRuneBoundary(t *testing.T) {
	// Pad so a 3-byte rune straddles the echo limit.
	long := strings.Repeat("a", mockInputEcho-1) + "世界"
	svc, err := NewService(emptyStore(t), nil, zap.NewNop(), 0)
	require.NoError(t, err)

	analysis := svc.Diagnose(context.Background(), long, nil, nil)
	assert.True(t, utf8.ValidString(analysis.Explanation))
	assert.NotContains(t, analysis.Explanation, "世")
}

func TestParseReplyCodeFenceRoundTrip(t *testing.T) {
	payload := `{"root_cause":"x","severity":"HIGH","error_category":"NetworkError","explanation":"e","fix_commands":[],"prevention_tips":[],"related_runbooks":[]}`

	plain := parseReply(payload, nil)
	fenced := parseReply("```json\n"+payload+"\n```", nil)
	bare := parseReply("```\n"+payload+"\n```", nil)

	assert.Equal(t, plain, fenced)
	assert.Equal(t, plain, bare)
	assert.Equal(t, "x", plain.RootCause)
}

func TestParseReplyBackfillsDefaults(t *testing.T) {
	raw := `{"explanation": "only an explanation"}`
	analysis := parseReply(raw, []string{"net.md"})

	assert.Equal(t, "Unable to determine root cause", analysis.RootCause)
	assert.Equal(t, "MEDIUM", analysis.Severity)
	assert.Equal(t, "Unknown", analysis.ErrorCategory)
	assert.Equal(t, "only an explanation", analysis.Explanation)
	assert.Empty(t, analysis.FixCommands)
	assert.Empty(t, analysis.PreventionTips)
	assert.Equal(t, []string{"net.md"}, analysis.RelatedRunbooks)
}

func TestParseReplyMalformed(t *testing.T) {
	raw := "I'm sorry, I can't produce JSON today."
	analysis := parseReply(raw, []string{"a.md", "b.md"})

	assert.Equal(t, "See explanation", analysis.RootCause)
	assert.Equal(t, "MEDIUM", analysis.Severity)
	assert.Equal(t, "Unknown", analysis.ErrorCategory)
	assert.Equal(t, raw, analysis.Explanation)
	assert.Empty(t, analysis.FixCommands)
	assert.Equal(t, []string{"a.md", "b.md"}, analysis.RelatedRunbooks)
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"padding", "  ```json\n{\"a\":1}\n```  ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripCodeFence(tt.in))
		})
	}
}

func TestAssemblePromptSectionOrder(t *testing.T) {
	cs := classifier.Classify("OOMKilled")
	snap := &cluster.Snapshot{
		Containers: []cluster.ContainerStatus{{Name: "web", State: "Waiting", Reason: "CrashLoopBackOff"}},
		RecentLogs: "line1\nline2",
	}
	matches := []runbooks.Match{{Title: "OOM Recovery", Filename: "oom.md", Relevance: 1.0, Excerpt: "steps"}}

	prompt := assemblePrompt("the raw error", cs, snap, matches)

	iErr := strings.Index(prompt, "--- Developer Error Report ---")
	iCls := strings.Index(prompt, "Pre-analysis detected")
	iK8s := strings.Index(prompt, "Live Kubernetes Cluster Data:")
	iRb := strings.Index(prompt, "Relevant Internal Runbooks:")

	require.NotEqual(t, -1, iErr)
	require.NotEqual(t, -1, iCls)
	require.NotEqual(t, -1, iK8s)
	require.NotEqual(t, -1, iRb)
	assert.True(t, iErr < iCls && iCls < iK8s && iK8s < iRb, "sections out of order")
	assert.Contains(t, prompt, "oom.md")
}

func TestAssemblePromptOmitsAbsentSections(t *testing.T) {
	prompt := assemblePrompt("just text", nil, nil, nil)

	assert.Contains(t, prompt, "just text")
	assert.NotContains(t, prompt, "Pre-analysis detected")
	assert.NotContains(t, prompt, "Live Kubernetes Cluster Data:")
	assert.NotContains(t, prompt, "Relevant Internal Runbooks:")
}

func TestAssemblePromptStableForIdenticalInput(t *testing.T) {
	cs := classifier.Classify("OOMKilled and readiness probe failed")
	snap := &cluster.Snapshot{RecentLogs: "a\nb\nc"}

	first := assemblePrompt("err", cs, snap, nil)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, assemblePrompt("err", cs, snap, nil))
	}
}

func TestSnapshotSectionBounds(t *testing.T) {
	snap := &cluster.Snapshot{}
	for i := 0; i < 25; i++ {
		snap.Events = append(snap.Events, cluster.Event{Reason: "BackOff", Message: "msg"})
	}
	var logLines []string
	for i := 0; i < 80; i++ {
		logLines = append(logLines, "log-line")
	}
	logLines = append(logLines, "final-line")
	snap.RecentLogs = strings.Join(logLines, "\n")

	section := snapshotSection(snap)

	// Events capped at 10.
	assert.Equal(t, 10, strings.Count(section, `"reason": "BackOff"`))
	// Logs truncated to the last 50 lines, keeping the tail.
	assert.Contains(t, section, "final-line")
	assert.Equal(t, 49, strings.Count(section, "log-line"))
}

func TestSnapshotSectionIgnoresUnlistedFields(t *testing.T) {
	snap := &cluster.Snapshot{
		Name:              "web-1",
		NamespaceOverview: &cluster.NamespaceOverview{Namespace: "prod", TotalPods: 4},
	}

	// NamespaceOverview is snapshot data for other consumers, not
	// prompt material.
	assert.Equal(t, "", snapshotSection(snap))
}

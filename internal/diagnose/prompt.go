package diagnose

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/incidentd/internal/classifier"
	"github.com/fyrsmithlabs/incidentd/internal/cluster"
	"github.com/fyrsmithlabs/incidentd/internal/runbooks"
)

// systemInstruction is the fixed instruction sent with every
// reasoning-engine call. It pins the output schema and two hard
// diagnostic rules; the normalizer does not enforce those rules
// itself.
const systemInstruction = `You are an expert DevOps Site Reliability Engineer (SRE) working at a company that runs Kubernetes clusters on AWS EKS and uses Terraform for infrastructure.

Your job is to analyze errors reported by developers and provide a comprehensive, actionable diagnosis.

You MUST respond in the following JSON format (and ONLY this JSON, no extra text):
{
    "root_cause": "One-line summary of the root cause",
    "severity": "CRITICAL | HIGH | MEDIUM | LOW | INFO",
    "error_category": "OOMKilled | CrashLoopBackOff | ImagePullBackOff | CreateContainerConfigError | ReadinessProbeFailure | LivenessProbeFailure | ResourceQuotaExceeded | PermissionDenied | TerraformStateLock | TerraformProviderError | CICDPipelineFailure | NetworkError | Unknown",
    "explanation": "Detailed paragraph explaining WHY the failure occurred, referencing specific log lines or data points from the context",
    "fix_commands": [
        {
            "command": "exact kubectl/terraform/aws command to run",
            "description": "What this command does and why",
            "risk_level": "LOW | MEDIUM | HIGH"
        }
    ],
    "prevention_tips": [
        "Tip 1 to prevent this from happening again",
        "Tip 2"
    ],
    "related_runbooks": [
        "runbook filename if any matched from context"
    ]
}

Rules:
- Always provide at least 2 fix_commands ordered from safest to most impactful.
- Always provide at least 2 prevention_tips.
- Reference specific data from the Kubernetes cluster context when available.
- If you see container exit code 137, the cause is OOMKilled.
- If you see CrashLoopBackOff, check the previous container logs and exit code.
- Be specific about namespaces, pod names, and resource values in your commands.`

// Prompt-size bounds for the cluster snapshot section.
const (
	maxPromptEvents   = 10
	maxPromptLogLines = 50
)

// assemblePrompt merges the error report, classifier summary, cluster
// snapshot summary, and matched runbook excerpts into one prompt body.
// Section order is fixed; absent sections are omitted entirely.
func assemblePrompt(errorText string, cs []classifier.Classification, snap *cluster.Snapshot, matches []runbooks.Match) string {
	var b strings.Builder

	b.WriteString("--- Developer Error Report ---\n")
	b.WriteString(errorText)

	if len(cs) > 0 {
		b.WriteString("\n\n")
		b.WriteString(classifier.FormatForPrompt(cs))
	}

	if section := snapshotSection(snap); section != "" {
		b.WriteString("\n\n")
		b.WriteString(section)
	}

	if len(matches) > 0 {
		b.WriteString("\n\nRelevant Internal Runbooks:\n")
		for _, m := range matches {
			b.WriteString(fmt.Sprintf("\n--- %s (%s) ---\n%s\n", m.Title, m.Filename, m.Excerpt))
		}
	}

	b.WriteString("\n\nAnalyze this error comprehensively and respond in the required JSON format.")
	return b.String()
}

// snapshotSection renders the bounded cluster-state summary. Only the
// fields named here become prompt material; everything else in the
// snapshot is ignored.
func snapshotSection(snap *cluster.Snapshot) string {
	if snap.Empty() {
		return ""
	}

	var parts []string

	if len(snap.Containers) > 0 {
		parts = append(parts, "Container Statuses: "+indentJSON(snap.Containers))
	}
	if len(snap.Events) > 0 {
		events := snap.Events
		if len(events) > maxPromptEvents {
			events = events[:maxPromptEvents]
		}
		parts = append(parts, "Recent Events: "+indentJSON(events))
	}
	if len(snap.Conditions) > 0 {
		parts = append(parts, "Deployment Conditions: "+indentJSON(snap.Conditions))
	}
	if len(snap.ResourceSpec) > 0 {
		parts = append(parts, "Resource Spec: "+indentJSON(snap.ResourceSpec))
	}
	if snap.RecentLogs != "" {
		parts = append(parts, fmt.Sprintf("Recent Pod Logs (last %d lines):\n%s", maxPromptLogLines, tailLines(snap.RecentLogs, maxPromptLogLines)))
	}

	if len(parts) == 0 {
		return ""
	}
	return "Live Kubernetes Cluster Data:\n" + strings.Join(parts, "\n\n")
}

func indentJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// tailLines returns the last n lines of text.
func tailLines(text string, n int) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

package diagnose

import (
	"encoding/json"
	"strings"
)

// Named defaults backfilled when the engine omits a required field.
const (
	defaultRootCause     = "Unable to determine root cause"
	parseFailedRootCause = "See explanation"
	defaultSeverity      = "MEDIUM"
	defaultCategory      = "Unknown"
)

// parseReply normalizes the raw reasoning-engine reply into an
// Analysis. Surrounding code-fence markup is stripped before parsing.
// On success, missing fields are backfilled with named defaults; on
// parse failure the whole raw text becomes the explanation. Parsing
// never triggers a re-invocation.
func parseReply(raw string, runbookFiles []string) *Analysis {
	cleaned := stripCodeFence(raw)

	var parsed Analysis
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return &Analysis{
			RootCause:       parseFailedRootCause,
			Severity:        defaultSeverity,
			ErrorCategory:   defaultCategory,
			Explanation:     raw,
			FixCommands:     []FixCommand{},
			PreventionTips:  []string{},
			RelatedRunbooks: runbookFiles,
		}
	}

	if parsed.RootCause == "" {
		parsed.RootCause = defaultRootCause
	}
	if parsed.Severity == "" {
		parsed.Severity = defaultSeverity
	}
	if parsed.ErrorCategory == "" {
		parsed.ErrorCategory = defaultCategory
	}
	if parsed.Explanation == "" {
		parsed.Explanation = raw
	}
	if parsed.FixCommands == nil {
		parsed.FixCommands = []FixCommand{}
	}
	if parsed.PreventionTips == nil {
		parsed.PreventionTips = []string{}
	}
	if parsed.RelatedRunbooks == nil {
		parsed.RelatedRunbooks = runbookFiles
	}

	return &parsed
}

// stripCodeFence removes a leading ```-fence (optionally tagged, e.g.
// ```json) and a trailing ``` fence.
func stripCodeFence(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = cleaned[len("```json"):]
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = cleaned[len("```"):]
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}

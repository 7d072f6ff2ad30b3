package diagnose

// FixCommand is one actionable remediation step.
type FixCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
	RiskLevel   string `json:"risk_level"`
}

// Analysis is the diagnosis-shaped record produced by the pipeline.
//
// Severity and ErrorCategory are free-form strings here: the reasoning
// engine is untrusted and may emit values outside the closed enums.
// The transport boundary re-validates them against the classifier's
// enums before building the API response.
type Analysis struct {
	RootCause       string       `json:"root_cause"`
	Severity        string       `json:"severity"`
	ErrorCategory   string       `json:"error_category"`
	Explanation     string       `json:"explanation"`
	FixCommands     []FixCommand `json:"fix_commands"`
	PreventionTips  []string     `json:"prevention_tips"`
	RelatedRunbooks []string     `json:"related_runbooks"`
}

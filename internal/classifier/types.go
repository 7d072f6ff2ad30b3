package classifier

// Severity represents the impact level of a classified error.
type Severity string

const (
	// SeverityCritical indicates service-down or data-loss conditions.
	SeverityCritical Severity = "CRITICAL"
	// SeverityHigh indicates degraded service requiring prompt action.
	SeverityHigh Severity = "HIGH"
	// SeverityMedium indicates issues that should be fixed soon.
	SeverityMedium Severity = "MEDIUM"
	// SeverityLow indicates minor issues.
	SeverityLow Severity = "LOW"
	// SeverityInfo indicates informational findings.
	SeverityInfo Severity = "INFO"
)

// severityRanks orders severities for sorting. CRITICAL sorts first.
var severityRanks = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
	SeverityInfo:     4,
}

// Rank returns the sort rank of the severity (CRITICAL=0 .. INFO=4).
// Unknown severities rank after all known ones.
func (s Severity) Rank() int {
	if r, ok := severityRanks[s]; ok {
		return r
	}
	return len(severityRanks)
}

// Valid reports whether the severity is a member of the closed set.
func (s Severity) Valid() bool {
	_, ok := severityRanks[s]
	return ok
}

// ParseSeverity validates a free-form severity string against the
// closed set. Engine output is untrusted; callers substitute their own
// default when ok is false.
func ParseSeverity(raw string) (Severity, bool) {
	s := Severity(raw)
	return s, s.Valid()
}

// ErrorCategory identifies a known failure class.
type ErrorCategory string

const (
	CategoryOOMKilled         ErrorCategory = "OOMKilled"
	CategoryCrashLoop         ErrorCategory = "CrashLoopBackOff"
	CategoryImagePull         ErrorCategory = "ImagePullBackOff"
	CategoryConfigError       ErrorCategory = "CreateContainerConfigError"
	CategoryReadinessProbe    ErrorCategory = "ReadinessProbeFailure"
	CategoryLivenessProbe     ErrorCategory = "LivenessProbeFailure"
	CategoryResourceQuota     ErrorCategory = "ResourceQuotaExceeded"
	CategoryPermissionDenied  ErrorCategory = "PermissionDenied"
	CategoryTerraformLock     ErrorCategory = "TerraformStateLock"
	CategoryTerraformProvider ErrorCategory = "TerraformProviderError"
	CategoryCICDFailure       ErrorCategory = "CICDPipelineFailure"
	CategoryNetworkError      ErrorCategory = "NetworkError"
	// CategoryUnknown is the terminal fallback when nothing matches.
	CategoryUnknown ErrorCategory = "Unknown"
)

var knownCategories = map[ErrorCategory]struct{}{
	CategoryOOMKilled:         {},
	CategoryCrashLoop:         {},
	CategoryImagePull:         {},
	CategoryConfigError:       {},
	CategoryReadinessProbe:    {},
	CategoryLivenessProbe:     {},
	CategoryResourceQuota:     {},
	CategoryPermissionDenied:  {},
	CategoryTerraformLock:     {},
	CategoryTerraformProvider: {},
	CategoryCICDFailure:       {},
	CategoryNetworkError:      {},
	CategoryUnknown:           {},
}

// Valid reports whether the category is a member of the closed set.
func (c ErrorCategory) Valid() bool {
	_, ok := knownCategories[c]
	return ok
}

// ParseCategory validates a free-form category string against the
// closed set. Returns CategoryUnknown with ok=false on mismatch.
func ParseCategory(raw string) (ErrorCategory, bool) {
	c := ErrorCategory(raw)
	if c.Valid() {
		return c, true
	}
	return CategoryUnknown, false
}

// Classification is the result of matching input text against one
// signature category. At most one Classification exists per category
// per scan.
type Classification struct {
	Category        ErrorCategory `json:"category"`
	Severity        Severity      `json:"severity"`
	Hint            string        `json:"hint"`
	MatchedExcerpts []string      `json:"matched_excerpts"`
	MatchCount      int           `json:"match_count"`
}

package classifier

import "regexp"

// Signature pairs a detector with the category, severity, and
// remediation hint it implies. The registry is fixed at process start;
// registry order is only the tie-break for equal severities.
type Signature struct {
	Detector *regexp.Regexp
	Category ErrorCategory
	Severity Severity
	Hint     string
}

// signatures is the ordered registry of known failure patterns across
// Kubernetes, Terraform, and CI/CD domains. Detectors are
// case-insensitive and stateless.
var signatures = []Signature{
	// Kubernetes
	{
		Detector: regexp.MustCompile(`(?i)OOMKilled`),
		Category: CategoryOOMKilled,
		Severity: SeverityCritical,
		Hint:     "Container exceeded memory limits and was killed by the kernel OOM killer.",
	},
	{
		Detector: regexp.MustCompile(`(?i)CrashLoopBackOff`),
		Category: CategoryCrashLoop,
		Severity: SeverityCritical,
		Hint:     "Container is crashing repeatedly. Check exit code and last termination reason.",
	},
	{
		Detector: regexp.MustCompile(`(?i)ImagePullBackOff|ErrImagePull|ImagePullError`),
		Category: CategoryImagePull,
		Severity: SeverityHigh,
		Hint:     "Unable to pull container image. Check image name/tag, registry auth, and network.",
	},
	{
		Detector: regexp.MustCompile(`(?i)CreateContainerConfigError`),
		Category: CategoryConfigError,
		Severity: SeverityHigh,
		Hint:     "Container configuration error. Usually a missing Secret, ConfigMap, or volume mount.",
	},
	{
		Detector: regexp.MustCompile(`(?i)Readiness\s*probe\s*failed|readinessProbe`),
		Category: CategoryReadinessProbe,
		Severity: SeverityMedium,
		Hint:     "Readiness probe failing, pod won't receive traffic. Check health endpoint and port.",
	},
	{
		Detector: regexp.MustCompile(`(?i)Liveness\s*probe\s*failed|livenessProbe`),
		Category: CategoryLivenessProbe,
		Severity: SeverityHigh,
		Hint:     "Liveness probe failing, kubelet will restart the container. Check health endpoint.",
	},
	{
		Detector: regexp.MustCompile(`(?i)exceeded\s*quota|ResourceQuota|forbidden.*quota`),
		Category: CategoryResourceQuota,
		Severity: SeverityMedium,
		Hint:     "Resource quota exceeded. Request more quota or reduce resource requests.",
	},
	{
		Detector: regexp.MustCompile(`(?i)forbidden|Unauthorized|403|RBAC`),
		Category: CategoryPermissionDenied,
		Severity: SeverityHigh,
		Hint:     "Permission denied. Check RBAC roles, service account, and cluster role bindings.",
	},
	{
		Detector: regexp.MustCompile(`(?i)connection\s*refused|dial\s*tcp.*refused|timeout|ETIMEDOUT|network\s*unreachable`),
		Category: CategoryNetworkError,
		Severity: SeverityHigh,
		Hint:     "Network connectivity issue. Check service endpoints, DNS, security groups, and NACLs.",
	},

	// Terraform
	{
		Detector: regexp.MustCompile(`(?i)state\s*lock|lock\s*ID|ConditionalCheckFailedException.*terraform`),
		Category: CategoryTerraformLock,
		Severity: SeverityMedium,
		Hint:     "Terraform state is locked. Check DynamoDB lock table or use force-unlock if safe.",
	},
	{
		Detector: regexp.MustCompile(`(?i)provider.*error|NoCredentialProviders|ExpiredToken|InvalidClientTokenId`),
		Category: CategoryTerraformProvider,
		Severity: SeverityHigh,
		Hint:     "Terraform provider authentication failure. Check AWS credentials and assume-role config.",
	},

	// CI/CD
	{
		Detector: regexp.MustCompile(`(?i)exit\s*code\s*[1-9]\d*|Process\s*completed\s*with\s*exit\s*code\s*[1-9]`),
		Category: CategoryCICDFailure,
		Severity: SeverityMedium,
		Hint:     "Build step failed with a non-zero exit code. Check the failing command output.",
	},
	// PermissionDenied reappears here for filesystem errors; the first
	// matching signature for the category wins, so RBAC phrasing takes
	// precedence when both are present.
	{
		Detector: regexp.MustCompile(`(?i)permission\s*denied|EACCES`),
		Category: CategoryPermissionDenied,
		Severity: SeverityMedium,
		Hint:     "File/system permission denied. Check file ownership and process privileges.",
	},
}

// Signatures returns the fixed pattern registry.
func Signatures() []Signature {
	return signatures
}

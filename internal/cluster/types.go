package cluster

// Snapshot is the semi-structured live-state record handed to the
// diagnosis pipeline. Every field is optional; consumers must tolerate
// any subset being absent. Error reports collector unavailability
// in-band so callers can degrade instead of failing.
type Snapshot struct {
	Name      string `json:"name,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Phase     string `json:"phase,omitempty"`
	HostIP    string `json:"host_ip,omitempty"`
	PodIP     string `json:"pod_ip,omitempty"`
	StartTime string `json:"start_time,omitempty"`

	Containers   []ContainerStatus    `json:"containers,omitempty"`
	ResourceSpec []ContainerResources `json:"resource_spec,omitempty"`
	RecentLogs   string               `json:"recent_logs,omitempty"`
	Events       []Event              `json:"events,omitempty"`

	// Deployment fields, populated when a deployment was inspected.
	ReplicasDesired     int32                 `json:"replicas_desired,omitempty"`
	ReplicasAvailable   int32                 `json:"replicas_available,omitempty"`
	ReplicasReady       int32                 `json:"replicas_ready,omitempty"`
	ReplicasUnavailable int32                 `json:"replicas_unavailable,omitempty"`
	Strategy            string                `json:"strategy,omitempty"`
	Conditions          []DeploymentCondition `json:"conditions,omitempty"`

	NamespaceOverview *NamespaceOverview `json:"namespace_overview,omitempty"`

	Error string `json:"error,omitempty"`
}

// Empty reports whether the snapshot carries no usable data.
func (s *Snapshot) Empty() bool {
	if s == nil {
		return true
	}
	return len(s.Containers) == 0 && len(s.ResourceSpec) == 0 &&
		s.RecentLogs == "" && len(s.Events) == 0 &&
		len(s.Conditions) == 0 && s.NamespaceOverview == nil
}

// ContainerStatus summarizes one container's runtime state.
type ContainerStatus struct {
	Name            string       `json:"name"`
	Ready           bool         `json:"ready"`
	RestartCount    int32        `json:"restart_count"`
	Image           string       `json:"image"`
	State           string       `json:"state,omitempty"`
	Reason          string       `json:"reason,omitempty"`
	Message         string       `json:"message,omitempty"`
	ExitCode        *int32       `json:"exit_code,omitempty"`
	StartedAt       string       `json:"started_at,omitempty"`
	LastTermination *Termination `json:"last_termination,omitempty"`
}

// Termination records the previous container instance's exit state.
type Termination struct {
	Reason     string `json:"reason,omitempty"`
	ExitCode   int32  `json:"exit_code"`
	Message    string `json:"message,omitempty"`
	FinishedAt string `json:"finished_at,omitempty"`
}

// ContainerResources captures declared requests and limits.
type ContainerResources struct {
	Name     string            `json:"name"`
	Requests map[string]string `json:"requests,omitempty"`
	Limits   map[string]string `json:"limits,omitempty"`
}

// Event is a compact view of a Kubernetes event.
type Event struct {
	Type      string `json:"type,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message,omitempty"`
	Count     int32  `json:"count,omitempty"`
	FirstSeen string `json:"first_seen,omitempty"`
	LastSeen  string `json:"last_seen,omitempty"`
	Source    string `json:"source,omitempty"`
	Object    string `json:"object,omitempty"`
}

// DeploymentCondition mirrors a deployment status condition.
type DeploymentCondition struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// PodSummary is a one-line health view of a pod.
type PodSummary struct {
	Name     string `json:"name"`
	Phase    string `json:"phase"`
	Restarts int32  `json:"restarts"`
	Ready    bool   `json:"ready"`
}

// NamespaceOverview summarizes pod health within one namespace.
type NamespaceOverview struct {
	Namespace     string       `json:"namespace"`
	TotalPods     int          `json:"total_pods"`
	UnhealthyPods []PodSummary `json:"unhealthy_pods"`
	WarningEvents []Event      `json:"warning_events,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// NodeHealth summarizes one node's conditions.
type NodeHealth struct {
	Name              string `json:"name"`
	Ready             string `json:"ready"`
	MemoryPressure    bool   `json:"memory_pressure"`
	DiskPressure      bool   `json:"disk_pressure"`
	PIDPressure       bool   `json:"pid_pressure"`
	AllocatableCPU    string `json:"allocatable_cpu,omitempty"`
	AllocatableMemory string `json:"allocatable_memory,omitempty"`
}

// HPAStatus summarizes one horizontal pod autoscaler.
type HPAStatus struct {
	Name                  string `json:"name"`
	Namespace             string `json:"namespace"`
	MinReplicas           *int32 `json:"min_replicas,omitempty"`
	MaxReplicas           int32  `json:"max_replicas"`
	CurrentReplicas       int32  `json:"current_replicas"`
	DesiredReplicas       int32  `json:"desired_replicas"`
	CurrentCPUUtilization *int32 `json:"current_cpu_utilization,omitempty"`
	TargetCPUUtilization  *int32 `json:"target_cpu_utilization,omitempty"`
}

// QuotaStatus summarizes one resource quota.
type QuotaStatus struct {
	Name      string            `json:"name"`
	Namespace string            `json:"namespace"`
	Hard      map[string]string `json:"hard,omitempty"`
	Used      map[string]string `json:"used,omitempty"`
}

// Health is the cluster-wide health record.
type Health struct {
	Nodes          []NodeHealth  `json:"nodes,omitempty"`
	TotalNodes     int           `json:"total_nodes"`
	ReadyNodes     int           `json:"ready_nodes"`
	HPAs           []HPAStatus   `json:"hpas,omitempty"`
	ResourceQuotas []QuotaStatus `json:"resource_quotas,omitempty"`
	Error          string        `json:"error,omitempty"`
}

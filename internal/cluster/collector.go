// Package cluster collects read-only diagnostic state from a
// Kubernetes cluster: pod and deployment details, namespace overviews,
// and cluster-wide node health.
//
// Collection never fails the diagnosis pipeline. When the cluster or a
// resource is unavailable the returned records carry an Error field
// and the pipeline proceeds with whatever data is present.
package cluster

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

var tracer = otel.Tracer("incidentd/cluster")

// Config holds collector tuning knobs.
type Config struct {
	// LogTailLines is how many log lines to fetch per pod.
	LogTailLines int64
	// EventLimit caps events fetched per query.
	EventLimit int64
}

// DefaultConfig returns collector defaults matching typical prompt
// budgets.
func DefaultConfig() *Config {
	return &Config{
		LogTailLines: 200,
		EventLimit:   50,
	}
}

// Collector reads diagnostic state from a Kubernetes cluster.
type Collector struct {
	client kubernetes.Interface
	config *Config
	logger *zap.Logger
	tracer trace.Tracer
}

// NewCollector creates a collector from a pre-built clientset. Tests
// pass the fake clientset here.
func NewCollector(client kubernetes.Interface, cfg *Config, logger *zap.Logger) *Collector {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		client: client,
		config: cfg,
		logger: logger,
		tracer: tracer,
	}
}

// NewCollectorFromEnv builds a collector using in-cluster config when
// available, falling back to ~/.kube/config. Returns nil, err when
// neither works; callers treat that as "cluster unavailable", not
// fatal.
func NewCollectorFromEnv(cfg *Config, logger *zap.Logger) (*Collector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	restCfg, err := rest.InClusterConfig()
	if err != nil {
		logger.Info("in-cluster config not available, falling back to kubeconfig", zap.Error(err))
		kubeconfig := filepath.Join(homedir.HomeDir(), ".kube", "config")
		restCfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("failed to build kubernetes config: %w", err)
		}
	}

	client, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}

	return NewCollector(client, cfg, logger), nil
}

// PodDetails collects deep details about one pod: container statuses
// with last terminations, declared resources, recent logs, and events.
func (c *Collector) PodDetails(ctx context.Context, name, namespace string) *Snapshot {
	ctx, span := c.tracer.Start(ctx, "Collector.PodDetails")
	defer span.End()

	snap := &Snapshot{Name: name, Namespace: namespace}

	pod, err := c.client.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		snap.Error = fmt.Sprintf("failed to fetch pod: %v", err)
		return snap
	}

	snap.Phase = string(pod.Status.Phase)
	snap.HostIP = pod.Status.HostIP
	snap.PodIP = pod.Status.PodIP
	if pod.Status.StartTime != nil {
		snap.StartTime = pod.Status.StartTime.String()
	}

	for _, cs := range pod.Status.ContainerStatuses {
		snap.Containers = append(snap.Containers, containerStatus(cs))
	}

	for _, container := range pod.Spec.Containers {
		res := ContainerResources{Name: container.Name}
		if len(container.Resources.Requests) > 0 {
			res.Requests = quantityMap(container.Resources.Requests)
		}
		if len(container.Resources.Limits) > 0 {
			res.Limits = quantityMap(container.Resources.Limits)
		}
		snap.ResourceSpec = append(snap.ResourceSpec, res)
	}

	snap.RecentLogs = c.podLogs(ctx, name, namespace)
	snap.Events = c.podEvents(ctx, name, namespace)

	return snap
}

func containerStatus(cs corev1.ContainerStatus) ContainerStatus {
	out := ContainerStatus{
		Name:         cs.Name,
		Ready:        cs.Ready,
		RestartCount: cs.RestartCount,
		Image:        cs.Image,
	}

	switch {
	case cs.State.Waiting != nil:
		out.State = "Waiting"
		out.Reason = cs.State.Waiting.Reason
		out.Message = cs.State.Waiting.Message
	case cs.State.Terminated != nil:
		out.State = "Terminated"
		out.Reason = cs.State.Terminated.Reason
		out.Message = cs.State.Terminated.Message
		code := cs.State.Terminated.ExitCode
		out.ExitCode = &code
	case cs.State.Running != nil:
		out.State = "Running"
		out.StartedAt = cs.State.Running.StartedAt.String()
	}

	if cs.LastTerminationState.Terminated != nil {
		term := cs.LastTerminationState.Terminated
		out.LastTermination = &Termination{
			Reason:     term.Reason,
			ExitCode:   term.ExitCode,
			Message:    term.Message,
			FinishedAt: term.FinishedAt.String(),
		}
	}

	return out
}

func quantityMap(list corev1.ResourceList) map[string]string {
	out := make(map[string]string, len(list))
	for name, qty := range list {
		out[string(name)] = qty.String()
	}
	return out
}

func (c *Collector) podLogs(ctx context.Context, name, namespace string) string {
	req := c.client.CoreV1().Pods(namespace).GetLogs(name, &corev1.PodLogOptions{
		TailLines: &c.config.LogTailLines,
	})
	stream, err := req.Stream(ctx)
	if err != nil {
		c.logger.Debug("could not fetch pod logs",
			zap.String("pod", name),
			zap.String("namespace", namespace),
			zap.Error(err),
		)
		return "[Could not fetch logs]"
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return "[Could not fetch logs]"
	}
	return string(data)
}

func (c *Collector) podEvents(ctx context.Context, name, namespace string) []Event {
	events, err := c.client.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{
		FieldSelector: fmt.Sprintf("involvedObject.name=%s", name),
		Limit:         c.config.EventLimit,
	})
	if err != nil {
		return nil
	}

	out := make([]Event, 0, len(events.Items))
	for _, e := range events.Items {
		ev := Event{
			Type:    e.Type,
			Reason:  e.Reason,
			Message: e.Message,
			Count:   e.Count,
			Source:  e.Source.Component,
		}
		if !e.FirstTimestamp.IsZero() {
			ev.FirstSeen = e.FirstTimestamp.String()
		}
		if !e.LastTimestamp.IsZero() {
			ev.LastSeen = e.LastTimestamp.String()
		}
		out = append(out, ev)
	}
	return out
}

// DeploymentDetails collects rollout status and conditions for a
// deployment and merges them into snap. A nil snap starts a new one.
func (c *Collector) DeploymentDetails(ctx context.Context, name, namespace string, snap *Snapshot) *Snapshot {
	ctx, span := c.tracer.Start(ctx, "Collector.DeploymentDetails")
	defer span.End()

	if snap == nil {
		snap = &Snapshot{Name: name, Namespace: namespace}
	}

	dep, err := c.client.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if snap.Error == "" {
			snap.Error = fmt.Sprintf("failed to fetch deployment: %v", err)
		}
		return snap
	}

	if dep.Spec.Replicas != nil {
		snap.ReplicasDesired = *dep.Spec.Replicas
	}
	snap.ReplicasAvailable = dep.Status.AvailableReplicas
	snap.ReplicasReady = dep.Status.ReadyReplicas
	snap.ReplicasUnavailable = dep.Status.UnavailableReplicas
	snap.Strategy = string(dep.Spec.Strategy.Type)

	for _, cond := range dep.Status.Conditions {
		snap.Conditions = append(snap.Conditions, DeploymentCondition{
			Type:    string(cond.Type),
			Status:  string(cond.Status),
			Reason:  cond.Reason,
			Message: cond.Message,
		})
	}

	return snap
}

// NamespaceOverview summarizes pod health and warning events in one
// namespace.
func (c *Collector) NamespaceOverview(ctx context.Context, namespace string) *NamespaceOverview {
	ctx, span := c.tracer.Start(ctx, "Collector.NamespaceOverview")
	defer span.End()

	overview := &NamespaceOverview{Namespace: namespace}

	pods, err := c.client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		overview.Error = fmt.Sprintf("failed to list pods: %v", err)
		return overview
	}

	for _, pod := range pods.Items {
		summary := PodSummary{
			Name:  pod.Name,
			Phase: string(pod.Status.Phase),
		}
		ready := len(pod.Status.ContainerStatuses) > 0
		for _, cs := range pod.Status.ContainerStatuses {
			summary.Restarts += cs.RestartCount
			if !cs.Ready {
				ready = false
			}
		}
		summary.Ready = ready

		overview.TotalPods++
		if summary.Phase != string(corev1.PodRunning) || !summary.Ready || summary.Restarts > 3 {
			overview.UnhealthyPods = append(overview.UnhealthyPods, summary)
		}
	}

	events, err := c.client.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{
		FieldSelector: "type=Warning",
		Limit:         c.config.EventLimit,
	})
	if err == nil {
		for _, e := range events.Items {
			overview.WarningEvents = append(overview.WarningEvents, Event{
				Reason:  e.Reason,
				Message: e.Message,
				Object:  e.InvolvedObject.Name,
				Count:   e.Count,
			})
		}
	}

	return overview
}

// ClusterHealth collects node conditions, HPAs, and resource quotas
// across the cluster.
func (c *Collector) ClusterHealth(ctx context.Context) *Health {
	ctx, span := c.tracer.Start(ctx, "Collector.ClusterHealth")
	defer span.End()

	health := &Health{}

	nodes, err := c.client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		health.Error = fmt.Sprintf("failed to list nodes: %v", err)
	} else {
		for _, node := range nodes.Items {
			conditions := make(map[corev1.NodeConditionType]corev1.ConditionStatus)
			for _, cond := range node.Status.Conditions {
				conditions[cond.Type] = cond.Status
			}
			nh := NodeHealth{
				Name:           node.Name,
				Ready:          string(conditions[corev1.NodeReady]),
				MemoryPressure: conditions[corev1.NodeMemoryPressure] == corev1.ConditionTrue,
				DiskPressure:   conditions[corev1.NodeDiskPressure] == corev1.ConditionTrue,
				PIDPressure:    conditions[corev1.NodePIDPressure] == corev1.ConditionTrue,
			}
			if cpu, ok := node.Status.Allocatable[corev1.ResourceCPU]; ok {
				nh.AllocatableCPU = cpu.String()
			}
			if mem, ok := node.Status.Allocatable[corev1.ResourceMemory]; ok {
				nh.AllocatableMemory = mem.String()
			}
			health.Nodes = append(health.Nodes, nh)
			if nh.Ready == string(corev1.ConditionTrue) {
				health.ReadyNodes++
			}
		}
		health.TotalNodes = len(health.Nodes)
	}

	hpas, err := c.client.AutoscalingV1().HorizontalPodAutoscalers(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err == nil {
		for _, hpa := range hpas.Items {
			health.HPAs = append(health.HPAs, HPAStatus{
				Name:                  hpa.Name,
				Namespace:             hpa.Namespace,
				MinReplicas:           hpa.Spec.MinReplicas,
				MaxReplicas:           hpa.Spec.MaxReplicas,
				CurrentReplicas:       hpa.Status.CurrentReplicas,
				DesiredReplicas:       hpa.Status.DesiredReplicas,
				CurrentCPUUtilization: hpa.Status.CurrentCPUUtilizationPercentage,
				TargetCPUUtilization:  hpa.Spec.TargetCPUUtilizationPercentage,
			})
		}
	}

	quotas, err := c.client.CoreV1().ResourceQuotas(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err == nil {
		for _, q := range quotas.Items {
			health.ResourceQuotas = append(health.ResourceQuotas, QuotaStatus{
				Name:      q.Name,
				Namespace: q.Namespace,
				Hard:      quantityMap(q.Status.Hard),
				Used:      quantityMap(q.Status.Used),
			})
		}
	}

	return health
}

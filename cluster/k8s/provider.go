package k8s

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/xraph/griddispatch"
	"github.com/xraph/griddispatch/cluster"
	"github.com/xraph/griddispatch/id"
)

// Compile-time check that Provider implements cluster.Store.
var _ cluster.Store = (*Provider)(nil)

const (
	defaultLabelSelector    = "app.kubernetes.io/component=griddispatch-node"
	defaultAnnotationPrefix = "griddispatch.xraph.com/"
)

// annotation keys, relative to the prefix.
const (
	annNodeID     = "node-id"
	annHostname   = "hostname"
	annCapacity   = "capacity"
	annActiveJobs = "active-jobs"
	annState      = "state"
	annLastSeen   = "last-seen"
	annCreatedAt  = "created-at"
	annMetadata   = "metadata"
)

var allAnnotations = []string{
	annNodeID, annHostname, annCapacity, annActiveJobs,
	annState, annLastSeen, annCreatedAt, annMetadata,
}

// Provider implements cluster.Store on Pod annotations discovered through a
// label selector.
type Provider struct {
	client           kubernetes.Interface
	namespace        string
	labelSelector    string
	annotationPrefix string
	logger           *slog.Logger
}

// New creates a Kubernetes cluster provider.
// The clientset and namespace are required.
func New(client kubernetes.Interface, namespace string, opts ...Option) *Provider {
	p := &Provider{
		client:           client,
		namespace:        namespace,
		labelSelector:    defaultLabelSelector,
		annotationPrefix: defaultAnnotationPrefix,
		logger:           slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ──────────────────────────────────────────────────
// Node registration (Pod annotations)
// ──────────────────────────────────────────────────

// RegisterNode stores node fields as annotations on the node's Pod. The
// Pod is located by matching the node's Hostname to the Pod name.
func (p *Provider) RegisterNode(ctx context.Context, n *cluster.Node) error {
	pod, err := p.client.CoreV1().Pods(p.namespace).Get(ctx, n.Hostname, metav1.GetOptions{})
	if err != nil {
		if errors.IsNotFound(err) {
			return fmt.Errorf("griddispatch/k8s: pod %q not found: %w", n.Hostname, griddispatch.ErrNodeNotFound)
		}
		return fmt.Errorf("griddispatch/k8s: register node get pod: %w", err)
	}

	if pod.Annotations == nil {
		pod.Annotations = make(map[string]string)
	}
	p.setNodeAnnotations(pod, n)

	if _, err := p.client.CoreV1().Pods(p.namespace).Update(ctx, pod, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("griddispatch/k8s: register node update pod: %w", err)
	}
	return nil
}

// DeregisterNode removes the node annotations from its Pod.
func (p *Provider) DeregisterNode(ctx context.Context, nodeID id.NodeID) error {
	pod, err := p.findPodByNodeID(ctx, nodeID.String())
	if err != nil {
		return err
	}
	if pod == nil {
		return griddispatch.ErrNodeNotFound
	}

	for _, k := range allAnnotations {
		delete(pod.Annotations, p.annotationPrefix+k)
	}

	if _, err := p.client.CoreV1().Pods(p.namespace).Update(ctx, pod, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("griddispatch/k8s: deregister node update pod: %w", err)
	}
	return nil
}

// HeartbeatNode updates the last-seen and active-jobs annotations.
func (p *Provider) HeartbeatNode(ctx context.Context, nodeID id.NodeID, activeJobs int) error {
	pod, err := p.findPodByNodeID(ctx, nodeID.String())
	if err != nil {
		return err
	}
	if pod == nil {
		return griddispatch.ErrNodeNotFound
	}

	pod.Annotations[p.annotationPrefix+annLastSeen] = time.Now().UTC().Format(time.RFC3339Nano)
	pod.Annotations[p.annotationPrefix+annActiveJobs] = strconv.Itoa(activeJobs)

	if _, err := p.client.CoreV1().Pods(p.namespace).Update(ctx, pod, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("griddispatch/k8s: heartbeat node update pod: %w", err)
	}
	return nil
}

// ListNodes returns every registered node by scanning Pod annotations.
// Pods that are not running are reported dead.
func (p *Provider) ListNodes(ctx context.Context) ([]*cluster.Node, error) {
	pods, err := p.client.CoreV1().Pods(p.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: p.labelSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("griddispatch/k8s: list nodes: %w", err)
	}

	nodes := make([]*cluster.Node, 0, len(pods.Items))
	for i := range pods.Items {
		pod := &pods.Items[i]
		n, convErr := p.nodeFromPod(pod)
		if convErr != nil {
			p.logger.Debug("k8s: skipping pod without node annotations",
				slog.String("pod", pod.Name),
				slog.String("error", convErr.Error()),
			)
			continue
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// ReapDeadNodes returns nodes whose last-seen annotation is older than
// the threshold, plus nodes whose Pod has terminated.
func (p *Provider) ReapDeadNodes(ctx context.Context, threshold time.Duration) ([]*cluster.Node, error) {
	all, err := p.ListNodes(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().Add(-threshold)
	var dead []*cluster.Node
	for _, n := range all {
		if n.State == cluster.NodeDead || n.LastSeen.Before(cutoff) {
			dead = append(dead, n)
		}
	}
	return dead, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (p *Provider) setNodeAnnotations(pod *corev1.Pod, n *cluster.Node) {
	a := pod.Annotations
	prefix := p.annotationPrefix

	a[prefix+annNodeID] = n.ID.String()
	a[prefix+annHostname] = n.Hostname
	a[prefix+annCapacity] = strconv.Itoa(n.Capacity)
	a[prefix+annActiveJobs] = strconv.Itoa(n.ActiveJobs)
	a[prefix+annState] = string(n.State)
	a[prefix+annLastSeen] = n.LastSeen.Format(time.RFC3339Nano)
	a[prefix+annCreatedAt] = n.CreatedAt.Format(time.RFC3339Nano)

	if len(n.Metadata) > 0 {
		b, _ := json.Marshal(n.Metadata) //nolint:errcheck // marshal of map[string]string does not fail
		a[prefix+annMetadata] = string(b)
	} else {
		delete(a, prefix+annMetadata)
	}
}

func (p *Provider) nodeFromPod(pod *corev1.Pod) (*cluster.Node, error) {
	prefix := p.annotationPrefix
	a := pod.Annotations

	rawID := a[prefix+annNodeID]
	if rawID == "" {
		return nil, fmt.Errorf("griddispatch/k8s: pod %q missing node-id annotation", pod.Name)
	}
	nodeID, err := id.ParseNodeID(rawID)
	if err != nil {
		return nil, fmt.Errorf("griddispatch/k8s: parse node id: %w", err)
	}

	capacity, _ := strconv.Atoi(a[prefix+annCapacity])                  //nolint:errcheck // best-effort parse
	active, _ := strconv.Atoi(a[prefix+annActiveJobs])                  //nolint:errcheck // best-effort parse
	lastSeen, _ := time.Parse(time.RFC3339Nano, a[prefix+annLastSeen])   //nolint:errcheck // best-effort parse
	createdAt, _ := time.Parse(time.RFC3339Nano, a[prefix+annCreatedAt]) //nolint:errcheck // best-effort parse

	n := &cluster.Node{
		ID:         nodeID,
		Hostname:   a[prefix+annHostname],
		Capacity:   capacity,
		ActiveJobs: active,
		State:      cluster.NodeState(a[prefix+annState]),
		LastSeen:   lastSeen,
		CreatedAt:  createdAt,
	}

	switch pod.Status.Phase {
	case corev1.PodFailed, corev1.PodSucceeded:
		n.State = cluster.NodeDead
	}

	if m := a[prefix+annMetadata]; m != "" {
		meta := make(map[string]string)
		if uErr := json.Unmarshal([]byte(m), &meta); uErr == nil {
			n.Metadata = meta
		}
	}
	return n, nil
}

// findPodByNodeID scans pods with the label selector for one whose node-id
// annotation matches.
func (p *Provider) findPodByNodeID(ctx context.Context, nodeID string) (*corev1.Pod, error) {
	pods, err := p.client.CoreV1().Pods(p.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: p.labelSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("griddispatch/k8s: find pod by node id: %w", err)
	}

	for i := range pods.Items {
		pod := &pods.Items[i]
		if pod.Annotations[p.annotationPrefix+annNodeID] == nodeID {
			return pod, nil
		}
	}
	return nil, nil
}

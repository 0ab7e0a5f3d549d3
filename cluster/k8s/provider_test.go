package k8s

import (
	"context"
	"errors"
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/xraph/griddispatch"
	"github.com/xraph/griddispatch/cluster"
	"github.com/xraph/griddispatch/id"
)

const testNS = "default"

// newTestProvider creates a Provider backed by the fake K8s client, with the
// given pods pre-created.
func newTestProvider(t *testing.T, pods ...*corev1.Pod) *Provider {
	t.Helper()
	cs := fake.NewClientset()
	for _, pod := range pods {
		if _, err := cs.CoreV1().Pods(testNS).Create(context.Background(), pod, metav1.CreateOptions{}); err != nil {
			t.Fatalf("create pod: %v", err)
		}
	}
	return New(cs, testNS)
}

// makeNodePod creates a labeled Pod suitable for a griddispatch node.
func makeNodePod(name string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: testNS,
			Labels: map[string]string{
				"app.kubernetes.io/component": "griddispatch-node",
			},
			Annotations: make(map[string]string),
		},
		Status: corev1.PodStatus{Phase: corev1.PodRunning},
	}
}

func makeNode(hostname string) *cluster.Node {
	now := time.Now().UTC()
	return &cluster.Node{
		ID:        id.NewNodeID(),
		Hostname:  hostname,
		Capacity:  5,
		State:     cluster.NodeActive,
		LastSeen:  now,
		Metadata:  map[string]string{"zone": "us-east-1"},
		CreatedAt: now,
	}
}

func getPod(t *testing.T, p *Provider, name string) *corev1.Pod {
	t.Helper()
	pod, err := p.client.CoreV1().Pods(testNS).Get(context.Background(), name, metav1.GetOptions{})
	if err != nil {
		t.Fatalf("get pod: %v", err)
	}
	return pod
}

// ──────────────────────────────────────────────────
// Registration tests
// ──────────────────────────────────────────────────

func TestRegisterNode(t *testing.T) {
	p := newTestProvider(t, makeNodePod("node-pod-1"))
	ctx := context.Background()

	n := makeNode("node-pod-1")
	if err := p.RegisterNode(ctx, n); err != nil {
		t.Fatalf("RegisterNode: %v", err)
	}

	a := getPod(t, p, "node-pod-1").Annotations
	prefix := defaultAnnotationPrefix
	if got := a[prefix+"node-id"]; got != n.ID.String() {
		t.Errorf("node-id annotation: got %q, want %q", got, n.ID.String())
	}
	if got := a[prefix+"capacity"]; got != "5" {
		t.Errorf("capacity annotation: got %q, want %q", got, "5")
	}
	if got := a[prefix+"active-jobs"]; got != "0" {
		t.Errorf("active-jobs annotation: got %q, want %q", got, "0")
	}
	if got := a[prefix+"state"]; got != "active" {
		t.Errorf("state annotation: got %q, want %q", got, "active")
	}
}

func TestRegisterNode_PodNotFound(t *testing.T) {
	p := newTestProvider(t)

	err := p.RegisterNode(context.Background(), makeNode("nonexistent-pod"))
	if !errors.Is(err, griddispatch.ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestDeregisterNode(t *testing.T) {
	p := newTestProvider(t, makeNodePod("node-pod-1"))
	ctx := context.Background()

	n := makeNode("node-pod-1")
	if err := p.RegisterNode(ctx, n); err != nil {
		t.Fatalf("RegisterNode: %v", err)
	}
	if err := p.DeregisterNode(ctx, n.ID); err != nil {
		t.Fatalf("DeregisterNode: %v", err)
	}

	a := getPod(t, p, "node-pod-1").Annotations
	for _, k := range allAnnotations {
		if _, ok := a[defaultAnnotationPrefix+k]; ok {
			t.Errorf("annotation %q should be removed", k)
		}
	}
}

func TestDeregisterNode_NotFound(t *testing.T) {
	p := newTestProvider(t)

	err := p.DeregisterNode(context.Background(), id.NewNodeID())
	if !errors.Is(err, griddispatch.ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// Heartbeat tests
// ──────────────────────────────────────────────────

func TestHeartbeatNode(t *testing.T) {
	p := newTestProvider(t, makeNodePod("node-pod-1"))
	ctx := context.Background()

	n := makeNode("node-pod-1")
	n.LastSeen = time.Now().UTC().Add(-time.Hour)
	if err := p.RegisterNode(ctx, n); err != nil {
		t.Fatalf("RegisterNode: %v", err)
	}

	before := time.Now().UTC()
	if err := p.HeartbeatNode(ctx, n.ID, 4); err != nil {
		t.Fatalf("HeartbeatNode: %v", err)
	}

	a := getPod(t, p, "node-pod-1").Annotations
	lastSeen, err := time.Parse(time.RFC3339Nano, a[defaultAnnotationPrefix+"last-seen"])
	if err != nil {
		t.Fatalf("parse last-seen: %v", err)
	}
	if lastSeen.Before(before) {
		t.Error("last-seen should be updated to now or later")
	}
	if got := a[defaultAnnotationPrefix+"active-jobs"]; got != "4" {
		t.Errorf("active-jobs annotation: got %q, want %q", got, "4")
	}
}

func TestHeartbeatNode_NotFound(t *testing.T) {
	p := newTestProvider(t)

	err := p.HeartbeatNode(context.Background(), id.NewNodeID(), 1)
	if !errors.Is(err, griddispatch.ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// ListNodes tests
// ──────────────────────────────────────────────────

func TestListNodes(t *testing.T) {
	p := newTestProvider(t, makeNodePod("node-pod-1"), makeNodePod("node-pod-2"))
	ctx := context.Background()

	for _, host := range []string{"node-pod-1", "node-pod-2"} {
		if err := p.RegisterNode(ctx, makeNode(host)); err != nil {
			t.Fatalf("RegisterNode %s: %v", host, err)
		}
	}

	nodes, err := p.ListNodes(ctx)
	if err != nil {
		t.Fatalf("ListNodes: %v", err)
	}
	if got := len(nodes); got != 2 {
		t.Fatalf("expected 2 nodes, got %d", got)
	}
}

func TestListNodes_SkipsUnannotatedPods(t *testing.T) {
	p := newTestProvider(t, makeNodePod("plain-pod"))

	nodes, err := p.ListNodes(context.Background())
	if err != nil {
		t.Fatalf("ListNodes: %v", err)
	}
	if len(nodes) != 0 {
		t.Fatalf("expected 0 nodes (pod has no annotations), got %d", len(nodes))
	}
}

func TestListNodes_TerminatedPodIsDead(t *testing.T) {
	pod := makeNodePod("done-pod")
	pod.Status.Phase = corev1.PodFailed
	p := newTestProvider(t, pod)
	ctx := context.Background()

	if err := p.RegisterNode(ctx, makeNode("done-pod")); err != nil {
		t.Fatalf("RegisterNode: %v", err)
	}

	nodes, err := p.ListNodes(ctx)
	if err != nil {
		t.Fatalf("ListNodes: %v", err)
	}
	if len(nodes) != 1 || nodes[0].State != cluster.NodeDead {
		t.Fatalf("expected one dead node, got %+v", nodes)
	}
}

// ──────────────────────────────────────────────────
// ReapDeadNodes tests
// ──────────────────────────────────────────────────

func TestReapDeadNodes(t *testing.T) {
	p := newTestProvider(t, makeNodePod("alive-pod"), makeNodePod("dead-pod"))
	ctx := context.Background()

	now := time.Now().UTC()
	alive := makeNode("alive-pod")
	dead := makeNode("dead-pod")
	dead.LastSeen = now.Add(-2 * time.Hour)

	if err := p.RegisterNode(ctx, alive); err != nil {
		t.Fatalf("RegisterNode alive: %v", err)
	}
	if err := p.RegisterNode(ctx, dead); err != nil {
		t.Fatalf("RegisterNode dead: %v", err)
	}

	reaped, err := p.ReapDeadNodes(ctx, time.Hour)
	if err != nil {
		t.Fatalf("ReapDeadNodes: %v", err)
	}
	if len(reaped) != 1 {
		t.Fatalf("expected 1 dead node, got %d", len(reaped))
	}
	if reaped[0].Hostname != "dead-pod" {
		t.Errorf("expected dead node hostname %q, got %q", "dead-pod", reaped[0].Hostname)
	}
}

// ──────────────────────────────────────────────────
// Metrics view over pods
// ──────────────────────────────────────────────────

func TestViewOverPods(t *testing.T) {
	p := newTestProvider(t, makeNodePod("node-a"), makeNodePod("node-b"))
	ctx := context.Background()

	a := makeNode("node-a")
	b := makeNode("node-b")
	b.ActiveJobs = 3
	for _, n := range []*cluster.Node{a, b} {
		if err := p.RegisterNode(ctx, n); err != nil {
			t.Fatalf("RegisterNode: %v", err)
		}
	}

	v := cluster.NewView(p, a.ID, 5, cluster.WithLocalLoad(func() int { return 1 }))
	nodes, err := v.Topology(ctx)
	if err != nil {
		t.Fatalf("Topology: %v", err)
	}

	total := 0
	for _, n := range nodes {
		active, err := v.ActiveJobs(ctx, n)
		if err != nil {
			t.Fatalf("ActiveJobs: %v", err)
		}
		total += active
	}
	if total != 4 {
		t.Errorf("cluster active = %d, want 4", total)
	}
}

// ──────────────────────────────────────────────────
// Options tests
// ──────────────────────────────────────────────────

func TestOptions(t *testing.T) {
	p := New(fake.NewClientset(), testNS,
		WithLabelSelector("app=my-node"),
		WithAnnotationPrefix("myapp.io/"),
	)

	if p.labelSelector != "app=my-node" {
		t.Errorf("labelSelector: got %q, want %q", p.labelSelector, "app=my-node")
	}
	if p.annotationPrefix != "myapp.io/" {
		t.Errorf("annotationPrefix: got %q, want %q", p.annotationPrefix, "myapp.io/")
	}
}

func TestNodeAnnotationRoundTrip(t *testing.T) {
	p := newTestProvider(t, makeNodePod("roundtrip-pod"))
	ctx := context.Background()

	original := makeNode("roundtrip-pod")
	original.ActiveJobs = 2
	if err := p.RegisterNode(ctx, original); err != nil {
		t.Fatalf("RegisterNode: %v", err)
	}

	nodes, err := p.ListNodes(ctx)
	if err != nil {
		t.Fatalf("ListNodes: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}

	n := nodes[0]
	if n.ID.String() != original.ID.String() {
		t.Errorf("ID mismatch: got %v, want %v", n.ID, original.ID)
	}
	if n.Hostname != original.Hostname {
		t.Errorf("Hostname mismatch: got %q, want %q", n.Hostname, original.Hostname)
	}
	if n.Capacity != original.Capacity || n.ActiveJobs != 2 {
		t.Errorf("Capacity/ActiveJobs mismatch: got %d/%d", n.Capacity, n.ActiveJobs)
	}
	if n.State != original.State {
		t.Errorf("State mismatch: got %q, want %q", n.State, original.State)
	}
	if n.Metadata["zone"] != "us-east-1" {
		t.Errorf("Metadata mismatch: got %v", n.Metadata)
	}
}

// Package k8s provides a Kubernetes-native cluster.Store implementation.
//
// Nodes are the Pods matching a label selector. Each node's registry entry
// (id, capacity, active job count, state, last heartbeat) lives in Pod
// annotations, so the cluster topology is whatever the API server reports
// for those Pods.
//
// Example:
//
//	client := kubernetes.NewForConfigOrDie(rest.InClusterConfig())
//	provider := k8s.New(client, "my-namespace")
//	// Use provider as a cluster.Store
package k8s

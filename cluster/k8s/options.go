package k8s

import "log/slog"

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// WithLabelSelector overrides the label selector used to discover node Pods.
// Default: "app.kubernetes.io/component=griddispatch-node".
func WithLabelSelector(sel string) Option {
	return func(p *Provider) { p.labelSelector = sel }
}

// WithAnnotationPrefix sets the prefix for node annotations on Pods.
// Default: "griddispatch.xraph.com/".
func WithAnnotationPrefix(prefix string) Option {
	return func(p *Provider) { p.annotationPrefix = prefix }
}

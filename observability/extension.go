package observability

import (
	"context"

	gu "github.com/xraph/go-utils/metrics"

	"github.com/xraph/griddispatch/ext"
	"github.com/xraph/griddispatch/grid"
	"github.com/xraph/griddispatch/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension    = (*MetricsExtension)(nil)
	_ ext.JobClaimed   = (*MetricsExtension)(nil)
	_ ext.JobSubmitted = (*MetricsExtension)(nil)
	_ ext.JobFinished  = (*MetricsExtension)(nil)
	_ ext.SubmitFailed = (*MetricsExtension)(nil)
)

// MetricsExtension records dispatch lifecycle metrics via go-utils
// MetricFactory.
type MetricsExtension struct {
	JobClaimed      gu.Counter
	JobSubmitted    gu.Counter
	JobCompleted    gu.Counter
	JobFailedRemote gu.Counter
	SubmitFailed    gu.Counter
}

// NewMetricsExtension creates a MetricsExtension using a default metrics collector.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithFactory(gu.NewMetricsCollector("griddispatch/observability"))
}

// NewMetricsExtensionWithFactory creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtensionWithFactory(factory gu.MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		JobClaimed:      factory.Counter("griddispatch.job.claimed"),
		JobSubmitted:    factory.Counter("griddispatch.job.submitted"),
		JobCompleted:    factory.Counter("griddispatch.job.completed"),
		JobFailedRemote: factory.Counter("griddispatch.job.failed_remote"),
		SubmitFailed:    factory.Counter("griddispatch.job.submit_failed"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnJobClaimed implements ext.JobClaimed.
func (m *MetricsExtension) OnJobClaimed(_ context.Context, _ *job.Job) error {
	m.JobClaimed.Inc()
	return nil
}

// OnJobSubmitted implements ext.JobSubmitted.
func (m *MetricsExtension) OnJobSubmitted(_ context.Context, _ *job.Job) error {
	m.JobSubmitted.Inc()
	return nil
}

// OnJobFinished implements ext.JobFinished. Runtime failures on the grid
// count separately from rejected submissions.
func (m *MetricsExtension) OnJobFinished(_ context.Context, _ *job.Job, r grid.Result) error {
	if r.Err != nil {
		m.JobFailedRemote.Inc()
		return nil
	}
	m.JobCompleted.Inc()
	return nil
}

// OnSubmitFailed implements ext.SubmitFailed.
func (m *MetricsExtension) OnSubmitFailed(_ context.Context, _ *job.Job, _ error) error {
	m.SubmitFailed.Inc()
	return nil
}

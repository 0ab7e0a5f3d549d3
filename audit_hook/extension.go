package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/griddispatch/ext"
	"github.com/xraph/griddispatch/grid"
	"github.com/xraph/griddispatch/id"
	"github.com/xraph/griddispatch/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension    = (*Extension)(nil)
	_ ext.JobClaimed   = (*Extension)(nil)
	_ ext.JobSubmitted = (*Extension)(nil)
	_ ext.SubmitFailed = (*Extension)(nil)
	_ ext.JobFinished  = (*Extension)(nil)
	_ ext.Shutdown     = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audited lifecycle transition.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// LogRecorder writes each event as one structured log line. Critical
// events are logged at error level, warnings at warn, the rest at info.
func LogRecorder(logger *slog.Logger) Recorder {
	return RecorderFunc(func(ctx context.Context, evt *AuditEvent) error {
		level := slog.LevelInfo
		switch evt.Severity {
		case SeverityWarning:
			level = slog.LevelWarn
		case SeverityCritical:
			level = slog.LevelError
		}
		attrs := []slog.Attr{
			slog.String("action", evt.Action),
			slog.String("resource", evt.Resource),
			slog.String("resource_id", evt.ResourceID),
			slog.String("outcome", evt.Outcome),
		}
		if evt.Reason != "" {
			attrs = append(attrs, slog.String("reason", evt.Reason))
		}
		for k, v := range evt.Metadata {
			attrs = append(attrs, slog.Any(k, v))
		}
		logger.LogAttrs(ctx, level, "audit", attrs...)
		return nil
	})
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	nodeID   id.NodeID
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through r.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Job lifecycle hooks ─────────────────────────────

// OnJobClaimed implements ext.JobClaimed.
func (e *Extension) OnJobClaimed(ctx context.Context, j *job.Job) error {
	return e.record(ctx, ActionJobClaimed, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"job_name", j.Name,
		"task_id", j.TaskID.String(),
	)
}

// OnJobSubmitted implements ext.JobSubmitted.
func (e *Extension) OnJobSubmitted(ctx context.Context, j *job.Job) error {
	return e.record(ctx, ActionJobSubmitted, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"job_name", j.Name,
		"task_id", j.TaskID.String(),
	)
}

// OnSubmitFailed implements ext.SubmitFailed. The job has been dropped.
func (e *Extension) OnSubmitFailed(ctx context.Context, j *job.Job, submitErr error) error {
	return e.record(ctx, ActionJobSubmitFailed, SeverityCritical, OutcomeFailure,
		ResourceJob, j.ID.String(), CategoryJob, submitErr,
		"job_name", j.Name,
		"task_id", j.TaskID.String(),
	)
}

// OnJobFinished implements ext.JobFinished.
func (e *Extension) OnJobFinished(ctx context.Context, j *job.Job, r grid.Result) error {
	severity, outcome := SeverityInfo, OutcomeSuccess
	if r.Err != nil {
		severity, outcome = SeverityWarning, OutcomeFailure
	}
	return e.record(ctx, ActionJobFinished, severity, outcome,
		ResourceJob, j.ID.String(), CategoryJob, r.Err,
		"job_name", j.Name,
		"task_id", j.TaskID.String(),
		"elapsed_ms", r.Elapsed.Milliseconds(),
	)
}

// ── Node lifecycle hooks ────────────────────────────

// OnShutdown implements ext.Shutdown.
func (e *Extension) OnShutdown(ctx context.Context) error {
	return e.record(ctx, ActionNodeShutdown, SeverityInfo, OutcomeSuccess,
		ResourceNode, e.nodeID.String(), CategoryNode, nil)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+2)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}
	if !e.nodeID.IsNil() {
		meta["node_id"] = e.nodeID.String()
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			slog.String("action", action),
			slog.String("resource_id", resourceID),
			slog.String("error", recErr.Error()),
		)
	}
	return nil
}

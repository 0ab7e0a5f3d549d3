package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionJobClaimed      = "job.claimed"
	ActionJobSubmitted    = "job.submitted"
	ActionJobSubmitFailed = "job.submit_failed"
	ActionJobFinished     = "job.finished"
	ActionNodeShutdown    = "node.shutdown"
)

// Audit event categories group related actions.
const (
	CategoryJob  = "griddispatch.job"
	CategoryNode = "griddispatch.node"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceJob  = "job"
	ResourceNode = "node"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionJobClaimed,
		ActionJobSubmitted,
		ActionJobSubmitFailed,
		ActionJobFinished,
		ActionNodeShutdown,
	}
}

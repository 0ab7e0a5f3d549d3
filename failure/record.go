package failure

import (
	"time"

	"github.com/xraph/griddispatch/id"
)

// Record is a terminal submission failure for one job of a task.
type Record struct {
	ID       id.FailureID `json:"id"`
	TaskID   id.TaskID    `json:"task_id"`
	JobID    id.JobID     `json:"job_id"`
	JobName  string       `json:"job_name"`
	Message  string       `json:"message"`
	NodeID   id.NodeID    `json:"node_id,omitempty"`
	FailedAt time.Time    `json:"failed_at"`
}

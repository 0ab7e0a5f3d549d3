package job

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/griddispatch/id"
)

// Job is a unit of work belonging to a task. It is immutable once
// enqueued.
type Job struct {
	ID         id.JobID  `json:"id"`
	TaskID     id.TaskID `json:"task_id"`
	Name       string    `json:"name"`
	Payload    []byte    `json:"payload,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// New builds a job for the named handler with a fresh job id and a JSON
// encoded payload. A nil payload is left empty.
func New(name string, taskID id.TaskID, payload any) (*Job, error) {
	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload for job %q: %w", name, err)
		}
	}
	return &Job{
		ID:         id.NewJobID(),
		TaskID:     taskID,
		Name:       name,
		Payload:    data,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

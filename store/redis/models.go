package redis

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/xraph/griddispatch/failure"
	"github.com/xraph/griddispatch/id"
	"github.com/xraph/griddispatch/job"
)

// jobModel is the msgpack wire form of a queued job.
type jobModel struct {
	ID         string `msgpack:"id"`
	TaskID     string `msgpack:"task_id"`
	Name       string `msgpack:"name"`
	Payload    []byte `msgpack:"payload"`
	EnqueuedAt int64  `msgpack:"enqueued_at"`
}

func encodeJob(j *job.Job) ([]byte, error) {
	return msgpack.Marshal(&jobModel{
		ID:         j.ID.String(),
		TaskID:     j.TaskID.String(),
		Name:       j.Name,
		Payload:    j.Payload,
		EnqueuedAt: j.EnqueuedAt.UnixNano(),
	})
}

func decodeJob(data []byte) (*job.Job, error) {
	var m jobModel
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("griddispatch/redis: decode job: %w", err)
	}
	jobID, err := id.ParseJobID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("griddispatch/redis: parse job id: %w", err)
	}
	taskID, err := id.ParseTaskID(m.TaskID)
	if err != nil {
		return nil, fmt.Errorf("griddispatch/redis: parse task id: %w", err)
	}
	return &job.Job{
		ID:         jobID,
		TaskID:     taskID,
		Name:       m.Name,
		Payload:    m.Payload,
		EnqueuedAt: time.Unix(0, m.EnqueuedAt).UTC(),
	}, nil
}

// failureModel is the msgpack wire form of a failure record. NodeID is
// empty when the record carries no node.
type failureModel struct {
	ID       string `msgpack:"id"`
	TaskID   string `msgpack:"task_id"`
	JobID    string `msgpack:"job_id"`
	JobName  string `msgpack:"job_name"`
	Message  string `msgpack:"message"`
	NodeID   string `msgpack:"node_id,omitempty"`
	FailedAt int64  `msgpack:"failed_at"`
}

func encodeFailure(r *failure.Record) ([]byte, error) {
	return msgpack.Marshal(&failureModel{
		ID:       r.ID.String(),
		TaskID:   r.TaskID.String(),
		JobID:    r.JobID.String(),
		JobName:  r.JobName,
		Message:  r.Message,
		NodeID:   r.NodeID.String(),
		FailedAt: r.FailedAt.UnixNano(),
	})
}

func decodeFailure(data []byte) (*failure.Record, error) {
	var m failureModel
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("griddispatch/redis: decode failure: %w", err)
	}
	failureID, err := id.ParseFailureID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("griddispatch/redis: parse failure id: %w", err)
	}
	taskID, err := id.ParseTaskID(m.TaskID)
	if err != nil {
		return nil, fmt.Errorf("griddispatch/redis: parse task id: %w", err)
	}
	r := &failure.Record{
		ID:       failureID,
		TaskID:   taskID,
		JobName:  m.JobName,
		Message:  m.Message,
		FailedAt: time.Unix(0, m.FailedAt).UTC(),
	}
	if m.JobID != "" {
		r.JobID, _ = id.ParseJobID(m.JobID) //nolint:errcheck // best-effort parse from trusted Redis data
	}
	if m.NodeID != "" {
		r.NodeID, _ = id.ParseNodeID(m.NodeID) //nolint:errcheck // best-effort parse from trusted Redis data
	}
	return r, nil
}

// timeScore scores sorted-set members by microseconds, which a float64
// holds exactly for any realistic date.
func timeScore(t time.Time) float64 {
	return float64(t.UnixMicro())
}

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/xraph/griddispatch"
	"github.com/xraph/griddispatch/cluster"
	"github.com/xraph/griddispatch/failure"
	"github.com/xraph/griddispatch/id"
)

// EnqueueRequest is the body of POST /v1/jobs.
type EnqueueRequest struct {
	Name    string          `json:"name"`
	TaskID  string          `json:"task_id"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// QueueStatus is the body of GET /v1/queue.
type QueueStatus struct {
	Length int64 `json:"length"`
}

// ClusterStatus is the body of GET /v1/cluster.
type ClusterStatus struct {
	NodeID       string          `json:"node_id"`
	PoolSize     int             `json:"pool_size"`
	FreeCapacity int             `json:"free_capacity"`
	Nodes        []*cluster.Node `json:"nodes"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondOK(w, r, map[string]any{
		"node_id": s.eng.Node().ID().String(),
		"running": s.eng.Dispatcher().Running(),
	})
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.Name == "" {
		respondError(w, r, http.StatusBadRequest, "invalid_body", "name is required")
		return
	}

	// An absent task id is left to the engine, which rejects it.
	var taskID id.TaskID
	if req.TaskID != "" {
		parsed, err := id.ParseTaskID(req.TaskID)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "invalid_task_id", err.Error())
			return
		}
		taskID = parsed
	}

	j, err := s.eng.EnqueueRaw(r.Context(), req.Name, taskID, req.Payload)
	switch {
	case errors.Is(err, griddispatch.ErrInvalidJob):
		respondError(w, r, http.StatusBadRequest, "invalid_job", err.Error())
		return
	case errors.Is(err, griddispatch.ErrJobAlreadyExists):
		respondError(w, r, http.StatusConflict, "duplicate_job", err.Error())
		return
	case err != nil:
		s.internalError(w, r, "enqueue", err)
		return
	}
	respondCreated(w, r, j)
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	n, err := s.eng.QueueLen(r.Context())
	if err != nil {
		s.internalError(w, r, "queue length", err)
		return
	}
	respondOK(w, r, QueueStatus{Length: n})
}

func (s *Server) handleCluster(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.eng.Topology(r.Context())
	if err != nil {
		s.internalError(w, r, "topology", err)
		return
	}
	free, err := s.eng.FreeCapacity(r.Context())
	if err != nil {
		s.internalError(w, r, "free capacity", err)
		return
	}
	if nodes == nil {
		nodes = []*cluster.Node{}
	}
	respondOK(w, r, ClusterStatus{
		NodeID:       s.eng.Node().ID().String(),
		PoolSize:     s.eng.Node().Config().PoolSize,
		FreeCapacity: free,
		Nodes:        nodes,
	})
}

func (s *Server) handleFailures(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var opts failure.ListOpts
	if raw := q.Get("task_id"); raw != "" {
		taskID, err := id.ParseTaskID(raw)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "invalid_task_id", err.Error())
			return
		}
		opts.TaskID = taskID
	}
	var err error
	if opts.Limit, err = intParam(q.Get("limit")); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_limit", err.Error())
		return
	}
	if opts.Offset, err = intParam(q.Get("offset")); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_offset", err.Error())
		return
	}

	records, err := s.eng.FailureService().Store().ListFailures(r.Context(), opts)
	if err != nil {
		s.internalError(w, r, "list failures", err)
		return
	}
	if records == nil {
		records = []*failure.Record{}
	}
	respondOK(w, r, records)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.Error("api: "+op+" failed", slog.String("error", err.Error()))
	respondError(w, r, http.StatusInternalServerError, "internal", err.Error())
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("must not be negative")
	}
	return n, nil
}

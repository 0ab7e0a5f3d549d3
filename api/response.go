package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Response is the envelope of every API response.
type Response struct {
	Status    string    `json:"status"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     *Error    `json:"error,omitempty"`
}

// Error describes a failed request.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondOK(w http.ResponseWriter, r *http.Request, data any) {
	respondJSON(w, r, http.StatusOK, data, nil)
}

func respondCreated(w http.ResponseWriter, r *http.Request, data any) {
	respondJSON(w, r, http.StatusCreated, data, nil)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	respondJSON(w, r, status, nil, &Error{Code: code, Message: msg})
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, data any, apiErr *Error) {
	resp := Response{
		Status:    "ok",
		RequestID: middleware.GetReqID(r.Context()),
		Timestamp: time.Now().UTC(),
		Data:      data,
		Error:     apiErr,
	}
	if apiErr != nil {
		resp.Status = "error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp) //nolint:errcheck // best-effort response write
}

package api

import (
	"encoding/json"

	"github.com/tverdon/offload-api/internal/job"
)

// SubmitJobRequest is the payload for the job submission endpoint.
// Args are the positional arguments for the operation, passed through
// to the handler untouched.
type SubmitJobRequest struct {
	Operation string          `json:"operation" validate:"required,min=1,max=200"`
	Args      json.RawMessage `json:"args,omitempty"`
}

// SubmitJobResponse acknowledges an accepted submission. The job runs
// in the background; poll the status endpoint or subscribe to the
// notification channel for the outcome.
type SubmitJobResponse struct {
	JobID string `json:"job_id"`
}

// JobStatusResponse reports the current state of a job. Result is
// present only for SUCCESS, Error only for FAILURE.
type JobStatusResponse struct {
	JobID     string          `json:"job_id"`
	Operation string          `json:"operation,omitempty"`
	State     string          `json:"state"`
	Attempts  int             `json:"attempts,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// OperationsResponse lists the operations open for submission.
type OperationsResponse struct {
	Operations []string `json:"operations"`
}

// newJobStatusResponse builds the status payload for a stored job.
func newJobStatusResponse(j *job.Job) JobStatusResponse {
	resp := JobStatusResponse{
		JobID:     j.ID.String(),
		Operation: j.Operation,
		State:     string(j.State),
		Attempts:  j.Attempts,
	}
	switch j.State {
	case job.StateSuccess:
		resp.Result = j.Result
	case job.StateFailure:
		resp.Error = j.Error
	}
	return resp
}

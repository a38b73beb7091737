// Package api implements the HTTP handlers: job submission, status
// queries and the WebSocket notification endpoint.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tverdon/offload-api/internal/api/shared"
	"github.com/tverdon/offload-api/internal/job"
	"github.com/tverdon/offload-api/internal/service"
	"github.com/tverdon/offload-api/internal/store"
)

// JobHandler serves the job endpoints.
type JobHandler struct {
	service *service.JobService
	logger  *slog.Logger
}

// NewJobHandler creates a JobHandler backed by the given service.
func NewJobHandler(svc *service.JobService, logger *slog.Logger) *JobHandler {
	return &JobHandler{service: svc, logger: logger}
}

// SubmitJob handles POST /api/jobs. It validates the request,
// enqueues the job and answers 202 with the job ID before the job
// executes.
func (h *JobHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitJobRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	j, err := h.service.Submit(r.Context(), req.Operation, req.Args)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitJobResponse{JobID: j.ID.String()})
}

// GetJobStatus handles GET /api/jobs/{id}. An ID the store has never
// seen reports PENDING rather than 404: the caller holds an ID we
// handed out, and the record may not have become visible yet.
func (h *JobHandler) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid job ID", err)
		return
	}

	j, err := h.service.Status(r.Context(), id)
	if errors.Is(err, store.ErrJobNotFound) {
		shared.RespondWithJSON(w, r, http.StatusOK, JobStatusResponse{
			JobID: id.String(),
			State: string(job.StatePending),
		})
		return
	}
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, newJobStatusResponse(j))
}

// ListOperations handles GET /api/operations.
func (h *JobHandler) ListOperations(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, OperationsResponse{
		Operations: h.service.Operations(),
	})
}

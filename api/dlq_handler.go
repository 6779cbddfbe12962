package api

import (
	"net/http"

	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
)

// DLQResponse is the body of GET /api/dlq.
type DLQResponse struct {
	Count int        `json:"count"`
	Jobs  []*job.Job `json:"jobs"`
}

// RetryDLQRequest is the body of POST /api/dlq/retry.
type RetryDLQRequest struct {
	ID string `json:"id"`
}

func (a *API) listDLQ(w http.ResponseWriter, r *http.Request) {
	jobs, err := a.eng.ListDead(r.Context(), job.ListOpts{})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []*job.Job{}
	}
	a.writeJSON(w, http.StatusOK, DLQResponse{Count: len(jobs), Jobs: jobs})
}

func (a *API) retryDLQ(w http.ResponseWriter, r *http.Request) {
	var req RetryDLQRequest
	if err := a.decode(w, r, &req); err != nil {
		a.badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.ID == "" {
		a.badRequest(w, "job ID is required")
		return
	}
	jobID, err := id.ParseJobID(req.ID)
	if err != nil {
		a.badRequest(w, "invalid job ID: "+err.Error())
		return
	}

	j, err := a.eng.RetryFromDLQ(r.Context(), jobID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, j)
}

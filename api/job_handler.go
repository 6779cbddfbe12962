package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
)

// Paging bounds for GET /api/jobs.
const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Bounds applied to max_retries on POST /api/enqueue.
const (
	minEnqueueRetries = 1
	maxEnqueueRetries = 10
)

// ListJobsResponse is the body of GET /api/jobs.
type ListJobsResponse struct {
	Jobs  []*job.Job `json:"jobs"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
}

// EnqueueRequest is the body of POST /api/enqueue.
type EnqueueRequest struct {
	ID         string `json:"id,omitempty"`
	Command    string `json:"command"`
	MaxRetries *int   `json:"max_retries,omitempty"`
}

func (a *API) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	state := job.StatePending
	if s := q.Get("state"); s != "" {
		parsed, err := job.ParseState(s)
		if err != nil {
			a.badRequest(w, err.Error())
			return
		}
		state = parsed
	}

	page := positiveParam(q.Get("page"), 1)
	limit := min(positiveParam(q.Get("limit"), defaultPageLimit), maxPageLimit)

	jobs, err := a.eng.List(r.Context(), state, job.ListOpts{
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []*job.Job{}
	}
	a.writeJSON(w, http.StatusOK, ListJobsResponse{Jobs: jobs, Page: page, Limit: limit})
}

func (a *API) getJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := id.ParseJobID(chi.URLParam(r, "jobID"))
	if err != nil {
		a.badRequest(w, "invalid job ID: "+err.Error())
		return
	}

	j, err := a.eng.Get(r.Context(), jobID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, j)
}

func (a *API) enqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := a.decode(w, r, &req); err != nil {
		a.badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		a.badRequest(w, "command is required")
		return
	}

	var opts []job.Option
	if req.ID != "" {
		jobID, err := id.ParseJobID(req.ID)
		if err != nil {
			a.badRequest(w, "invalid job ID: "+err.Error())
			return
		}
		opts = append(opts, job.WithID(jobID))
	}
	if req.MaxRetries != nil {
		n := min(max(*req.MaxRetries, minEnqueueRetries), maxEnqueueRetries)
		opts = append(opts, job.WithMaxRetries(n))
	}

	j, err := a.eng.Enqueue(r.Context(), req.Command, opts...)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, j)
}

// positiveParam parses a positive integer query value, returning def for
// anything else.
func positiveParam(v string, def int) int {
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

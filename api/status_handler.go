package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/xraph/queuectl/status"
	"github.com/xraph/queuectl/worker"
)

// Bounds applied to the count on POST /api/workers/start.
const (
	minStartWorkers = 1
	maxStartWorkers = 10
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	*status.Report
	Running bool          `json:"running"`
	Local   []worker.Info `json:"local_workers"`
}

// StartWorkersRequest is the body of POST /api/workers/start.
type StartWorkersRequest struct {
	Count int `json:"count"`
}

// WorkersResponse is returned by the worker control routes.
type WorkersResponse struct {
	Running bool `json:"running"`
	Workers int  `json:"workers"`
}

func (a *API) status(w http.ResponseWriter, r *http.Request) {
	rep, err := a.eng.Report(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	local := a.eng.Workers()
	if local == nil {
		local = []worker.Info{}
	}
	a.writeJSON(w, http.StatusOK, StatusResponse{Report: rep, Running: a.eng.Running(), Local: local})
}

func (a *API) startWorkers(w http.ResponseWriter, r *http.Request) {
	var req StartWorkersRequest
	if err := a.decode(w, r, &req); err != nil {
		a.badRequest(w, "invalid request body: "+err.Error())
		return
	}
	upper := min(maxStartWorkers, a.eng.Config().MaxWorkers)
	count := min(max(req.Count, minStartWorkers), upper)

	// The pool outlives the request.
	if err := a.eng.StartWorkers(context.WithoutCancel(r.Context()), count); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, WorkersResponse{Running: true, Workers: count})
}

func (a *API) stopWorkers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), a.eng.Config().ShutdownTimeout)
	defer cancel()

	if err := a.eng.StopWorkers(ctx); err != nil {
		a.writeError(w, r, err)
		return
	}
	if reaped, err := a.eng.ReapWorkers(ctx); err != nil {
		a.logger.Warn("api: reap workers", slog.String("error", err.Error()))
	} else if len(reaped) > 0 {
		a.logger.Info("api: reaped stale workers", slog.Int("count", len(reaped)))
	}
	a.writeJSON(w, http.StatusOK, WorkersResponse{Running: a.eng.Running()})
}

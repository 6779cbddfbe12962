package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/xraph/queuectl"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("api: write response", slog.String("error", err.Error()))
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		a.logger.Error("api: request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", msg),
		)
		msg = http.StatusText(status)
	}
	a.writeJSON(w, status, errorResponse{Error: msg})
}

func (a *API) badRequest(w http.ResponseWriter, msg string) {
	a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func (a *API) decode(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, a.maxBodySize)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// statusFor maps queuectl errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, queuectl.ErrJobNotFound),
		errors.Is(err, queuectl.ErrWorkerNotFound):
		return http.StatusNotFound
	case errors.Is(err, queuectl.ErrJobAlreadyExists),
		errors.Is(err, queuectl.ErrInvalidState),
		errors.Is(err, queuectl.ErrWorkersRunning),
		errors.Is(err, queuectl.ErrWorkersNotRunning):
		return http.StatusConflict
	case errors.Is(err, queuectl.ErrInvalidCommand),
		errors.Is(err, queuectl.ErrInvalidJobID),
		errors.Is(err, queuectl.ErrInvalidMaxRetries),
		errors.Is(err, queuectl.ErrInvalidWorkerCount),
		errors.Is(err, queuectl.ErrInvalidConfig):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

package api

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/xraph/queuectl/config"
)

const redacted = "********"

func (a *API) getConfig(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, a.snapshot())
}

// putConfig validates every pair before staging any, then saves once.
func (a *API) putConfig(w http.ResponseWriter, r *http.Request) {
	if a.cfgStore == nil {
		a.writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "config is read-only"})
		return
	}

	var body map[string]any
	if err := a.decode(w, r, &body); err != nil || body == nil {
		a.badRequest(w, "invalid configuration format")
		return
	}

	keys := make([]string, 0, len(body))
	values := make(map[string]string, len(body))
	for k, v := range body {
		s := configValue(v)
		if err := config.Validate(k, s); err != nil {
			a.writeError(w, r, err)
			return
		}
		keys = append(keys, k)
		values[k] = s
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := a.cfgStore.Set(k, values[k]); err != nil {
			a.writeError(w, r, err)
			return
		}
	}
	if err := a.cfgStore.Save(); err != nil {
		a.writeError(w, r, fmt.Errorf("save config: %w", err))
		return
	}
	a.writeJSON(w, http.StatusOK, a.snapshot())
}

func (a *API) snapshot() map[string]string {
	var p config.Provider = a.cfg
	if p == nil && a.cfgStore != nil {
		p = a.cfgStore
	}
	out := config.Snapshot(p)
	for _, k := range []string{config.KeyDSN, config.KeyAMQPURL} {
		if out[k] != "" {
			out[k] = redacted
		}
	}
	return out
}

// configValue renders a decoded JSON value the way it would be typed on
// the command line.
func configValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

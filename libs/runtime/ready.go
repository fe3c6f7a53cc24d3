package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// ReadyCheck is a named dependency check for /readyz.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

const readyTimeout = 2 * time.Second

// NewBaseMuxWithReady serves /healthz and /readyz. /readyz runs every check
// and answers 503 with the failing dependencies when any of them errors.
func NewBaseMuxWithReady(checks ...ReadyCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, nil)
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		failures := map[string]string{}
		for _, check := range checks {
			if check.Check == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
			err := check.Check(ctx)
			cancel()
			if err != nil {
				name := check.Name
				if name == "" {
					name = "dependency"
				}
				failures[name] = err.Error()
			}
		}
		if len(failures) > 0 {
			writeStatus(w, http.StatusServiceUnavailable, failures)
			return
		}
		writeStatus(w, http.StatusOK, nil)
	})
	return mux
}

func writeStatus(w http.ResponseWriter, code int, failures map[string]string) {
	body := struct {
		Status   string            `json:"status"`
		Failures map[string]string `json:"failures,omitempty"`
	}{Status: "ok", Failures: failures}
	if code != http.StatusOK {
		body.Status = "unavailable"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

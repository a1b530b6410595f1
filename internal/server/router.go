package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// HealthCheck reports whether the objects API can serve requests.
type HealthCheck func(context.Context) error

// RouterOptions names the handlers the listener dispatches to.
type RouterOptions struct {
	API     http.Handler
	Metrics http.Handler
	Health  HealthCheck
}

// NewRouter splits operational routes (health and metrics) from the objects
// API so the fake handler only ever sees /objects traffic.
func NewRouter(opts RouterOptions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch parseOperationalRoute(r.URL.Path) {
		case "healthz":
			serveHealth(w, r, opts.Health)
		case "metrics":
			if opts.Metrics == nil {
				http.NotFound(w, r)
				return
			}
			opts.Metrics.ServeHTTP(w, r)
		default:
			if opts.API == nil {
				http.Error(w, "objects API unavailable", http.StatusServiceUnavailable)
				return
			}
			opts.API.ServeHTTP(w, r)
		}
	})
}

func serveHealth(w http.ResponseWriter, r *http.Request, check HealthCheck) {
	body := map[string]string{"status": "ok"}
	status := http.StatusOK
	if check != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]string{"status": "unavailable", "error": err.Error()}
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func parseOperationalRoute(path string) string {
	trimmed := strings.ToLower(strings.Trim(path, "/"))
	switch trimmed {
	case "health", "healthz":
		return "healthz"
	case "metrics":
		return "metrics"
	}
	return ""
}

package httpapi

import (
	"net/http"
	"time"
)

// healthHandler is an unauthenticated catch-all alias for liveness.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

// livenessHandler is always 200 while the process is up, per spec.md §4.11.
func livenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "alive"})
}

// readinessHandler is 200 only when the store is reachable and the
// scheduler has ticked within the last 5 seconds.
func readinessHandler(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reasons := map[string]string{}

		if err := svc.Store.Ping(r.Context()); err != nil {
			reasons["store"] = err.Error()
		}
		if svc.Scheduler != nil && time.Since(svc.Scheduler.LastTick()) > 5*time.Second {
			reasons["scheduler"] = "has not ticked within 5s"
		}

		if len(reasons) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status": "not_ready",
				"reasons": reasons,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ready"})
	}
}

package httpapi

import "net/http"

func engineState(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := svc.Store.GetEngineState(r.Context())
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

// engineHeartbeat forces an immediate refresh instead of waiting for the
// next tick of internal/engine.State.Run, per spec.md §4.11.
func engineHeartbeat(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc.Engine == nil {
			writeErr(w, r, newError(CodeDependencyDown, "engine state not wired"))
			return
		}
		svc.Engine.Heartbeat(r.Context())
		state, err := svc.Store.GetEngineState(r.Context())
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

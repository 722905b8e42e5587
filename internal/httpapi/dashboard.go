package httpapi

import "net/http"

func dashboard(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := svc.Store.DashboardSnapshot(r.Context())
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

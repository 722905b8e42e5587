package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/learnbot/autoscraper/internal/store"
)

func listRuns(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := parsePage(r)
		jobIDStr := r.URL.Query().Get("job_id")
		if jobIDStr == "" {
			writeErr(w, r, newError(CodeValidation, "job_id query parameter is required"))
			return
		}
		jobID, err := uuid.Parse(jobIDStr)
		if err != nil {
			writeErr(w, r, newError(CodeValidation, "invalid job_id"))
			return
		}
		runs, total, err := svc.Store.ListScrapeRuns(r.Context(), store.ScrapeRunFilter{JobID: jobID}, page)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeList(w, runs, total, page)
	}
}

func getRun(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, r, newError(CodeValidation, "invalid id"))
			return
		}
		run, err := svc.Store.GetScrapeRun(r.Context(), id)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

package httpapi

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/learnbot/autoscraper/internal/model"
	"github.com/learnbot/autoscraper/internal/store"
)

func listJobs(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := parsePage(r)
		var filter store.ScrapeJobFilter
		if s := r.URL.Query().Get("status"); s != "" {
			filter.Status = model.JobStatus(s)
		}
		if b := r.URL.Query().Get("board_id"); b != "" {
			id, err := uuid.Parse(b)
			if err != nil {
				writeErr(w, r, newError(CodeValidation, "invalid board_id"))
				return
			}
			filter.JobBoardID = uuid.NullUUID{UUID: id, Valid: true}
		}
		jobs, total, err := svc.Store.ListScrapeJobs(r.Context(), filter, page)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeList(w, jobs, total, page)
	}
}

type startJobRequest struct {
	JobBoardID string        `json:"job_board_id"`
	Mode       model.JobMode `json:"mode,omitempty"`
	Priority   int           `json:"priority,omitempty"`
	MaxPages   int           `json:"max_pages,omitempty"`
}

func startJob(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startJobRequest
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, r, err)
			return
		}
		boardID, err := uuid.Parse(req.JobBoardID)
		if err != nil {
			writeErr(w, r, newError(CodeValidation, "invalid job_board_id"))
			return
		}
		board, err := svc.Store.GetJobBoard(r.Context(), boardID)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		if !board.IsActive {
			writeErr(w, r, newError(CodeValidation, "job board is not active"))
			return
		}

		mode := req.Mode
		if mode == "" {
			mode = model.ModeManual
		}
		job := &model.ScrapeJob{
			JobBoardID: boardID,
			Mode:       mode,
			Status:     model.JobPending,
			Priority:   req.Priority,
		}
		if req.MaxPages > 0 {
			job.MaxPages = sql.NullInt32{Int32: int32(req.MaxPages), Valid: true}
		}
		if err := svc.Store.CreateScrapeJob(r.Context(), job); err != nil {
			writeErr(w, r, err)
			return
		}
		if svc.Pool != nil {
			if err := svc.Pool.Submit(r.Context(), job.ID, job.Priority); err != nil {
				writeErr(w, r, newErrorf(CodeDependencyDown, err.Error(), "failed to enqueue job"))
				return
			}
		}
		writeJSON(w, http.StatusAccepted, job)
	}
}

func getJob(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, r, newError(CodeValidation, "invalid id"))
			return
		}
		job, err := svc.Store.GetScrapeJob(r.Context(), id)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func pauseJob(svc *Services) http.HandlerFunc { return transitionJob(svc, model.JobPaused) }

func cancelJob(svc *Services) http.HandlerFunc { return transitionJob(svc, model.JobCancelled) }

// resumeJob re-enters a PAUSED job into the pool; the worker resumes at
// the persisted page_cursor per spec.md §4.7's boundary behavior.
func resumeJob(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, r, newError(CodeValidation, "invalid id"))
			return
		}
		job, err := svc.Store.UpdateScrapeJob(r.Context(), id, func(j *model.ScrapeJob) error {
			if j.Status != model.JobPaused {
				return store.ErrConflict
			}
			j.Status = model.JobPending
			return nil
		})
		if err != nil {
			writeErr(w, r, err)
			return
		}
		if svc.Pool != nil {
			_ = svc.Pool.Submit(r.Context(), job.ID, job.Priority)
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func transitionJob(svc *Services, target model.JobStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, r, newError(CodeValidation, "invalid id"))
			return
		}
		job, err := svc.Store.UpdateScrapeJob(r.Context(), id, func(j *model.ScrapeJob) error {
			if j.Terminal() {
				return store.ErrConflict
			}
			j.Status = target
			return nil
		})
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/learnbot/autoscraper/internal/model"
	"github.com/learnbot/autoscraper/internal/store"
)

func listJobBoards(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := parsePage(r)
		filter := store.JobBoardFilter{ActiveOnly: r.URL.Query().Get("active_only") == "true"}
		boards, total, err := svc.Store.ListJobBoards(r.Context(), filter, page)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeList(w, boards, total, page)
	}
}

// jobBoardRequest is the create/update payload for a job board.
type jobBoardRequest struct {
	Name             string            `json:"name"`
	Description      string            `json:"description,omitempty"`
	Type             model.BoardType   `json:"type"`
	BaseURL          string            `json:"base_url"`
	RSSURL           string            `json:"rss_url,omitempty"`
	Selectors        map[string]string `json:"selectors,omitempty"`
	Headers          map[string]string `json:"headers,omitempty"`
	RateLimitDelayS  int               `json:"rate_limit_delay_s,omitempty"`
	MaxPages         int               `json:"max_pages,omitempty"`
	RequestTimeoutS  int               `json:"request_timeout_s,omitempty"`
	RetryAttempts    int               `json:"retry_attempts,omitempty"`
	QualityThreshold float64           `json:"quality_threshold,omitempty"`
}

func (req jobBoardRequest) validate() error {
	if req.Name == "" {
		return newError(CodeValidation, "name is required")
	}
	if req.BaseURL == "" {
		return newError(CodeValidation, "base_url is required")
	}
	switch req.Type {
	case model.BoardRSS, model.BoardHTML, model.BoardAPI, model.BoardHybrid:
	default:
		return newErrorf(CodeValidation, string(req.Type), "type must be one of rss, html, api, hybrid")
	}
	if req.Type == model.BoardHTML && len(req.Selectors) == 0 {
		return newError(CodeValidation, "html boards require at least a \"listing\" selector")
	}
	return nil
}

func createJobBoard(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req jobBoardRequest
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, r, err)
			return
		}
		if err := req.validate(); err != nil {
			writeErr(w, r, err)
			return
		}
		board := &model.JobBoard{
			Name:             req.Name,
			Type:             req.Type,
			BaseURL:          req.BaseURL,
			Selectors:        req.Selectors,
			Headers:          req.Headers,
			RateLimitDelayS:  orDefault(req.RateLimitDelayS, 6),
			MaxPages:         orDefault(req.MaxPages, 10),
			RequestTimeoutS:  orDefault(req.RequestTimeoutS, 30),
			RetryAttempts:    orDefault(req.RetryAttempts, 3),
			QualityThreshold: req.QualityThreshold,
			IsActive:         true,
		}
		if req.Description != "" {
			board.Description = sqlNullString(req.Description)
		}
		if req.RSSURL != "" {
			board.RSSURL = sqlNullString(req.RSSURL)
		}
		if err := svc.Store.CreateJobBoard(r.Context(), board); err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, board)
	}
}

func getJobBoard(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, r, newError(CodeValidation, "invalid id"))
			return
		}
		board, err := svc.Store.GetJobBoard(r.Context(), id)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, board)
	}
}

func updateJobBoard(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, r, newError(CodeValidation, "invalid id"))
			return
		}
		var req jobBoardRequest
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, r, err)
			return
		}
		board, err := svc.Store.UpdateJobBoard(r.Context(), id, func(b *model.JobBoard) error {
			if req.Name != "" {
				b.Name = req.Name
			}
			if req.BaseURL != "" {
				b.BaseURL = req.BaseURL
			}
			if req.Description != "" {
				b.Description = sqlNullString(req.Description)
			}
			if req.RSSURL != "" {
				b.RSSURL = sqlNullString(req.RSSURL)
			}
			if req.Selectors != nil {
				b.Selectors = req.Selectors
			}
			if req.Headers != nil {
				b.Headers = req.Headers
			}
			if req.RateLimitDelayS > 0 {
				b.RateLimitDelayS = req.RateLimitDelayS
			}
			if req.MaxPages > 0 {
				b.MaxPages = req.MaxPages
			}
			if req.RequestTimeoutS > 0 {
				b.RequestTimeoutS = req.RequestTimeoutS
			}
			if req.RetryAttempts > 0 {
				b.RetryAttempts = req.RetryAttempts
			}
			if req.QualityThreshold > 0 {
				b.QualityThreshold = req.QualityThreshold
			}
			return nil
		})
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, board)
	}
}

func deactivateJobBoard(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, r, newError(CodeValidation, "invalid id"))
			return
		}
		if err := svc.Store.DeactivateJobBoard(r.Context(), id); err != nil {
			writeErr(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

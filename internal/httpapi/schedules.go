package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/learnbot/autoscraper/internal/model"
	"github.com/learnbot/autoscraper/internal/scheduler"
)

type scheduleRequest struct {
	JobBoardID        string `json:"job_board_id"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	CronExpression    string `json:"cron_expression"`
	Timezone          string `json:"timezone"`
	IsEnabled         *bool  `json:"is_enabled,omitempty"`
	MaxConcurrentJobs int    `json:"max_concurrent_jobs,omitempty"`
	Priority          int    `json:"priority,omitempty"`
	MaxRetries        int    `json:"max_retries,omitempty"`
	RetryDelayMinutes int    `json:"retry_delay_minutes,omitempty"`
}

func (req scheduleRequest) validate() error {
	if req.Name == "" {
		return newError(CodeValidation, "name is required")
	}
	if _, err := scheduler.ParseCron(req.CronExpression); err != nil {
		return newErrorf(CodeValidation, err.Error(), "invalid cron_expression")
	}
	if req.Timezone == "" {
		return newError(CodeValidation, "timezone is required")
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		return newErrorf(CodeValidation, err.Error(), "invalid IANA timezone")
	}
	return nil
}

func listSchedules(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		boardIDStr := r.URL.Query().Get("job_board_id")
		if boardIDStr == "" {
			writeErr(w, r, newError(CodeValidation, "job_board_id query parameter is required"))
			return
		}
		boardID, err := uuid.Parse(boardIDStr)
		if err != nil {
			writeErr(w, r, newError(CodeValidation, "invalid job_board_id"))
			return
		}
		schedules, err := svc.Store.ListSchedulesForBoard(r.Context(), boardID)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"items": schedules, "total": len(schedules)})
	}
}

func createSchedule(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scheduleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, r, err)
			return
		}
		if err := req.validate(); err != nil {
			writeErr(w, r, err)
			return
		}
		boardID, err := uuid.Parse(req.JobBoardID)
		if err != nil {
			writeErr(w, r, newError(CodeValidation, "invalid job_board_id"))
			return
		}
		if _, err := svc.Store.GetJobBoard(r.Context(), boardID); err != nil {
			writeErr(w, r, err)
			return
		}

		sc := &model.ScheduleConfig{
			JobBoardID:        boardID,
			Name:              req.Name,
			CronExpression:    req.CronExpression,
			Timezone:          req.Timezone,
			IsEnabled:         true,
			MaxConcurrentJobs: orDefault(req.MaxConcurrentJobs, 1),
			Priority:          req.Priority,
			MaxRetries:        orDefault(req.MaxRetries, 3),
			RetryDelayMinutes: orDefault(req.RetryDelayMinutes, 5),
		}
		if req.Description != "" {
			sc.Description = sqlNullString(req.Description)
		}
		if req.IsEnabled != nil {
			sc.IsEnabled = *req.IsEnabled
		}
		if err := svc.Store.CreateSchedule(r.Context(), sc); err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, sc)
	}
}

func getSchedule(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, r, newError(CodeValidation, "invalid id"))
			return
		}
		sc, err := svc.Store.GetSchedule(r.Context(), id)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sc)
	}
}

func updateSchedule(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, r, newError(CodeValidation, "invalid id"))
			return
		}
		var req scheduleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, r, err)
			return
		}
		if req.CronExpression != "" {
			if _, err := scheduler.ParseCron(req.CronExpression); err != nil {
				writeErr(w, r, newErrorf(CodeValidation, err.Error(), "invalid cron_expression"))
				return
			}
		}
		if req.Timezone != "" {
			if _, err := time.LoadLocation(req.Timezone); err != nil {
				writeErr(w, r, newErrorf(CodeValidation, err.Error(), "invalid IANA timezone"))
				return
			}
		}

		sc, err := svc.Store.UpdateSchedule(r.Context(), id, func(cfg *model.ScheduleConfig) error {
			if req.Name != "" {
				cfg.Name = req.Name
			}
			if req.CronExpression != "" {
				cfg.CronExpression = req.CronExpression
			}
			if req.Timezone != "" {
				cfg.Timezone = req.Timezone
			}
			if req.IsEnabled != nil {
				cfg.IsEnabled = *req.IsEnabled
			}
			if req.MaxConcurrentJobs > 0 {
				cfg.MaxConcurrentJobs = req.MaxConcurrentJobs
			}
			if req.Priority != 0 {
				cfg.Priority = req.Priority
			}
			if req.MaxRetries > 0 {
				cfg.MaxRetries = req.MaxRetries
			}
			if req.RetryDelayMinutes > 0 {
				cfg.RetryDelayMinutes = req.RetryDelayMinutes
			}
			return nil
		})
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sc)
	}
}

func deleteSchedule(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, r, newError(CodeValidation, "invalid id"))
			return
		}
		if err := svc.Store.DeleteSchedule(r.Context(), id); err != nil {
			writeErr(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

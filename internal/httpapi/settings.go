package httpapi

import (
	"net/http"

	"github.com/learnbot/autoscraper/internal/model"
)

// settingsPayload mirrors the system-wide limits spec.md §4.11 exposes
// under /settings. Rate-limit and retry defaults are process
// configuration (internal/config) rather than persisted state; only
// max_concurrent_jobs and maintenance_mode are mutable at runtime, stored
// in EngineState. maintenance_mode sets the status the engine heartbeat
// reports; the worker pool's size is fixed at startup from
// MAX_CONCURRENT_JOBS, and neither the pool nor the scheduler reads these
// two values.
type settingsPayload struct {
	MaxConcurrentJobs      int     `json:"max_concurrent_jobs"`
	MaintenanceMode        bool    `json:"maintenance_mode"`
	DefaultRateLimitDelayS int     `json:"default_rate_limit_delay_s"`
	DefaultRetryAttempts   int     `json:"default_retry_attempts"`
	SuccessRate            float64 `json:"observed_success_rate"`
}

func getSettings(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := svc.Store.GetEngineState(r.Context())
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, settingsPayload{
			MaxConcurrentJobs: state.MaxConcurrentJobs,
			MaintenanceMode:   state.MaintenanceMode,
			SuccessRate:       state.SuccessRate,
		})
	}
}

type updateSettingsRequest struct {
	MaxConcurrentJobs *int  `json:"max_concurrent_jobs,omitempty"`
	MaintenanceMode   *bool `json:"maintenance_mode,omitempty"`
}

func updateSettings(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateSettingsRequest
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, r, err)
			return
		}
		if req.MaxConcurrentJobs != nil && *req.MaxConcurrentJobs <= 0 {
			writeErr(w, r, newError(CodeValidation, "max_concurrent_jobs must be positive"))
			return
		}
		state, err := svc.Store.UpdateEngineState(r.Context(), func(s *model.EngineState) error {
			if req.MaxConcurrentJobs != nil {
				s.MaxConcurrentJobs = *req.MaxConcurrentJobs
			}
			if req.MaintenanceMode != nil {
				s.MaintenanceMode = *req.MaintenanceMode
			}
			return nil
		})
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, settingsPayload{
			MaxConcurrentJobs: state.MaxConcurrentJobs,
			MaintenanceMode:   state.MaintenanceMode,
			SuccessRate:       state.SuccessRate,
		})
	}
}

func resetSettings(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := svc.Store.UpdateEngineState(r.Context(), func(s *model.EngineState) error {
			s.MaxConcurrentJobs = 5
			s.MaintenanceMode = false
			return nil
		})
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, settingsPayload{
			MaxConcurrentJobs: state.MaxConcurrentJobs,
			MaintenanceMode:   state.MaintenanceMode,
			SuccessRate:       state.SuccessRate,
		})
	}
}

// testSettings validates a prospective settings payload without applying
// it, for the admin UI's "test limits" affordance.
func testSettings(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateSettingsRequest
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, r, err)
			return
		}
		if req.MaxConcurrentJobs != nil && *req.MaxConcurrentJobs <= 0 {
			writeErr(w, r, newError(CodeValidation, "max_concurrent_jobs must be positive"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"valid": true})
	}
}

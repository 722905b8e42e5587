package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/learnbot/autoscraper/internal/store"
)

// pageList is the {items, total, skip, limit} envelope the paginated list
// endpoints (job boards, jobs, runs) return. GET /schedules and GET /logs
// return only {items, total}: schedules are not paginated, and /logs
// takes a limit but no skip.
type pageList struct {
	Items interface{} `json:"items"`
	Total int         `json:"total"`
	Skip  int         `json:"skip"`
	Limit int         `json:"limit"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeList(w http.ResponseWriter, items interface{}, total int, page store.Page) {
	writeJSON(w, http.StatusOK, pageList{Items: items, Total: total, Skip: page.Skip, Limit: page.Limit})
}

// writeErr renders err as the standard error envelope, mapping store
// sentinel errors and apiError values to the right HTTP status.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	ae, ok := err.(*apiError)
	if !ok {
		switch {
		case err == store.ErrNotFound:
			ae = newError(CodeNotFound, "resource not found")
		case err == store.ErrConflict:
			ae = newError(CodeConflict, "conflicting update; refetch and retry")
		default:
			ae = newErrorf(CodeInternal, err.Error(), "internal error")
		}
	}
	body := map[string]interface{}{
		"error":          ae.Code,
		"message":        ae.Message,
		"correlation_id": chimw.GetReqID(r.Context()),
	}
	if ae.Detail != "" {
		body["detail"] = ae.Detail
	}
	writeJSON(w, ae.Code.httpStatus(), body)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return newErrorf(CodeValidation, err.Error(), "malformed request body")
	}
	return nil
}

// parsePage parses ?skip=&limit= query params, clamping limit to
// spec.md §6's 1-200 range with a default of 50.
func parsePage(r *http.Request) store.Page {
	q := r.URL.Query()
	page := store.Page{Skip: 0, Limit: 50}
	if s := q.Get("skip"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			page.Skip = n
		}
	}
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			page.Limit = n
		}
	}
	if page.Limit <= 0 {
		page.Limit = 50
	}
	if page.Limit > 200 {
		page.Limit = 200
	}
	return page
}

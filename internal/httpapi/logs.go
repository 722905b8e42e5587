package httpapi

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/learnbot/autoscraper/internal/logbuf"
)

func getLogs(svc *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc.Logs == nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{"items": []logbuf.Entry{}})
			return
		}
		q := r.URL.Query()
		minLevel := logbuf.ParseLevel(q.Get("level"))

		var jobID uuid.NullUUID
		if j := q.Get("job_id"); j != "" {
			id, err := uuid.Parse(j)
			if err != nil {
				writeErr(w, r, newError(CodeValidation, "invalid job_id"))
				return
			}
			jobID = uuid.NullUUID{UUID: id, Valid: true}
		}

		limit := 200
		if l := q.Get("limit"); l != "" {
			if n, err := strconv.Atoi(l); err == nil && n > 0 {
				limit = n
			}
		}

		entries := svc.Logs.Query(minLevel, jobID, limit)
		writeJSON(w, http.StatusOK, map[string]interface{}{"items": entries, "total": len(entries)})
	}
}

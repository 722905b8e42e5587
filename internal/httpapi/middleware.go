package httpapi

import (
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/learnbot/autoscraper/internal/engine"
	"github.com/learnbot/autoscraper/internal/logbuf"
)

// requestLogger writes one logbuf entry per request carrying the
// chi-assigned correlation id, generalizing the teacher's
// logger.Printf("[admin] ...") call sites into structured entries the
// /logs endpoint can filter and page through, and increments the
// engine's HTTPRequestsTotal counter.
func requestLogger(logs *logbuf.Ring) func(http.Handler) http.Handler {
	return requestLoggerWithMetrics(logs, nil)
}

func requestLoggerWithMetrics(logs *logbuf.Ring, metrics *engine.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if metrics != nil {
				metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(ww.Status())).Inc()
			}

			if logs == nil {
				return
			}
			level := logbuf.LevelInfo
			if ww.Status() >= 500 {
				level = logbuf.LevelError
			} else if ww.Status() >= 400 {
				level = logbuf.LevelWarn
			}
			logs.Write(logbuf.Entry{
				Level:   level,
				Message: r.Method + " " + r.URL.Path,
				Fields: map[string]interface{}{
					"status":         ww.Status(),
					"duration_ms":    time.Since(start).Milliseconds(),
					"correlation_id": chimw.GetReqID(r.Context()),
				},
			})
		})
	}
}

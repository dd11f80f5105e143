package server

import (
	"net/http"
	"time"

	"modeswitch/pkg/logging"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests logs every request at debug level, and failed API calls at
// warn level.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start).Round(time.Millisecond)
		if rec.status >= http.StatusInternalServerError {
			logging.Warn("Server", "%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, elapsed)
			return
		}
		logging.Debug("Server", "%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, elapsed)
	})
}

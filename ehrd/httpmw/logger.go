package httpmw

import (
	"net/http"
	"time"

	"cdr.dev/slog"
)

// statusWriter captures the response status for the request log.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Logger writes one structured line per request. Identifiers only; no
// request or response bodies ever reach the log.
func Logger(log slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: rw}

			next.ServeHTTP(sw, r)

			log.Debug(r.Context(), "http request",
				slog.F("method", r.Method),
				slog.F("path", r.URL.Path),
				slog.F("remote_addr", r.RemoteAddr),
				slog.F("status_code", sw.status),
				slog.F("took", time.Since(start)),
			)
		})
	}
}

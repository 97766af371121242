package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Logger returns a per-request logging middleware. Plain requests log
// one line on completion, leveled by status class. A hijacked websocket
// request only returns when the connection ends, so its line records
// the whole session lifetime rather than a request latency.
func Logger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			evt := logger.Info()
			switch {
			case status >= 500:
				evt = logger.Error()
			case status >= 400:
				evt = logger.Warn()
			}

			line := evt.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("request_id", chimw.GetReqID(r.Context())).
				Str("remote_addr", r.RemoteAddr).
				Dur("elapsed", time.Since(start))

			// The upgrade response goes out over the hijacked
			// connection, so the wrapper never sees a status.
			if status == 0 && r.Header.Get("Upgrade") == "websocket" {
				line.Msg("websocket session ended")
				return
			}

			line.
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Msg("request completed")
		})
	}
}

package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"prosodyweb/internal/metrics"
)

// WithRecover recovers handler panics into a generic 500 so one bad
// request cannot take the server down.
func WithRecover(next http.Handler, log zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).
					Str("method", r.Method).Str("path", r.URL.Path).
					Msg("handler panicked")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// WithLogging logs one line per request and feeds the request counters.
func WithLogging(next http.Handler, log zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		elapsed := time.Since(start)
		pattern := routePattern(r.URL.Path)
		metrics.HTTPRequests.WithLabelValues(pattern, strconv.Itoa(sw.status)).Inc()
		metrics.HTTPDuration.WithLabelValues(pattern).Observe(elapsed.Seconds())
		log.Info().Str("method", r.Method).Str("path", r.URL.Path).
			Int("status", sw.status).Dur("elapsed", elapsed).Msg("request")
	})
}

// routePattern collapses paths with embedded identifiers so the metric
// labels stay low-cardinality.
func routePattern(path string) string {
	switch {
	case path == "/":
		return "/"
	case len(path) >= len("/forum/") && path[:len("/forum/")] == "/forum/":
		return "/forum/*"
	default:
		return path
	}
}

package api

import (
	"net/http"
	"strings"
	"time"

	"campsite/internal/metrics"

	"github.com/rs/zerolog"
)

func loggingMiddleware(logger *zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(endpointLabel(r.URL.Path), recorder.status)
		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// endpointLabel keeps metric cardinality bounded by collapsing ids.
func endpointLabel(path string) string {
	switch {
	case path == availabilityPath:
		return "availability"
	case path == reservationsPath:
		return "reservations"
	case strings.HasPrefix(path, reservationsPath+"/"):
		return "reservation"
	case path == "/healthz", path == "/readyz":
		return strings.TrimPrefix(path, "/")
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

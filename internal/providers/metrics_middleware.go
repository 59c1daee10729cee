package providers

import (
	"net/http"
	"time"
)

// responseRecorder keeps the status and body size the handler produced.
type responseRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (rec *responseRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *responseRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.size += n
	return n, err
}

func (rec *responseRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// endpointLabel is the matched ServeMux pattern, so session IDs in paths
// never become label values.
func endpointLabel(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	return r.Pattern
}

func MetricsMiddleware(metrics MetricsProviderInterface, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		endpoint := endpointLabel(r)
		metrics.IncRequestsTotal(endpoint, rec.status)
		metrics.ObserveRequestDuration(endpoint, elapsed)
		metrics.ObserveResponseSize(endpoint, rec.size)
	})
}

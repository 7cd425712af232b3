package httpapi

import (
	"crypto/subtle"
	"mime"
	"net/http"
	"strconv"
	"time"

	"b3tr-store/internal/metrics"
)

// AllowJSON rejects request bodies that are not application/json.
func AllowJSON(next http.Handler) http.Handler {
	hf := func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength == 0 {
			next.ServeHTTP(w, r)
			return
		}

		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			writeError(w, http.StatusUnsupportedMediaType, "invalid media type")
			return
		}

		next.ServeHTTP(w, r)
	}
	return http.HandlerFunc(hf)
}

// instrument wraps an HTTP handler with Prometheus instrumentation
func instrument(handlerName string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(wrapped, r)

		duration := time.Since(startTime).Seconds()
		metrics.HTTPRequestDuration.WithLabelValues(handlerName, r.Method).Observe(duration)
		metrics.HTTPRequestsTotal.WithLabelValues(handlerName, r.Method, strconv.Itoa(wrapped.statusCode)).Inc()
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

const adminPasswordHeader = "X-Admin-Password"

// requireAdmin checks the shared admin password. It keeps casual visitors
// out of the catalog editor and is not an access control mechanism.
func requireAdmin(password string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(adminPasswordHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(password)) != 1 {
			writeError(w, http.StatusUnauthorized, "Incorrect password")
			return
		}
		next(w, r)
	}
}

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/devhistory/pkg/logger"
	"github.com/okian/devhistory/pkg/metrics"
)

// MetricsMiddleware records request counts, latency and error classes per
// endpoint. A panicking handler is answered with 500 and counted as a
// server error.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		defer func() {
			if p := recover(); p != nil {
				logger.Get().Error(r.Context(), "handler panicked",
					logger.String("endpoint", endpoint),
					logger.Any("panic", p),
				)
				if !rec.wroteHeader {
					writeError(rec, http.StatusInternalServerError, "internal_error", nil)
				}
				rec.status = http.StatusInternalServerError
			}
			observeRequest(r.Context(), endpoint, r.Method, rec.code(), time.Since(start), rec.bytes)
		}()

		next.ServeHTTP(rec, r)
	}
}

func observeRequest(ctx context.Context, endpoint, method string, status int, took time.Duration, written int) {
	code := strconv.Itoa(status)
	ms := float64(took.Microseconds()) / 1000
	metrics.RecordHTTPRequest(endpoint, method, code)
	metrics.RecordHTTPRequestDuration(endpoint, method, code, ms)

	if status < http.StatusBadRequest {
		return
	}
	class, severity := errorClass(status)
	metrics.RecordErrorByEndpoint(endpoint, method, class)
	metrics.RecordErrorByType(class, severity)
	logger.Get().Debug(ctx, "request failed",
		logger.String("endpoint", endpoint),
		logger.Int("status", status),
		logger.Int("bytes", written),
		logger.Float64("ms", ms),
	)
}

// errorClass buckets an error status for the error counters.
func errorClass(status int) (class, severity string) {
	switch status {
	case http.StatusBadRequest:
		return "bad_request", "medium"
	case http.StatusNotFound:
		return "not_found", "low"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed", "low"
	case http.StatusConflict:
		return "conflict", "low"
	case http.StatusTooManyRequests:
		return "backpressure", "medium"
	case http.StatusServiceUnavailable:
		return "unavailable", "high"
	}
	if status >= http.StatusInternalServerError {
		return "server_error", "high"
	}
	return "client_error", "medium"
}

// statusRecorder captures the status and body size a handler produced.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status, rw.wroteHeader = code, true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

func (rw *statusRecorder) code() int {
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}

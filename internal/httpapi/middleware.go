package httpapi

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
)

// CORS allows the configured browser origins. Preflight requests are
// answered directly with 204.
func CORS(allowed []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (slices.Contains(allowed, origin) || slices.Contains(allowed, "*")) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-Request-ID")
				h.Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// RequestLogger logs one line per request with a request id, echoed back in
// X-Request-ID. The level follows the status class.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", requestID)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			attrs := []any{
				"request_id", requestID,
				"method", r.Method,
				"uri", r.URL.RequestURI(),
				"status", rec.status,
				"latency_ms", time.Since(start).Milliseconds(),
				"client_ip", r.RemoteAddr,
			}
			switch {
			case rec.status >= 500:
				logger.Error("request completed with server error", attrs...)
			case rec.status >= 400:
				logger.Warn("request completed with client error", attrs...)
			default:
				logger.Info("request completed", attrs...)
			}
		})
	}
}

// Wrap applies the standard middleware stack to h.
func Wrap(h http.Handler, allowedOrigins []string, logger *slog.Logger) http.Handler {
	return RequestLogger(logger)(CORS(allowedOrigins)(h))
}

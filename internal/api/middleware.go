package api

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// RequestIDHeader carries the chi request id back to the caller.
const RequestIDHeader = "X-Request-ID"

// DenyFunc writes the response for a request that failed authentication.
type DenyFunc func(w http.ResponseWriter, r *http.Request)

// DenyProblem answers 401 with a Problem Details body.
func DenyProblem(w http.ResponseWriter, r *http.Request) {
	WriteProblem(w, r, http.StatusUnauthorized, "Missing or invalid API key")
}

// bearerToken returns the token of an "Authorization: Bearer <token>"
// header, or "" when the header is absent or uses another scheme.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || scheme != "Bearer" {
		return ""
	}
	return strings.TrimSpace(token)
}

// keysMatch compares in constant time for equal-length inputs.
func keysMatch(got, want string) bool {
	if got == "" || len(got) != len(want) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// AuthMiddleware requires the bearer token to equal apiKey. An empty apiKey
// turns the check off. Rejected requests are answered by deny, or with a
// 401 problem when deny is nil. The expected key is never logged.
func AuthMiddleware(apiKey string, deny DenyFunc) func(http.Handler) http.Handler {
	if deny == nil {
		deny = DenyProblem
	}
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !keysMatch(bearerToken(r), apiKey) {
				LoggerFromContext(r.Context()).Warn("auth failure",
					"action", "auth_failed",
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				deny(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetRequestID returns the chi request ID, or "" when none is set.
func GetRequestID(ctx context.Context) string {
	return middleware.GetReqID(ctx)
}

// requestLevel picks the log level for a finished request. Successful
// health checks are polled constantly and drop to debug.
func requestLevel(path string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	case strings.HasSuffix(path, "/health"):
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// RequestLogger attaches a request-scoped logger tagged with component and
// the request id, echoes the id in RequestIDHeader and logs one line per
// finished request.
func RequestLogger(component string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := GetRequestID(r.Context())

			logger := slog.Default().With(
				"component", component,
				"request_id", reqID,
			)
			r = r.WithContext(WithLogger(r.Context(), logger))
			if reqID != "" {
				w.Header().Set(RequestIDHeader, reqID)
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			logger.Log(r.Context(), requestLevel(r.URL.Path, rec.status), "request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// RecoveryMiddleware turns a handler panic into a 500 problem. The panic
// value and stack go to the log only.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}
			LoggerFromContext(r.Context()).Error("panic recovered",
				"error", recovered,
				"stack", string(debug.Stack()),
				"method", r.Method,
				"path", r.URL.Path,
			)
			WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		}()
		next.ServeHTTP(w, r)
	})
}

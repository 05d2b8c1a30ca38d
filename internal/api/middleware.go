package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/appointment"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	callerKey    contextKey = "caller"
)

// Identity headers set by the upstream gateway after authentication.
const (
	HeaderPatientID = "X-Patient-ID"
	HeaderDoctorID  = "X-Doctor-ID"
	HeaderStaffID   = "X-Staff-ID"
)

// RequestIDMiddleware adds a unique request ID to each request context
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware logs HTTP requests with method, path, status, duration, and request ID
func LoggingMiddleware(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", GetRequestID(r.Context())),
			)
		})
	}
}

// RequireCaller resolves the acting identity from the gateway headers.
// Exactly one identity header must be present.
func RequireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFromHeaders(r.Header)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "A valid caller identity header is required", nil)
			return
		}
		ctx := context.WithValue(r.Context(), callerKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerFromHeaders(h http.Header) (appointment.Caller, bool) {
	var found []appointment.Caller
	for header, role := range map[string]appointment.Role{
		HeaderPatientID: appointment.RolePatient,
		HeaderDoctorID:  appointment.RoleDoctor,
		HeaderStaffID:   appointment.RoleStaff,
	} {
		v := h.Get(header)
		if v == "" {
			continue
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return appointment.Caller{}, false
		}
		found = append(found, appointment.Caller{Role: role, ID: id})
	}
	if len(found) != 1 {
		return appointment.Caller{}, false
	}
	return found[0], true
}

func CallerFromContext(ctx context.Context) appointment.Caller {
	c, _ := ctx.Value(callerKey).(appointment.Caller)
	return c
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

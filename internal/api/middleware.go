package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/convertly/convertly-agent/internal/backend"
	"github.com/convertly/convertly-agent/internal/conversion"
	"github.com/convertly/convertly-agent/internal/history"
	"github.com/convertly/convertly-agent/internal/store"
)

type contextKey string

const RequestIDKey contextKey = "request_id"

// SessionMiddleware gates protected routes on a valid session. The UI treats
// the 401 as its redirect-to-login signal.
func SessionMiddleware(session *store.SessionStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !session.IsAuthenticated(r.Context()) {
				WriteError(w, http.StatusUnauthorized, "authentication required", "SESSION_REQUIRED")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			requestID, _ := r.Context().Value(RequestIDKey).(string)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", requestID,
			)
		})
	}
}

func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					requestID, _ := r.Context().Value(RequestIDKey).(string)
					logger.Error("panic recovered", "error", err, "request_id", requestID)
					WriteError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.NewString()[:8]
			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			w.Header().Set("X-Request-ID", requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func WriteError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code})
}

func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// classifyError maps domain errors onto the API error taxonomy.
func classifyError(err error) ErrorResponse {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case backend.KindNetworkUnreachable:
			return ErrorResponse{Error: "conversion backend unreachable", Code: "BACKEND_UNREACHABLE"}
		case backend.KindUnauthorized:
			return ErrorResponse{Error: "invalid credentials", Code: "UNAUTHORIZED"}
		default:
			return ErrorResponse{Error: "conversion backend error", Code: "BACKEND_ERROR"}
		}
	}

	var valErr *store.ValidationError
	if errors.As(err, &valErr) {
		return ErrorResponse{Error: valErr.Error(), Code: "VALIDATION"}
	}

	switch {
	case errors.Is(err, backend.ErrNoIdentity):
		return ErrorResponse{Error: "no user identity available", Code: "NO_IDENTITY"}
	case errors.Is(err, conversion.ErrNotAuthenticated), errors.Is(err, history.ErrNotAuthenticated):
		return ErrorResponse{Error: "authentication required", Code: "SESSION_REQUIRED"}
	case errors.Is(err, conversion.ErrSubmissionInFlight):
		return ErrorResponse{Error: "a submission is already in flight", Code: "SUBMISSION_IN_FLIGHT"}
	case errors.Is(err, conversion.ErrNoAsset):
		return ErrorResponse{Error: "no asset selected", Code: "NO_ASSET"}
	case errors.Is(err, conversion.ErrNotVideo):
		return ErrorResponse{Error: "selected file is not a video", Code: "VALIDATION"}
	}

	return ErrorResponse{Error: err.Error(), Code: "INTERNAL_ERROR"}
}

// statusForError picks the HTTP status matching a classified error code.
func statusForError(code string) int {
	switch code {
	case "UNAUTHORIZED", "SESSION_REQUIRED", "NO_IDENTITY":
		return http.StatusUnauthorized
	case "SUBMISSION_IN_FLIGHT":
		return http.StatusConflict
	case "VALIDATION", "NO_ASSET":
		return http.StatusBadRequest
	case "BACKEND_UNREACHABLE", "BACKEND_ERROR":
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

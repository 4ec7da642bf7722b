package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// With helpers, handlers stay short and consistent:
//   writeJSON(w, http.StatusOK, data)
//   writeError(w, r, err)
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//   {"error": "not_found", "message": "vinyl not found with id 7"}
//
// The auth middleware writes the same shape for 401/403, so the frontend
// always knows what fields to expect.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/vinyl-storefront/internal/apperror"
	"github.com/sakif/vinyl-storefront/internal/auth"
	"github.com/sakif/vinyl-storefront/internal/middleware"
)

// maxBodyBytes caps JSON request bodies. Profile photos arrive as data URIs,
// so the limit is generous.
const maxBodyBytes = 2 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Set for validation errors tied to one input
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status code must be set BEFORE writing the body. Once
// Encode writes, the headers are sent and later changes are ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// headers are already sent; all we can do is log
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// ERROR MAPPING:
// Domain errors (from the service and storage layers) get translated to HTTP
// here, and only here. The service layer never knows about status codes.
//
//	ErrValidation                  → 400
//	ErrUnauthorized                → 401
//	ErrForbidden                   → 403
//	ErrNotFound                    → 404
//	ErrConflict                    → 409  (includes raw constraint violations)
//	ErrNotReady, ErrNotInitialized → 503
//	anything else                  → 500
//
// errors.Is walks the whole chain, including the multi-error Unwrap of the
// storage errors, so a ConstraintViolation wrapped three times still maps to 409.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, errorType := classify(err)

	if status == http.StatusInternalServerError {
		// NEVER expose internal error details to the client. The raw message
		// might contain SQL statements or file paths.
		middleware.LoggerFrom(r.Context()).Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: "An internal error occurred",
		})
		return
	}

	resp := ErrorResponse{Error: errorType, Message: publicMessage(status)}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		resp.Message = appErr.Message
		resp.Field = appErr.Field
	}
	writeJSON(w, status, resp)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrNotReady), errors.Is(err, apperror.ErrNotInitialized):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

// publicMessage is used when the error carries no AppError message of its own.
func publicMessage(status int) string {
	switch status {
	case http.StatusConflict:
		return "the request conflicts with existing data"
	case http.StatusServiceUnavailable:
		return "the store is starting up, please try again shortly"
	}
	return http.StatusText(status)
}

// decodeJSON reads a JSON request body into dst. Malformed JSON is a
// validation error, so it comes back as 400 through writeError.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.ValidationFailed("", "request body is required")
		}
		return apperror.ValidationFailed("", fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

// pathID parses the {id} URL parameter.
func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed("id", fmt.Sprintf("invalid id %q", raw))
	}
	return id, nil
}

// session returns the caller's session, or the zero Session for anonymous
// requests. Services decide whether anonymous is acceptable.
func session(r *http.Request) auth.Session {
	sess, _ := auth.SessionFromContext(r.Context())
	return sess
}

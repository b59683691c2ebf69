package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"realcv/internal/certificate"
	"realcv/internal/forensics"
	"realcv/internal/portal"
	"realcv/internal/schemavalidation"
	"realcv/internal/store"
	"realcv/internal/tracking"
)

// Request-level errors raised by the handlers themselves.
var (
	errBadRequest   = errors.New("bad request")
	errUnauthorized = errors.New("employer identity required")
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// statusFor maps a service error to its HTTP status and public message.
// Unrecognized errors are 500 and never expose their text.
func statusFor(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "request body too large"
	case errors.Is(err, schemavalidation.ErrInvalid),
		errors.Is(err, errBadRequest),
		errors.Is(err, portal.ErrInvalidSubmission),
		errors.Is(err, portal.ErrInvalidQuestionSet),
		errors.Is(err, certificate.ErrMissingTitle),
		errors.Is(err, forensics.ErrSessionNotSealed):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, portal.ErrNotOwner):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, portal.ErrNotFound),
		errors.Is(err, tracking.ErrNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, portal.ErrQuestionSetExpired):
		return http.StatusGone, "question set expired"
	case errors.Is(err, portal.ErrQuestionSetInactive):
		return http.StatusGone, "question set inactive"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// writeError logs server faults and writes the error body. Client errors
// carry the underlying message as details.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	resp := ErrorResponse{Error: msg}
	if status < http.StatusInternalServerError {
		resp.Details = err.Error()
		s.log.WithContext(r.Context()).Debug("request rejected",
			"path", r.URL.Path, "status", status, "error", err)
	} else {
		s.log.WithContext(r.Context()).Error("request failed",
			"path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

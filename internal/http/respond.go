package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// Error codes surfaced in the response envelope. Clients branch on
// these, so they are part of the API contract.
const (
	codeValidation   = "VALIDATION_ERROR"
	codeBadRequest   = "BAD_REQUEST"
	codeUnauthorized = "UNAUTHORIZED"
	codeTokenExpired = "TOKEN_EXPIRED"
	codeForbidden    = "ACCOUNT_DISABLED"
	codeNotFound     = "NOT_FOUND"
	codeDuplicate    = "DUPLICATE"
	codeRateLimited  = "RATE_LIMITED"
	codeInternal     = "INTERNAL_ERROR"
)

// envelope is the uniform response shape. Success responses carry Data
// and an optional Message; error responses carry Error (a stable code),
// Message and, for validation failures, the per-field Errors list.
type envelope struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
	Error   string            `json:"error,omitempty"`
	Errors  []core.FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// respondData writes a success envelope with the given payload.
func respondData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

// respondMessage writes a success envelope with a message and no data.
// Used by flows that intentionally reveal nothing (forgot-password).
func respondMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: true, Message: message})
}

func respondDataMessage(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, envelope{Success: true, Data: data, Message: message})
}

// respondError maps a domain error onto an HTTP status and envelope.
// Unknown errors become an opaque 500 so internals never leak.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := core.AsValidationError(err); ok {
		writeJSON(w, http.StatusBadRequest, envelope{
			Success: false,
			Error:   codeValidation,
			Message: "validation failed",
			Errors:  ve.Fields,
		})
		return
	}

	switch {
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Error: codeNotFound, Message: "resource not found"})
	case errors.Is(err, core.ErrDuplicate):
		writeJSON(w, http.StatusConflict, envelope{Success: false, Error: codeDuplicate, Message: "resource already exists"})
	case errors.Is(err, core.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Error: codeUnauthorized, Message: "invalid credentials"})
	case errors.Is(err, core.ErrTokenExpired):
		writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Error: codeTokenExpired, Message: "token expired or revoked"})
	case errors.Is(err, core.ErrAccountDisabled):
		writeJSON(w, http.StatusForbidden, envelope{Success: false, Error: codeForbidden, Message: "account is disabled"})
	case errors.Is(err, core.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Error: codeBadRequest, Message: "invalid amount"})
	default:
		// The context logger carries the request id set upstream.
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldError, err.Error(),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: codeInternal, Message: "internal server error"})
	}
}

func respondBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, envelope{Success: false, Error: codeBadRequest, Message: message})
}

func respondUnauthorized(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Error: codeUnauthorized, Message: message})
}

const maxBodyBytes = 1 << 20 // 1 MiB

// decodeJSON reads and decodes a request body, bounding its size.
// Unknown fields are ignored so clients may send read-only fields back
// unchanged (the handlers simply never map them).
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// Trailing garbage after the JSON value is a malformed request.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("unexpected content after JSON body")
	}
	return nil
}

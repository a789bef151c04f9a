package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/daman-app/daman/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// RespondJSON writes data as a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("Failed to encode JSON response: %v", err)
		}
	}
}

// RespondError writes a standard error response.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message})
}

// RespondErrorWithCode writes an error response with a machine-readable code.
func RespondErrorWithCode(w http.ResponseWriter, status int, code, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// RespondValidationError writes field-level validation errors as a 422 response.
func RespondValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	RespondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "Validation failed",
		Code:    "validation_error",
		Details: fieldErrors,
	})
}

// serviceErrorCodes maps service sentinel errors to HTTP status and a
// machine-readable code. Anything unmapped is an internal error.
var serviceErrorCodes = []struct {
	err    error
	status int
	code   string
}{
	{services.ErrGuaranteeNotFound, http.StatusNotFound, "guarantee_not_found"},
	{services.ErrUnknownEntity, http.StatusUnprocessableEntity, "unknown_entity"},
	{services.ErrDuplicateEntity, http.StatusConflict, "duplicate_entity"},
	{services.ErrAlternativeCollision, http.StatusConflict, "alternative_collision"},
	{services.ErrUnknownField, http.StatusUnprocessableEntity, "unknown_field"},
	{services.ErrKindMismatch, http.StatusUnprocessableEntity, "kind_mismatch"},
	{services.ErrInvalidTransition, http.StatusUnprocessableEntity, "invalid_transition"},
	{services.ErrNoHistory, http.StatusNotFound, "no_history"},
	{services.ErrEmptyKey, http.StatusUnprocessableEntity, "empty_key"},
}

// RespondServiceError translates a service-layer error into the standard
// envelope, falling back to a 500 for unexpected failures.
func RespondServiceError(w http.ResponseWriter, err error) {
	for _, m := range serviceErrorCodes {
		if errors.Is(err, m.err) {
			RespondErrorWithCode(w, m.status, m.code, err.Error())
			return
		}
	}
	log.Printf("Internal error: %v", err)
	RespondError(w, http.StatusInternalServerError, "internal error")
}

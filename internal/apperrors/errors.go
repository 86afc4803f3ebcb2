// Package apperrors provides structured application errors for grid artifact access.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrArtifactUnavailable = errors.New("artifact unavailable")
	ErrValidation          = errors.New("validation error")
	ErrInternal            = errors.New("internal error")
)

// Error provides structured error with context.
type Error struct {
	Sentinel  error  // Wrapped sentinel for errors.Is() classification
	Message   string // Human-readable message
	Field     string // For validation errors (e.g., "fileName")
	SessionID string // Grid session the artifact belongs to, empty for videos
	FileName  string // Requested artifact name
	Op        string // Operation that failed (e.g., "config.load")
	Cause     error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Cause}
}

// VideoUnavailable creates an error for a session recording the grid did not serve.
func VideoUnavailable(fileName string, cause error) error {
	return unavailable(fmt.Sprintf("could not get video file [%s]", fileName), "", fileName, cause)
}

// DownloadUnavailable creates an error for a downloaded file the grid did not
// serve. sessionID may be empty when the caller does not know it.
func DownloadUnavailable(sessionID, fileName string, cause error) error {
	msg := fmt.Sprintf("could not get downloaded file [%s]", fileName)
	if sessionID != "" {
		msg += fmt.Sprintf(" from session [%s]", sessionID)
	}
	return unavailable(msg, sessionID, fileName, cause)
}

// ListingUnavailable creates an error for a download listing the grid did not serve.
func ListingUnavailable(sessionID string, cause error) error {
	return unavailable(fmt.Sprintf("could not list downloaded files of session [%s]", sessionID), sessionID, "", cause)
}

func unavailable(msg, sessionID, fileName string, cause error) error {
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &Error{
		Sentinel:  ErrArtifactUnavailable,
		Message:   msg,
		SessionID: sessionID,
		FileName:  fileName,
		Cause:     cause,
	}
}

// Validation creates a validation error for a specific field.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// Internal creates an internal error wrapping an underlying cause.
func Internal(op string, cause error) error {
	return &Error{
		Sentinel: ErrInternal,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

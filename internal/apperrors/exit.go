package apperrors

import "errors"

// Process exit codes for the CLI.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitInvalid     = 2
	ExitUnavailable = 3
)

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrValidation):
		return ExitInvalid
	case errors.Is(err, ErrArtifactUnavailable):
		return ExitUnavailable
	default:
		return ExitError
	}
}

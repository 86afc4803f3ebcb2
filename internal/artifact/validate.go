package artifact

import (
	"path/filepath"
	"strings"

	"gridfetch/internal/apperrors"
)

// ValidateFileName rejects names that are empty or could escape the
// directory they are written to.
func ValidateFileName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperrors.Validation("fileName", "file name is required")
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return apperrors.Validation("fileName", "file name must be relative, not absolute")
	}
	if strings.ContainsAny(name, `/\`) {
		return apperrors.Validation("fileName", "file name must not contain path separators")
	}
	if name == ".." || name == "." {
		return apperrors.Validation("fileName", "path traversal not allowed")
	}
	return nil
}

// ValidateSessionID rejects session ids that would change the request path.
func ValidateSessionID(id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.Validation("sessionId", "session id is required")
	}
	if strings.ContainsAny(id, `/\`) || id == ".." || id == "." {
		return apperrors.Validation("sessionId", "session id must be a single path segment")
	}
	return nil
}

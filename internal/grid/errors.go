package grid

import (
	"errors"
	"fmt"
)

// HTTPError is a grid response with a status other than 200.
type HTTPError struct {
	StatusCode int
	Method     string
	Path       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
}

// IsNotFound reports whether err carries a 404 from the grid, which usually
// means the artifact is not finalized yet.
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == 404
}

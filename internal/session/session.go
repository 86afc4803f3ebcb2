// Package session supplies the id of the current remote browser session.
package session

import (
	"context"
	"errors"
	"strings"
)

// ErrNoSession is returned when no session is active.
var ErrNoSession = errors.New("no active browser session")

// Provider returns the opaque id of the current grid session.
type Provider interface {
	SessionID(ctx context.Context) (string, error)
}

// ProviderFunc adapts a function to a Provider.
type ProviderFunc func(ctx context.Context) (string, error)

func (f ProviderFunc) SessionID(ctx context.Context) (string, error) {
	return f(ctx)
}

// Static always returns the same session id.
type Static string

func (s Static) SessionID(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", ErrNoSession
	}
	return string(s), nil
}

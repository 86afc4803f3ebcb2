// Package health checks whether the grid and the current session can serve artifacts.
package health

import (
	"context"
	"time"
)

// Probe is a single readiness check, e.g. the grid status endpoint.
type Probe interface {
	Ready(ctx context.Context) error
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) error

func (f ProbeFunc) Ready(ctx context.Context) error {
	return f(ctx)
}

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// CheckResult contains the result of a health check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response is the health check response.
type Response struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

type check struct {
	name     string
	probe    Probe
	critical bool
}

// Checker runs registered probes in registration order.
type Checker struct {
	timeout time.Duration
	checks  []check
}

// NewChecker creates a checker that gives each probe at most timeout.
// A non-positive timeout means 5s.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{timeout: timeout}
}

// Add registers a probe. A failing critical probe makes the overall status
// unhealthy; a failing non-critical probe only degrades it.
func (c *Checker) Add(name string, probe Probe, critical bool) {
	c.checks = append(c.checks, check{name: name, probe: probe, critical: critical})
}

// Check runs every probe and aggregates their results.
func (c *Checker) Check(ctx context.Context) *Response {
	if len(c.checks) == 0 {
		return &Response{
			Status: StatusUnhealthy,
			Checks: map[string]CheckResult{
				"grid": {Status: StatusUnhealthy, Message: "no probes configured"},
			},
		}
	}

	response := &Response{
		Status: StatusHealthy,
		Checks: make(map[string]CheckResult, len(c.checks)),
	}
	for _, chk := range c.checks {
		result := c.run(ctx, chk.probe)
		response.Checks[chk.name] = result
		if result.Status == StatusHealthy {
			continue
		}
		if chk.critical {
			response.Status = StatusUnhealthy
		} else if response.Status == StatusHealthy {
			response.Status = StatusDegraded
		}
	}
	return response
}

func (c *Checker) run(ctx context.Context, probe Probe) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := probe.Ready(ctx); err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: err.Error(),
		}
	}
	return CheckResult{Status: StatusHealthy}
}

// IsHealthy returns true if the overall status is healthy.
func (r *Response) IsHealthy() bool {
	return r.Status == StatusHealthy
}

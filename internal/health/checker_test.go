package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridfetch/internal/grid"
	"gridfetch/internal/gridtest"
)

func healthy(context.Context) error { return nil }

func failing(msg string) ProbeFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func TestChecker_NoProbes(t *testing.T) {
	t.Parallel()
	response := NewChecker(0).Check(context.Background())

	assert.Equal(t, StatusUnhealthy, response.Status)
	require.Contains(t, response.Checks, "grid")
	assert.Equal(t, StatusUnhealthy, response.Checks["grid"].Status)
}

func TestChecker_Aggregation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		grid     ProbeFunc
		session  ProbeFunc
		expected Status
	}{
		{"all healthy", healthy, healthy, StatusHealthy},
		{"session failing", healthy, failing("no session"), StatusDegraded},
		{"grid failing", failing("refused"), healthy, StatusUnhealthy},
		{"both failing", failing("refused"), failing("no session"), StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := NewChecker(time.Second)
			c.Add("grid", tt.grid, true)
			c.Add("session", tt.session, false)

			response := c.Check(context.Background())
			assert.Equal(t, tt.expected, response.Status)
			assert.Len(t, response.Checks, 2)
		})
	}
}

func TestChecker_FailureMessage(t *testing.T) {
	t.Parallel()
	c := NewChecker(time.Second)
	c.Add("grid", failing("connection refused"), true)

	response := c.Check(context.Background())
	assert.Equal(t, "connection refused", response.Checks["grid"].Message)
}

func TestChecker_ProbeTimeout(t *testing.T) {
	t.Parallel()
	c := NewChecker(20 * time.Millisecond)
	c.Add("grid", ProbeFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}), true)

	start := time.Now()
	response := c.Check(context.Background())

	assert.Equal(t, StatusUnhealthy, response.Status)
	assert.Less(t, time.Since(start), time.Second)
}

func TestChecker_GridStatus(t *testing.T) {
	t.Parallel()
	srv := gridtest.New(t)
	client := grid.NewClient(grid.Config{GridURL: srv.GridURL()})

	c := NewChecker(time.Second)
	c.Add("grid", client, true)
	assert.True(t, c.Check(context.Background()).IsHealthy())
	assert.Equal(t, 1, srv.CountRequests("GET", "/status"))

	srv.SetUnhealthy(true)
	response := c.Check(context.Background())
	assert.False(t, response.IsHealthy())
	assert.Contains(t, response.Checks["grid"].Message, "HTTP 503")
}

func TestResponse_IsHealthy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		status   Status
		expected bool
	}{
		{"healthy", StatusHealthy, true},
		{"unhealthy", StatusUnhealthy, false},
		{"degraded", StatusDegraded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			response := &Response{Status: tt.status}
			assert.Equal(t, tt.expected, response.IsHealthy())
		})
	}
}

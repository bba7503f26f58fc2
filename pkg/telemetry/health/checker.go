package health

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Check statuses.
const (
	StatusOK        = "ok"
	StatusUnhealthy = "unhealthy"
	StatusSkipped   = "skipped"
)

// Overall statuses.
const (
	StatusReady    = "ready"
	StatusDegraded = "degraded"
)

// CheckFunc performs a health check for a component.
// It returns nil if the component is healthy, a Skip error if the
// component is not in use, or an error describing the problem.
type CheckFunc func(ctx context.Context) error

// CheckResult represents the result of a single health check.
type CheckResult struct {
	// Name is the component name the check was registered under.
	Name string `json:"name"`

	// Status is the check status: "ok", "unhealthy", "skipped"
	Status string `json:"status"`

	// Message provides additional context (the error or skip reason)
	Message string `json:"message,omitempty"`

	// Duration is how long the check took
	Duration time.Duration `json:"duration_ms"`
}

// HealthStatus represents the aggregated status of all checks.
type HealthStatus struct {
	// Status is the overall status: "ready" or "degraded"
	Status string `json:"status"`

	// Checks holds one result per registered check, in registration order.
	Checks []CheckResult `json:"checks"`

	// Timestamp is when the checks were performed
	Timestamp time.Time `json:"timestamp"`
}

// Ready reports whether no check was unhealthy.
func (s HealthStatus) Ready() bool { return s.Status == StatusReady }

var (
	// ErrCheckTimeout is reported when a health check times out
	ErrCheckTimeout = errors.New("health check timeout")

	errSkipped = errors.New("skipped")
)

type skipError struct{ reason string }

func (e *skipError) Error() string { return e.reason }
func (e *skipError) Is(target error) bool { return target == errSkipped }

// Skip returns the error a check returns when its component is not in use.
func Skip(reason string) error { return &skipError{reason: reason} }

// Checker manages health checks for system components.
type Checker struct {
	mu     sync.RWMutex
	names  []string
	checks map[string]CheckFunc

	// Timeout for individual checks
	checkTimeout time.Duration
	now          func() time.Time
}

// New creates a new health checker with the specified check timeout.
// If timeout is 0, defaults to 5 seconds per check.
func New(checkTimeout time.Duration) *Checker {
	if checkTimeout == 0 {
		checkTimeout = 5 * time.Second
	}

	return &Checker{
		checks:       make(map[string]CheckFunc),
		checkTimeout: checkTimeout,
		now:          time.Now,
	}
}

// RegisterCheck registers a health check function for a named component.
// If a check with the same name already exists, it is replaced in place.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.checks[name]; !ok {
		c.names = append(c.names, name)
	}
	c.checks[name] = check
}

// ListChecks returns the names of all registered checks, in registration order.
func (c *Checker) ListChecks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]string(nil), c.names...)
}

// CheckReadiness runs every registered check concurrently and aggregates
// the results. Skipped checks do not degrade the status.
func (c *Checker) CheckReadiness(ctx context.Context) HealthStatus {
	c.mu.RLock()
	names := append([]string(nil), c.names...)
	checks := make([]CheckFunc, len(names))
	for i, name := range names {
		checks[i] = c.checks[name]
	}
	c.mu.RUnlock()

	results := make([]CheckResult, len(names))
	var wg sync.WaitGroup
	for i := range names {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.runCheck(ctx, checks[i])
			results[i].Name = names[i]
		}(i)
	}
	wg.Wait()

	status := StatusReady
	for _, result := range results {
		if result.Status == StatusUnhealthy {
			status = StatusDegraded
		}
	}

	return HealthStatus{
		Status:    status,
		Checks:    results,
		Timestamp: c.now(),
	}
}

// runCheck executes a single health check with timeout.
func (c *Checker) runCheck(ctx context.Context, check CheckFunc) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	start := time.Now()

	errChan := make(chan error, 1)
	go func() {
		errChan <- check(checkCtx)
	}()

	select {
	case err := <-errChan:
		duration := time.Since(start)
		switch {
		case err == nil:
			return CheckResult{Status: StatusOK, Duration: duration}
		case errors.Is(err, errSkipped):
			return CheckResult{Status: StatusSkipped, Message: err.Error(), Duration: duration}
		default:
			return CheckResult{Status: StatusUnhealthy, Message: err.Error(), Duration: duration}
		}

	case <-checkCtx.Done():
		return CheckResult{
			Status:   StatusUnhealthy,
			Message:  ErrCheckTimeout.Error(),
			Duration: time.Since(start),
		}
	}
}

package client

import (
	"context"
	"time"
)

// HealthChecker pings the server.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthProbe reports connectivity by calling the server's health route.
type HealthProbe struct {
	checker HealthChecker
	timeout time.Duration
}

// NewHealthProbe creates a probe whose checks give up after timeout.
func NewHealthProbe(checker HealthChecker, timeout time.Duration) *HealthProbe {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HealthProbe{checker: checker, timeout: timeout}
}

// Online reports whether the server answered its health check in time.
func (p *HealthProbe) Online(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.checker.Health(ctx) == nil
}

package client

import (
	"context"
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Connection Manager
// --------------------------------------------------------------------------

// ConnectionManager wraps a Client with a bounded reconnect policy. The
// client's own Connect never retries; callers that want resilience route
// their work through ExecuteWithReconnect instead.
type ConnectionManager struct {
	client   *Client
	attempts int
	delay    time.Duration
}

// NewConnectionManager creates a manager using the reconnect settings
// from the client's configuration.
func NewConnectionManager(c *Client) *ConnectionManager {
	attempts := c.config.ReconnectAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := c.config.ReconnectDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}
	return &ConnectionManager{
		client:   c,
		attempts: attempts,
		delay:    delay,
	}
}

// Client returns the managed client.
func (m *ConnectionManager) Client() *Client {
	return m.client
}

// EnsureConnected connects the client if it is not already connected,
// retrying up to the configured attempt count with a fixed delay.
func (m *ConnectionManager) EnsureConnected(ctx context.Context) error {
	if m.client.State() == StateConnected {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= m.attempts; attempt++ {
		if err := m.client.Connect(ctx); err == nil {
			return nil
		} else {
			lastErr = err
			logger.Warnf("reconnect attempt %d/%d failed: %v", attempt, m.attempts, err)
		}

		if attempt < m.attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.delay):
			}
		}
	}
	return fmt.Errorf("failed to connect after %d attempts: %w", m.attempts, lastErr)
}

// ExecuteWithReconnect runs fn, and if it fails because the connection
// was lost, reconnects once and runs fn a second time. Failures with the
// connection still up are returned as-is; they are the command's own
// business.
func (m *ConnectionManager) ExecuteWithReconnect(ctx context.Context, fn func() (any, error)) (any, error) {
	if err := m.EnsureConnected(ctx); err != nil {
		return nil, err
	}

	result, err := fn()
	if err == nil || m.client.State() == StateConnected {
		return result, err
	}

	logger.Infof("connection lost during request, reconnecting")
	if rerr := m.EnsureConnected(ctx); rerr != nil {
		return nil, fmt.Errorf("request failed (%v) and reconnect failed: %w", err, rerr)
	}
	return fn()
}

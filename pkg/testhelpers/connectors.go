package testhelpers

import (
	"context"
	"sync"

	"github.com/ekaya-inc/gamedash/pkg/adapters/datasource"
)

// CountingConnector wraps a connector and records every session it hands
// out, so tests can assert how many round trips an operation made and that
// every session was released. Failures can be injected per call.
type CountingConnector struct {
	datasource.Connector

	mu       sync.Mutex
	acquired int
	released int
	execs    int

	// AcquireErr, when set, is returned by every Acquire.
	AcquireErr error
	// FailAcquireFrom makes the n-th and later Acquire calls (1-based) return AcquireErr.
	FailAcquireFrom int
	// ExecErr, when set, is returned by every Exec instead of running it.
	ExecErr error
}

// NewCountingConnector wraps inner.
func NewCountingConnector(inner datasource.Connector) *CountingConnector {
	return &CountingConnector{Connector: inner}
}

func (c *CountingConnector) Acquire(ctx context.Context) (datasource.Session, error) {
	c.mu.Lock()
	c.acquired++
	n := c.acquired
	failErr := c.AcquireErr
	failFrom := c.FailAcquireFrom
	c.mu.Unlock()

	if failErr != nil && (failFrom == 0 || n >= failFrom) {
		return nil, failErr
	}

	sess, err := c.Connector.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &countingSession{Session: sess, owner: c}, nil
}

// Acquired is the number of Acquire calls, successful or not.
func (c *CountingConnector) Acquired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquired
}

// Released is the number of sessions released.
func (c *CountingConnector) Released() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}

// Execs is the number of Exec calls attempted.
func (c *CountingConnector) Execs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.execs
}

// Reset zeroes the counters and clears injected failures.
func (c *CountingConnector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acquired, c.released, c.execs = 0, 0, 0
	c.AcquireErr, c.FailAcquireFrom, c.ExecErr = nil, 0, nil
}

type countingSession struct {
	datasource.Session
	owner *CountingConnector
	once  sync.Once
}

func (s *countingSession) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	s.owner.mu.Lock()
	s.owner.execs++
	execErr := s.owner.ExecErr
	s.owner.mu.Unlock()

	if execErr != nil {
		return 0, execErr
	}
	return s.Session.Exec(ctx, query, args...)
}

func (s *countingSession) Release() error {
	s.once.Do(func() {
		s.owner.mu.Lock()
		s.owner.released++
		s.owner.mu.Unlock()
	})
	return s.Session.Release()
}

// internal/app/shutdown.go
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CloseFunc releases one component.
type CloseFunc func(ctx context.Context) error

type namedCloser struct {
	name string
	fn   CloseFunc
}

// Shutdown closes registered components in reverse registration order, so
// consumers stop before the things they depend on.
type Shutdown struct {
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	closers []namedCloser
	done    bool
}

// NewShutdown creates a shutdown handler. timeout bounds the whole run.
func NewShutdown(logger *zap.Logger, timeout time.Duration) *Shutdown {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Shutdown{logger: logger.Named("shutdown"), timeout: timeout}
}

// Add registers a close function.
func (s *Shutdown) Add(name string, fn CloseFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, namedCloser{name: name, fn: fn})
	s.logger.Debug("Registered component for shutdown", zap.String("component", name))
}

// AddCloser registers an io.Closer.
func (s *Shutdown) AddCloser(name string, c io.Closer) {
	s.Add(name, func(context.Context) error { return c.Close() })
}

// Close runs every close function once, newest first. A component that
// does not finish before the deadline is reported and skipped.
func (s *Shutdown) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return nil
	}
	s.done = true
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.logger.Info("Starting graceful shutdown", zap.Int("components", len(closers)))

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		done := make(chan error, 1)
		go func() { done <- c.fn(ctx) }()

		select {
		case err := <-done:
			if err != nil {
				s.logger.Error("Failed to close component", zap.String("component", c.name), zap.Error(err))
				errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
				continue
			}
			s.logger.Debug("Component closed", zap.String("component", c.name))
		case <-ctx.Done():
			s.logger.Error("Shutdown timeout for component", zap.String("component", c.name))
			errs = append(errs, fmt.Errorf("%s: shutdown timeout", c.name))
		}
	}

	if len(errs) > 0 {
		s.logger.Error("Shutdown completed with errors", zap.Int("errorCount", len(errs)))
		return errors.Join(errs...)
	}
	s.logger.Info("Graceful shutdown completed successfully")
	return nil
}

package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// notificationTimeout bounds a single background send.
const notificationTimeout = 30 * time.Second

// Tasks runs best-effort side effects off the request path and lets the
// process wait for them on shutdown.
type Tasks struct {
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewTasks creates a Tasks group.
func NewTasks(logger *slog.Logger) *Tasks {
	return &Tasks{logger: logger}
}

// Notify runs send in the background. A false result is logged and dropped.
// The parent context's values are kept but its cancellation is not.
func (t *Tasks) Notify(ctx context.Context, kind string, send func(ctx context.Context) bool) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notificationTimeout)
		defer cancel()

		if !send(bgCtx) {
			t.logger.Warn("background notification failed", "kind", kind)
		}
	}()
}

// Wait blocks until every pending task finishes or ctx is done.
func (t *Tasks) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Package loop is the single executor that owns all portal state. HTTP
// handlers hand their work to it and wait for the result.
package loop

import (
	"context"
	"log/slog"
	"time"
)

const DefaultYield = 10 * time.Millisecond

// Poller is polled while it reports itself due.
type Poller interface {
	Due(now time.Time) bool
	Poll()
}

// Ticker is driven once per iteration.
type Ticker interface {
	Tick(ctx context.Context, now time.Time) bool
}

type Loop struct {
	Yield time.Duration
	Now   func() time.Time

	scans  Poller
	conn   Ticker
	logger *slog.Logger
	work   chan func()
}

func New(logger *slog.Logger, scans Poller, conn Ticker) *Loop {
	return &Loop{
		Yield:  DefaultYield,
		Now:    time.Now,
		scans:  scans,
		conn:   conn,
		logger: logger.With("component", "loop"),
		work:   make(chan func()),
	}
}

// Do runs fn on the loop goroutine and waits for it to return. If ctx ends
// first, Do returns its error and fn may still run later, so fn must not
// touch anything owned by the caller such as an http.ResponseWriter.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	job := func() {
		defer close(done)
		fn()
	}
	select {
	case l.work <- job:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the loop until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("main loop started", "yield", l.Yield)
	timer := time.NewTimer(l.Yield)
	defer timer.Stop()

	for {
		l.drain()

		now := l.Now()
		if l.scans.Due(now) {
			l.scans.Poll()
		}
		l.conn.Tick(ctx, now)

		timer.Reset(l.Yield)
		select {
		case <-ctx.Done():
			l.logger.Info("main loop stopped")
			return ctx.Err()
		case job := <-l.work:
			job()
		case <-timer.C:
		}
	}
}

func (l *Loop) drain() {
	for {
		select {
		case job := <-l.work:
			job()
		default:
			return
		}
	}
}

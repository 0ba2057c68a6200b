// Package poller drives the mirror service with discrete, non-overlapping
// poll ticks.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// maxBackoffMultiplier caps the failure backoff at this multiple of the poll
// interval. With a 30s interval the delays run 30s, 1m, 2m, 4m, 4m, ...
const maxBackoffMultiplier = 8

// Ticker is the unit of work the poller schedules. A returned error marks the
// whole tick as failed and triggers backoff; per-post failures are handled
// inside the tick and never surface here.
type Ticker interface {
	Tick(ctx context.Context) error
}

// Status is a point-in-time snapshot of the poll loop for the ops endpoint.
type Status struct {
	// LastTickAt is when the most recent tick finished. Zero before the
	// first tick completes.
	LastTickAt time.Time

	// LastError is the failure of the most recent tick, empty on success.
	LastError string

	// ConsecutiveFailures counts failed ticks since the last success.
	ConsecutiveFailures int
}

// Poller runs ticks on a single goroutine, so at most one tick is ever active:
// a tick that overruns the interval simply delays the next one, which keeps a
// single writer on the ledger and rules out concurrent duplicate publishes.
type Poller struct {
	svc      Ticker
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	lastTick time.Time
	lastErr  error
	failures int
}

// New creates a poller with the given base interval.
func New(svc Ticker, interval time.Duration, logger *slog.Logger) (*Poller, error) {
	if svc == nil {
		return nil, errors.New("ticker is required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", interval)
	}
	return &Poller{
		svc:      svc,
		interval: interval,
		logger:   logger,
	}, nil
}

// Run ticks immediately, then repeats on the poll interval until ctx is
// cancelled. Consecutive failed ticks back off exponentially up to
// maxBackoffMultiplier times the interval; the first success resets the delay.
func (p *Poller) Run(ctx context.Context) error {
	p.tick(ctx)

	for {
		timer := time.NewTimer(p.nextWait())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			p.tick(ctx)
		}
	}
}

// Status returns a snapshot of the loop state.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Status{
		LastTickAt:          p.lastTick,
		ConsecutiveFailures: p.failures,
	}
	if p.lastErr != nil {
		s.LastError = p.lastErr.Error()
	}
	return s
}

func (p *Poller) tick(ctx context.Context) {
	err := p.svc.Tick(ctx)
	if err != nil && ctx.Err() != nil {
		// Shutdown mid-tick; the uncommitted remainder is picked up next run.
		return
	}

	p.mu.Lock()
	p.lastTick = time.Now().UTC()
	p.lastErr = err
	if err != nil {
		p.failures++
	} else {
		p.failures = 0
	}
	failures := p.failures
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("poll tick failed",
			"error", err,
			"consecutive_failures", failures,
			"next_attempt_in", p.nextWait(),
		)
	}
}

// nextWait returns the delay before the next tick: the base interval doubled
// per consecutive failure, capped at maxBackoffMultiplier times the interval.
func (p *Poller) nextWait() time.Duration {
	p.mu.Lock()
	failures := p.failures
	p.mu.Unlock()

	wait := p.interval
	for i := 0; i < failures; i++ {
		wait *= 2
		if wait >= p.interval*maxBackoffMultiplier {
			return p.interval * maxBackoffMultiplier
		}
	}
	return wait
}

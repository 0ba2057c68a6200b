package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type scriptedTicker struct {
	errs  []error // consumed one per tick, nil once exhausted
	calls int
	done  chan struct{} // closed after the first tick, if set
}

func (s *scriptedTicker) Tick(_ context.Context) error {
	s.calls++
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, time.Second, discardLogger()); err == nil {
		t.Error("expected error for nil ticker")
	}
	if _, err := New(&scriptedTicker{}, 0, discardLogger()); err == nil {
		t.Error("expected error for zero interval")
	}
}

func TestRunTicksImmediatelyAndStopsOnCancel(t *testing.T) {
	ticker := &scriptedTicker{done: make(chan struct{})}
	done := ticker.done

	p, err := New(ticker, time.Hour, discardLogger())
	if err != nil {
		t.Fatalf("create poller: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- p.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("first tick did not run immediately")
	}
	cancel()

	select {
	case err := <-result:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("want context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if ticker.calls != 1 {
		t.Fatalf("got %d ticks before the hour-long interval elapsed, want 1", ticker.calls)
	}
}

func TestStatusTracksFailuresAndRecovery(t *testing.T) {
	boom := errors.New("feed exploded")
	ticker := &scriptedTicker{errs: []error{boom, boom, nil}}

	p, err := New(ticker, time.Minute, discardLogger())
	if err != nil {
		t.Fatalf("create poller: %v", err)
	}

	ctx := context.Background()

	p.tick(ctx)
	st := p.Status()
	if st.ConsecutiveFailures != 1 || st.LastError != "feed exploded" {
		t.Fatalf("after first failure: %+v", st)
	}
	if st.LastTickAt.IsZero() {
		t.Fatal("LastTickAt should be set after a tick")
	}

	p.tick(ctx)
	if st = p.Status(); st.ConsecutiveFailures != 2 {
		t.Fatalf("after second failure: %+v", st)
	}

	p.tick(ctx)
	st = p.Status()
	if st.ConsecutiveFailures != 0 || st.LastError != "" {
		t.Fatalf("success should reset the failure streak: %+v", st)
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	p, err := New(&scriptedTicker{}, time.Minute, discardLogger())
	if err != nil {
		t.Fatalf("create poller: %v", err)
	}

	cases := []struct {
		failures int
		want     time.Duration
	}{
		{0, time.Minute},
		{1, 2 * time.Minute},
		{2, 4 * time.Minute},
		{3, 8 * time.Minute},
		{4, 8 * time.Minute}, // capped at maxBackoffMultiplier x interval
		{10, 8 * time.Minute},
	}
	for _, tc := range cases {
		p.mu.Lock()
		p.failures = tc.failures
		p.mu.Unlock()
		if got := p.nextWait(); got != tc.want {
			t.Errorf("failures=%d: nextWait = %s, want %s", tc.failures, got, tc.want)
		}
	}
}

func TestCancelledTickDoesNotCountAsFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ticker := &scriptedTicker{errs: []error{ctx.Err()}}
	p, err := New(ticker, time.Minute, discardLogger())
	if err != nil {
		t.Fatalf("create poller: %v", err)
	}

	p.tick(ctx)
	if st := p.Status(); st.ConsecutiveFailures != 0 {
		t.Fatalf("shutdown mid-tick must not count as failure: %+v", st)
	}
}

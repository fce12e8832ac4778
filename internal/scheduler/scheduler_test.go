package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunStopsAfterMaxRuns(t *testing.T) {
	s := New(20*time.Millisecond, 3, nil)

	var calls int32
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.Run(ctx, "count", func(context.Context) error {
		if atomic.AddInt32(&calls, 1) == 2 {
			return errors.New("cycle failed")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("run limit was not reached before the deadline")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 runs, got %d", got)
	}
	if s.Runs() != 3 {
		t.Fatalf("expected Runs() == 3, got %d", s.Runs())
	}
}

func TestRunStopsOnCancelWithoutOverlap(t *testing.T) {
	s := New(10*time.Millisecond, 0, nil)

	var active, maxActive, calls int32
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := s.Run(ctx, "slow", func(ctx context.Context) error {
		n := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		atomic.AddInt32(&calls, 1)
		select {
		case <-time.After(35 * time.Millisecond):
		case <-ctx.Done():
		}
		atomic.AddInt32(&active, -1)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&calls) == 0 {
		t.Fatal("expected at least one run")
	}
	if m := atomic.LoadInt32(&maxActive); m != 1 {
		t.Fatalf("cycles overlapped: %d concurrent runs", m)
	}
}

func TestRunRejectsZeroInterval(t *testing.T) {
	if err := New(0, 1, nil).Run(context.Background(), "x", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected error")
	}
}

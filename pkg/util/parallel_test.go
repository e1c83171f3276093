package util

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestParallelRunsEveryInput(t *testing.T) {
	var sum atomic.Int64
	err := Parallel(context.Background(), []int{1, 2, 3, 4, 5}, 2, func(_ context.Context, n int) error {
		sum.Add(int64(n))
		return nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if sum.Load() != 15 {
		t.Errorf("Expected sum 15, got %d", sum.Load())
	}
}

func TestParallelRespectsLimit(t *testing.T) {
	var running, peak atomic.Int32
	_ = Parallel(context.Background(), make([]int, 10), 3, func(context.Context, int) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return nil
	})
	if peak.Load() > 3 {
		t.Errorf("Expected at most 3 concurrent calls, got %d", peak.Load())
	}
}

func TestParallelJoinsErrors(t *testing.T) {
	errOdd := errors.New("odd")
	var calls atomic.Int32
	err := Parallel(context.Background(), []int{1, 2, 3}, 1, func(_ context.Context, n int) error {
		calls.Add(1)
		if n%2 == 1 {
			return errOdd
		}
		return nil
	})
	if !errors.Is(err, errOdd) {
		t.Errorf("Expected joined error to match, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected every input attempted, got %d calls", calls.Load())
	}
}

package jobmgr

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestStartAsyncRejectsDuplicates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(zerolog.Nop())

	if err := m.StartAsync(ctx, "node", blockUntilDone); err != nil {
		t.Fatalf("Expected first start to succeed, got %v", err)
	}
	if err := m.StartAsync(ctx, "node", blockUntilDone); err == nil {
		t.Error("Expected duplicate job to be rejected")
	}
	if got := m.Status(); got != "Running jobs: node" {
		t.Errorf("Unexpected status %q", got)
	}

	cancel()
	m.Wait()
	if got := m.List(); len(got) != 0 {
		t.Errorf("Expected no jobs after cancel, got %v", got)
	}
}

func TestStopCancelsOneJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := NewManager(zerolog.Nop())

	stopped := make(chan struct{})
	_ = m.StartAsync(ctx, "a", func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return nil
	})
	_ = m.StartAsync(ctx, "b", blockUntilDone)

	if err := m.Stop("a"); err != nil {
		t.Fatalf("Expected stop to succeed, got %v", err)
	}
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Expected job a to observe cancellation")
	}
	if got := m.List(); len(got) != 1 || got[0] != "b" {
		t.Errorf("Expected only b running, got %v", got)
	}
	if err := m.Stop("missing"); err == nil {
		t.Error("Expected error stopping an unknown job")
	}
}

func TestFinishedJobsAreRemoved(t *testing.T) {
	m := NewManager(zerolog.Nop())
	_ = m.StartAsync(context.Background(), "once", func(context.Context) error { return nil })
	m.Wait()
	if got := m.Status(); got != "No jobs are running." {
		t.Errorf("Unexpected status %q", got)
	}
}

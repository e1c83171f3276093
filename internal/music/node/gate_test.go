package node

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGateWaitBlocksUntilReady(t *testing.T) {
	g := NewGate()
	g.SetConnecting()

	done := make(chan string, 1)
	go func() {
		sid, err := g.Wait(context.Background())
		if err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
		done <- sid
	}()

	select {
	case <-done:
		t.Fatal("Expected Wait to block before ready")
	case <-time.After(20 * time.Millisecond):
	}

	g.SetReady("abc")
	select {
	case sid := <-done:
		if sid != "abc" {
			t.Errorf("Expected session abc, got %q", sid)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected Wait to return after ready")
	}
}

func TestGateRearmsAfterDisconnect(t *testing.T) {
	g := NewGate()
	g.SetReady("one")
	if !g.SetDisconnected() {
		t.Error("Expected SetDisconnected to report an open gate")
	}
	if g.State() != StateDisconnected {
		t.Errorf("Expected disconnected, got %s", g.State())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := g.Wait(ctx); !errors.Is(err, ErrNodeUnavailable) {
		t.Errorf("Expected ErrNodeUnavailable while re-armed, got %v", err)
	}

	g.SetReady("two")
	sid, err := g.Wait(context.Background())
	if err != nil || sid != "two" {
		t.Errorf("Expected session two, got %q (%v)", sid, err)
	}
	if g.SetDisconnected() != true {
		t.Error("Expected open gate before second disconnect")
	}
	if g.SetDisconnected() {
		t.Error("Expected closed gate to report false")
	}
}

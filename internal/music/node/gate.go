package node

import (
	"context"
	"fmt"
	"sync"
)

// State is the node connection state as seen by callers.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	default:
		return "disconnected"
	}
}

// Gate blocks callers until the node session is ready. Unlike a one-shot
// latch it re-arms when the connection drops, so waiters after a node
// restart block again until the new session is up.
type Gate struct {
	mu        sync.Mutex
	state     State
	sessionID string
	ready     chan struct{} // closed while state == StateReady
}

// NewGate returns a gate in the disconnected state.
func NewGate() *Gate {
	return &Gate{ready: make(chan struct{})}
}

// SetConnecting records a dial in progress.
func (g *Gate) SetConnecting() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateReady {
		g.rearmLocked()
	}
	g.state = StateConnecting
}

// SetReady opens the gate for the given node session.
func (g *Gate) SetReady(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessionID = sessionID
	if g.state != StateReady {
		g.state = StateReady
		close(g.ready)
	}
}

// SetDisconnected closes the gate. It reports whether the gate was open.
func (g *Gate) SetDisconnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	wasReady := g.state == StateReady
	if wasReady {
		g.rearmLocked()
	}
	g.state = StateDisconnected
	g.sessionID = ""
	return wasReady
}

func (g *Gate) rearmLocked() {
	g.ready = make(chan struct{})
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// SessionID returns the node session id while ready.
func (g *Gate) SessionID() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessionID, g.state == StateReady
}

// Wait blocks until the gate is open or ctx ends, and returns the session id.
func (g *Gate) Wait(ctx context.Context) (string, error) {
	for {
		g.mu.Lock()
		if g.state == StateReady {
			sid := g.sessionID
			g.mu.Unlock()
			return sid, nil
		}
		ch := g.ready
		g.mu.Unlock()

		select {
		case <-ch:
			// loop: the gate may have re-armed before we re-lock
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %w", ErrNodeUnavailable, ctx.Err())
		}
	}
}

package bus

import (
	"context"
	"errors"
	"time"
)

const automateTimeout = 90 * time.Second

// ErrNoSurface means the automate request could not be delivered or answered
// because no editing surface is connected.
var ErrNoSurface = errors.New("bus: no editing surface answered the automate request")

// SurfaceTrigger implements domain.Trigger by asking the connected editing
// surface to execute the host page's native submit action and waiting for the
// surface to report the inferred outcome.
type SurfaceTrigger struct {
	server *Server
}

// NewSurfaceTrigger creates a SurfaceTrigger over the given server.
func NewSurfaceTrigger(server *Server) *SurfaceTrigger {
	return &SurfaceTrigger{server: server}
}

// Trigger sends one automate envelope and blocks until the surface reports
// success or error, the context is cancelled, or the answer window elapses.
func (t *SurfaceTrigger) Trigger(ctx context.Context) (string, error) {
	waiter := make(chan automationResult, 1)

	t.server.mu.Lock()
	t.server.waiter = waiter
	connected := t.server.conn != nil
	t.server.mu.Unlock()

	if !connected {
		t.clearWaiter(waiter)
		return "", ErrNoSurface
	}

	t.server.send(NewEnvelope(KindAutomate))

	select {
	case result := <-waiter:
		return result.url, result.err
	case <-ctx.Done():
		t.clearWaiter(waiter)
		return "", ctx.Err()
	case <-time.After(automateTimeout):
		t.clearWaiter(waiter)
		return "", ErrNoSurface
	}
}

func (t *SurfaceTrigger) clearWaiter(waiter chan automationResult) {
	t.server.mu.Lock()
	if t.server.waiter == waiter {
		t.server.waiter = nil
	}
	t.server.mu.Unlock()
}

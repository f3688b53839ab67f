package bus

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosspost-dev/crosspost/internal/domain"
)

type recordingCoordinator struct {
	mu       sync.Mutex
	drafts   []*domain.Draft
	submits  int
	outcomes []domain.OutcomeEvent
	signal   chan struct{}
}

func newRecordingCoordinator() *recordingCoordinator {
	return &recordingCoordinator{signal: make(chan struct{}, 16)}
}

func (c *recordingCoordinator) SetDraft(_ context.Context, draft *domain.Draft) {
	c.mu.Lock()
	c.drafts = append(c.drafts, draft)
	c.mu.Unlock()
	c.signal <- struct{}{}
}

func (c *recordingCoordinator) Submit(context.Context) {
	c.mu.Lock()
	c.submits++
	c.mu.Unlock()
	c.signal <- struct{}{}
}

func (c *recordingCoordinator) HandleOutcome(_ context.Context, ev domain.OutcomeEvent) {
	c.mu.Lock()
	c.outcomes = append(c.outcomes, ev)
	c.mu.Unlock()
	c.signal <- struct{}{}
}

func (c *recordingCoordinator) await(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.signal:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for coordinator call")
		}
	}
}

func dialSurface(t *testing.T, server *Server) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(server)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// The handshake completes client-side before ServeHTTP registers the
	// connection; wait for registration so sends cannot race it.
	require.Eventually(t, func() bool {
		server.mu.Lock()
		defer server.mu.Unlock()
		return server.conn != nil
	}, 2*time.Second, 10*time.Millisecond)

	return conn
}

func TestPostEnvelopeAppliesDraftThenSubmits(t *testing.T) {
	assert := assert.New(t)

	coordinator := newRecordingCoordinator()
	server := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	server.Attach(coordinator)

	conn := dialSurface(t, server)

	envelope := NewEnvelope(KindPost)
	envelope.Draft = json.RawMessage(`{"text":"hello","imageURLs":[]}`)
	require.NoError(t, conn.WriteJSON(envelope))

	coordinator.await(t, 2)

	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	require.Len(t, coordinator.drafts, 1)
	assert.Equal("hello", coordinator.drafts[0].Text)
	assert.Equal(1, coordinator.submits)
}

func TestDraftEnvelopeOnlySetsDraft(t *testing.T) {
	assert := assert.New(t)

	coordinator := newRecordingCoordinator()
	server := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	server.Attach(coordinator)

	conn := dialSurface(t, server)

	envelope := NewEnvelope(KindDraft)
	envelope.Draft = json.RawMessage(`{"text":"draft in progress","imageURLs":[]}`)
	require.NoError(t, conn.WriteJSON(envelope))

	coordinator.await(t, 1)

	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	assert.Len(coordinator.drafts, 1)
	assert.Equal(0, coordinator.submits)
}

func TestAPIOutcomeEnvelopeReachesCoordinator(t *testing.T) {
	assert := assert.New(t)

	coordinator := newRecordingCoordinator()
	server := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	server.Attach(coordinator)

	conn := dialSurface(t, server)

	envelope := NewEnvelope(KindError)
	envelope.Destination = domain.DestinationBluesky
	envelope.Message = "surface-side failure"
	require.NoError(t, conn.WriteJSON(envelope))

	coordinator.await(t, 1)

	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	require.Len(t, coordinator.outcomes, 1)
	assert.Equal(domain.EventError, coordinator.outcomes[0].Kind)
	assert.Equal(domain.DestinationBluesky, coordinator.outcomes[0].Destination)
}

func TestSurfaceTriggerRoundTrip(t *testing.T) {
	assert := assert.New(t)

	coordinator := newRecordingCoordinator()
	server := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	server.Attach(coordinator)

	conn := dialSurface(t, server)

	// The surface answers the automate request with the host destination's
	// inferred outcome.
	go func() {
		var automate Envelope
		for {
			if err := conn.ReadJSON(&automate); err != nil {
				return
			}
			if automate.Kind == KindAutomate {
				break
			}
		}
		reply := NewEnvelope(KindSuccess)
		reply.Destination = domain.DestinationX
		reply.URL = "https://x.com/home"
		conn.WriteJSON(reply)
	}()

	url, err := NewSurfaceTrigger(server).Trigger(context.Background())
	assert.NoError(err)
	assert.Equal("https://x.com/home", url)

	// The answer was consumed by the waiter, not forwarded as a loose event.
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	assert.Empty(coordinator.outcomes)
}

func TestSurfaceTriggerReportsSurfaceError(t *testing.T) {
	assert := assert.New(t)

	coordinator := newRecordingCoordinator()
	server := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	server.Attach(coordinator)

	conn := dialSurface(t, server)

	go func() {
		var automate Envelope
		for {
			if err := conn.ReadJSON(&automate); err != nil {
				return
			}
			if automate.Kind == KindAutomate {
				break
			}
		}
		reply := NewEnvelope(KindError)
		reply.Destination = domain.DestinationX
		reply.Message = "submit button not found"
		conn.WriteJSON(reply)
	}()

	_, err := NewSurfaceTrigger(server).Trigger(context.Background())
	require.Error(t, err)
	assert.Contains(err.Error(), "submit button not found")
}

func TestSurfaceTriggerWithoutConnection(t *testing.T) {
	assert := assert.New(t)

	server := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	server.Attach(newRecordingCoordinator())

	_, err := NewSurfaceTrigger(server).Trigger(context.Background())
	assert.ErrorIs(err, ErrNoSurface)
}

func TestSurfaceTriggerHonorsContext(t *testing.T) {
	assert := assert.New(t)

	server := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	server.Attach(newRecordingCoordinator())

	dialSurface(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewSurfaceTrigger(server).Trigger(ctx)
	assert.ErrorIs(err, context.DeadlineExceeded)
}

func TestNotifierEnvelopesReachSurface(t *testing.T) {
	assert := assert.New(t)

	server := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	server.Attach(newRecordingCoordinator())

	conn := dialSurface(t, server)

	server.OutcomeResolved(domain.OutcomeEvent{
		Kind:        domain.EventSuccess,
		Destination: domain.DestinationBluesky,
		URL:         "https://bsky.app/profile/u/post/k",
	})
	server.SessionChanged(domain.Session{
		Kind:     domain.SessionDelivered,
		Outcomes: []domain.Outcome{{Kind: domain.OutcomeSuccess, Destination: domain.DestinationBluesky}},
	})

	var success Envelope
	require.NoError(t, conn.ReadJSON(&success))
	assert.Equal(KindSuccess, success.Kind)
	assert.Equal(domain.DestinationBluesky, success.Destination)
	assert.Equal("https://bsky.app/profile/u/post/k", success.URL)

	var session Envelope
	require.NoError(t, conn.ReadJSON(&session))
	assert.Equal(KindSession, session.Kind)
	assert.Equal(domain.SessionDelivered, session.Session)
}

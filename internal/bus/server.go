package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/crosspost-dev/crosspost/internal/domain"
)

// Coordinator is the slice of the delivery engine the bus feeds into.
type Coordinator interface {
	SetDraft(ctx context.Context, draft *domain.Draft)
	Submit(ctx context.Context)
	HandleOutcome(ctx context.Context, ev domain.OutcomeEvent)
}

// Server accepts the editing surface's websocket connection and translates
// between bus envelopes and engine calls. It also implements
// delivery.Notifier so outcome resolutions and session transitions flow back
// to the surface.
//
// One surface connection is active at a time; a new connection supersedes the
// old one (the surface reconnects after page reloads).
type Server struct {
	coordinator Coordinator
	upgrader    websocket.Upgrader
	logger      *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	waiter chan automationResult
}

type automationResult struct {
	url string
	err error
}

// NewServer creates a Server. The coordinator is attached separately because
// the engine and the server reference each other (the server is also the
// engine's notifier).
func NewServer(logger *slog.Logger) *Server {
	return &Server{
		logger: logger,
		upgrader: websocket.Upgrader{
			// The surface connects from the host page's origin; the listener
			// is loopback-only, so the origin check stays permissive.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Attach binds the coordinator. Must be called before serving.
func (s *Server) Attach(coordinator Coordinator) {
	s.coordinator = coordinator
}

// ServeHTTP upgrades the connection and runs the read loop until the surface
// disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.conn = conn
	s.mu.Unlock()

	s.logger.Info("editing surface connected", "remote", r.RemoteAddr)
	s.readLoop(r.Context(), conn)
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			s.logger.Info("editing surface disconnected", "error", err)
			return
		}

		var envelope Envelope
		if err := json.Unmarshal(message, &envelope); err != nil {
			s.logger.Error("failed to parse envelope", "error", err)
			continue
		}

		s.dispatch(ctx, &envelope)
	}
}

func (s *Server) dispatch(ctx context.Context, envelope *Envelope) {
	switch envelope.Kind {
	case KindDraft:
		draft, err := envelope.DecodeDraft()
		if err != nil {
			s.logger.Error("bad draft envelope", "error", err)
			return
		}
		s.coordinator.SetDraft(ctx, draft)

	case KindPost:
		// The draft is re-captured at submit time; apply it before the
		// submit so eligibility is computed against what the user sees.
		if draft, err := envelope.DecodeDraft(); err == nil {
			s.coordinator.SetDraft(ctx, draft)
		}
		s.coordinator.Submit(ctx)

	case KindSuccess, KindError:
		ev := domain.OutcomeEvent{
			Kind:        domain.EventSuccess,
			Destination: envelope.Destination,
			URL:         envelope.URL,
			Message:     envelope.Message,
		}
		if envelope.Kind == KindError {
			ev.Kind = domain.EventError
		}

		// A surface-reported outcome for the host-page destination answers a
		// pending automate request when one is in flight.
		if s.deliverToWaiter(ev) {
			return
		}
		s.coordinator.HandleOutcome(ctx, ev)

	case KindCloseWindow:
		s.logger.Info("surface requested window close")

	case KindLog:
		s.logger.Debug("surface log", "payload", envelope.Payload)

	default:
		s.logger.Warn("unknown envelope kind dropped", "kind", envelope.Kind)
	}
}

// OutcomeResolved implements delivery.Notifier.
func (s *Server) OutcomeResolved(ev domain.OutcomeEvent) {
	envelope := NewEnvelope(KindSuccess)
	if ev.Kind == domain.EventError {
		envelope = NewEnvelope(KindError)
	}
	envelope.Destination = ev.Destination
	envelope.URL = ev.URL
	envelope.Message = ev.Message
	s.send(envelope)
}

// SessionChanged implements delivery.Notifier.
func (s *Server) SessionChanged(session domain.Session) {
	envelope := NewEnvelope(KindSession)
	envelope.Session = session.Kind
	envelope.Outcomes = session.Outcomes
	s.send(envelope)
}

func (s *Server) send(envelope Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		s.logger.Debug("no surface connected, dropping envelope", "kind", envelope.Kind)
		return
	}
	if err := s.conn.WriteJSON(envelope); err != nil {
		s.logger.Error("failed to send envelope", "kind", envelope.Kind, "error", err)
	}
}

func (s *Server) deliverToWaiter(ev domain.OutcomeEvent) bool {
	if ev.Destination.APIBased() {
		return false
	}

	s.mu.Lock()
	waiter := s.waiter
	s.waiter = nil
	s.mu.Unlock()

	if waiter == nil {
		return false
	}

	result := automationResult{url: ev.URL}
	if ev.Kind == domain.EventError {
		result.err = &surfaceError{message: ev.Message}
	}
	waiter <- result
	return true
}

type surfaceError struct {
	message string
}

func (e *surfaceError) Error() string {
	return "surface reported: " + e.message
}

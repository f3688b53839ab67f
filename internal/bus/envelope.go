// Package bus is the message protocol between the editing surface and the
// delivery agent: a websocket carrying Kind-tagged JSON envelopes.
package bus

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/crosspost-dev/crosspost/internal/domain"
)

// Kind discriminates envelope payloads.
type Kind string

const (
	// KindDraft (surface → agent) delivers a debounced draft snapshot.
	KindDraft Kind = "draft"

	// KindPost (surface → agent) initiates a send with the draft captured at
	// submit time.
	KindPost Kind = "post"

	// KindSuccess and KindError flow both ways: the agent reports a
	// destination's terminal outcome to the surface, and the surface reports
	// the host-page destination's inferred outcome to the agent.
	KindSuccess Kind = "success"
	KindError   Kind = "error"

	// KindSession (agent → surface) carries the session snapshot after every
	// transition, so the surface can render spinners and terminal results.
	KindSession Kind = "session"

	// KindAutomate (agent → surface) instructs the surface to execute the
	// host page's native submit action.
	KindAutomate Kind = "automate"

	// KindCloseWindow (surface → agent) is a window-lifecycle signal.
	KindCloseWindow Kind = "close_window"

	// KindLog (surface → agent) relays surface debug output.
	KindLog Kind = "log"
)

// Envelope is one bus message. Only the fields matching Kind are set.
type Envelope struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`

	// Draft carries the draft snapshot for KindDraft and KindPost.
	Draft json.RawMessage `json:"draft,omitempty"`

	// Outcome fields for KindSuccess / KindError.
	Destination domain.Destination `json:"destination,omitempty"`
	URL         string             `json:"url,omitempty"`
	Message     string             `json:"message,omitempty"`

	// Session fields for KindSession.
	Session  domain.SessionKind `json:"session,omitempty"`
	Outcomes []domain.Outcome   `json:"outcomes,omitempty"`

	// Payload carries KindLog text.
	Payload string `json:"payload,omitempty"`
}

// NewEnvelope creates an envelope of the given kind with a fresh message ID.
func NewEnvelope(kind Kind) Envelope {
	return Envelope{ID: uuid.NewString(), Kind: kind}
}

// DecodeDraft parses the envelope's draft snapshot.
func (e *Envelope) DecodeDraft() (*domain.Draft, error) {
	if len(e.Draft) == 0 {
		return nil, fmt.Errorf("envelope %s carries no draft", e.Kind)
	}
	draft := &domain.Draft{}
	if err := json.Unmarshal(e.Draft, draft); err != nil {
		return nil, fmt.Errorf("unmarshal draft: %w", err)
	}
	return draft, nil
}

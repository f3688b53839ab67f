// Package delivery owns the multi-destination send: the session state machine
// that tracks each destination from draft to terminal outcome, and the engine
// that wires validation, the post builder, the transports, and the durable
// backup into it.
package delivery

import (
	"github.com/crosspost-dev/crosspost/internal/domain"
	"github.com/crosspost-dev/crosspost/internal/validate"
)

// initialOutcomes returns the not-yet-evaluated outcome set for the full
// destination registry.
func initialOutcomes() []domain.Outcome {
	outcomes := make([]domain.Outcome, 0, len(domain.Destinations()))
	for _, dest := range domain.Destinations() {
		outcomes = append(outcomes, domain.Outcome{
			Kind:        domain.OutcomeInitial,
			Destination: dest,
		})
	}
	return outcomes
}

// writingOutcomes evaluates every destination's eligibility against the
// current draft and preference snapshot.
func writingOutcomes(draft *domain.Draft, pref domain.Preference) []domain.Outcome {
	outcomes := make([]domain.Outcome, 0, len(domain.Destinations()))
	for _, dest := range domain.Destinations() {
		outcomes = append(outcomes, domain.Outcome{
			Kind:        domain.OutcomeWriting,
			Destination: dest,
			Paused:      pref.PausedFor(dest),
			Validation:  validate.For(dest).Validate(draft, pref),
		})
	}
	return outcomes
}

// eligibleDestinations returns the destinations a submit would carry forward:
// Writing, valid, and not paused. Everything else is dropped from the send,
// not reported as an error.
func eligibleDestinations(outcomes []domain.Outcome) []domain.Destination {
	var eligible []domain.Destination
	for _, o := range outcomes {
		if o.Eligible() {
			eligible = append(eligible, o.Destination)
		}
	}
	return eligible
}

// sendingOutcomes builds the outcome set a fresh send starts from.
func sendingOutcomes(destinations []domain.Destination) []domain.Outcome {
	outcomes := make([]domain.Outcome, 0, len(destinations))
	for _, dest := range destinations {
		outcomes = append(outcomes, domain.Outcome{
			Kind:        domain.OutcomeSending,
			Destination: dest,
		})
	}
	return outcomes
}

// applyEvent folds one terminal outcome event into the outcome set. Only the
// matching destination's entry changes; a destination already terminal is
// left untouched, so late or duplicate events cannot mutate a settled result.
func applyEvent(outcomes []domain.Outcome, ev domain.OutcomeEvent) []domain.Outcome {
	updated := make([]domain.Outcome, len(outcomes))
	for i, o := range outcomes {
		if o.Destination != ev.Destination || o.Terminal() {
			updated[i] = o
			continue
		}

		switch ev.Kind {
		case domain.EventSuccess:
			updated[i] = domain.Outcome{
				Kind:        domain.OutcomeSuccess,
				Destination: o.Destination,
				URL:         ev.URL,
			}
		case domain.EventError:
			updated[i] = domain.Outcome{
				Kind:        domain.OutcomeError,
				Destination: o.Destination,
				Message:     ev.Message,
			}
		default:
			updated[i] = o
		}
	}
	return updated
}

// allTerminal reports whether no outcome remains mid-send. An all-terminal
// Sending session must transition to Delivered.
func allTerminal(outcomes []domain.Outcome) bool {
	for _, o := range outcomes {
		if o.Kind == domain.OutcomeSending {
			return false
		}
	}
	return true
}

// apiDestinationsTerminal reports whether every API-based destination in the
// send has reached Success or Error. The UI-automation trigger is ordered
// strictly after this point so its completion signal cannot race a pending
// API send.
func apiDestinationsTerminal(outcomes []domain.Outcome) bool {
	for _, o := range outcomes {
		if o.Destination.APIBased() && !o.Terminal() {
			return false
		}
	}
	return true
}

// stillSending reports whether outcomes has an entry for dest still mid-send.
func stillSending(outcomes []domain.Outcome, dest domain.Destination) bool {
	for _, o := range outcomes {
		if o.Destination == dest && o.Kind == domain.OutcomeSending {
			return true
		}
	}
	return false
}

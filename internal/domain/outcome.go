package domain

import "fmt"

// ValidationErrorKind enumerates the reasons a destination can be ineligible
// for a send. Validation errors exclude a destination silently; they are never
// surfaced as send failures.
type ValidationErrorKind string

const (
	NoDraft       ValidationErrorKind = "NoDraft"
	NoCredentials ValidationErrorKind = "NoCredentials"
	NoText        ValidationErrorKind = "NoText"
	TextTooLong   ValidationErrorKind = "TextTooLong"
	ParseInvalid  ValidationErrorKind = "ParseInvalid"
)

// ValidationError is one reason a draft is ineligible for a destination.
type ValidationError struct {
	Kind ValidationErrorKind

	// Max is the destination's character budget. Set only for TextTooLong.
	Max int
}

// Message returns a short human-readable label for the error.
func (e ValidationError) Message() string {
	switch e.Kind {
	case NoDraft:
		return "draft is empty"
	case NoText:
		return "text is empty"
	case NoCredentials:
		return "not logged in"
	case TextTooLong:
		return fmt.Sprintf("text too long (max %d)", e.Max)
	case ParseInvalid:
		return "parse failed"
	default:
		return "unknown error"
	}
}

// Validation is the result of evaluating a destination's eligibility rule.
type Validation struct {
	Valid  bool
	Errors []ValidationError
}

// Valid is the passing validation result.
func Valid() Validation {
	return Validation{Valid: true}
}

// Invalid builds a failing validation result from one or more errors.
func Invalid(errs ...ValidationError) Validation {
	return Validation{Errors: errs}
}

// OutcomeKind is the discriminator for per-destination delivery progress.
type OutcomeKind string

const (
	OutcomeInitial OutcomeKind = "Initial"
	OutcomeWriting OutcomeKind = "Writing"
	OutcomeSending OutcomeKind = "Sending"
	OutcomeSuccess OutcomeKind = "Success"
	OutcomeError   OutcomeKind = "Error"
)

// Outcome tracks one destination's progress from draft to terminal result.
// Destination is stable and unique within an outcome slice. Only the fields
// matching Kind are meaningful.
type Outcome struct {
	Kind        OutcomeKind `json:"kind"`
	Destination Destination `json:"destination"`

	// Writing fields: the current eligibility snapshot.
	Paused     bool       `json:"paused,omitempty"`
	Validation Validation `json:"-"`

	// Success field.
	URL string `json:"url,omitempty"`

	// Error field.
	Message string `json:"message,omitempty"`
}

// Terminal reports whether the outcome is Success or Error.
func (o Outcome) Terminal() bool {
	return o.Kind == OutcomeSuccess || o.Kind == OutcomeError
}

// Eligible reports whether a Writing outcome may be carried into a send.
func (o Outcome) Eligible() bool {
	return o.Kind == OutcomeWriting && !o.Paused && o.Validation.Valid
}

// SessionKind is the discriminator for the delivery session envelope.
type SessionKind string

const (
	SessionInitial   SessionKind = "Initial"
	SessionWriting   SessionKind = "Writing"
	SessionSending   SessionKind = "Sending"
	SessionDelivered SessionKind = "Delivered"
)

// Session is the envelope the state machine tracks: one complete attempt to
// deliver one draft to the selected destinations. A Sending session holds at
// least one non-terminal outcome; the moment every outcome is terminal the
// session becomes Delivered.
type Session struct {
	Kind     SessionKind
	Outcomes []Outcome
}

// OutcomeEventKind discriminates outcome events flowing back from transports.
type OutcomeEventKind string

const (
	EventSuccess OutcomeEventKind = "Success"
	EventError   OutcomeEventKind = "Error"
)

// OutcomeEvent reports one destination's terminal result to the state machine.
type OutcomeEvent struct {
	Kind        OutcomeEventKind
	Destination Destination
	URL         string
	Message     string
}

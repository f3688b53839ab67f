package delivery

import (
	"context"
	"log/slog"
	"time"

	"github.com/crosspost-dev/crosspost/internal/domain"
)

// DefaultWatchdog is the send timeout: a session still Sending this long
// after submit has its stragglers forced to a timeout error.
const DefaultWatchdog = 5 * time.Minute

const timeoutMessage = "send timed out"

// PlaceholderURL stands in for the UI-automation destination's post URL,
// which this system can never observe.
const PlaceholderURL = "https://x.com"

// PostBuilder converts a draft into the wire payload for API destinations.
type PostBuilder interface {
	Build(ctx context.Context, draft *domain.Draft) (*domain.Post, error)
}

// Notifier receives state-machine notifications for the editing surface.
// Callbacks run on the engine goroutine and must not block.
type Notifier interface {
	// OutcomeResolved fires once per destination per send, when its terminal
	// outcome is applied.
	OutcomeResolved(ev domain.OutcomeEvent)

	// SessionChanged fires on every session transition.
	SessionChanged(session domain.Session)
}

// Params collects the engine's collaborators.
type Params struct {
	Poster      domain.Poster
	Trigger     domain.Trigger
	Backup      domain.BackupStore
	Preferences domain.PreferenceStore
	Builder     PostBuilder
	Notifier    Notifier
	Watchdog    time.Duration
	Logger      *slog.Logger
}

// Engine is the orchestrator coordinator: it owns the authoritative session
// value and serializes every transition onto a single goroutine. The only
// true concurrency is the independent outbound sends, which run as goroutines
// that post outcome events back into the loop; each touches only its own
// destination's slot.
type Engine struct {
	poster      domain.Poster
	trigger     domain.Trigger
	backup      domain.BackupStore
	preferences domain.PreferenceStore
	builder     PostBuilder
	notifier    Notifier
	watchdog    time.Duration
	logger      *slog.Logger

	queue chan func()

	// All fields below are owned by the engine goroutine.
	session   domain.Session
	draft     *domain.Draft
	pref      domain.Preference
	inFlight  bool // submit latch; the session check alone cannot stop a double key-press
	triggered bool // UI-automation trigger fired for this attempt
	attempt   int  // distinguishes watchdog timers across attempts
}

// NewEngine creates an Engine. Watchdog falls back to DefaultWatchdog.
func NewEngine(p Params) *Engine {
	if p.Watchdog <= 0 {
		p.Watchdog = DefaultWatchdog
	}
	return &Engine{
		poster:      p.Poster,
		trigger:     p.Trigger,
		backup:      p.Backup,
		preferences: p.Preferences,
		builder:     p.Builder,
		notifier:    p.Notifier,
		watchdog:    p.Watchdog,
		logger:      p.Logger,
		queue:       make(chan func(), 64),
		session:     domain.Session{Kind: domain.SessionInitial, Outcomes: initialOutcomes()},
	}
}

// Run restores any interrupted session from the backup store, then processes
// queued work until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	pref, err := e.preferences.Get(ctx)
	if err != nil {
		e.logger.Warn("failed to load preference, using defaults", "error", err)
	}
	e.pref = pref

	cancel := e.preferences.Subscribe(func(pref domain.Preference) {
		e.post(func() { e.handlePreferenceChange(pref) })
	})
	defer cancel()

	e.restore(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-e.queue:
			fn()
		}
	}
}

// SetDraft feeds a fresh draft snapshot from the editing surface into the
// state machine.
func (e *Engine) SetDraft(ctx context.Context, draft *domain.Draft) {
	e.post(func() { e.handleDraftChange(ctx, draft) })
}

// Submit starts delivery of the current draft to every eligible destination.
// It is a no-op unless the session is exactly Writing and no send is already
// in flight.
func (e *Engine) Submit(ctx context.Context) {
	e.post(func() { e.handleSubmit(ctx) })
}

// HandleOutcome feeds one destination's terminal result into the state
// machine. Events for destinations already settled are ignored.
func (e *Engine) HandleOutcome(ctx context.Context, ev domain.OutcomeEvent) {
	e.post(func() { e.handleOutcome(ctx, ev) })
}

// Snapshot returns the current session value.
func (e *Engine) Snapshot() domain.Session {
	reply := make(chan domain.Session, 1)
	e.post(func() { reply <- e.session })
	return <-reply
}

func (e *Engine) post(fn func()) {
	e.queue <- fn
}

// restore resurrects a session interrupted by process death. The backup is
// trusted for API-based destinations; the UI-automation destination's outcome
// is inferred as Success because its trigger fires only after the backup is
// written, and its true URL is never observable.
func (e *Engine) restore(ctx context.Context) {
	outcomes, err := e.backup.Restore(ctx)
	if err != nil {
		e.logger.Warn("failed to restore delivery backup", "error", err)
		return
	}
	if len(outcomes) == 0 {
		return
	}

	for i, o := range outcomes {
		if !o.Destination.APIBased() && o.Kind != domain.OutcomeSuccess {
			outcomes[i] = domain.Outcome{
				Kind:        domain.OutcomeSuccess,
				Destination: o.Destination,
				URL:         PlaceholderURL,
			}
		}
	}

	e.logger.Info("restored interrupted delivery", "outcomes", len(outcomes))
	e.transition(domain.Session{Kind: domain.SessionDelivered, Outcomes: outcomes})
}

func (e *Engine) handleDraftChange(ctx context.Context, draft *domain.Draft) {
	e.draft = draft

	switch e.session.Kind {
	case domain.SessionInitial, domain.SessionWriting:
		e.recomputeWriting()
	case domain.SessionDelivered:
		// A restored session stays visible until the user composes again; a
		// fresh draft supersedes it.
		e.recomputeWriting()
	case domain.SessionSending:
		// Draft edits during a send do not affect the in-flight attempt.
	}
}

func (e *Engine) handlePreferenceChange(pref domain.Preference) {
	e.pref = pref
	if e.session.Kind == domain.SessionWriting {
		e.recomputeWriting()
	}
}

func (e *Engine) recomputeWriting() {
	if e.draft == nil {
		return
	}
	e.transition(domain.Session{
		Kind:     domain.SessionWriting,
		Outcomes: writingOutcomes(e.draft, e.pref),
	})
}

func (e *Engine) handleSubmit(ctx context.Context) {
	if e.session.Kind != domain.SessionWriting || e.inFlight {
		e.logger.Debug("submit rejected", "session", e.session.Kind, "in_flight", e.inFlight)
		return
	}

	outcomes := writingOutcomes(e.draft, e.pref)
	eligible := eligibleDestinations(outcomes)
	if len(eligible) == 0 {
		e.logger.Info("submit ignored, no eligible destination")
		return
	}

	draft := e.draft
	pref := e.pref
	e.inFlight = true
	e.triggered = false
	e.attempt++
	attempt := e.attempt

	e.transition(domain.Session{
		Kind:     domain.SessionSending,
		Outcomes: sendingOutcomes(eligible),
	})

	time.AfterFunc(e.watchdog, func() {
		e.post(func() { e.handleWatchdog(ctx, attempt) })
	})

	go e.deliver(ctx, draft, pref, eligible)
}

// deliver builds the post and fans out one send per API-based destination.
// The UI-automation destination is not dispatched here; its trigger is
// ordered after every API send reaches a terminal outcome.
func (e *Engine) deliver(ctx context.Context, draft *domain.Draft, pref domain.Preference, destinations []domain.Destination) {
	var api []domain.Destination
	for _, dest := range destinations {
		if dest.APIBased() {
			api = append(api, dest)
		}
	}
	if len(api) == 0 {
		// Nothing to build; the trigger ordering check runs off the
		// transition into Sending.
		e.post(func() { e.maybeTriggerAutomation(ctx) })
		return
	}

	post, err := e.builder.Build(ctx, draft)
	if err != nil {
		e.logger.Error("post build failed", "error", err)
		for _, dest := range api {
			e.HandleOutcome(ctx, domain.OutcomeEvent{
				Kind:        domain.EventError,
				Destination: dest,
				Message:     err.Error(),
			})
		}
		return
	}

	for _, dest := range api {
		dest := dest
		go func() {
			url, err := e.poster.Post(ctx, post, pref)
			if err != nil {
				e.HandleOutcome(ctx, domain.OutcomeEvent{
					Kind:        domain.EventError,
					Destination: dest,
					Message:     err.Error(),
				})
				return
			}
			e.HandleOutcome(ctx, domain.OutcomeEvent{
				Kind:        domain.EventSuccess,
				Destination: dest,
				URL:         url,
			})
		}()
	}
}

func (e *Engine) handleOutcome(ctx context.Context, ev domain.OutcomeEvent) {
	if e.session.Kind != domain.SessionSending {
		return
	}
	if !stillSending(e.session.Outcomes, ev.Destination) {
		return
	}

	outcomes := applyEvent(e.session.Outcomes, ev)
	e.transition(domain.Session{Kind: domain.SessionSending, Outcomes: outcomes})
	e.notifier.OutcomeResolved(ev)

	e.maybeTriggerAutomation(ctx)
	e.maybeFinish(ctx)
}

// maybeTriggerAutomation fires the UI-automation destination's host trigger
// once every API-based destination has settled. The outcome set is durably
// backed up first: the trigger ends the host page's editing session, so a
// crash or navigation right after it must be restorable.
func (e *Engine) maybeTriggerAutomation(ctx context.Context) {
	if e.session.Kind != domain.SessionSending || e.triggered {
		return
	}
	if !stillSending(e.session.Outcomes, domain.DestinationX) {
		return
	}
	if !apiDestinationsTerminal(e.session.Outcomes) {
		return
	}

	e.triggered = true

	if err := e.backup.Save(ctx, e.session.Outcomes); err != nil {
		e.logger.Error("failed to back up delivery before trigger", "error", err)
	}

	go func() {
		url, err := e.trigger.Trigger(ctx)
		if err != nil {
			e.HandleOutcome(ctx, domain.OutcomeEvent{
				Kind:        domain.EventError,
				Destination: domain.DestinationX,
				Message:     err.Error(),
			})
			return
		}
		if url == "" {
			url = PlaceholderURL
		}
		e.HandleOutcome(ctx, domain.OutcomeEvent{
			Kind:        domain.EventSuccess,
			Destination: domain.DestinationX,
			URL:         url,
		})
	}()
}

// maybeFinish transitions Sending to Delivered the instant no outcome remains
// mid-send, then resets for the next draft.
func (e *Engine) maybeFinish(ctx context.Context) {
	if e.session.Kind != domain.SessionSending || !allTerminal(e.session.Outcomes) {
		return
	}

	e.transition(domain.Session{Kind: domain.SessionDelivered, Outcomes: e.session.Outcomes})

	if err := e.backup.Clear(ctx); err != nil {
		e.logger.Warn("failed to clear delivery backup", "error", err)
	}

	e.inFlight = false
	e.session = domain.Session{Kind: domain.SessionInitial, Outcomes: initialOutcomes()}
	if e.draft != nil {
		e.recomputeWriting()
	}
}

// handleWatchdog force-fails any destination still mid-send. This is a local
// transition only; a write already issued may still complete remotely, which
// the idempotent record key keeps safe.
func (e *Engine) handleWatchdog(ctx context.Context, attempt int) {
	if attempt != e.attempt || e.session.Kind != domain.SessionSending {
		return
	}

	e.logger.Warn("send watchdog fired", "attempt", attempt)

	// Forced local transition: stragglers all fail at once, and the trigger
	// ordering check is deliberately skipped. Only the terminal-convergence
	// condition is re-evaluated.
	outcomes := e.session.Outcomes
	for _, o := range outcomes {
		if o.Kind != domain.OutcomeSending {
			continue
		}
		ev := domain.OutcomeEvent{
			Kind:        domain.EventError,
			Destination: o.Destination,
			Message:     timeoutMessage,
		}
		outcomes = applyEvent(outcomes, ev)
		e.notifier.OutcomeResolved(ev)
	}

	e.transition(domain.Session{Kind: domain.SessionSending, Outcomes: outcomes})
	e.maybeFinish(ctx)
}

func (e *Engine) transition(session domain.Session) {
	e.session = session
	e.notifier.SessionChanged(session)
}

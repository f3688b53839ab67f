// Package validate holds the per-destination eligibility rules. Each rule is a
// pure, total predicate over the current draft and preference: it always
// returns exactly one Valid or Invalid result and never panics. A failing rule
// silently excludes its destination from the send; it is not a send failure.
package validate

import (
	"github.com/crosspost-dev/crosspost/internal/domain"
)

const (
	// BlueskyMaxChars is Bluesky's post character budget.
	BlueskyMaxChars = 300

	// XMaxChars is X's weighted character budget.
	XMaxChars = 280
)

// Rule decides whether a draft is eligible for one destination.
type Rule interface {
	Validate(draft *domain.Draft, pref domain.Preference) domain.Validation
}

// For returns the rule for dest.
func For(dest domain.Destination) Rule {
	switch dest {
	case domain.DestinationBluesky:
		return blueskyRule{}
	case domain.DestinationX:
		return xRule{}
	default:
		return rejectAll{}
	}
}

// All evaluates every registered destination's rule against the same draft and
// preference snapshot.
func All(draft *domain.Draft, pref domain.Preference) map[domain.Destination]domain.Validation {
	results := make(map[domain.Destination]domain.Validation, len(domain.Destinations()))
	for _, dest := range domain.Destinations() {
		results[dest] = For(dest).Validate(draft, pref)
	}
	return results
}

// blueskyRule gates the API-based destination. Rules short-circuit in order:
// draft present, credentials configured, content present, length within
// budget. Image-only posts are valid.
type blueskyRule struct{}

func (blueskyRule) Validate(draft *domain.Draft, pref domain.Preference) domain.Validation {
	if draft == nil {
		return domain.Invalid(domain.ValidationError{Kind: domain.NoDraft})
	}
	if !pref.HasBlueskyCredentials() {
		return domain.Invalid(domain.ValidationError{Kind: domain.NoCredentials})
	}
	if draft.Empty() {
		return domain.Invalid(domain.ValidationError{Kind: domain.NoText})
	}
	if runeLength(draft.Text) > BlueskyMaxChars {
		return domain.Invalid(domain.ValidationError{Kind: domain.TextTooLong, Max: BlueskyMaxChars})
	}
	return domain.Valid()
}

// xRule gates the UI-automation destination. X rides the user's live browser
// session, so there is no credential check. Length uses X's weighted counting
// rules rather than a plain rune count.
type xRule struct{}

func (xRule) Validate(draft *domain.Draft, _ domain.Preference) domain.Validation {
	if draft == nil {
		return domain.Invalid(domain.ValidationError{Kind: domain.NoDraft})
	}
	if draft.Empty() {
		return domain.Invalid(domain.ValidationError{Kind: domain.NoText})
	}
	if containsInvalidChars(draft.Text) {
		return domain.Invalid(domain.ValidationError{Kind: domain.ParseInvalid})
	}
	if weightedLength(draft.Text) > XMaxChars {
		return domain.Invalid(domain.ValidationError{Kind: domain.TextTooLong, Max: XMaxChars})
	}
	return domain.Valid()
}

// rejectAll is the rule for destinations outside the registry.
type rejectAll struct{}

func (rejectAll) Validate(*domain.Draft, domain.Preference) domain.Validation {
	return domain.Invalid(domain.ValidationError{Kind: domain.ParseInvalid})
}

package domain

import "context"

// Poster performs the remote write for an API-based destination and returns
// the URL of the resulting post.
type Poster interface {
	Post(ctx context.Context, post *Post, pref Preference) (string, error)
}

// Trigger executes a UI-automation destination's native submit action on the
// host surface. It is invoked at most once per send attempt and never
// retried. The returned URL is the best observable evidence of success (for
// X, the post-submit redirect target); it may be empty.
type Trigger interface {
	Trigger(ctx context.Context) (url string, err error)
}

// BackupStore persists the in-flight outcome set so a crash mid-send can be
// resumed idempotently.
type BackupStore interface {
	// Save writes the outcome set, replacing any previous record.
	Save(ctx context.Context, outcomes []Outcome) error

	// Restore returns the saved outcome set and clears it immediately. A
	// missing, empty, or malformed record yields (nil, nil), never an error
	// the caller must treat as fatal.
	Restore(ctx context.Context) ([]Outcome, error)

	// Clear removes any saved record.
	Clear(ctx context.Context) error
}

// PreferenceStore owns the user preference value and notifies subscribers of
// changes. Implementations replace the ambient singleton the composition root
// would otherwise need.
type PreferenceStore interface {
	Get(ctx context.Context) (Preference, error)
	Set(ctx context.Context, pref Preference) error

	// Subscribe registers fn to run after every successful Set. The returned
	// function cancels the subscription.
	Subscribe(fn func(Preference)) (cancel func())
}

// LinkPreviewResolver extracts link-card metadata for a URL. It is an external
// collaborator: the delivery core only consumes its result.
type LinkPreviewResolver interface {
	Resolve(ctx context.Context, url string) (*LinkPreview, error)
}

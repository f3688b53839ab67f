package domain

// Destination identifies one configured social-posting target. The set is
// closed and known at build time; destinations cannot be added at runtime.
type Destination string

const (
	// DestinationX is posted to by triggering the native submit action on the
	// host compose page the user is already viewing. Its outcome is inferred,
	// not confirmed via API.
	DestinationX Destination = "X"

	// DestinationBluesky is posted to via AT Protocol XRPC calls that return a
	// confirmable result.
	DestinationBluesky Destination = "Bluesky"
)

// Destinations returns the fixed registry in delivery-report order.
func Destinations() []Destination {
	return []Destination{DestinationX, DestinationBluesky}
}

// APIBased reports whether the destination is reached through a remote write
// call. Non-API destinations go through the host-page trigger path instead.
func (d Destination) APIBased() bool {
	return d != DestinationX
}

// Preference holds the user settings that gate delivery. It is held by an
// explicit store object owned by the composition root, never by package-level
// state.
type Preference struct {
	BlueskyHandle      string
	BlueskyAppPassword string

	XPaused       bool
	BlueskyPaused bool
}

// PausedFor reports whether the user has paused delivery to dest.
func (p Preference) PausedFor(dest Destination) bool {
	switch dest {
	case DestinationX:
		return p.XPaused
	case DestinationBluesky:
		return p.BlueskyPaused
	default:
		return true
	}
}

// HasBlueskyCredentials reports whether a Bluesky handle and app password are
// both configured.
func (p Preference) HasBlueskyCredentials() bool {
	return p.BlueskyHandle != "" && p.BlueskyAppPassword != ""
}

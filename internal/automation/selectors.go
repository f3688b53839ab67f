package automation

// X.com compose-page DOM selectors.
// These are isolated here because X changes their DOM frequently.
// Update these when the trigger breaks.
const (
	// ComposeTextarea is the tweet text box on the compose page.
	ComposeTextarea = `[data-testid="tweetTextarea_0"]`

	// SubmitButton is the native post button the trigger clicks.
	SubmitButton = `[data-testid="tweetButton"]`
)

// homeURLPrefixes are the redirect targets that indicate the native submit
// succeeded and the compose session ended.
var homeURLPrefixes = []string{
	"https://twitter.com/home",
	"https://x.com/home",
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/crosspost-dev/crosspost/internal/bluesky"
	"github.com/crosspost-dev/crosspost/internal/domain"
	"github.com/crosspost-dev/crosspost/internal/imaging"
	"github.com/crosspost-dev/crosspost/internal/opengraph"
	"github.com/crosspost-dev/crosspost/internal/postbuild"
	"github.com/crosspost-dev/crosspost/internal/tid"
	"github.com/crosspost-dev/crosspost/internal/validate"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		text     string
		images   stringList
		link     string
		handle   string
		password string
		pds      string
	)

	flag.StringVar(&text, "text", "", "Post text")
	flag.Var(&images, "image", "Image URL to attach (repeatable, max 4)")
	flag.StringVar(&link, "link", "", "URL to attach as a link card (ignored when images are set)")
	flag.StringVar(&handle, "handle", envOrDefault("BLUESKY_HANDLE", ""), "BlueSky handle (e.g. user.bsky.social)")
	flag.StringVar(&password, "password", envOrDefault("BLUESKY_APP_PASSWORD", ""), "BlueSky app password")
	flag.StringVar(&pds, "pds", envOrDefault("BLUESKY_PDS", "https://bsky.social"), "PDS service URL")
	flag.Parse()

	if handle == "" || password == "" {
		return fmt.Errorf("--handle and --password are required (or set BLUESKY_HANDLE and BLUESKY_APP_PASSWORD)")
	}

	draft := &domain.Draft{
		Text:           text,
		ImageURLs:      images,
		LinkPreviewURL: link,
	}
	pref := domain.Preference{
		BlueskyHandle:      handle,
		BlueskyAppPassword: password,
	}

	if v := validate.For(domain.DestinationBluesky).Validate(draft, pref); !v.Valid {
		messages := make([]string, 0, len(v.Errors))
		for _, e := range v.Errors {
			messages = append(messages, e.Message())
		}
		return fmt.Errorf("post rejected: %s", strings.Join(messages, "; "))
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	builder := postbuild.NewBuilder(
		imaging.NewOptimizer(imaging.DefaultMaxDimension, imaging.DefaultMaxBytes),
		opengraph.NewResolver(),
		logger,
	)
	post, err := builder.Build(ctx, draft)
	if err != nil {
		return err
	}

	poster := bluesky.NewPoster(pds, tid.New(), logger)

	fmt.Printf("Posting as %s...\n", handle)
	url, err := poster.Post(ctx, post, pref)
	if err != nil {
		return err
	}
	fmt.Printf("Posted: %s\n", url)

	return nil
}

// stringList collects a repeatable flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

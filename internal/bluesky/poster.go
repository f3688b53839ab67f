package bluesky

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/crosspost-dev/crosspost/internal/domain"
	"github.com/crosspost-dev/crosspost/internal/tid"
)

const postCollection = "app.bsky.feed.post"

// Send failure kinds surfaced per-destination as terminal error outcomes.
var (
	ErrAuthFailed   = errors.New("bluesky: authentication failed")
	ErrUploadFailed = errors.New("bluesky: blob upload failed")
	ErrWriteFailed  = errors.New("bluesky: record write failed")
)

// Poster delivers posts to Bluesky using an idempotent write protocol: one
// record key is generated per send attempt and reused across that attempt's
// retries, so a write that was applied but whose response was lost is detected
// as "already exists" instead of creating a duplicate post.
type Poster struct {
	pds    string
	tids   *tid.Generator
	logger *slog.Logger
}

// NewPoster creates a Poster against the given PDS.
func NewPoster(pds string, tids *tid.Generator, logger *slog.Logger) *Poster {
	return &Poster{pds: pds, tids: tids, logger: logger}
}

// Post authenticates, uploads media, and creates the post record. It returns
// the bsky.app URL of the resulting post.
func (p *Poster) Post(ctx context.Context, post *domain.Post, pref domain.Preference) (string, error) {
	client := NewClient(p.pds)
	if err := client.Login(ctx, pref.BlueskyHandle, pref.BlueskyAppPassword); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	record := postRecord{
		Type:      postCollection,
		Text:      post.Text,
		Facets:    detectFacets(ctx, client, post.Text),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	embed, err := p.buildEmbed(ctx, client, post)
	if err != nil {
		return "", err
	}
	record.Embed = embed

	// One identifier per send attempt. It must never be regenerated
	// mid-retry and never reused across a new user-initiated submit.
	rkey := p.tids.Next()

	if _, err := client.CreateRecord(ctx, postCollection, rkey, record); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RecordExists() {
			// The first attempt was applied; only its response was lost.
			return postURL(pref.BlueskyHandle, rkey), nil
		}

		p.logger.Warn("record write failed, retrying with same key", "rkey", rkey, "error", err)

		if _, err := client.CreateRecord(ctx, postCollection, rkey, record); err != nil {
			if errors.As(err, &apiErr) && apiErr.RecordExists() {
				// The first attempt landed late, after the retry was issued.
				return postURL(pref.BlueskyHandle, rkey), nil
			}
			return "", fmt.Errorf("%w: %v", ErrWriteFailed, err)
		}
	}

	return postURL(pref.BlueskyHandle, rkey), nil
}

// buildEmbed uploads the post's media and returns the record embed. Images and
// link cards are mutually exclusive; images win when both are present.
func (p *Poster) buildEmbed(ctx context.Context, client *Client, post *domain.Post) (any, error) {
	if len(post.Images) > 0 && post.Linkcard == nil {
		embed := imagesEmbed{Type: "app.bsky.embed.images"}

		// Upload order must mirror attachment order.
		for _, img := range post.Images {
			blob, err := client.UploadBlob(ctx, img.Binary, img.MimeType)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
			}
			embed.Images = append(embed.Images, imageEmbed{
				Alt:   "",
				Image: blob,
				AspectRatio: &aspectRatio{
					Width:  img.Width,
					Height: img.Height,
				},
			})
		}
		return embed, nil
	}

	if post.Linkcard != nil {
		thumb, err := client.UploadBlob(ctx, post.Linkcard.Thumbnail.Binary, post.Linkcard.Thumbnail.MimeType)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
		}
		return externalEmbed{
			Type: "app.bsky.embed.external",
			External: external{
				URI:         post.Linkcard.URL,
				Thumb:       thumb,
				Title:       post.Linkcard.Title,
				Description: post.Linkcard.Description,
			},
		}, nil
	}

	return nil, nil
}

func postURL(handle, rkey string) string {
	return fmt.Sprintf("https://bsky.app/profile/%s/post/%s", handle, rkey)
}

type postRecord struct {
	Type      string  `json:"$type"`
	Text      string  `json:"text"`
	Facets    []Facet `json:"facets,omitempty"`
	CreatedAt string  `json:"createdAt"`
	Embed     any     `json:"embed,omitempty"`
}

type imagesEmbed struct {
	Type   string       `json:"$type"`
	Images []imageEmbed `json:"images"`
}

type imageEmbed struct {
	Alt         string       `json:"alt"`
	Image       *BlobRef     `json:"image"`
	AspectRatio *aspectRatio `json:"aspectRatio,omitempty"`
}

type aspectRatio struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type externalEmbed struct {
	Type     string   `json:"$type"`
	External external `json:"external"`
}

type external struct {
	URI         string   `json:"uri"`
	Thumb       *BlobRef `json:"thumb,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
}

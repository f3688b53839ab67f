// Package postbuild converts a Draft into the wire Post: it fetches the
// attached image URLs, runs each image through the optimizer, and resolves the
// link preview into a link card.
package postbuild

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/crosspost-dev/crosspost/internal/domain"
	"github.com/crosspost-dev/crosspost/internal/imaging"
)

const fetchTimeout = 60 * time.Second

// Builder assembles Posts from Drafts.
type Builder struct {
	optimizer  *imaging.Optimizer
	previews   domain.LinkPreviewResolver
	httpClient *http.Client
	logger     *slog.Logger
}

// NewBuilder creates a Builder. previews may be nil, in which case drafts
// never produce link cards.
func NewBuilder(optimizer *imaging.Optimizer, previews domain.LinkPreviewResolver, logger *slog.Logger) *Builder {
	return &Builder{
		optimizer:  optimizer,
		previews:   previews,
		httpClient: &http.Client{Timeout: fetchTimeout},
		logger:     logger,
	}
}

// Build fetches and optimizes the draft's images in attachment order and
// attaches a link card when the draft carries a resolvable preview URL. A
// failed image fetch fails the build (images are user content); a failed link
// preview degrades to a post without a card.
func (b *Builder) Build(ctx context.Context, draft *domain.Draft) (*domain.Post, error) {
	post := &domain.Post{Text: draft.Text}

	for _, imageURL := range draft.ImageURLs {
		img, err := b.fetchImage(ctx, imageURL)
		if err != nil {
			return nil, fmt.Errorf("fetch image %s: %w", imageURL, err)
		}
		post.Images = append(post.Images, img)
	}

	if draft.LinkPreviewURL != "" && b.previews != nil {
		linkcard, err := b.buildLinkcard(ctx, draft.LinkPreviewURL)
		if err != nil {
			b.logger.Warn("link preview unavailable, posting without card",
				"url", draft.LinkPreviewURL, "error", err)
		} else {
			post.Linkcard = linkcard
		}
	}

	return post, nil
}

// fetchImage downloads one image and passes it through the optimizer.
func (b *Builder) fetchImage(ctx context.Context, imageURL string) (domain.PostImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return domain.PostImage{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return domain.PostImage{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.PostImage{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.PostImage{}, fmt.Errorf("read body: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	return b.optimizer.Optimize(domain.PostImage{
		Binary:   data,
		MimeType: mimeType,
		ByteSize: len(data),
	})
}

// buildLinkcard resolves preview metadata and fetches the thumbnail. A
// preview without an image yields no card.
func (b *Builder) buildLinkcard(ctx context.Context, previewURL string) (*domain.Linkcard, error) {
	preview, err := b.previews.Resolve(ctx, previewURL)
	if err != nil {
		return nil, fmt.Errorf("resolve preview: %w", err)
	}
	if preview == nil || preview.ImageURL == "" {
		return nil, fmt.Errorf("no preview image for %s", previewURL)
	}

	thumbnail, err := b.fetchImage(ctx, preview.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch thumbnail: %w", err)
	}

	return &domain.Linkcard{
		URL:         preview.URL,
		Title:       preview.Title,
		Description: preview.Description,
		Thumbnail:   thumbnail,
	}, nil
}

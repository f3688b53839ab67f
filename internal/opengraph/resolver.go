// Package opengraph resolves link-preview metadata by scraping a page's
// OpenGraph meta tags.
package opengraph

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/html"

	"github.com/crosspost-dev/crosspost/internal/domain"
)

const resolveTimeout = 30 * time.Second

// Resolver implements domain.LinkPreviewResolver over plain HTTP.
type Resolver struct {
	httpClient *http.Client
}

// NewResolver creates a Resolver.
func NewResolver() *Resolver {
	return &Resolver{
		httpClient: &http.Client{Timeout: resolveTimeout},
	}
}

// Resolve fetches pageURL and extracts og:title, og:description, og:image,
// and og:url. Missing tags are left empty; og:url falls back to pageURL.
func (r *Resolver) Resolve(ctx context.Context, pageURL string) (*domain.LinkPreview, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	preview := &domain.LinkPreview{URL: pageURL}
	fillFromHTML(preview, resp.Body)
	return preview, nil
}

// fillFromHTML walks the token stream and stops at the end of <head>; og tags
// never appear in the body.
func fillFromHTML(preview *domain.LinkPreview, body io.Reader) {
	tokenizer := html.NewTokenizer(body)

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return

		case html.EndTagToken:
			if name, _ := tokenizer.TagName(); string(name) == "head" {
				return
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tokenizer.TagName()
			if string(name) != "meta" || !hasAttr {
				continue
			}

			var property, content string
			for {
				key, val, more := tokenizer.TagAttr()
				switch string(key) {
				case "property", "name":
					property = string(val)
				case "content":
					content = string(val)
				}
				if !more {
					break
				}
			}

			switch property {
			case "og:title":
				preview.Title = content
			case "og:description":
				preview.Description = content
			case "og:image":
				preview.ImageURL = content
			case "og:url":
				if content != "" {
					preview.URL = content
				}
			}
		}
	}
}

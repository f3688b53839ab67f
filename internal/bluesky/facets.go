package bluesky

import (
	"context"
	"regexp"
	"strings"
)

// Facet annotates a byte range of post text with rich-text features, per
// app.bsky.richtext.facet. Byte offsets are into the UTF-8 encoding of the
// text.
type Facet struct {
	Index    ByteSlice `json:"index"`
	Features []Feature `json:"features"`
}

// ByteSlice is a half-open byte range.
type ByteSlice struct {
	ByteStart int `json:"byteStart"`
	ByteEnd   int `json:"byteEnd"`
}

// Feature is one rich-text feature (link or mention).
type Feature struct {
	Type string `json:"$type"`
	URI  string `json:"uri,omitempty"`
	DID  string `json:"did,omitempty"`
}

var (
	linkPattern    = regexp.MustCompile(`https?://[^\s]+`)
	mentionPattern = regexp.MustCompile(`(?:^|\s)(@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)
)

// detectFacets finds links and @mentions in text. Mentions are resolved to
// DIDs through the client; a handle that does not resolve is left as plain
// text rather than failing the post.
func detectFacets(ctx context.Context, c *Client, text string) []Facet {
	var facets []Facet

	for _, loc := range linkPattern.FindAllStringIndex(text, -1) {
		uri := strings.TrimRight(text[loc[0]:loc[1]], `.,;:!?)'"`)
		facets = append(facets, Facet{
			Index: ByteSlice{ByteStart: loc[0], ByteEnd: loc[0] + len(uri)},
			Features: []Feature{{
				Type: "app.bsky.richtext.facet#link",
				URI:  uri,
			}},
		})
	}

	for _, loc := range mentionPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[2], loc[3]
		handle := text[start+1 : end] // strip the leading @

		did, err := c.ResolveHandle(ctx, handle)
		if err != nil || did == "" {
			continue
		}

		facets = append(facets, Facet{
			Index: ByteSlice{ByteStart: start, ByteEnd: end},
			Features: []Feature{{
				Type: "app.bsky.richtext.facet#mention",
				DID:  did,
			}},
		})
	}

	return facets
}

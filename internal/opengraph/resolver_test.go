package opengraph

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosspost-dev/crosspost/internal/domain"
)

func TestResolveExtractsOpenGraphTags(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
	<title>Plain Title</title>
	<meta property="og:title" content="OG Title" />
	<meta property="og:description" content="A description." />
	<meta property="og:image" content="https://cdn.example.com/preview.jpg" />
	<meta property="og:url" content="https://example.com/canonical" />
</head>
<body><p>body text</p></body>
</html>`))
	}))
	defer srv.Close()

	preview, err := NewResolver().Resolve(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal("OG Title", preview.Title)
	assert.Equal("A description.", preview.Description)
	assert.Equal("https://cdn.example.com/preview.jpg", preview.ImageURL)
	assert.Equal("https://example.com/canonical", preview.URL)
}

func TestResolveFallsBackToPageURL(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><meta property="og:title" content="No URL tag"></head><body></body></html>`))
	}))
	defer srv.Close()

	preview, err := NewResolver().Resolve(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal("No URL tag", preview.Title)
	assert.Equal(srv.URL, preview.URL)
	assert.Empty(preview.ImageURL)
}

func TestResolveErrorStatus(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewResolver().Resolve(context.Background(), srv.URL)
	assert.Error(err)
}

func TestFillFromHTMLStopsAtHeadEnd(t *testing.T) {
	assert := assert.New(t)

	preview := &domain.LinkPreview{}
	fillFromHTML(preview, strings.NewReader(`<html>
<head><meta property="og:title" content="In Head"></head>
<body><meta property="og:description" content="In Body"></body>
</html>`))

	assert.Equal("In Head", preview.Title)
	assert.Empty(preview.Description, "tags after </head> must be ignored")
}

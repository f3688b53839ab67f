package postbuild

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosspost-dev/crosspost/internal/domain"
	"github.com/crosspost-dev/crosspost/internal/imaging"
)

type fakeResolver struct {
	preview *domain.LinkPreview
	err     error
}

func (r *fakeResolver) Resolve(context.Context, string) (*domain.LinkPreview, error) {
	return r.preview, r.err
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 5), B: 120, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestBuilder(previews domain.LinkPreviewResolver) *Builder {
	return NewBuilder(
		imaging.NewOptimizer(imaging.DefaultMaxDimension, imaging.DefaultMaxBytes),
		previews,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func TestBuildTextOnly(t *testing.T) {
	assert := assert.New(t)

	post, err := newTestBuilder(nil).Build(context.Background(), &domain.Draft{Text: "just words"})
	assert.NoError(err)
	assert.Equal("just words", post.Text)
	assert.Empty(post.Images)
	assert.Nil(post.Linkcard)
}

func TestBuildFetchesImagesInOrder(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		switch r.URL.Path {
		case "/one.png":
			w.Write(testPNG(t, 40, 30))
		case "/two.png":
			w.Write(testPNG(t, 80, 20))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	draft := &domain.Draft{
		Text:      "with images",
		ImageURLs: []string{srv.URL + "/one.png", srv.URL + "/two.png"},
	}

	post, err := newTestBuilder(nil).Build(context.Background(), draft)
	require.NoError(t, err)
	require.Len(t, post.Images, 2)

	// Attachment order survives the fetch, and every image has been through
	// the optimizer.
	assert.Equal(40, post.Images[0].Width)
	assert.Equal(80, post.Images[1].Width)
	assert.Equal("image/jpeg", post.Images[0].MimeType)
	assert.Equal("image/jpeg", post.Images[1].MimeType)
}

func TestBuildFailsWhenImageFetchFails(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	draft := &domain.Draft{Text: "broken", ImageURLs: []string{srv.URL + "/gone.png"}}

	_, err := newTestBuilder(nil).Build(context.Background(), draft)
	assert.Error(err, "attached images are user content; losing one silently is not acceptable")
}

func TestBuildAttachesLinkcard(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(testPNG(t, 32, 32))
	}))
	defer srv.Close()

	resolver := &fakeResolver{preview: &domain.LinkPreview{
		URL:         "https://example.com/article",
		Title:       "An Article",
		Description: "Worth reading",
		ImageURL:    srv.URL + "/thumb.png",
	}}

	draft := &domain.Draft{Text: "read this", LinkPreviewURL: "https://example.com/article"}

	post, err := newTestBuilder(resolver).Build(context.Background(), draft)
	require.NoError(t, err)
	require.NotNil(t, post.Linkcard)

	assert.Equal("An Article", post.Linkcard.Title)
	assert.Equal("https://example.com/article", post.Linkcard.URL)
	assert.Equal("image/jpeg", post.Linkcard.Thumbnail.MimeType)
}

func TestBuildDegradesWhenPreviewFails(t *testing.T) {
	assert := assert.New(t)

	resolver := &fakeResolver{err: errors.New("page unreachable")}
	draft := &domain.Draft{Text: "read this", LinkPreviewURL: "https://example.com/article"}

	post, err := newTestBuilder(resolver).Build(context.Background(), draft)
	assert.NoError(err, "a missing preview degrades to a plain post")
	assert.Nil(post.Linkcard)
	assert.Equal("read this", post.Text)
}

func TestBuildSkipsCardWithoutPreviewImage(t *testing.T) {
	assert := assert.New(t)

	resolver := &fakeResolver{preview: &domain.LinkPreview{
		URL:   "https://example.com/article",
		Title: "No Image",
	}}
	draft := &domain.Draft{Text: "read this", LinkPreviewURL: "https://example.com/article"}

	post, err := newTestBuilder(resolver).Build(context.Background(), draft)
	assert.NoError(err)
	assert.Nil(post.Linkcard)
}

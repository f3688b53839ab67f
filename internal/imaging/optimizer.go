// Package imaging prepares outbound images for upload. Destinations cap blob
// sizes, so every attached image is downscaled and re-encoded as JPEG at the
// highest quality that fits the byte budget.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	"github.com/crosspost-dev/crosspost/internal/domain"
)

const (
	// DefaultMaxDimension is the largest width or height an uploaded image may
	// have. Larger images are scaled down preserving aspect ratio.
	DefaultMaxDimension = 2000

	// DefaultMaxBytes is the encoded byte budget per image (~900KB).
	DefaultMaxBytes = 900 * 1024
)

// ErrCompressionFailed means no JPEG quality in range produced an encoding
// within the byte budget. This should not occur for realistic inputs at
// quality 1, but callers must handle it.
var ErrCompressionFailed = errors.New("unable to compress image to target size")

// Optimizer re-encodes images to fit a destination's limits. The zero value is
// not usable; use NewOptimizer.
type Optimizer struct {
	maxDimension int
	maxBytes     int
}

// NewOptimizer creates an Optimizer. Non-positive limits fall back to the
// defaults.
func NewOptimizer(maxDimension, maxBytes int) *Optimizer {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Optimizer{maxDimension: maxDimension, maxBytes: maxBytes}
}

// Optimize decodes img, scales it down if its longest side exceeds the
// dimension limit, and binary-searches JPEG quality in the open interval
// (1, 101) for the highest quality whose encoding fits the byte budget. The
// result is always image/jpeg regardless of the input format. Pure CPU work;
// callers should run it off the event loop.
func (o *Optimizer) Optimize(img domain.PostImage) (domain.PostImage, error) {
	decoded, _, err := image.Decode(bytes.NewReader(img.Binary))
	if err != nil {
		return domain.PostImage{}, fmt.Errorf("decode image: %w", err)
	}

	decoded = o.downscale(decoded)
	bounds := decoded.Bounds()

	// Invariant: minQuality is the best known passing quality, maxQuality the
	// best known failing one. The interval is half-open; termination at a gap
	// of 1 keeps the last passing buffer.
	minQuality := 1
	maxQuality := 101
	var best []byte

	var buf bytes.Buffer
	for maxQuality-minQuality > 1 {
		quality := (minQuality + maxQuality + 1) / 2

		buf.Reset()
		if err := jpeg.Encode(&buf, decoded, &jpeg.Options{Quality: quality}); err != nil {
			return domain.PostImage{}, fmt.Errorf("encode jpeg at quality %d: %w", quality, err)
		}

		if buf.Len() <= o.maxBytes {
			minQuality = quality
			best = append(best[:0], buf.Bytes()...)
		} else {
			maxQuality = quality
		}
	}

	if best == nil {
		return domain.PostImage{}, ErrCompressionFailed
	}

	return domain.PostImage{
		Binary:   best,
		MimeType: "image/jpeg",
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		ByteSize: len(best),
	}, nil
}

// downscale scales img so its longest side is at most the dimension limit,
// truncating the scaled dimensions.
func (o *Optimizer) downscale(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	longest := w
	if h > longest {
		longest = h
	}
	if longest <= o.maxDimension {
		return img
	}

	scale := float64(o.maxDimension) / float64(longest)
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

package domain

// Draft is an immutable snapshot of the content composed on the host editing
// surface. It is produced externally (the surface scrapes its own DOM) and is
// consumed read-only by validation and by the post builder.
type Draft struct {
	// Text is the composed post body.
	Text string `json:"text"`

	// ImageURLs are the blob URLs of attached images, in attachment order.
	ImageURLs []string `json:"imageURLs"`

	// LinkPreviewURL is the URL a link card should be built from. Empty means
	// no link preview.
	LinkPreviewURL string `json:"linkPreviewURL,omitempty"`
}

// Empty reports whether the draft carries neither text nor images.
func (d *Draft) Empty() bool {
	return d.Text == "" && len(d.ImageURLs) == 0
}

// Post is the wire payload derived from a Draft. Every image attached to a
// Post has already been passed through the optimizer.
type Post struct {
	Text     string
	Images   []PostImage
	Linkcard *Linkcard
}

// PostImage is one encoded image ready for upload.
type PostImage struct {
	Binary   []byte
	MimeType string
	Width    int
	Height   int
	ByteSize int
}

// Linkcard is the external-link embed attached to a Post instead of images.
type Linkcard struct {
	URL         string
	Title       string
	Description string
	Thumbnail   PostImage
}

// LinkPreview is the metadata an external resolver extracts for a link card.
// An empty ImageURL means no card can be built.
type LinkPreview struct {
	URL         string
	Title       string
	Description string
	ImageURL    string
}

package content

import (
	"strings"
	"time"
)

const DefaultExcerptLength = 180

// Normalizer turns raw upstream entries into canonical items. Missing fields
// never reject an entry; a fallback is substituted instead.
type Normalizer struct {
	images        *ImageChain
	excerptLength int
	now           func() time.Time
}

func NewNormalizer(images *ImageChain, excerptLength int, now func() time.Time) *Normalizer {
	if images == nil {
		images = DefaultImageChain()
	}
	if excerptLength <= 0 {
		excerptLength = DefaultExcerptLength
	}
	if now == nil {
		now = time.Now
	}

	return &Normalizer{
		images:        images,
		excerptLength: excerptLength,
		now:           now,
	}
}

func (n *Normalizer) Run(src SourceInfo, entry RawEntry) Item {
	publishedAt, _ := ParseDate(entry.Published, entry.PublishedAt, n.now())
	canonical := CanonicalURL(entry.Link)

	excerptSource := entry.Summary
	if StripMarkup(excerptSource) == "" {
		excerptSource = entry.Body
	}
	excerpt := CleanExcerpt(excerptSource, n.excerptLength)

	title := StripMarkup(entry.Title)
	if title == "" {
		title = CleanExcerpt(excerptSource, 100)
	}

	imageURL, imageSource := n.images.Select(ImageInput{
		Entry:        entry,
		BaseURL:      canonical,
		DefaultImage: src.DefaultImage,
	})

	mediaURL := ExtractMediaURL(entry, canonical)
	if mediaURL == "" {
		mediaURL = imageURL
	}

	return Item{
		IdentityKey:  IdentityKey(src.ID, entry, src.TitleCollisions),
		ExternalID:   strings.TrimSpace(entry.ExternalID),
		SourceID:     src.ID,
		Title:        title,
		Excerpt:      excerpt,
		PublishedAt:  publishedAt,
		CanonicalURL: canonical,
		MediaURL:     mediaURL,
		ImageURL:     imageURL,
		ImageSource:  imageSource,
	}
}

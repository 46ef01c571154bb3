package content

import (
	"html"
	"regexp"
)

// Values recorded in Item.ImageSource.
const (
	ImageSourceStructured = "structured"
	ImageSourceSummary    = "summary_img"
	ImageSourceContent    = "content_img"
	ImageSourceBodyURL    = "body_url"
	ImageSourceDefault    = "source_default"
	ImageSourceNone       = "none"
)

type ImageInput struct {
	Entry        RawEntry
	BaseURL      string
	DefaultImage string
}

// ImageStrategy is one rule of the main-image selection chain.
type ImageStrategy interface {
	TryExtract(in ImageInput) (imageURL string, tag string, ok bool)
}

// ImageChain applies its strategies in order and stops at the first hit.
type ImageChain struct {
	strategies []ImageStrategy
}

func NewImageChain(strategies ...ImageStrategy) *ImageChain {
	return &ImageChain{strategies: strategies}
}

func DefaultImageChain() *ImageChain {
	return NewImageChain(
		StructuredImage{},
		SummaryImage{},
		ScoredContentImage{},
		BareImageURL{},
		SourceDefault{},
	)
}

func (c *ImageChain) Select(in ImageInput) (string, string) {
	for _, strategy := range c.strategies {
		if imageURL, tag, ok := strategy.TryExtract(in); ok {
			return imageURL, tag
		}
	}
	return "", ImageSourceNone
}

// StructuredImage takes the explicit image field of the entry, then image
// typed media and enclosures.
type StructuredImage struct{}

func (StructuredImage) TryExtract(in ImageInput) (string, string, bool) {
	candidates := []string{in.Entry.ImageURL}
	for _, group := range [][]Enclosure{in.Entry.Media, in.Entry.Enclosures} {
		for _, enclosure := range group {
			if isImageEnclosure(enclosure) {
				candidates = append(candidates, enclosure.URL)
			}
		}
	}

	for _, candidate := range candidates {
		imageURL := NormalizeURL(candidate, in.BaseURL)
		if imageURL != "" && !IsDeniedImage(imageURL) {
			return imageURL, ImageSourceStructured, true
		}
	}
	return "", "", false
}

// SummaryImage takes the first non-denied <img> of the short-form body.
// Syndicated summaries put the lead image first.
type SummaryImage struct{}

func (SummaryImage) TryExtract(in ImageInput) (string, string, bool) {
	for _, candidate := range collectImages(in.Entry.Summary, in.BaseURL) {
		if !IsDeniedImage(candidate.URL) {
			return candidate.URL, ImageSourceSummary, true
		}
	}
	return "", "", false
}

// ScoredContentImage scores every <img> of the long-form body and picks the
// best one above RejectFloor. Ties go to the earlier image.
type ScoredContentImage struct{}

func (ScoredContentImage) TryExtract(in ImageInput) (string, string, bool) {
	bestURL := ""
	bestScore := RejectFloor

	for _, candidate := range collectImages(in.Entry.Body, in.BaseURL) {
		if score := scoreImage(candidate); score > bestScore {
			bestURL = candidate.URL
			bestScore = score
		}
	}

	if bestURL == "" {
		return "", "", false
	}
	return bestURL, ImageSourceContent, true
}

var bareImageURLPattern = regexp.MustCompile(`(?i)(?:https?:)?//[^\s"'<>()]+\.(?:jpe?g|png|gif|webp|avif)(?:\?[^\s"'<>()]*)?`)

// BareImageURL scans both bodies as plain text for image-file URLs.
type BareImageURL struct{}

func (BareImageURL) TryExtract(in ImageInput) (string, string, bool) {
	text := html.UnescapeString(in.Entry.Body + "\n" + in.Entry.Summary)
	for _, match := range bareImageURLPattern.FindAllString(text, -1) {
		imageURL := NormalizeURL(match, in.BaseURL)
		if imageURL != "" && !IsDeniedImage(imageURL) {
			return imageURL, ImageSourceBodyURL, true
		}
	}
	return "", "", false
}

// SourceDefault falls back to the source's configured image.
type SourceDefault struct{}

func (SourceDefault) TryExtract(in ImageInput) (string, string, bool) {
	if imageURL := NormalizeURL(in.DefaultImage, ""); imageURL != "" {
		return imageURL, ImageSourceDefault, true
	}
	return "", "", false
}

package content

import (
	"time"
)

type Enclosure struct {
	URL    string
	Type   string
	Length int64
}

// RawEntry is an upstream item as produced by a transport adapter. It is
// consumed by the Normalizer within one run and never persisted.
type RawEntry struct {
	ExternalID  string
	Title       string
	Link        string
	Summary     string // short-form body (description, snippet)
	Body        string // long-form body (content:encoded, atom content)
	Published   string
	PublishedAt *time.Time // already parsed by the transport, if it could
	Enclosures  []Enclosure
	Media       []Enclosure // media:content and media:thumbnail
	ImageURL    string      // explicit structured image field
	Authors     []string
	Categories  []string
}

// Item is the canonical content record written to the content store.
type Item struct {
	IdentityKey  string
	ExternalID   string // upstream id, kept for checkpoints only
	SourceID     string
	Title        string
	Excerpt      string
	PublishedAt  time.Time
	CanonicalURL string
	MediaURL     string
	ImageURL     string
	ImageSource  string
}

// SourceInfo carries the per-source settings the Normalizer needs.
type SourceInfo struct {
	ID              string
	DefaultImage    string
	TitleCollisions bool
}

// Window is an inclusive publish-time range.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// DayWindow covers the given number of whole days ending with the day that
// contains ref, in ref's location.
func DayWindow(ref time.Time, days int) Window {
	if days < 1 {
		days = 1
	}
	startOfDay := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
	return Window{
		Start: startOfDay.AddDate(0, 0, -(days - 1)),
		End:   startOfDay.AddDate(0, 0, 1).Add(-time.Nanosecond),
	}
}

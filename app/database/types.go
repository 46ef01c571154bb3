package database

import (
	"time"
)

// Checkpoint is the per-source resumption state.
type Checkpoint struct {
	ETag           string
	LastModified   string
	LastSeenItemID string
	LastFetchedAt  *time.Time
}

type Source struct {
	Name       string // Configuration source identifier derived from filename
	Kind       string
	Endpoint   string // Feed URL or listing id
	Active     bool
	Checkpoint Checkpoint
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type ContentItem struct {
	IdentityKey  string
	SourceID     string
	Title        string
	Excerpt      string
	PublishedAt  time.Time
	CanonicalURL string
	MediaURL     string
	ImageURL     string
	ImageSource  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

package api

import (
	"context"
	"time"

	"github.com/lysyi3m/content-comb/app/database"
	"github.com/lysyi3m/content-comb/app/ingest"
	"github.com/lysyi3m/content-comb/app/source"
)

var (
	_ RunScheduler   = (*ingest.Scheduler)(nil)
	_ SourceRegistry = (*source.Registry)(nil)
)

type RunScheduler interface {
	RunOnce(ctx context.Context, mode ingest.Mode) (*ingest.RunSummary, error)
	RunSource(ctx context.Context, sourceID string, mode ingest.Mode) (*ingest.RunSummary, error)
}

type SourceRegistry interface {
	ListSources(ctx context.Context) ([]source.Config, error)
	GetSource(ctx context.Context, id string) (*source.Config, error)
	Reload(ctx context.Context) error
	GetSourceCount() int
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	registry        SourceRegistry
	itemRepo        database.ItemRepository
	scheduler       RunScheduler
	db              Pinger
	version         string
	incrementalDays int
	backfillDays    int
	now             func() time.Time
}

// runRequest is accepted as query parameters or a JSON body.
type runRequest struct {
	Mode string `form:"mode" json:"mode"`
	Days int    `form:"days" json:"days"`
	Date string `form:"date" json:"date"`
}

type resyncRequest struct {
	DaysBack int `json:"days_back"`
}

type itemResponse struct {
	IdentityKey  string    `json:"identity_key"`
	Title        string    `json:"title"`
	Excerpt      string    `json:"excerpt"`
	PublishedAt  time.Time `json:"published_at"`
	CanonicalURL string    `json:"canonical_url"`
	MediaURL     string    `json:"media_url,omitempty"`
	ImageURL     string    `json:"image_url,omitempty"`
	ImageSource  string    `json:"image_source"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

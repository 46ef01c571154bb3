package database

import (
	"context"
	"time"
)

type SourceRepository interface {
	GetSource(ctx context.Context, name string) (*Source, error)
	ListSources(ctx context.Context) ([]Source, error)
	GetSourceCount(ctx context.Context) (int, error)

	UpsertSource(ctx context.Context, name, kind, endpoint string, active bool) error
	UpdateCheckpoint(ctx context.Context, name string, checkpoint Checkpoint) error
}

type ItemRepository interface {
	ExistingKeys(ctx context.Context, keys []string) (map[string]bool, error)
	UpsertItems(ctx context.Context, items []ContentItem) error

	GetItem(ctx context.Context, identityKey string) (*ContentItem, error)
	GetRecentItems(ctx context.Context, sourceID string, limit int) ([]ContentItem, error)
	GetItemCount(ctx context.Context, sourceID string) (int, error)

	DeleteOlderThan(ctx context.Context, sourceID string, cutoff time.Time) (int64, error)
}

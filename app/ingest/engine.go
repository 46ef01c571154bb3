package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/content-comb/app/content"
	"github.com/lysyi3m/content-comb/app/database"
)

const (
	MinBatchSize     = 10
	MaxBatchSize     = 20
	DefaultBatchSize = 20
)

// Engine writes canonical items to the content store in bounded batches.
type Engine struct {
	items     database.ItemRepository
	batchSize int
}

func NewEngine(items database.ItemRepository, batchSize int) *Engine {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Engine{
		items:     items,
		batchSize: max(MinBatchSize, min(batchSize, MaxBatchSize)),
	}
}

// PersistResult describes what one Persist call wrote.
type PersistResult struct {
	Written   []content.Item // in input order, failed batches excluded
	New       int
	Duplicate int
	Failed    int // items in failed batches
	Cancelled bool
	Err       error
}

// Existing reports which identity keys are already stored.
func (e *Engine) Existing(ctx context.Context, keys []string) (map[string]bool, error) {
	existing, err := e.items.ExistingKeys(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to look up identity keys: %w", err)
	}
	return existing, nil
}

// Persist upserts items batch by batch. A failed batch is logged and
// skipped. Cancellation is honoured between batches only; a batch that
// has started is always written to completion.
func (e *Engine) Persist(ctx context.Context, sourceID string, items []content.Item, existing map[string]bool) PersistResult {
	var result PersistResult
	var failedBatches int
	var lastErr error

	writeCtx := context.WithoutCancel(ctx)

	for start := 0; start < len(items); start += e.batchSize {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		end := min(start+e.batchSize, len(items))
		batch := items[start:end]

		rows := make([]database.ContentItem, len(batch))
		for i, item := range batch {
			rows[i] = toContentItem(item)
		}

		if err := e.items.UpsertItems(writeCtx, rows); err != nil {
			slog.Error("Batch upsert failed", "source", sourceID, "offset", start, "size", len(batch), "error", err)
			failedBatches++
			result.Failed += len(batch)
			lastErr = err
			continue
		}

		for _, item := range batch {
			if existing[item.IdentityKey] {
				result.Duplicate++
			} else {
				result.New++
			}
		}
		result.Written = append(result.Written, batch...)
	}

	if failedBatches > 0 {
		result.Err = &PersistenceError{SourceID: sourceID, FailedBatches: failedBatches, Err: lastErr}
	}

	return result
}

// Prune removes a source's items published before the retention cutoff.
func (e *Engine) Prune(ctx context.Context, sourceID string, cutoff time.Time) (int64, error) {
	deleted, err := e.items.DeleteOlderThan(ctx, sourceID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune items: %w", err)
	}
	return deleted, nil
}

func toContentItem(item content.Item) database.ContentItem {
	return database.ContentItem{
		IdentityKey:  item.IdentityKey,
		SourceID:     item.SourceID,
		Title:        item.Title,
		Excerpt:      item.Excerpt,
		PublishedAt:  item.PublishedAt,
		CanonicalURL: item.CanonicalURL,
		MediaURL:     item.MediaURL,
		ImageURL:     item.ImageURL,
		ImageSource:  item.ImageSource,
	}
}

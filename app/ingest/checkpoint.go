package ingest

import (
	"context"
	"time"

	"github.com/lysyi3m/content-comb/app/adapter"
	"github.com/lysyi3m/content-comb/app/content"
	"github.com/lysyi3m/content-comb/app/source"
)

type CheckpointStore interface {
	UpdateCheckpoint(ctx context.Context, id string, checkpoint source.Checkpoint) error
}

// CheckpointWriter advances a source's resumption state after a clean
// incremental run.
type CheckpointWriter struct {
	store CheckpointStore
	now   func() time.Time
}

func NewCheckpointWriter(store CheckpointStore, now func() time.Time) *CheckpointWriter {
	if now == nil {
		now = time.Now
	}
	return &CheckpointWriter{store: store, now: now}
}

// Advance stores the response's conditional token and the newest persisted
// item id. It is a no-op in backfill mode and after cancellation; callers
// must not call it when the source saw any error.
func (w *CheckpointWriter) Advance(ctx context.Context, mode Mode, src source.Config, result *adapter.Result, newestID string) (bool, error) {
	if mode.IsBackfill() || ctx.Err() != nil || result == nil || result.NotModified {
		return false, nil
	}

	fetchedAt := w.now().UTC()
	checkpoint := source.Checkpoint{
		ETag:           result.ETag,
		LastModified:   result.LastModified,
		LastSeenItemID: src.Checkpoint.LastSeenItemID,
		LastFetchedAt:  &fetchedAt,
	}
	if newestID != "" {
		checkpoint.LastSeenItemID = newestID
	}

	if err := w.store.UpdateCheckpoint(ctx, src.Name, checkpoint); err != nil {
		return false, err
	}
	return true, nil
}

// newestItemID picks the id of the first written item. Upstreams list
// newest first, so that is the newest one persisted.
func newestItemID(written []content.Item) string {
	if len(written) == 0 {
		return ""
	}
	if written[0].ExternalID != "" {
		return written[0].ExternalID
	}
	return written[0].IdentityKey
}

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/content-comb/app/adapter"
	"github.com/lysyi3m/content-comb/app/content"
	"github.com/lysyi3m/content-comb/app/source"
)

type state string

const (
	stateFetching          state = "fetching"
	stateNotModified       state = "not_modified"
	stateParsing           state = "parsing"
	stateNormalizing       state = "normalizing"
	stateDiffing           state = "diffing"
	statePersisting        state = "persisting"
	stateCheckpointAdvance state = "checkpoint_advance"
	stateError             state = "error"
	stateIdle              state = "idle"
)

type Normalizer interface {
	Run(src content.SourceInfo, entry content.RawEntry) content.Item
}

// Pipeline runs one source from fetch to checkpoint.
type Pipeline struct {
	adapters    map[source.Kind]adapter.Adapter
	normalizer  Normalizer
	filterer    *source.Filterer
	engine      *Engine
	checkpoints *CheckpointWriter
	now         func() time.Time
}

func NewPipeline(adapters map[source.Kind]adapter.Adapter, normalizer Normalizer, filterer *source.Filterer,
	engine *Engine, checkpoints *CheckpointWriter, now func() time.Time) *Pipeline {
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		adapters:    adapters,
		normalizer:  normalizer,
		filterer:    filterer,
		engine:      engine,
		checkpoints: checkpoints,
		now:         now,
	}
}

// Run never returns an error: every failure, including a panic, ends up in
// the returned summary.
func (p *Pipeline) Run(ctx context.Context, src source.Config, mode Mode) (summary SourceSummary) {
	started := p.now()
	summary = SourceSummary{SourceID: src.Name, Status: StatusOK}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Source pipeline panicked", "source", src.Name, "panic", r)
			summary.fail(fmt.Errorf("panic: %v", r))
			summary.ErrorKind = ErrorKindInternal
		}
		summary.Duration = p.now().Sub(started).Seconds()
		p.transition(src.Name, stateIdle)

		slog.Info("Source completed",
			"source", src.Name,
			"mode", mode.Kind,
			"status", summary.Status,
			"new", summary.New,
			"duplicates", summary.Duplicate,
			"out_of_range", summary.OutOfRange,
			"filtered", summary.Filtered,
			"errors", summary.Errors,
			"duration", time.Duration(summary.Duration*float64(time.Second)))
	}()

	fail := func(err error) SourceSummary {
		p.transition(src.Name, stateError)
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", context.Canceled, err)
		}
		summary.fail(err)
		slog.Warn("Source failed", "source", src.Name, "kind", summary.ErrorKind, "error", err)
		return summary
	}

	a, ok := p.adapters[src.Kind]
	if !ok {
		return fail(fmt.Errorf("no adapter for source kind %q", src.Kind))
	}

	p.transition(src.Name, stateFetching)
	result, err := a.Fetch(ctx, p.buildRequest(src, mode))
	if err != nil {
		return fail(err)
	}

	if result.NotModified {
		p.transition(src.Name, stateNotModified)
		summary.Status = StatusNotModified
		return summary
	}

	p.transition(src.Name, stateParsing)
	entries := result.Entries

	p.transition(src.Name, stateNormalizing)
	keys := make([]string, len(entries))
	for i, entry := range entries {
		keys[i] = content.IdentityKey(src.Name, entry, src.Settings.TitleCollisions)
	}

	p.transition(src.Name, stateDiffing)
	existing, err := p.engine.Existing(context.WithoutCancel(ctx), keys)
	if err != nil {
		return fail(&PersistenceError{SourceID: src.Name, Err: err})
	}

	items := p.collect(src, mode, entries, keys, existing, &summary)

	p.transition(src.Name, statePersisting)
	persisted := p.engine.Persist(ctx, src.Name, items, existing)
	summary.New += persisted.New
	summary.Duplicate += persisted.Duplicate

	if persisted.Err != nil {
		summary.Errors = persisted.Failed
		return fail(persisted.Err)
	}
	if persisted.Cancelled || ctx.Err() != nil {
		summary.Status = StatusCancelled
		summary.ErrorKind = ErrorKindCancelled
		summary.Error = context.Canceled.Error()
		return summary
	}

	p.transition(src.Name, stateCheckpointAdvance)
	advanced, err := p.checkpoints.Advance(ctx, mode, src, result, newestItemID(persisted.Written))
	if err != nil {
		return fail(&PersistenceError{SourceID: src.Name, Err: fmt.Errorf("failed to advance checkpoint: %w", err)})
	}
	summary.CheckpointAdvanced = advanced

	p.applyRetention(ctx, src)

	return summary
}

func (p *Pipeline) buildRequest(src source.Config, mode Mode) adapter.Request {
	req := adapter.Request{
		SourceID: src.Name,
		Endpoint: src.Endpoint(),
		Backfill: mode.IsBackfill(),
		Cutoff:   mode.Window.Start,
		Timeout:  time.Duration(src.Settings.Timeout) * time.Second,
		MaxItems: src.Settings.MaxItems,
	}

	if !mode.IsBackfill() {
		req.ETag = src.Checkpoint.ETag
		req.LastModified = src.Checkpoint.LastModified
		req.LastSeenItemID = src.Checkpoint.LastSeenItemID
	}

	return req
}

// collect walks entries in upstream order. In incremental mode the walk
// stops at the first stored key; in backfill mode stored items are
// refreshed. Later repeats of a key within the same fetch are dropped.
func (p *Pipeline) collect(src source.Config, mode Mode, entries []content.RawEntry, keys []string,
	existing map[string]bool, summary *SourceSummary) []content.Item {
	info := content.SourceInfo{
		ID:              src.Name,
		DefaultImage:    src.Settings.DefaultImage,
		TitleCollisions: src.Settings.TitleCollisions,
	}

	seen := make(map[string]bool, len(entries))
	items := make([]content.Item, 0, len(entries))

	for i, entry := range entries {
		key := keys[i]
		if seen[key] {
			summary.Duplicate++
			continue
		}
		seen[key] = true

		if existing[key] && !mode.IsBackfill() {
			summary.Duplicate++
			slog.Debug("Reached stored entry, stopping", "source", src.Name, "key", key, "position", i, "skipped", len(entries)-i-1)
			break
		}

		if filtered, reason := p.filterer.Run(entry, src.Filters); filtered {
			summary.Filtered++
			slog.Debug("Entry filtered", "source", src.Name, "key", key, "reason", reason)
			continue
		}

		item := p.normalizer.Run(info, entry)
		if !mode.Window.Contains(item.PublishedAt) {
			summary.OutOfRange++
			continue
		}

		items = append(items, item)
	}

	return items
}

func (p *Pipeline) applyRetention(ctx context.Context, src source.Config) {
	if src.Settings.RetentionDays <= 0 {
		return
	}

	cutoff := p.now().AddDate(0, 0, -src.Settings.RetentionDays)
	deleted, err := p.engine.Prune(ctx, src.Name, cutoff)
	if err != nil {
		slog.Warn("Retention prune failed", "source", src.Name, "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Retention applied", "source", src.Name, "deleted", deleted, "cutoff", cutoff.UTC())
	}
}

func (p *Pipeline) transition(sourceID string, to state) {
	slog.Debug("Source state", "source", sourceID, "state", to)
}

package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/lysyi3m/content-comb/app/adapter"
	"github.com/lysyi3m/content-comb/app/content"
	"github.com/lysyi3m/content-comb/app/database"
	"github.com/lysyi3m/content-comb/app/source"
)

func TestNewEngineClampsBatchSize(t *testing.T) {
	tests := []struct {
		requested int
		expected  int
	}{
		{0, DefaultBatchSize},
		{5, MinBatchSize},
		{15, 15},
		{100, MaxBatchSize},
	}

	for _, tt := range tests {
		if got := NewEngine(newMockItemRepository(), tt.requested).batchSize; got != tt.expected {
			t.Errorf("Batch size %d: expected %d, got: %d", tt.requested, tt.expected, got)
		}
	}
}

func TestEnginePersistCountsAgainstLookup(t *testing.T) {
	repo := newMockItemRepository()
	engine := NewEngine(repo, 10)

	items := []content.Item{
		{IdentityKey: "a", SourceID: "news", PublishedAt: testNow},
		{IdentityKey: "b", SourceID: "news", PublishedAt: testNow},
	}

	result := engine.Persist(context.Background(), "news", items, map[string]bool{"b": true})
	if result.Err != nil {
		t.Fatal(result.Err)
	}
	if result.New != 1 || result.Duplicate != 1 || len(result.Written) != 2 {
		t.Errorf("Expected 1 new, 1 duplicate, 2 written, got: %+v", result)
	}
}

func TestEnginePersistReportsFailedBatches(t *testing.T) {
	repo := newMockItemRepository()
	repo.failKeys["x"] = true
	engine := NewEngine(repo, 10)

	result := engine.Persist(context.Background(), "news", []content.Item{{IdentityKey: "x", SourceID: "news"}}, nil)

	var persistenceErr *PersistenceError
	if !errors.As(result.Err, &persistenceErr) {
		t.Fatalf("Expected PersistenceError, got: %v", result.Err)
	}
	if persistenceErr.FailedBatches != 1 || result.Failed != 1 {
		t.Errorf("Expected one failed batch of one item, got: %+v", result)
	}
}

func newSQLiteItemStore(t *testing.T) *database.ItemStore {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "ingest.db") + "?_pragma=busy_timeout(5000)&_time_format=sqlite"
	db, err := database.NewConnection("sqlite", dsn)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return database.NewItemStore(db)
}

func TestPipelineIngestionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteItemStore(t)
	feed := &mockAdapter{result: &adapter.Result{Entries: makeEntries(12)}}

	pipeline := NewPipeline(
		map[source.Kind]adapter.Adapter{source.KindFeed: feed},
		content.NewNormalizer(nil, 0, fixedNow),
		source.NewFilterer(),
		NewEngine(store, 10),
		NewCheckpointWriter(newMockCheckpointStore(), fixedNow),
		fixedNow,
	)

	first := pipeline.Run(ctx, testSource(), BackfillDays(testNow, 1))
	if first.Status != StatusOK || first.New != 12 {
		t.Fatalf("Expected 12 new items on first ingestion, got: %+v", first)
	}
	before, err := store.GetItem(ctx, "e5")
	if err != nil || before == nil {
		t.Fatalf("Expected stored item, got: %v, %v", before, err)
	}

	second := pipeline.Run(ctx, testSource(), BackfillDays(testNow, 1))
	if second.New != 0 || second.Duplicate != 12 {
		t.Errorf("Expected 12 duplicates on second ingestion, got: %d new, %d duplicate", second.New, second.Duplicate)
	}

	count, err := store.GetItemCount(ctx, "news")
	if err != nil {
		t.Fatal(err)
	}
	if count != 12 {
		t.Errorf("Expected exactly 12 stored items, got: %d", count)
	}

	after, err := store.GetItem(ctx, "e5")
	if err != nil {
		t.Fatal(err)
	}
	if !after.CreatedAt.Equal(before.CreatedAt) || after.Title != before.Title || after.Excerpt != before.Excerpt ||
		after.ImageSource != before.ImageSource || !after.PublishedAt.Equal(before.PublishedAt) {
		t.Errorf("Expected re-ingestion to converge on the same record, got: %+v vs %+v", after, before)
	}

	third := pipeline.Run(ctx, testSource(), Incremental(testNow, 1))
	if third.New != 0 || third.Duplicate != 1 {
		t.Errorf("Expected incremental run to stop at once, got: %d new, %d duplicate", third.New, third.Duplicate)
	}
}

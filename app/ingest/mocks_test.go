package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lysyi3m/content-comb/app/adapter"
	"github.com/lysyi3m/content-comb/app/content"
	"github.com/lysyi3m/content-comb/app/database"
	"github.com/lysyi3m/content-comb/app/source"
)

var _ database.ItemRepository = (*mockItemRepository)(nil)

// mockItemRepository keeps items in memory. Batches containing a key from
// failKeys are rejected whole.
type mockItemRepository struct {
	mu       sync.Mutex
	items    map[string]database.ContentItem
	failKeys map[string]bool
	batches  int
	deleted  []time.Time
}

func newMockItemRepository() *mockItemRepository {
	return &mockItemRepository{
		items:    make(map[string]database.ContentItem),
		failKeys: make(map[string]bool),
	}
}

func (m *mockItemRepository) ExistingKeys(ctx context.Context, keys []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := make(map[string]bool)
	for _, key := range keys {
		if _, ok := m.items[key]; ok {
			existing[key] = true
		}
	}
	return existing, nil
}

func (m *mockItemRepository) UpsertItems(ctx context.Context, items []database.ContentItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.batches++
	for _, item := range items {
		if m.failKeys[item.IdentityKey] {
			return errors.New("constraint violation")
		}
	}
	for _, item := range items {
		if previous, ok := m.items[item.IdentityKey]; ok {
			item.CreatedAt = previous.CreatedAt
		} else {
			item.CreatedAt = time.Now()
		}
		m.items[item.IdentityKey] = item
	}
	return nil
}

func (m *mockItemRepository) GetItem(ctx context.Context, key string) (*database.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (m *mockItemRepository) GetRecentItems(ctx context.Context, sourceID string, limit int) ([]database.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var items []database.ContentItem
	for _, item := range m.items {
		if item.SourceID == sourceID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].PublishedAt.After(items[j].PublishedAt) })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *mockItemRepository) GetItemCount(ctx context.Context, sourceID string) (int, error) {
	items, _ := m.GetRecentItems(ctx, sourceID, 1<<30)
	return len(items), nil
}

func (m *mockItemRepository) DeleteOlderThan(ctx context.Context, sourceID string, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleted = append(m.deleted, cutoff)
	var deleted int64
	for key, item := range m.items {
		if item.SourceID == sourceID && item.PublishedAt.Before(cutoff) {
			delete(m.items, key)
			deleted++
		}
	}
	return deleted, nil
}

// mockAdapter replays a fixed result and records every request.
type mockAdapter struct {
	mu       sync.Mutex
	result   *adapter.Result
	err      error
	requests []adapter.Request
}

func (m *mockAdapter) Fetch(ctx context.Context, req adapter.Request) (*adapter.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockAdapter) lastRequest() adapter.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

// mockCheckpointStore records checkpoint writes.
type mockCheckpointStore struct {
	mu      sync.Mutex
	written map[string]source.Checkpoint
	err     error
}

func newMockCheckpointStore() *mockCheckpointStore {
	return &mockCheckpointStore{written: make(map[string]source.Checkpoint)}
}

func (m *mockCheckpointStore) UpdateCheckpoint(ctx context.Context, id string, checkpoint source.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.written[id] = checkpoint
	return nil
}

func (m *mockCheckpointStore) get(id string) (source.Checkpoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	checkpoint, ok := m.written[id]
	return checkpoint, ok
}

// countingNormalizer counts how many entries reach normalization.
type countingNormalizer struct {
	inner   *content.Normalizer
	calls   atomic.Int32
	panicOn string
}

func (c *countingNormalizer) Run(src content.SourceInfo, entry content.RawEntry) content.Item {
	c.calls.Add(1)
	if c.panicOn != "" && entry.ExternalID == c.panicOn {
		panic("malformed entry")
	}
	return c.inner.Run(src, entry)
}

// mockRegistry serves a fixed list of sources.
type mockRegistry struct {
	sources []source.Config
	err     error
}

func (m *mockRegistry) ListActiveSources(ctx context.Context) ([]source.Config, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.sources, nil
}

func (m *mockRegistry) GetSource(ctx context.Context, id string) (*source.Config, error) {
	for _, src := range m.sources {
		if src.Name == id {
			return &src, nil
		}
	}
	return nil, fmt.Errorf("source config with name '%s': %w", id, source.ErrSourceNotFound)
}

var testNow = time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)

func fixedNow() time.Time {
	return testNow
}

// makeEntries builds n entries e0..e(n-1), newest first, a minute apart.
func makeEntries(n int) []content.RawEntry {
	entries := make([]content.RawEntry, n)
	for i := range entries {
		published := testNow.Add(-time.Duration(i) * time.Minute)
		entries[i] = content.RawEntry{
			ExternalID:  fmt.Sprintf("e%d", i),
			Title:       fmt.Sprintf("Entry %d", i),
			Link:        fmt.Sprintf("https://example.com/posts/%d", i),
			Summary:     "<p>Summary text</p>",
			PublishedAt: &published,
		}
	}
	return entries
}

type pipelineFixture struct {
	items       *mockItemRepository
	adapter     *mockAdapter
	checkpoints *mockCheckpointStore
	normalizer  *countingNormalizer
	pipeline    *Pipeline
}

func newPipelineFixture(entries []content.RawEntry) *pipelineFixture {
	f := &pipelineFixture{
		items:       newMockItemRepository(),
		adapter:     &mockAdapter{result: &adapter.Result{Entries: entries, ETag: `"v2"`, LastModified: "Fri, 10 May 2024 15:00:00 GMT"}},
		checkpoints: newMockCheckpointStore(),
		normalizer:  &countingNormalizer{inner: content.NewNormalizer(nil, 0, fixedNow)},
	}
	f.pipeline = NewPipeline(
		map[source.Kind]adapter.Adapter{source.KindFeed: f.adapter},
		f.normalizer,
		source.NewFilterer(),
		NewEngine(f.items, 10),
		NewCheckpointWriter(f.checkpoints, fixedNow),
		fixedNow,
	)
	return f
}

func (f *pipelineFixture) seed(keys ...string) {
	for _, key := range keys {
		f.items.items[key] = database.ContentItem{IdentityKey: key, SourceID: "news", PublishedAt: testNow}
	}
}

func testSource() source.Config {
	return source.Config{
		Name: "news",
		Kind: source.KindFeed,
		URL:  "https://example.com/feed.xml",
		Settings: source.ConfigSettings{
			Enabled:  true,
			MaxItems: source.DefaultMaxItems,
		},
		Checkpoint: source.Checkpoint{ETag: `"v1"`, LastModified: "Thu, 09 May 2024 15:00:00 GMT", LastSeenItemID: "old"},
	}
}

package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/lysyi3m/content-comb/app/database"
)

type mockSourceRepository struct {
	sources map[string]*database.Source
	listErr error
}

func newMockSourceRepository() *mockSourceRepository {
	return &mockSourceRepository{sources: make(map[string]*database.Source)}
}

func (m *mockSourceRepository) GetSource(ctx context.Context, name string) (*database.Source, error) {
	s, ok := m.sources[name]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (m *mockSourceRepository) ListSources(ctx context.Context) ([]database.Source, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []database.Source
	for _, s := range m.sources {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *mockSourceRepository) GetSourceCount(ctx context.Context) (int, error) {
	return len(m.sources), nil
}

func (m *mockSourceRepository) UpsertSource(ctx context.Context, name, kind, endpoint string, active bool) error {
	s, ok := m.sources[name]
	if !ok {
		s = &database.Source{Name: name}
		m.sources[name] = s
	}
	if s.Endpoint != endpoint {
		s.Checkpoint = database.Checkpoint{}
	}
	s.Kind = kind
	s.Endpoint = endpoint
	s.Active = active
	return nil
}

func (m *mockSourceRepository) UpdateCheckpoint(ctx context.Context, name string, checkpoint database.Checkpoint) error {
	s, ok := m.sources[name]
	if !ok {
		return fmt.Errorf("source %s not registered", name)
	}
	s.Checkpoint = checkpoint
	return nil
}

func newTestRegistry(t *testing.T, repo *mockSourceRepository) *Registry {
	t.Helper()

	dir := t.TempDir()
	writeConfig(t, dir, "news", `
url: "https://example.com/feed.xml"
settings:
  enabled: true
`)
	writeConfig(t, dir, "paused", `
url: "https://example.com/paused.xml"
settings:
  enabled: false
`)
	writeConfig(t, dir, "channel", `
kind: paged_api
listing_id: "UU123"
settings:
  enabled: true
`)

	cache := NewConfigCache(dir)
	if err := cache.Run(); err != nil {
		t.Fatal(err)
	}

	registry := NewRegistry(cache, repo)
	if err := registry.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	return registry
}

func TestRegistryListActiveSources(t *testing.T) {
	ctx := context.Background()
	repo := newMockSourceRepository()
	registry := newTestRegistry(t, repo)

	if err := registry.UpdateCheckpoint(ctx, "news", Checkpoint{ETag: `"v1"`}); err != nil {
		t.Fatal(err)
	}

	active, err := registry.ListActiveSources(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if len(active) != 2 {
		t.Fatalf("Expected 2 active sources, got %d", len(active))
	}
	if active[0].Name != "channel" || active[1].Name != "news" {
		t.Errorf("Expected [channel news], got [%s %s]", active[0].Name, active[1].Name)
	}
	if active[1].Checkpoint.ETag != `"v1"` {
		t.Errorf("Expected checkpoint to be attached, got: %+v", active[1].Checkpoint)
	}
	if repo.sources["channel"].Endpoint != "UU123" {
		t.Errorf("Expected listing id to be stored as endpoint, got: %s", repo.sources["channel"].Endpoint)
	}
}

func TestRegistryListActiveSourcesStoreFailure(t *testing.T) {
	repo := newMockSourceRepository()
	registry := newTestRegistry(t, repo)

	storeErr := errors.New("database is locked")
	repo.listErr = storeErr

	if _, err := registry.ListActiveSources(context.Background()); !errors.Is(err, storeErr) {
		t.Errorf("Expected store error, got: %v", err)
	}
}

func TestRegistryGetSource(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(t, newMockSourceRepository())

	cfg, err := registry.GetSource(ctx, "paused")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Settings.Enabled {
		t.Error("Expected paused source to be disabled")
	}

	if _, err := registry.GetSource(ctx, "missing"); !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("Expected ErrSourceNotFound, got: %v", err)
	}

	if _, err := registry.GetCheckpoint(ctx, "missing"); !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("Expected ErrSourceNotFound for checkpoint, got: %v", err)
	}

	all, err := registry.ListSources(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 configured sources, got %d", len(all))
	}
}

func TestRegistryReloadDeactivatesRemovedSources(t *testing.T) {
	ctx := context.Background()
	repo := newMockSourceRepository()
	registry := newTestRegistry(t, repo)

	writeConfig(t, registry.sourcesDir, "late", `url: "https://example.com/late.xml"
settings:
  enabled: true
`)
	repo.sources["gone"] = &database.Source{Name: "gone", Kind: "feed", Endpoint: "https://example.com/gone.xml", Active: true}

	if err := registry.Reload(ctx); err != nil {
		t.Fatal(err)
	}

	if repo.sources["gone"].Active {
		t.Error("Expected source without configuration to be deactivated")
	}
	if !repo.sources["late"].Active {
		t.Error("Expected newly added source to be registered as active")
	}
	if registry.GetSourceCount() != 4 {
		t.Errorf("Expected 4 configured sources, got %d", registry.GetSourceCount())
	}

	writeConfig(t, registry.sourcesDir, "broken", `kind: nope`)
	if err := registry.Reload(ctx); err == nil {
		t.Fatal("Expected reload error for broken config")
	}
	if registry.GetSourceCount() != 4 {
		t.Errorf("Expected previous configuration to stay in effect, got %d sources", registry.GetSourceCount())
	}
}

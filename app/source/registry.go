package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/lysyi3m/content-comb/app/database"
)

// Registry joins the YAML-declared sources with their stored checkpoints.
// It is the only path through which checkpoints are written.
type Registry struct {
	sourcesDir string
	repo       database.SourceRepository

	mu    sync.RWMutex
	cache *ConfigCache
}

func NewRegistry(cache *ConfigCache, repo database.SourceRepository) *Registry {
	return &Registry{
		sourcesDir: cache.sourcesDir,
		repo:       repo,
		cache:      cache,
	}
}

func (r *Registry) configs() *ConfigCache {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cache
}

// Sync registers every configured source in the store. Stored sources that
// no longer have a YAML file are deactivated.
func (r *Registry) Sync(ctx context.Context) error {
	configs := r.configs().GetConfigs()

	for name, cfg := range configs {
		if err := r.repo.UpsertSource(ctx, name, string(cfg.Kind), cfg.Endpoint(), cfg.Settings.Enabled); err != nil {
			return fmt.Errorf("failed to sync source %s: %w", name, err)
		}
	}

	stored, err := r.repo.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stored sources: %w", err)
	}

	for _, s := range stored {
		if _, ok := configs[s.Name]; ok || !s.Active {
			continue
		}
		if err := r.repo.UpsertSource(ctx, s.Name, s.Kind, s.Endpoint, false); err != nil {
			return fmt.Errorf("failed to deactivate source %s: %w", s.Name, err)
		}
		slog.Info("Source deactivated", "source", s.Name)
	}

	slog.Debug("Sources synced", "count", len(configs))
	return nil
}

// Reload re-reads the sources directory and syncs the result. The previous
// configuration stays in effect when any file fails to load.
func (r *Registry) Reload(ctx context.Context) error {
	cache := NewConfigCache(r.sourcesDir)
	if err := cache.Run(); err != nil {
		return fmt.Errorf("failed to reload source configs: %w", err)
	}

	r.mu.Lock()
	r.cache = cache
	r.mu.Unlock()

	return r.Sync(ctx)
}

// ListActiveSources returns enabled sources with their checkpoints attached,
// ordered by name. A store read failure is returned as is.
func (r *Registry) ListActiveSources(ctx context.Context) ([]Config, error) {
	stored, err := r.repo.ListSources(ctx)
	if err != nil {
		return nil, err
	}

	cache := r.configs()
	var active []Config
	for _, s := range stored {
		if !s.Active {
			continue
		}

		cfg, err := cache.GetConfig(s.Name)
		if err != nil {
			slog.Warn("Stored source has no configuration", "source", s.Name)
			continue
		}

		merged := *cfg
		merged.Checkpoint = s.Checkpoint
		active = append(active, merged)
	}

	sort.Slice(active, func(i, j int) bool { return active[i].Name < active[j].Name })
	return active, nil
}

// ListSources returns every configured source, enabled or not.
func (r *Registry) ListSources(ctx context.Context) ([]Config, error) {
	configs := r.configs().GetConfigs()

	result := make([]Config, 0, len(configs))
	for name := range configs {
		cfg, err := r.GetSource(ctx, name)
		if err != nil {
			return nil, err
		}
		result = append(result, *cfg)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *Registry) GetSource(ctx context.Context, id string) (*Config, error) {
	cfg, err := r.configs().GetConfig(id)
	if err != nil {
		return nil, err
	}

	checkpoint, err := r.GetCheckpoint(ctx, id)
	if err != nil && !errors.Is(err, ErrSourceNotFound) {
		return nil, err
	}

	merged := *cfg
	merged.Checkpoint = checkpoint
	return &merged, nil
}

func (r *Registry) GetCheckpoint(ctx context.Context, id string) (Checkpoint, error) {
	s, err := r.repo.GetSource(ctx, id)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if s == nil {
		return Checkpoint{}, fmt.Errorf("checkpoint for '%s': %w", id, ErrSourceNotFound)
	}
	return s.Checkpoint, nil
}

func (r *Registry) UpdateCheckpoint(ctx context.Context, id string, checkpoint Checkpoint) error {
	if err := r.repo.UpdateCheckpoint(ctx, id, checkpoint); err != nil {
		return fmt.Errorf("failed to update checkpoint for %s: %w", id, err)
	}
	return nil
}

func (r *Registry) GetSourceCount() int {
	return r.configs().GetConfigCount()
}

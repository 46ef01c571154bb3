package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var _ SourceRepository = (*SourceStore)(nil)

var sourceColumns = []string{
	"name", "kind", "endpoint", "active",
	"etag", "last_modified", "last_seen_item_id", "last_fetched_at",
	"created_at", "updated_at",
}

// SourceStore handles database operations for sources and their checkpoints
type SourceStore struct {
	db *DB
}

func NewSourceStore(db *DB) *SourceStore {
	return &SourceStore{db: db}
}

// UpsertSource registers a source. Checkpoint columns survive the update
// unless the endpoint changed, in which case they are reset.
func (r *SourceStore) UpsertSource(ctx context.Context, name, kind, endpoint string, active bool) error {
	now := time.Now().UTC()

	query, args, err := r.db.builder.
		Insert("sources").
		Columns("name", "kind", "endpoint", "active", "created_at", "updated_at").
		Values(name, kind, endpoint, active, now, now).
		Suffix(`ON CONFLICT (name) DO UPDATE SET
			etag = CASE WHEN sources.endpoint = excluded.endpoint THEN sources.etag ELSE '' END,
			last_modified = CASE WHEN sources.endpoint = excluded.endpoint THEN sources.last_modified ELSE '' END,
			last_seen_item_id = CASE WHEN sources.endpoint = excluded.endpoint THEN sources.last_seen_item_id ELSE '' END,
			kind = excluded.kind,
			endpoint = excluded.endpoint,
			active = excluded.active,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build source upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}

	return nil
}

func (r *SourceStore) GetSource(ctx context.Context, name string) (*Source, error) {
	query, args, err := r.db.builder.
		Select(sourceColumns...).
		From("sources").
		Where(sq.Eq{"name": name}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build source query: %w", err)
	}

	source, err := scanSource(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	return source, nil
}

func (r *SourceStore) ListSources(ctx context.Context) ([]Source, error) {
	query, args, err := r.db.builder.
		Select(sourceColumns...).
		From("sources").
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build sources query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, *source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}

	return sources, nil
}

func (r *SourceStore) GetSourceCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sources").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get source count: %w", err)
	}
	return count, nil
}

func (r *SourceStore) UpdateCheckpoint(ctx context.Context, name string, checkpoint Checkpoint) error {
	var fetchedAt any
	if checkpoint.LastFetchedAt != nil {
		fetchedAt = checkpoint.LastFetchedAt.UTC()
	}

	query, args, err := r.db.builder.
		Update("sources").
		Set("etag", checkpoint.ETag).
		Set("last_modified", checkpoint.LastModified).
		Set("last_seen_item_id", checkpoint.LastSeenItemID).
		Set("last_fetched_at", fetchedAt).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"name": name}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build checkpoint update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update checkpoint: %w", err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("source %q not registered", name)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*Source, error) {
	var source Source
	var lastFetchedAt sql.NullTime

	err := row.Scan(
		&source.Name, &source.Kind, &source.Endpoint, &source.Active,
		&source.Checkpoint.ETag, &source.Checkpoint.LastModified, &source.Checkpoint.LastSeenItemID, &lastFetchedAt,
		&source.CreatedAt, &source.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastFetchedAt.Valid {
		t := lastFetchedAt.Time.UTC()
		source.Checkpoint.LastFetchedAt = &t
	}

	return &source, nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var _ ItemRepository = (*ItemStore)(nil)

// keyLookupChunk keeps IN lists below SQLite's bound-parameter limit.
const keyLookupChunk = 500

var itemColumns = []string{
	"identity_key", "source_id", "title", "excerpt", "published_at",
	"canonical_url", "media_url", "image_url", "image_source",
	"created_at", "updated_at",
}

// ItemStore handles database operations for content items
type ItemStore struct {
	db *DB
}

func NewItemStore(db *DB) *ItemStore {
	return &ItemStore{db: db}
}

// ExistingKeys reports which of the given identity keys are already stored.
func (r *ItemStore) ExistingKeys(ctx context.Context, keys []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(keys))

	for start := 0; start < len(keys); start += keyLookupChunk {
		end := min(start+keyLookupChunk, len(keys))

		query, args, err := r.db.builder.
			Select("identity_key").
			From("content_items").
			Where(sq.Eq{"identity_key": keys[start:end]}).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build key lookup: %w", err)
		}

		if err := r.collectKeys(ctx, query, args, existing); err != nil {
			return nil, err
		}
	}

	return existing, nil
}

func (r *ItemStore) collectKeys(ctx context.Context, query string, args []any, into map[string]bool) error {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to look up existing keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return fmt.Errorf("failed to scan identity key: %w", err)
		}
		into[key] = true
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating identity keys: %w", err)
	}

	return nil
}

// UpsertItems writes the batch in a single statement. Existing rows keep
// their created_at and source_id; every other field is overwritten.
func (r *ItemStore) UpsertItems(ctx context.Context, items []ContentItem) error {
	if len(items) == 0 {
		return nil
	}

	now := time.Now().UTC()
	insert := r.db.builder.Insert("content_items").Columns(itemColumns...)
	for _, item := range items {
		insert = insert.Values(
			item.IdentityKey, item.SourceID, item.Title, item.Excerpt, item.PublishedAt.UTC(),
			item.CanonicalURL, item.MediaURL, item.ImageURL, item.ImageSource,
			now, now,
		)
	}

	query, args, err := insert.Suffix(`ON CONFLICT (identity_key) DO UPDATE SET
		title = excluded.title,
		excerpt = excluded.excerpt,
		published_at = excluded.published_at,
		canonical_url = excluded.canonical_url,
		media_url = excluded.media_url,
		image_url = excluded.image_url,
		image_source = excluded.image_source,
		updated_at = excluded.updated_at`).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build item upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert items: %w", err)
	}

	return nil
}

func (r *ItemStore) GetItem(ctx context.Context, identityKey string) (*ContentItem, error) {
	query, args, err := r.db.builder.
		Select(itemColumns...).
		From("content_items").
		Where(sq.Eq{"identity_key": identityKey}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build item query: %w", err)
	}

	item, err := scanItem(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	return item, nil
}

// GetRecentItems returns the newest items of a source
func (r *ItemStore) GetRecentItems(ctx context.Context, sourceID string, limit int) ([]ContentItem, error) {
	query, args, err := r.db.builder.
		Select(itemColumns...).
		From("content_items").
		Where(sq.Eq{"source_id": sourceID}).
		OrderBy("published_at DESC", "identity_key").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build items query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent items: %w", err)
	}
	defer rows.Close()

	var items []ContentItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}

func (r *ItemStore) GetItemCount(ctx context.Context, sourceID string) (int, error) {
	query, args, err := r.db.builder.
		Select("COUNT(*)").
		From("content_items").
		Where(sq.Eq{"source_id": sourceID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build item count: %w", err)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get item count: %w", err)
	}
	return count, nil
}

// DeleteOlderThan prunes a source's items published before cutoff.
func (r *ItemStore) DeleteOlderThan(ctx context.Context, sourceID string, cutoff time.Time) (int64, error) {
	query, args, err := r.db.builder.
		Delete("content_items").
		Where(sq.Eq{"source_id": sourceID}).
		Where(sq.Lt{"published_at": cutoff.UTC()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build item prune: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to prune items: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read pruned row count: %w", err)
	}

	return deleted, nil
}

func scanItem(row rowScanner) (*ContentItem, error) {
	var item ContentItem
	err := row.Scan(
		&item.IdentityKey, &item.SourceID, &item.Title, &item.Excerpt, &item.PublishedAt,
		&item.CanonicalURL, &item.MediaURL, &item.ImageURL, &item.ImageSource,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.PublishedAt = item.PublishedAt.UTC()
	return &item, nil
}

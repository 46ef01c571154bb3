package source

import (
	"errors"

	"github.com/lysyi3m/content-comb/app/database"
)

type Kind string

const (
	KindFeed     Kind = "feed"
	KindPagedAPI Kind = "paged_api"
)

var (
	ErrSourceNotFound  = errors.New("source not found")
	ErrUnknownKind     = errors.New("unknown source kind")
	ErrMissingEndpoint = errors.New("source endpoint is required")
)

type Config struct {
	Name       string         // Derived from filename (without .yml extension)
	Kind       Kind           `yaml:"kind"`
	URL        string         `yaml:"url"`        // feed endpoint
	ListingID  string         `yaml:"listing_id"` // paged listing handle
	Settings   ConfigSettings `yaml:"settings"`
	Filters    []ConfigFilter `yaml:"filters"`
	Checkpoint Checkpoint     `yaml:"-"`
}

// Endpoint is the feed URL for feed sources and the listing id otherwise.
func (c *Config) Endpoint() string {
	if c.Kind == KindPagedAPI {
		return c.ListingID
	}
	return c.URL
}

type ConfigSettings struct {
	Enabled         bool   `yaml:"enabled"`
	Timeout         int    `yaml:"timeout"`   // seconds, 0 uses the global fetch timeout
	MaxItems        int    `yaml:"max_items"` // paged listing safety cap
	DefaultImage    string `yaml:"default_image"`
	RetentionDays   int    `yaml:"retention_days"`
	TitleCollisions bool   `yaml:"title_collisions"`
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// Checkpoint is the resumption state stored next to each source.
type Checkpoint = database.Checkpoint

package adapter

import (
	"context"
	"time"

	"github.com/lysyi3m/content-comb/app/content"
)

// Request describes one fetch of one source.
type Request struct {
	SourceID string
	Endpoint string // feed URL or listing id

	// Conditional token and last-seen marker. Left empty in backfill mode.
	ETag           string
	LastModified   string
	LastSeenItemID string

	Backfill bool
	Cutoff   time.Time // oldest publish time still of interest, inclusive
	Timeout  time.Duration
	MaxItems int
}

// Result is the ordered, newest-first output of a fetch.
type Result struct {
	NotModified  bool
	Entries      []content.RawEntry
	ETag         string
	LastModified string
}

// Adapter fetches one source's upstream and returns raw entries in
// upstream order.
type Adapter interface {
	Fetch(ctx context.Context, req Request) (*Result, error)
}

func timeoutOr(req Request, fallback time.Duration) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	return fallback
}

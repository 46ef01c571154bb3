package ingest

import (
	"time"

	"github.com/lysyi3m/content-comb/app/content"
)

type ModeKind string

const (
	ModeIncremental ModeKind = "incremental"
	ModeBackfill    ModeKind = "backfill"
)

// Mode selects how a run treats checkpoints and which publish-time window
// it accepts.
type Mode struct {
	Kind   ModeKind
	Window content.Window
}

// Incremental covers the last days whole days up to and including today.
func Incremental(now time.Time, days int) Mode {
	return Mode{Kind: ModeIncremental, Window: content.DayWindow(now, days)}
}

// BackfillDays re-scans the last days whole days, ignoring checkpoints.
func BackfillDays(now time.Time, days int) Mode {
	return Mode{Kind: ModeBackfill, Window: content.DayWindow(now, days)}
}

// BackfillDate re-scans the single calendar day of date.
func BackfillDate(date time.Time) Mode {
	return Mode{Kind: ModeBackfill, Window: content.DayWindow(date, 1)}
}

func (m Mode) IsBackfill() bool {
	return m.Kind == ModeBackfill
}

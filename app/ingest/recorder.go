package ingest

import (
	"time"
)

// Recorder receives run and source outcomes, typically for metrics.
type Recorder interface {
	RecordRun(mode ModeKind, status string, duration time.Duration)
	RecordSource(summary SourceSummary)
}

type nopRecorder struct{}

func (nopRecorder) RecordRun(ModeKind, string, time.Duration) {}
func (nopRecorder) RecordSource(SourceSummary)                {}

package ingest

import (
	"time"

	"github.com/google/uuid"
)

type SourceStatus string

const (
	StatusOK          SourceStatus = "ok"
	StatusNotModified SourceStatus = "not_modified"
	StatusError       SourceStatus = "error"
	StatusCancelled   SourceStatus = "cancelled"
)

// SourceSummary is the outcome of one source within a run.
type SourceSummary struct {
	SourceID           string       `json:"source_id"`
	Status             SourceStatus `json:"status"`
	New                int          `json:"new"`
	Duplicate          int          `json:"duplicate"`
	OutOfRange         int          `json:"out_of_range"`
	Filtered           int          `json:"filtered"`
	Errors             int          `json:"errors"`
	ErrorKind          ErrorKind    `json:"error_kind,omitempty"`
	Error              string       `json:"error,omitempty"`
	CheckpointAdvanced bool         `json:"checkpoint_advanced"`
	Duration           float64      `json:"duration_seconds"`
}

func (s *SourceSummary) fail(err error) {
	s.Status = StatusError
	s.ErrorKind = classifyError(err)
	s.Error = err.Error()
	if s.Errors == 0 {
		s.Errors = 1
	}
	if s.ErrorKind == ErrorKindCancelled {
		s.Status = StatusCancelled
	}
}

type Totals struct {
	Sources    int `json:"sources"`
	New        int `json:"new"`
	Duplicate  int `json:"duplicate"`
	OutOfRange int `json:"out_of_range"`
	Filtered   int `json:"filtered"`
	Errors     int `json:"errors"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
}

// RunSummary aggregates one RunOnce or RunSource invocation.
type RunSummary struct {
	RunID       string          `json:"run_id"`
	Mode        ModeKind        `json:"mode"`
	WindowStart time.Time       `json:"window_start"`
	WindowEnd   time.Time       `json:"window_end"`
	StartedAt   time.Time       `json:"started_at"`
	Duration    float64         `json:"duration_seconds"`
	Sources     []SourceSummary `json:"sources"`
	Totals      Totals          `json:"totals"`
}

func newRunSummary(mode Mode, startedAt time.Time) *RunSummary {
	return &RunSummary{
		RunID:       uuid.NewString(),
		Mode:        mode.Kind,
		WindowStart: mode.Window.Start,
		WindowEnd:   mode.Window.End,
		StartedAt:   startedAt,
		Sources:     []SourceSummary{},
	}
}

func (r *RunSummary) finish(sources []SourceSummary, finishedAt time.Time) {
	r.Sources = append(r.Sources, sources...)
	r.Duration = finishedAt.Sub(r.StartedAt).Seconds()

	totals := Totals{Sources: len(r.Sources)}
	for _, s := range r.Sources {
		totals.New += s.New
		totals.Duplicate += s.Duplicate
		totals.OutOfRange += s.OutOfRange
		totals.Filtered += s.Filtered
		totals.Errors += s.Errors

		switch s.Status {
		case StatusNotModified:
			totals.Skipped++
		case StatusError:
			totals.Failed++
		case StatusCancelled:
			totals.Cancelled++
		}
	}
	r.Totals = totals
}

// Status condenses the run outcome for metrics and logs.
func (r *RunSummary) Status() string {
	switch {
	case r.Totals.Cancelled > 0:
		return "cancelled"
	case r.Totals.Failed > 0:
		return "partial"
	default:
		return "ok"
	}
}

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/content-comb/app/source"
)

type SourceRegistry interface {
	ListActiveSources(ctx context.Context) ([]source.Config, error)
	GetSource(ctx context.Context, id string) (*source.Config, error)
}

type SourceRunner interface {
	Run(ctx context.Context, src source.Config, mode Mode) SourceSummary
}

// Scheduler fans active sources out to a fixed pool of workers. One slow
// or failing source never affects the others.
type Scheduler struct {
	registry    SourceRegistry
	runner      SourceRunner
	lock        RunLock
	recorder    Recorder
	workerCount int
	now         func() time.Time
}

func NewScheduler(registry SourceRegistry, runner SourceRunner, lock RunLock, recorder Recorder, workerCount int) *Scheduler {
	if lock == nil {
		lock = NewLocalLock()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if workerCount <= 0 {
		workerCount = 1
	}

	return &Scheduler{
		registry:    registry,
		runner:      runner,
		lock:        lock,
		recorder:    recorder,
		workerCount: workerCount,
		now:         time.Now,
	}
}

// RunOnce processes every active source once. The only error it returns
// besides ErrRunInProgress wraps ErrRegistryUnavailable.
func (s *Scheduler) RunOnce(ctx context.Context, mode Mode) (*RunSummary, error) {
	release, err := s.lock.TryAcquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	summary := newRunSummary(mode, s.now())

	sources, err := s.registry.ListActiveSources(ctx)
	if err != nil {
		s.recorder.RecordRun(mode.Kind, "failed", s.now().Sub(summary.StartedAt))
		return nil, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}

	slog.Info("Run started", "run_id", summary.RunID, "mode", mode.Kind, "sources", len(sources),
		"window_start", mode.Window.Start, "window_end", mode.Window.End)

	results := s.dispatch(ctx, sources, mode)
	s.complete(summary, results)

	return summary, nil
}

// RunSource processes a single source regardless of its active flag.
func (s *Scheduler) RunSource(ctx context.Context, sourceID string, mode Mode) (*RunSummary, error) {
	release, err := s.lock.TryAcquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	src, err := s.registry.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	summary := newRunSummary(mode, s.now())
	slog.Info("Source run started", "run_id", summary.RunID, "mode", mode.Kind, "source", sourceID)

	s.complete(summary, []SourceSummary{s.runner.Run(ctx, *src, mode)})
	return summary, nil
}

func (s *Scheduler) dispatch(ctx context.Context, sources []source.Config, mode Mode) []SourceSummary {
	results := make([]SourceSummary, len(sources))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for i := 0; i < min(s.workerCount, len(sources)); i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range jobs {
				slog.Debug("Worker picked source", "worker_id", workerID, "source", sources[idx].Name)
				results[idx] = s.runner.Run(ctx, sources[idx], mode)
			}
		}(i)
	}

	for idx, src := range sources {
		if ctx.Err() != nil {
			results[idx] = cancelledSummary(src.Name)
			continue
		}
		select {
		case jobs <- idx:
		case <-ctx.Done():
			results[idx] = cancelledSummary(src.Name)
		}
	}
	close(jobs)
	wg.Wait()

	return results
}

func (s *Scheduler) complete(summary *RunSummary, results []SourceSummary) {
	summary.finish(results, s.now())

	for _, result := range summary.Sources {
		s.recorder.RecordSource(result)
	}
	s.recorder.RecordRun(summary.Mode, summary.Status(), time.Duration(summary.Duration*float64(time.Second)))

	slog.Info("Run completed",
		"run_id", summary.RunID,
		"mode", summary.Mode,
		"status", summary.Status(),
		"sources", summary.Totals.Sources,
		"new", summary.Totals.New,
		"duplicates", summary.Totals.Duplicate,
		"skipped", summary.Totals.Skipped,
		"failed", summary.Totals.Failed,
		"duration", time.Duration(summary.Duration*float64(time.Second)))
}

func cancelledSummary(sourceID string) SourceSummary {
	return SourceSummary{
		SourceID:  sourceID,
		Status:    StatusCancelled,
		ErrorKind: ErrorKindCancelled,
		Error:     "run cancelled before the source was dispatched",
	}
}

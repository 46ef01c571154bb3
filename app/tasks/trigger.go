package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lysyi3m/content-comb/app/ingest"
)

var _ TriggerInterface = (*Trigger)(nil)

const DefaultStartupDelay = 15 * time.Second

type RunStarter interface {
	RunOnce(ctx context.Context, mode ingest.Mode) (*ingest.RunSummary, error)
}

// Trigger starts incremental runs on a cron schedule. A tick that finds a
// run in progress is skipped.
type Trigger struct {
	cron         *cron.Cron
	runner       RunStarter
	mode         func() ingest.Mode
	startupDelay time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	startupTimer *time.Timer
	mu           sync.Mutex
}

// NewTrigger schedules runner on spec, a standard five-field cron
// expression. mode is evaluated on every tick so day windows stay current.
func NewTrigger(spec string, runner RunStarter, mode func() ingest.Mode, startupDelay time.Duration) (*Trigger, error) {
	ctx, cancel := context.WithCancel(context.Background())

	t := &Trigger{
		cron:         cron.New(),
		runner:       runner,
		mode:         mode,
		startupDelay: startupDelay,
		ctx:          ctx,
		cancel:       cancel,
	}

	if _, err := t.cron.AddFunc(spec, t.runOnce); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	return t, nil
}

func (t *Trigger) Start() {
	t.cron.Start()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.startupTimer = time.AfterFunc(t.startupDelay, t.runOnce)

	slog.Debug("Trigger started", "startup_delay", t.startupDelay)
}

// Stop cancels any in-flight run and waits for it to return.
func (t *Trigger) Stop() {
	t.mu.Lock()
	if t.startupTimer != nil {
		t.startupTimer.Stop()
	}
	t.mu.Unlock()

	stopped := t.cron.Stop()
	t.cancel()
	<-stopped.Done()
	t.wg.Wait()
}

func (t *Trigger) runOnce() {
	if t.ctx.Err() != nil {
		return
	}

	t.wg.Add(1)
	defer t.wg.Done()

	mode := t.mode()
	if _, err := t.runner.RunOnce(t.ctx, mode); err != nil {
		if errors.Is(err, ingest.ErrRunInProgress) {
			slog.Debug("Run already in progress, skipping scheduled run", "mode", mode.Kind)
			return
		}
		slog.Error("Scheduled run failed", "mode", mode.Kind, "error", err)
	}
}

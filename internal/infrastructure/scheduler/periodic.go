package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// TickFunc is one run of a periodic job
type TickFunc func(ctx context.Context) error

// TickMetrics records periodic job runs
type TickMetrics interface {
	TickCompleted(ctx context.Context, job string, d time.Duration, err error)
	TickSkipped(ctx context.Context, job string)
}

type nopTickMetrics struct{}

func (nopTickMetrics) TickCompleted(context.Context, string, time.Duration, error) {}
func (nopTickMetrics) TickSkipped(context.Context, string)                         {}

// RunnerConfig holds periodic runner settings
type RunnerConfig struct {
	// Name identifies the job in logs and metrics
	Name string

	// Interval between ticks
	Interval time.Duration

	// Timeout bounds a single run; zero means no timeout
	Timeout time.Duration

	// RunOnStart runs one tick immediately when the runner starts
	RunOnStart bool
}

// Validate checks the configuration
func (c RunnerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: job name is required", ErrInvalidConfig)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: %s interval must be positive", ErrInvalidConfig, c.Name)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: %s timeout must not be negative", ErrInvalidConfig, c.Name)
	}
	return nil
}

// RunnerStats is a snapshot of a periodic runner
type RunnerStats struct {
	Running      bool
	Busy         bool
	TicksRun     int64
	TicksSkipped int64
	LastTickAt   *time.Time
	LastDuration time.Duration
	LastError    string
}

// PeriodicRunner runs a job on a fixed interval without ever overlapping
// runs. A tick that fires while the previous run is still busy is skipped
// and counted.
type PeriodicRunner struct {
	config  RunnerConfig
	fn      TickFunc
	metrics TickMetrics
	logger  *zap.Logger

	cancel    context.CancelFunc
	runCtx    context.Context
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	busy         atomic.Bool
	ticksRun     atomic.Int64
	ticksSkipped atomic.Int64
	lastTickAt   *time.Time
	lastDuration time.Duration
	lastErr      string
}

// NewPeriodicRunner creates a new periodic runner
func NewPeriodicRunner(config RunnerConfig, fn TickFunc, logger *zap.Logger, metrics TickMetrics) (*PeriodicRunner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: %s has no job function", ErrInvalidConfig, config.Name)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopTickMetrics{}
	}
	return &PeriodicRunner{
		config:  config,
		fn:      fn,
		metrics: metrics,
		logger:  logger.With(zap.String("job", config.Name)),
	}, nil
}

// Start starts the ticker loop
func (r *PeriodicRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.runCtx = ctx
	r.mu.Unlock()

	r.wg.Add(1)
	go r.loop(ctx)

	r.logger.Info("Periodic job started",
		zap.Duration("interval", r.config.Interval),
		zap.Bool("run_on_start", r.config.RunOnStart),
	)
	return nil
}

// Stop stops the loop and waits for an in-flight run within ctx
func (r *PeriodicRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Periodic job stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("Periodic job stop timed out")
		return ctx.Err()
	}
}

// TriggerNow starts a run in the background unless one is already in flight
func (r *PeriodicRunner) TriggerNow() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.isRunning {
		return ErrSchedulerNotRunning
	}
	if !r.tryRun(r.runCtx) {
		return ErrJobAlreadyRunning
	}
	return nil
}

// Stats returns a snapshot of the runner
func (r *PeriodicRunner) Stats() RunnerStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := RunnerStats{
		Running:      r.isRunning,
		Busy:         r.busy.Load(),
		TicksRun:     r.ticksRun.Load(),
		TicksSkipped: r.ticksSkipped.Load(),
		LastDuration: r.lastDuration,
		LastError:    r.lastErr,
	}
	if r.lastTickAt != nil {
		t := *r.lastTickAt
		st.LastTickAt = &t
	}
	return st
}

func (r *PeriodicRunner) loop(ctx context.Context) {
	defer r.wg.Done()

	if r.config.RunOnStart {
		r.tick(ctx)
	}

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *PeriodicRunner) tick(ctx context.Context) {
	if !r.tryRun(ctx) {
		r.ticksSkipped.Add(1)
		r.metrics.TickSkipped(ctx, r.config.Name)
		r.logger.Debug("Skipping tick, previous run still in progress")
	}
}

// tryRun claims the busy flag and runs the job in its own goroutine
func (r *PeriodicRunner) tryRun(ctx context.Context) bool {
	if !r.busy.CompareAndSwap(false, true) {
		return false
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.busy.Store(false)
		r.execute(ctx)
	}()
	return true
}

func (r *PeriodicRunner) execute(ctx context.Context) {
	runCtx := ctx
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := r.safeRun(runCtx)
	elapsed := time.Since(start)

	r.mu.Lock()
	r.ticksRun.Add(1)
	startedAt := start.UTC()
	r.lastTickAt = &startedAt
	r.lastDuration = elapsed
	r.lastErr = ""
	if err != nil {
		r.lastErr = err.Error()
	}
	r.mu.Unlock()

	r.metrics.TickCompleted(ctx, r.config.Name, elapsed, err)
	if err != nil {
		r.logger.Warn("Periodic job run failed", zap.Duration("duration", elapsed), zap.Error(err))
		return
	}
	r.logger.Debug("Periodic job run completed", zap.Duration("duration", elapsed))
}

func (r *PeriodicRunner) safeRun(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Periodic job panicked", zap.Any("panic", p))
			err = fmt.Errorf("job %s panicked: %v", r.config.Name, p)
		}
	}()
	return r.fn(ctx)
}

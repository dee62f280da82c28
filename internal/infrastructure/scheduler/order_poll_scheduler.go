package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/storefront/backend/internal/domain/integration"
	"go.uber.org/zap"
)

const (
	// OrderPollJobName identifies the order polling job
	OrderPollJobName = "order_poll"

	// TransportNamePoll is the name reported by the polling transport
	TransportNamePoll = "poll"
)

// EnvelopeHandler processes one synthesized envelope
type EnvelopeHandler func(ctx context.Context, env integration.RemoteEnvelope)

// PollingSchedulerConfig holds order polling settings
type PollingSchedulerConfig struct {
	// Interval between polls
	Interval time.Duration

	// Statuses are the remote order statuses fetched on every tick
	Statuses []string

	// TickTimeout bounds one full poll; zero means no timeout
	TickTimeout time.Duration
}

// DefaultPollingSchedulerConfig returns default configuration
func DefaultPollingSchedulerConfig() PollingSchedulerConfig {
	return PollingSchedulerConfig{
		Interval: 30 * time.Second,
		Statuses: []string{"PENDING", "CONFIRMED", "PROCESSING", "SHIPPED", "OUT_FOR_DELIVERY"},
	}
}

// Validate checks the configuration
func (c PollingSchedulerConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	}
	if len(c.Statuses) == 0 {
		return fmt.Errorf("%w: at least one polled status is required", ErrInvalidConfig)
	}
	for _, s := range c.Statuses {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: polled status must not be empty", ErrInvalidConfig)
		}
	}
	return nil
}

// PollingScheduler is the poll transport. On every tick it fetches the full
// remote order list for each configured status and feeds each order through
// the handler as an ORDER_STATUS_CHANGED envelope.
type PollingScheduler struct {
	config  PollingSchedulerConfig
	source  integration.OrderSource
	handler EnvelopeHandler
	runner  *PeriodicRunner
	logger  *zap.Logger
	now     func() time.Time

	items atomic.Int64
}

// NewPollingScheduler creates a new polling scheduler
func NewPollingScheduler(
	config PollingSchedulerConfig,
	source integration.OrderSource,
	handler EnvelopeHandler,
	logger *zap.Logger,
	metrics TickMetrics,
) (*PollingScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if source == nil || handler == nil {
		return nil, fmt.Errorf("%w: order source and handler are required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &PollingScheduler{
		config:  config,
		source:  source,
		handler: handler,
		logger:  logger.With(zap.String("component", "polling_scheduler")),
		now:     time.Now,
	}
	runner, err := NewPeriodicRunner(RunnerConfig{
		Name:       OrderPollJobName,
		Interval:   config.Interval,
		Timeout:    config.TickTimeout,
		RunOnStart: true,
	}, s.Tick, logger, metrics)
	if err != nil {
		return nil, err
	}
	s.runner = runner
	return s, nil
}

// Name returns the transport name
func (s *PollingScheduler) Name() string {
	return TransportNamePoll
}

// Start starts polling; the first tick runs immediately
func (s *PollingScheduler) Start(ctx context.Context) error {
	s.logger.Info("Polling scheduler starting",
		zap.Duration("interval", s.config.Interval),
		zap.Strings("statuses", s.config.Statuses),
	)
	return s.runner.Start(ctx)
}

// Stop stops polling and waits for an in-flight tick within ctx
func (s *PollingScheduler) Stop(ctx context.Context) error {
	return s.runner.Stop(ctx)
}

// Status returns a snapshot of the polling transport
func (s *PollingScheduler) Status() integration.TransportStatus {
	st := s.runner.Stats()
	state := "stopped"
	switch {
	case st.Busy:
		state = "polling"
	case st.Running:
		state = "idle"
	}
	return integration.TransportStatus{
		Transport:      TransportNamePoll,
		State:          state,
		LastError:      st.LastError,
		LastTickAt:     st.LastTickAt,
		TicksRun:       st.TicksRun,
		TicksSkipped:   st.TicksSkipped,
		ItemsProcessed: s.items.Load(),
	}
}

// Tick runs one full poll. A fetch error for one status is logged and the
// poll continues with the next status; ErrPollFailed is returned only when
// every status failed.
func (s *PollingScheduler) Tick(ctx context.Context) error {
	polledAt := s.now().UTC()
	var (
		errs      []error
		processed int
	)

	for _, status := range s.config.Statuses {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		orders, err := s.source.ListOrdersByStatus(ctx, status)
		if err != nil {
			s.logger.Warn("Failed to fetch admin orders",
				zap.String("status", status),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", status, err))
			continue
		}

		for _, item := range orders {
			s.handler(ctx, integration.NewPolledEnvelope(item, polledAt))
			processed++
		}
	}
	s.items.Add(int64(processed))

	s.logger.Debug("Order poll completed",
		zap.Int("orders", processed),
		zap.Int("failed_statuses", len(errs)),
	)

	if len(errs) == len(s.config.Statuses) {
		return fmt.Errorf("%w: %w", ErrPollFailed, errors.Join(errs...))
	}
	return nil
}

var _ integration.Transport = (*PollingScheduler)(nil)

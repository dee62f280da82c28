package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/storefront/backend/internal/application/catalogsync"
	"go.uber.org/zap"
)

// CatalogSyncJobName identifies the catalog sync job
const CatalogSyncJobName = "catalog_sync"

// CatalogSyncer runs one catalog sync
type CatalogSyncer interface {
	SyncOnce(ctx context.Context) (catalogsync.SyncReport, error)
}

// CatalogSyncSchedulerConfig holds catalog sync scheduling settings
type CatalogSyncSchedulerConfig struct {
	Interval   time.Duration
	Timeout    time.Duration
	RunOnStart bool
}

// DefaultCatalogSyncSchedulerConfig returns default configuration
func DefaultCatalogSyncSchedulerConfig() CatalogSyncSchedulerConfig {
	return CatalogSyncSchedulerConfig{
		Interval:   15 * time.Minute,
		Timeout:    5 * time.Minute,
		RunOnStart: true,
	}
}

// CatalogSyncScheduler runs the catalog sync periodically and on demand
type CatalogSyncScheduler struct {
	syncer CatalogSyncer
	runner *PeriodicRunner
	logger *zap.Logger
}

// NewCatalogSyncScheduler creates a new catalog sync scheduler
func NewCatalogSyncScheduler(config CatalogSyncSchedulerConfig, syncer CatalogSyncer, logger *zap.Logger, metrics TickMetrics) (*CatalogSyncScheduler, error) {
	if syncer == nil {
		return nil, fmt.Errorf("%w: catalog syncer is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &CatalogSyncScheduler{
		syncer: syncer,
		logger: logger.With(zap.String("component", "catalog_sync_scheduler")),
	}
	runner, err := NewPeriodicRunner(RunnerConfig{
		Name:       CatalogSyncJobName,
		Interval:   config.Interval,
		Timeout:    config.Timeout,
		RunOnStart: config.RunOnStart,
	}, s.run, logger, metrics)
	if err != nil {
		return nil, err
	}
	s.runner = runner
	return s, nil
}

// Start starts the periodic sync
func (s *CatalogSyncScheduler) Start(ctx context.Context) error {
	return s.runner.Start(ctx)
}

// Stop stops the periodic sync and waits for an in-flight run within ctx
func (s *CatalogSyncScheduler) Stop(ctx context.Context) error {
	return s.runner.Stop(ctx)
}

// TriggerNow starts a sync in the background. It returns
// ErrJobAlreadyRunning if a sync is in flight.
func (s *CatalogSyncScheduler) TriggerNow() error {
	if err := s.runner.TriggerNow(); err != nil {
		return err
	}
	s.logger.Info("Catalog sync triggered manually")
	return nil
}

// Stats returns a snapshot of the sync job
func (s *CatalogSyncScheduler) Stats() RunnerStats {
	return s.runner.Stats()
}

func (s *CatalogSyncScheduler) run(ctx context.Context) error {
	_, err := s.syncer.SyncOnce(ctx)
	if errors.Is(err, catalogsync.ErrSyncInProgress) {
		s.logger.Debug("Catalog sync already in progress")
		return nil
	}
	return err
}

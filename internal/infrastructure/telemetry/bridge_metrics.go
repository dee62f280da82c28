package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BridgeMetrics records admin bridge activity: envelopes, reconciliation,
// broadcasts, the push connection, periodic jobs and catalog mirroring.
type BridgeMetrics struct {
	logger *zap.Logger

	envelopesReceived *Counter
	envelopesDropped  *Counter
	ordersReconciled  *Counter
	messagesPublished *Counter
	reconnects        *Counter
	connectionState   *Gauge
	jobTicks          *Counter
	jobTicksSkipped   *Counter
	jobDuration       *Histogram
	catalogItems      *Counter
}

// BridgeMetricsConfig holds configuration for bridge metrics.
type BridgeMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// connectionStates maps supervisor states onto gauge values
var connectionStates = map[string]int64{
	"disconnected": 0,
	"connecting":   1,
	"subscribed":   2,
	"reconnecting": 3,
	"shutdown":     4,
}

// NewBridgeMetrics creates a new BridgeMetrics instance.
func NewBridgeMetrics(cfg BridgeMetricsConfig) (*BridgeMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BridgeMetrics{logger: logger}

	var err error
	if bm.envelopesReceived, err = NewCounter(cfg.Meter,
		"bridge_envelopes_received_total", "Admin envelopes received", "{envelopes}"); err != nil {
		return nil, err
	}
	if bm.envelopesDropped, err = NewCounter(cfg.Meter,
		"bridge_envelopes_dropped_total", "Admin envelopes dropped without broadcast", "{envelopes}"); err != nil {
		return nil, err
	}
	if bm.ordersReconciled, err = NewCounter(cfg.Meter,
		"bridge_orders_reconciled_total", "Orders reconciled against admin events", "{orders}"); err != nil {
		return nil, err
	}
	if bm.messagesPublished, err = NewCounter(cfg.Meter,
		"bridge_messages_published_total", "Outbound status messages published to topics", "{messages}"); err != nil {
		return nil, err
	}
	if bm.reconnects, err = NewCounter(cfg.Meter,
		"bridge_reconnects_total", "Reconnects scheduled by the connection supervisor", "{reconnects}"); err != nil {
		return nil, err
	}
	if bm.connectionState, err = NewGauge(cfg.Meter,
		"bridge_connection_state", "Connection supervisor state", "{state}"); err != nil {
		return nil, err
	}
	if bm.jobTicks, err = NewCounter(cfg.Meter,
		"bridge_job_ticks_total", "Periodic job ticks executed", "{ticks}"); err != nil {
		return nil, err
	}
	if bm.jobTicksSkipped, err = NewCounter(cfg.Meter,
		"bridge_job_ticks_skipped_total", "Periodic job ticks skipped because the previous tick was still running", "{ticks}"); err != nil {
		return nil, err
	}
	if bm.jobDuration, err = NewHistogram(cfg.Meter,
		"bridge_job_duration_seconds", "Duration of periodic job ticks", "s", SyncDurationBuckets...); err != nil {
		return nil, err
	}
	if bm.catalogItems, err = NewCounter(cfg.Meter,
		"bridge_catalog_items_total", "Catalog items processed by the catalog mirror", "{items}"); err != nil {
		return nil, err
	}

	return bm, nil
}

// EnvelopeReceived records an envelope entering the pipeline.
func (bm *BridgeMetrics) EnvelopeReceived(ctx context.Context, source string, eventType string) {
	bm.envelopesReceived.Inc(ctx, AttrSource.String(source), AttrEventType.String(eventType))
}

// EnvelopeDropped records an envelope dropped without broadcast.
func (bm *BridgeMetrics) EnvelopeDropped(ctx context.Context, source string, reason string) {
	bm.envelopesDropped.Inc(ctx, AttrSource.String(source), AttrReason.String(reason))
}

// OrderReconciled records a reconciliation pass.
func (bm *BridgeMetrics) OrderReconciled(ctx context.Context, changed bool) {
	bm.ordersReconciled.Inc(ctx, AttrChanged.Bool(changed))
}

// MessagesPublished records the number of topics a message was published to.
func (bm *BridgeMetrics) MessagesPublished(ctx context.Context, topics int) {
	if topics <= 0 {
		return
	}
	bm.messagesPublished.Add(ctx, int64(topics))
}

// ReconnectScheduled records a reconnect scheduled by the supervisor.
func (bm *BridgeMetrics) ReconnectScheduled(ctx context.Context, attempt int, delay time.Duration) {
	bm.reconnects.Inc(ctx)
	bm.logger.Debug("Reconnect scheduled",
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
	)
}

// ConnectionStateChanged records the supervisor's current state.
func (bm *BridgeMetrics) ConnectionStateChanged(ctx context.Context, state string) {
	value, ok := connectionStates[state]
	if !ok {
		value = -1
	}
	bm.connectionState.Record(ctx, value, AttrTransport.String("push"))
}

// TickCompleted records a completed periodic job tick.
func (bm *BridgeMetrics) TickCompleted(ctx context.Context, job string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	bm.jobTicks.Inc(ctx, AttrTransport.String(job), AttrOutcome.String(outcome))
	bm.jobDuration.RecordDuration(ctx, d, AttrTransport.String(job))
}

// TickSkipped records a periodic job tick skipped because the previous one was busy.
func (bm *BridgeMetrics) TickSkipped(ctx context.Context, job string) {
	bm.jobTicksSkipped.Inc(ctx, AttrTransport.String(job))
}

// CatalogItemsSynced records catalog items written and skipped in one pass.
func (bm *BridgeMetrics) CatalogItemsSynced(ctx context.Context, entity string, synced, skipped int) {
	bm.catalogItems.Add(ctx, int64(synced), AttrEntity.String(entity), AttrOutcome.String("synced"))
	bm.catalogItems.Add(ctx, int64(skipped), AttrEntity.String(entity), AttrOutcome.String("skipped"))
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBridgeMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

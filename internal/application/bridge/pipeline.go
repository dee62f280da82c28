package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/storefront/backend/internal/domain/integration"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Source identifies the transport that delivered an envelope
type Source string

const (
	SourcePush Source = "push"
	SourcePoll Source = "poll"
)

// Outcome is the result of processing one envelope
type Outcome string

const (
	OutcomeBroadcast      Outcome = "broadcast"
	OutcomeMalformed      Outcome = "malformed"
	OutcomeNoOrderID      Outcome = "no_order_id"
	OutcomeOrderNotFound  Outcome = "order_not_found"
	OutcomeLookupFailed   Outcome = "lookup_failed"
	OutcomePersistFailed  Outcome = "persist_failed"
	OutcomePublishFailed  Outcome = "publish_failed"
	OutcomeHandlerPanic   Outcome = "handler_panic"
	OutcomeReconcileError Outcome = "reconcile_error"
)

// Dropped returns true if the envelope did not produce a broadcast
func (o Outcome) Dropped() bool {
	return o != OutcomeBroadcast && o != OutcomePublishFailed
}

// MetricsRecorder records pipeline activity
type MetricsRecorder interface {
	EnvelopeReceived(ctx context.Context, source string, eventType string)
	EnvelopeDropped(ctx context.Context, source string, reason string)
	OrderReconciled(ctx context.Context, changed bool)
	MessagesPublished(ctx context.Context, topics int)
}

type nopMetrics struct{}

func (nopMetrics) EnvelopeReceived(context.Context, string, string) {}
func (nopMetrics) EnvelopeDropped(context.Context, string, string)  {}
func (nopMetrics) OrderReconciled(context.Context, bool)            {}
func (nopMetrics) MessagesPublished(context.Context, int)           {}

// Pipeline runs every envelope, pushed or polled, through
// the codec, the reconciler and the forwarder. It never returns an
// error to the transport: failures are logged and reported as an Outcome.
type Pipeline struct {
	codec      *PayloadCodec
	reconciler *OrderStateReconciler
	forwarder  *EventForwarder
	metrics    MetricsRecorder
	logger     *zap.Logger
}

// PipelineOption is a functional option for Pipeline
type PipelineOption func(*Pipeline)

// WithPipelineMetrics sets the metrics recorder
func WithPipelineMetrics(m MetricsRecorder) PipelineOption {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// NewPipeline creates a new Pipeline
func NewPipeline(codec *PayloadCodec, reconciler *OrderStateReconciler, forwarder *EventForwarder, logger *zap.Logger, opts ...PipelineOption) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		codec:      codec,
		reconciler: reconciler,
		forwarder:  forwarder,
		metrics:    nopMetrics{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Codec returns the pipeline's payload codec
func (p *Pipeline) Codec() *PayloadCodec {
	return p.codec
}

// HandleRaw decodes a raw frame and processes it. Undecodable frames are
// logged and dropped.
func (p *Pipeline) HandleRaw(ctx context.Context, source Source, raw []byte) Outcome {
	env, err := p.codec.Decode(raw)
	if err != nil {
		p.logger.Warn("Dropping undecodable envelope",
			zap.String("source", string(source)),
			zap.Int("size", len(raw)),
			zap.Error(err),
		)
		p.metrics.EnvelopeDropped(ctx, string(source), string(OutcomeMalformed))
		return OutcomeMalformed
	}
	return p.Handle(ctx, source, env)
}

// Handle reconciles one envelope against the local order and broadcasts the result
func (p *Pipeline) Handle(ctx context.Context, source Source, env integration.RemoteEnvelope) (outcome Outcome) {
	ctx, span := telemetry.StartServiceSpan(ctx, "admin_bridge", "handle",
		telemetry.WithAttribute(telemetry.SpanAttrSource, string(source)),
		telemetry.WithAttribute(telemetry.SpanAttrEventType, env.Type.String()),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Envelope handler panicked",
				zap.String("source", string(source)),
				zap.String("event_type", env.Type.String()),
				zap.Any("panic", r),
			)
			outcome = OutcomeHandlerPanic
		}
		telemetry.SetAttribute(span, telemetry.SpanAttrOutcome, string(outcome))
		if outcome.Dropped() {
			p.metrics.EnvelopeDropped(ctx, string(source), string(outcome))
		}
	}()

	p.metrics.EnvelopeReceived(ctx, string(source), env.Type.String())

	result, err := p.reconciler.Reconcile(ctx, env.Payload)
	if err != nil {
		return p.dropped(source, env, err)
	}
	p.metrics.OrderReconciled(ctx, result.Changed)
	telemetry.SetAttribute(span, telemetry.SpanAttrOrderID, result.Order.ID)

	if result.Changed {
		p.logger.Info("Order reconciled with admin event",
			zap.String("source", string(source)),
			zap.String("event_type", env.Type.String()),
			zap.Int64("order_id", result.Order.ID),
			zap.String("status", result.Order.Status.String()),
			zap.Bool("status_applied", result.StatusApplied),
			zap.Bool("eta_applied", result.ETAApplied),
			zap.Bool("persisted", result.Persisted),
		)
	}

	metadata := p.codec.Metadata(env.Payload)
	published, err := p.forwarder.Forward(ctx, result.Order, env, metadata)
	p.metrics.MessagesPublished(ctx, published)
	if err != nil {
		telemetry.RecordError(span, err)
		return OutcomePublishFailed
	}
	return OutcomeBroadcast
}

func (p *Pipeline) dropped(source Source, env integration.RemoteEnvelope, err error) Outcome {
	fields := []zap.Field{
		zap.String("source", string(source)),
		zap.String("event_type", env.Type.String()),
		zap.Error(err),
	}

	switch {
	case errors.Is(err, ErrNoOrderID):
		p.logger.Warn("Dropping admin event without order id", fields...)
		return OutcomeNoOrderID
	case errors.Is(err, ErrOrderNotFound):
		p.logger.Warn("Dropping admin event for unknown order", fields...)
		return OutcomeOrderNotFound
	case errors.Is(err, ErrOrderLookup):
		p.logger.Error("Dropping admin event, order lookup failed", fields...)
		return OutcomeLookupFailed
	case errors.Is(err, ErrPersistFailed):
		return OutcomePersistFailed
	default:
		p.logger.Error("Dropping admin event", append(fields, zap.String("detail", fmt.Sprintf("%T", err)))...)
		return OutcomeReconcileError
	}
}

package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Reconciler errors
var (
	ErrNoOrderID     = errors.New("bridge: payload carries no order id")
	ErrOrderNotFound = errors.New("bridge: order not found locally")
	ErrOrderLookup   = errors.New("bridge: order lookup failed")
	ErrPersistFailed = errors.New("bridge: persisting reconciled order failed")
	ErrInvalidConfig = errors.New("bridge: invalid reconciler configuration")
)

// defaultMaxConflictRetries bounds re-reads after optimistic lock conflicts
const defaultMaxConflictRetries = 3

var (
	statusFieldKeys = []string{"status", "orderStatus"}
	etaFieldKeys    = []string{"estimatedDeliveryTime", "eta"}
)

// ReconciliationResult is the outcome of applying one payload to a local order
type ReconciliationResult struct {
	// Changed is true if the status or the ETA was applied
	Changed bool
	// StatusApplied is true if the status field was updated
	StatusApplied bool
	// ETAApplied is true if the estimated delivery time was updated
	ETAApplied bool
	// Persisted is true if the change was saved to the order store
	Persisted bool
	// Order is the current, possibly updated, snapshot of the order
	Order *order.Order
}

// ReconcilerConfig holds configuration for the OrderStateReconciler
type ReconcilerConfig struct {
	// PersistPolicy decides what happens when a save fails
	PersistPolicy PersistFailurePolicy
	// PersistRetryAttempts is the number of retries under PersistPolicyRetry
	PersistRetryAttempts int
	// PersistRetryInterval is the initial delay between retries
	PersistRetryInterval time.Duration
	// MaxConflictRetries bounds the re-reads after an optimistic lock conflict
	MaxConflictRetries int
	// LockStripes is the number of per-order lock stripes
	LockStripes int
}

// DefaultReconcilerConfig returns the default reconciler configuration
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		PersistPolicy:        PersistPolicyLog,
		PersistRetryAttempts: 3,
		PersistRetryInterval: 200 * time.Millisecond,
		MaxConflictRetries:   defaultMaxConflictRetries,
		LockStripes:          defaultLockStripes,
	}
}

// Validate validates the reconciler configuration
func (c ReconcilerConfig) Validate() error {
	if _, err := ParsePersistFailurePolicy(string(c.PersistPolicy)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.PersistRetryAttempts < 0 {
		return fmt.Errorf("%w: persist retry attempts cannot be negative", ErrInvalidConfig)
	}
	if c.PersistPolicy == PersistPolicyRetry && c.PersistRetryInterval <= 0 {
		return fmt.Errorf("%w: persist retry interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// OrderStateReconciler applies normalized admin payloads to local orders.
// Applying the same payload twice leaves the order unchanged the second time.
// Read-modify-write for one order id is serialized in-process; the store's
// optimistic version check covers writers in other processes.
type OrderStateReconciler struct {
	orders order.Repository
	locks  *KeyedMutex
	config ReconcilerConfig
	logger *zap.Logger
}

// NewOrderStateReconciler creates a new OrderStateReconciler
func NewOrderStateReconciler(orders order.Repository, cfg ReconcilerConfig, logger *zap.Logger) (*OrderStateReconciler, error) {
	if cfg.PersistPolicy == "" {
		cfg.PersistPolicy = PersistPolicyLog
	}
	if cfg.MaxConflictRetries <= 0 {
		cfg.MaxConflictRetries = defaultMaxConflictRetries
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderStateReconciler{
		orders: orders,
		locks:  NewKeyedMutex(cfg.LockStripes),
		config: cfg,
		logger: logger,
	}, nil
}

// Reconcile applies the payload's status and ETA to the order it references.
// It returns ErrNoOrderID or ErrOrderNotFound when the event must be dropped.
func (r *OrderStateReconciler) Reconcile(ctx context.Context, payload map[string]any) (ReconciliationResult, error) {
	id, ok := ExtractOrderID(payload)
	if !ok {
		return ReconciliationResult{}, ErrNoOrderID
	}

	unlock := r.locks.Lock(id)
	defer unlock()

	for attempt := 1; ; attempt++ {
		current, err := r.resolve(ctx, id)
		if err != nil {
			return ReconciliationResult{}, err
		}

		updated := current.Clone()
		result := ReconciliationResult{Order: updated}
		result.StatusApplied = r.applyStatus(updated, payload)
		result.ETAApplied = r.applyETA(updated, payload)
		result.Changed = result.StatusApplied || result.ETAApplied

		if !result.Changed {
			return result, nil
		}

		err = r.persist(ctx, updated)
		if err == nil {
			result.Persisted = true
			return result, nil
		}

		if errors.Is(err, shared.ErrConcurrencyConflict) && attempt < r.config.MaxConflictRetries {
			r.logger.Debug("Order modified concurrently, re-reading",
				zap.Int64("order_id", updated.ID),
				zap.Int("attempt", attempt),
			)
			continue
		}

		return r.persistFailed(result, err)
	}
}

// resolve finds the order by external id, falling back to the local id
func (r *OrderStateReconciler) resolve(ctx context.Context, id int64) (*order.Order, error) {
	o, err := r.orders.FindByExternalID(ctx, id)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrOrderLookup, err)
	}

	o, err = r.orders.FindByID(ctx, id)
	if err == nil {
		return o, nil
	}
	if errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
	}
	return nil, fmt.Errorf("%w: %v", ErrOrderLookup, err)
}

func (r *OrderStateReconciler) applyStatus(o *order.Order, payload map[string]any) bool {
	raw, ok := lookupField(payload, statusFieldKeys...)
	if !ok {
		return false
	}
	s, ok := raw.(string)
	if !ok {
		return false
	}
	status, ok := order.ParseStatus(s)
	if !ok {
		r.logger.Debug("Ignoring unrecognized order status",
			zap.Int64("order_id", o.ID),
			zap.String("status", strings.TrimSpace(s)),
		)
		return false
	}
	return o.ApplyStatus(status)
}

func (r *OrderStateReconciler) applyETA(o *order.Order, payload map[string]any) bool {
	raw, ok := lookupField(payload, etaFieldKeys...)
	if !ok {
		return false
	}
	eta, ok := parseTimestamp(raw)
	if !ok {
		r.logger.Debug("Ignoring unparsable estimated delivery time",
			zap.Int64("order_id", o.ID),
			zap.Any("value", raw),
		)
		return false
	}
	return o.ApplyEstimatedDeliveryTime(eta)
}

// persist saves the order, retrying transient failures under PersistPolicyRetry.
// Optimistic lock conflicts are never retried here; the caller re-reads instead.
func (r *OrderStateReconciler) persist(ctx context.Context, o *order.Order) error {
	if r.config.PersistPolicy != PersistPolicyRetry || r.config.PersistRetryAttempts == 0 {
		return r.orders.SaveSyncState(ctx, o)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.PersistRetryInterval
	b.MaxElapsedTime = 0
	b.Reset()

	operation := func() error {
		err := r.orders.SaveSyncState(ctx, o)
		if err != nil && errors.Is(err, shared.ErrConcurrencyConflict) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		r.logger.Warn("Persisting order failed, retrying",
			zap.Int64("order_id", o.ID),
			zap.Duration("retry_in", next),
			zap.Error(err),
		)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.config.PersistRetryAttempts)), ctx)
	return backoff.RetryNotify(operation, policy, notify)
}

func (r *OrderStateReconciler) persistFailed(result ReconciliationResult, err error) (ReconciliationResult, error) {
	fields := []zap.Field{
		zap.Int64("order_id", result.Order.ID),
		zap.String("policy", r.config.PersistPolicy.String()),
		zap.Error(err),
	}

	if r.config.PersistPolicy == PersistPolicyDrop {
		r.logger.Error("Persisting reconciled order failed, dropping event", fields...)
		return result, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}

	r.logger.Error("Persisting reconciled order failed, continuing", fields...)
	return result, nil
}

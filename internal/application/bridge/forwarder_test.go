package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/storefront/backend/internal/domain/integration"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func newTestForwarder(sink integration.EventSink) *EventForwarder {
	return NewEventForwarder(sink, zap.NewNop(), WithForwarderClock(func() time.Time { return fixedNow }))
}

func TestRouteTable_EveryEventTypeHasARoute(t *testing.T) {
	for _, et := range integration.AllEventTypes() {
		r := integration.VisitEventType[route](et, routeTable{})
		assert.Equal(t, string(et), r.eventType, "type %s", et)
		assert.NotEmpty(t, r.defaultTitle, "type %s needs a default title", et)
		assert.NotEmpty(t, r.defaultMessage, "type %s needs a default message", et)
		assert.NotEmpty(t, r.family)
	}

	unknown := integration.VisitEventType[route](integration.EventTypeUnknown, routeTable{})
	assert.Equal(t, integration.OutboundEventTypeAdminEvent, unknown.eventType)
	assert.Equal(t, integration.OutboundCategoryOrderUpdate, unknown.category)
	assert.Equal(t, familyOrder, unknown.family)
}

func TestEventForwarder_BuildMessage(t *testing.T) {
	f := newTestForwarder(&recordingSink{})
	eta := time.Date(2026, 4, 2, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	o := &order.Order{ID: 7, Status: order.StatusConfirmed, EstimatedDeliveryTime: &eta}

	t.Run("explicit title and message win", func(t *testing.T) {
		ts := time.Date(2026, 3, 31, 8, 0, 0, 0, time.UTC)
		env := integration.RemoteEnvelope{
			Type:      integration.EventTypeOrderStatusChanged,
			Title:     "Heads up",
			Message:   "Kitchen accepted your order",
			Timestamp: &ts,
		}
		msg := f.BuildMessage(o, env, map[string]any{"orderId": 42})

		assert.Equal(t, int64(7), msg.OrderID)
		assert.Equal(t, "CONFIRMED", msg.Status)
		assert.Equal(t, "ORDER_STATUS_CHANGED", msg.EventType)
		assert.Equal(t, "Heads up", msg.Title)
		assert.Equal(t, "Kitchen accepted your order", msg.Message)
		assert.True(t, ts.Equal(msg.Timestamp))
		require.NotNil(t, msg.EstimatedDeliveryTime)
		assert.True(t, eta.Equal(*msg.EstimatedDeliveryTime))
		assert.Equal(t, time.UTC, msg.EstimatedDeliveryTime.Location())
		assert.Equal(t, 42, msg.Metadata["orderId"])
	})

	t.Run("type defaults apply when envelope is silent", func(t *testing.T) {
		msg := f.BuildMessage(o, integration.RemoteEnvelope{Type: integration.EventTypeOrderStatusChanged}, nil)
		assert.Equal(t, "Order status updated", msg.Title)
		assert.Equal(t, "Your order status has changed", msg.Message)
		assert.True(t, fixedNow.Equal(msg.Timestamp))
	})

	t.Run("unknown type gets the generic fallback and tags", func(t *testing.T) {
		env := integration.RemoteEnvelope{Type: integration.EventTypeUnknown, RawType: "PROMO_STARTED"}
		msg := f.BuildMessage(o, env, map[string]any{})
		assert.Equal(t, "ADMIN_EVENT", msg.EventType)
		assert.Equal(t, FallbackTitle, msg.Title)
		assert.Equal(t, FallbackMessage, msg.Message)
		assert.Equal(t, "ORDER_UPDATE", msg.Metadata["category"])
		assert.Equal(t, "PROMO_STARTED", msg.Metadata["sourceType"])
	})

	t.Run("metadata is copied, not shared", func(t *testing.T) {
		md := map[string]any{"a": 1}
		msg := f.BuildMessage(o, integration.RemoteEnvelope{Type: integration.EventTypeUnknown}, md)
		msg.Metadata["b"] = 2
		assert.NotContains(t, md, "b")
		assert.NotContains(t, md, "category")
	})
}

func TestEventForwarder_Topics(t *testing.T) {
	f := newTestForwarder(&recordingSink{})

	tests := []struct {
		name     string
		et       integration.EventType
		metadata map[string]any
		want     []string
	}{
		{"order created", integration.EventTypeOrderCreated, nil,
			[]string{"orders/9/status", "orders/9/notifications"}},
		{"order status changed", integration.EventTypeOrderStatusChanged, nil,
			[]string{"orders/9/status", "orders/9/notifications"}},
		{"delivery assigned", integration.EventTypeDeliveryAssigned, nil,
			[]string{"deliveries/9/status", "deliveries/9/notifications"}},
		{"delivery update with location", integration.EventTypeDeliveryStatusUpdated,
			map[string]any{"location.latitude": 52.5, "location.longitude": 13.4},
			[]string{"deliveries/9/status", "deliveries/9/notifications", "deliveries/9/location"}},
		{"delivery update with half a location", integration.EventTypeDeliveryStatusUpdated,
			map[string]any{"latitude": 52.5},
			[]string{"deliveries/9/status", "deliveries/9/notifications"}},
		{"user notification", integration.EventTypeUserNotification, nil,
			[]string{"orders/9/notifications"}},
		{"system alert", integration.EventTypeSystemAlert, nil,
			[]string{"orders/9/notifications"}},
		{"unknown", integration.EventTypeUnknown, nil,
			[]string{"orders/9/status", "orders/9/notifications"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.Topics(9, integration.RemoteEnvelope{Type: tt.et}, tt.metadata)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEventForwarder_Forward(t *testing.T) {
	o := &order.Order{ID: 3, Status: order.StatusShipped}
	env := integration.RemoteEnvelope{Type: integration.EventTypeOrderUpdated}

	t.Run("publishes the same message to every topic", func(t *testing.T) {
		sink := &recordingSink{}
		f := newTestForwarder(sink)

		n, err := f.Forward(context.Background(), o, env, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		msgs := sink.all()
		require.Len(t, msgs, 2)
		assert.Same(t, msgs[0].msg, msgs[1].msg)
		assert.Equal(t, "SHIPPED", msgs[0].msg.Status)
	})

	t.Run("a failing topic does not block the others", func(t *testing.T) {
		sink := &recordingSink{failTopic: "orders/3/status"}
		f := newTestForwarder(sink)

		n, err := f.Forward(context.Background(), o, env, nil)
		assert.ErrorIs(t, err, ErrPublishFailed)
		assert.Equal(t, 1, n)
		assert.Equal(t, []string{"orders/3/notifications"}, sink.topics())
	})
}

package bridge

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/storefront/backend/internal/domain/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadCodec_Decode(t *testing.T) {
	codec := NewPayloadCodec()

	t.Run("decodes a full envelope", func(t *testing.T) {
		raw := []byte(`{
			"type": "ORDER_STATUS_CHANGED",
			"title": "Status changed",
			"message": "Order 42 confirmed",
			"timestamp": "2026-05-01T10:15:30Z",
			"data": {"orderId": 42, "status": "CONFIRMED"}
		}`)

		env, err := codec.Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, integration.EventTypeOrderStatusChanged, env.Type)
		assert.Equal(t, "ORDER_STATUS_CHANGED", env.RawType)
		assert.Equal(t, "Status changed", env.Title)
		assert.Equal(t, "Order 42 confirmed", env.Message)
		require.NotNil(t, env.Timestamp)
		assert.True(t, time.Date(2026, 5, 1, 10, 15, 30, 0, time.UTC).Equal(*env.Timestamp))
		assert.Equal(t, json.Number("42"), env.Payload["orderId"])
		assert.Equal(t, "CONFIRMED", env.Payload["status"])
	})

	t.Run("unknown and null types decode to unknown", func(t *testing.T) {
		env, err := codec.Decode([]byte(`{"type":"SOMETHING_NEW","data":{}}`))
		require.NoError(t, err)
		assert.Equal(t, integration.EventTypeUnknown, env.Type)
		assert.Equal(t, "SOMETHING_NEW", env.RawType)

		env, err = codec.Decode([]byte(`{"type":null,"data":{"id":1}}`))
		require.NoError(t, err)
		assert.Equal(t, integration.EventTypeUnknown, env.Type)
		assert.Empty(t, env.RawType)
	})

	t.Run("missing data yields empty payload", func(t *testing.T) {
		env, err := codec.Decode([]byte(`{"type":"SYSTEM_ALERT"}`))
		require.NoError(t, err)
		assert.NotNil(t, env.Payload)
		assert.Empty(t, env.Payload)
	})

	t.Run("unparsable timestamp is dropped", func(t *testing.T) {
		env, err := codec.Decode([]byte(`{"type":"ORDER_UPDATED","timestamp":"yesterday","data":{}}`))
		require.NoError(t, err)
		assert.Nil(t, env.Timestamp)
	})

	t.Run("epoch millisecond timestamp is accepted", func(t *testing.T) {
		env, err := codec.Decode([]byte(`{"type":"ORDER_UPDATED","timestamp":1767225600000,"data":{}}`))
		require.NoError(t, err)
		require.NotNil(t, env.Timestamp)
		assert.Equal(t, int64(1767225600000), env.Timestamp.UnixMilli())
	})

	t.Run("zone-less timestamp is read as UTC", func(t *testing.T) {
		env, err := codec.Decode([]byte(`{"type":"ORDER_UPDATED","timestamp":"2026-05-01T10:15:30.123","data":{}}`))
		require.NoError(t, err)
		require.NotNil(t, env.Timestamp)
		assert.Equal(t, time.UTC, env.Timestamp.Location())
		assert.Equal(t, 123*time.Millisecond, time.Duration(env.Timestamp.Nanosecond()))
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		for _, raw := range []string{``, `   `, `{not json`, `[1,2,3]`, `{"type":"ORDER_UPDATED","data":[1]}`} {
			_, err := codec.Decode([]byte(raw))
			assert.ErrorIs(t, err, ErrMalformedEnvelope, "input %q", raw)
		}
	})
}

func TestPayloadCodec_Metadata(t *testing.T) {
	codec := NewPayloadCodec()

	payload := map[string]any{
		"orderId": json.Number("42"),
		"status":  "SHIPPED",
		"order": map[string]any{
			"id":       json.Number("7"),
			"customer": map[string]any{"name": "Ada"},
		},
		"items": []any{"a", "b"},
		"empty": map[string]any{},
	}

	md := codec.Metadata(payload)
	assert.Equal(t, json.Number("42"), md["orderId"])
	assert.Equal(t, "SHIPPED", md["status"])
	assert.Equal(t, json.Number("7"), md["order.id"])
	assert.Equal(t, "Ada", md["order.customer.name"])
	assert.Equal(t, []any{"a", "b"}, md["items"])
	assert.Equal(t, map[string]any{}, md["empty"])
	assert.NotContains(t, md, "order")

	assert.Empty(t, codec.Metadata(nil))
}

func TestExtractOrderID(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    int64
		wantOK  bool
	}{
		{"orderId json number", map[string]any{"orderId": json.Number("42")}, 42, true},
		{"orderId float", map[string]any{"orderId": float64(42)}, 42, true},
		{"orderId numeric string", map[string]any{"orderId": " 42 "}, 42, true},
		{"orderId preferred over id", map[string]any{"orderId": 1, "id": 2}, 1, true},
		{"falls back to id", map[string]any{"id": json.Number("9")}, 9, true},
		{"non-numeric orderId falls back to id", map[string]any{"orderId": "abc", "id": 3}, 3, true},
		{"nested order", map[string]any{"order": map[string]any{"id": "15"}}, 15, true},
		{"deeply nested order", map[string]any{"order": map[string]any{"order": map[string]any{"orderId": 77}}}, 77, true},
		{"fractional number rejected", map[string]any{"orderId": 4.5}, 0, false},
		{"zero rejected", map[string]any{"orderId": 0}, 0, false},
		{"negative rejected", map[string]any{"id": "-3"}, 0, false},
		{"no id", map[string]any{"status": "CONFIRMED"}, 0, false},
		{"nil payload", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractOrderID(tt.payload)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

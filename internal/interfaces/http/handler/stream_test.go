package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/domain/integration"
	"github.com/storefront/backend/internal/infrastructure/event"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newStreamRouter(h *StreamHandler) *gin.Engine {
	r := gin.New()
	r.GET("/api/v1/stream", h.Stream)
	return r
}

// readEvent reads one SSE event, skipping heartbeats unless wanted
func readEvent(t *testing.T, r *bufio.Reader, skipHeartbeats bool) SSEMessage {
	t.Helper()
	for {
		var msg SSEMessage
		for {
			line, err := r.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			if line == "" {
				break
			}
			key, value, _ := strings.Cut(line, ": ")
			switch key {
			case "event":
				msg.Event = value
			case "id":
				msg.ID = value
			case "data":
				msg.Data = value
			}
		}
		if skipHeartbeats && msg.Event == SSEEventHeartbeat {
			continue
		}
		return msg
	}
}

func TestStreamHandler_RejectsBadRequests(t *testing.T) {
	hub := event.NewTopicHub(zap.NewNop())
	router := newStreamRouter(NewStreamHandler(hub, WithStreamMaxTopics(2)))

	tests := []struct {
		name     string
		query    string
		wantCode string
	}{
		{"no topic", "", dto.ErrCodeBadRequest},
		{"unknown topic", "?topic=orders/42/status&topic=/topic/admin/orders", dto.ErrCodeInvalidTopic},
		{"too many topics", "?topic=orders/1/status&topic=orders/2/status&topic=orders/3/status", dto.ErrCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stream"+tt.query, nil))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.wantCode, decodeResponse(t, w).Error.Code)
		})
	}
	assert.Zero(t, hub.Stats().Subscribers)
}

func TestStreamHandler_SubscriberLimit(t *testing.T) {
	hub := event.NewTopicHub(zap.NewNop(), event.WithMaxSubscribers(1))
	_, err := hub.Subscribe(integration.OrderStatusTopic(1))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	newStreamRouter(NewStreamHandler(hub)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stream?topic=orders/42/status", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, dto.ErrCodeMaxConnections, decodeResponse(t, w).Error.Code)
}

func TestStreamHandler_ClosedHub(t *testing.T) {
	hub := event.NewTopicHub(zap.NewNop())
	hub.Close()

	w := httptest.NewRecorder()
	newStreamRouter(NewStreamHandler(hub)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stream?topic=orders/42/status", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, dto.ErrCodeServiceUnavailable, decodeResponse(t, w).Error.Code)
}

func TestStreamHandler_StreamsMessages(t *testing.T) {
	hub := event.NewTopicHub(zap.NewNop())
	srv := httptest.NewServer(newStreamRouter(NewStreamHandler(hub, WithStreamHeartbeat(20*time.Millisecond))))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/stream?topic=orders/42/status&topic=deliveries/42/location", nil)
	require.NoError(t, err)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	connected := readEvent(t, reader, true)
	assert.Equal(t, SSEEventConnected, connected.Event)
	assert.Contains(t, connected.Data, "orders/42/status")
	assert.Equal(t, 1, hub.Stats().Subscribers)

	heartbeat := readEvent(t, reader, false)
	assert.Equal(t, SSEEventHeartbeat, heartbeat.Event)

	eta := time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC)
	require.NoError(t, hub.Publish(ctx, "orders/41/status", &integration.OutboundStatusMessage{OrderID: 41}))
	require.NoError(t, hub.Publish(ctx, "orders/42/status", &integration.OutboundStatusMessage{
		OrderID:               42,
		Status:                "SHIPPED",
		EventType:             "ORDER_STATUS_CHANGED",
		EstimatedDeliveryTime: &eta,
	}))

	ev := readEvent(t, reader, true)
	assert.Equal(t, "orders/42/status", ev.Event)
	assert.Equal(t, "1", ev.ID)

	var msg integration.OutboundStatusMessage
	require.NoError(t, json.Unmarshal([]byte(ev.Data), &msg))
	assert.Equal(t, int64(42), msg.OrderID)
	assert.Equal(t, "SHIPPED", msg.Status)
	require.NotNil(t, msg.EstimatedDeliveryTime)
	assert.True(t, eta.Equal(*msg.EstimatedDeliveryTime))

	require.NoError(t, hub.Publish(ctx, "deliveries/42/location", &integration.OutboundStatusMessage{OrderID: 42}))
	ev = readEvent(t, reader, true)
	assert.Equal(t, "deliveries/42/location", ev.Event)
	assert.Equal(t, "2", ev.ID)

	cancel()
	require.Eventually(t, func() bool { return hub.Stats().Subscribers == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamHandler_EndsWhenHubCloses(t *testing.T) {
	hub := event.NewTopicHub(zap.NewNop())
	srv := httptest.NewServer(newStreamRouter(NewStreamHandler(hub)))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/stream?topic=orders/42/status", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	assert.Equal(t, SSEEventConnected, readEvent(t, reader, true).Event)

	hub.Close()
	_, err = reader.ReadString('\n')
	assert.Error(t, err, "stream ends with EOF once the hub is closed")
}

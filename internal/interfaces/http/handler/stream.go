package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/domain/integration"
	"github.com/storefront/backend/internal/infrastructure/event"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// SSE event names
const (
	SSEEventConnected = "connected"
	SSEEventHeartbeat = "heartbeat"
)

// DefaultMaxStreamTopics bounds the number of topics one stream may subscribe to
const DefaultMaxStreamTopics = 32

// StreamHub is the subscriber side of the local topic hub
type StreamHub interface {
	Subscribe(topics ...string) (*event.Subscription, error)
	Unsubscribe(id string)
}

// SSEMessage is one Server-Sent Event
type SSEMessage struct {
	Event string
	Data  string
	ID    string
}

// StreamHandler streams outbound status messages to local subscribers over SSE
type StreamHandler struct {
	BaseHandler
	hub       StreamHub
	logger    *zap.Logger
	heartbeat time.Duration
	maxTopics int
}

// StreamOption is a functional option for StreamHandler
type StreamOption func(*StreamHandler)

// WithStreamLogger sets the logger
func WithStreamLogger(logger *zap.Logger) StreamOption {
	return func(h *StreamHandler) {
		h.logger = logger
	}
}

// WithStreamHeartbeat sets the heartbeat interval
func WithStreamHeartbeat(interval time.Duration) StreamOption {
	return func(h *StreamHandler) {
		if interval > 0 {
			h.heartbeat = interval
		}
	}
}

// WithStreamMaxTopics sets the maximum number of topics per stream
func WithStreamMaxTopics(n int) StreamOption {
	return func(h *StreamHandler) {
		if n > 0 {
			h.maxTopics = n
		}
	}
}

// NewStreamHandler creates a new StreamHandler
func NewStreamHandler(hub StreamHub, opts ...StreamOption) *StreamHandler {
	h := &StreamHandler{
		hub:       hub,
		logger:    zap.NewNop(),
		heartbeat: 30 * time.Second,
		maxTopics: DefaultMaxStreamTopics,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Stream godoc
//
//	@Summary		Subscribe to order and delivery updates via SSE
//	@Description	Streams outbound status messages for the requested topics. Each event is named after its topic.
//	@Tags			stream
//	@Produce		text/event-stream
//	@Param			topic	query		[]string	true	"Topics, e.g. orders/42/status"
//	@Success		200		{string}	string		"SSE stream"
//	@Failure		400		{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		503		{object}	dto.Response{error=dto.ErrorInfo}
//	@Router			/stream [get]
func (h *StreamHandler) Stream(c *gin.Context) {
	topics := c.QueryArray("topic")
	if len(topics) == 0 {
		h.BadRequest(c, "At least one topic is required")
		return
	}
	if len(topics) > h.maxTopics {
		h.BadRequest(c, fmt.Sprintf("At most %d topics can be streamed at once", h.maxTopics))
		return
	}
	for _, t := range topics {
		if !integration.IsValidTopic(t) {
			h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidTopic, fmt.Sprintf("Unknown topic %q", t))
			return
		}
	}

	sub, err := h.hub.Subscribe(topics...)
	switch {
	case errors.Is(err, event.ErrTooManySubscribers):
		h.ServiceUnavailable(c, dto.ErrCodeMaxConnections, "Maximum number of stream connections reached")
		return
	case err != nil:
		h.ServiceUnavailable(c, dto.ErrCodeServiceUnavailable, "Stream is not available")
		return
	}
	defer h.hub.Unsubscribe(sub.ID)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	log := h.logger.With(zap.String("subscriber_id", sub.ID))
	log.Info("Stream client connected", zap.Strings("topics", sub.Topics))

	connected, _ := json.Marshal(gin.H{"subscriberId": sub.ID, "topics": sub.Topics})
	h.sendEvent(c.Writer, SSEMessage{Event: SSEEventConnected, Data: string(connected)})
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	var seq int64
	reqCtx := c.Request.Context()
	for {
		select {
		case <-reqCtx.Done():
			log.Info("Stream client disconnected", zap.Int64("dropped", sub.Dropped()))
			return
		case <-ticker.C:
			h.sendEvent(c.Writer, SSEMessage{
				Event: SSEEventHeartbeat,
				Data:  fmt.Sprintf(`{"timestamp":%d}`, time.Now().Unix()),
			})
			c.Writer.Flush()
		case d, ok := <-sub.C:
			if !ok {
				log.Info("Stream closed by hub")
				return
			}
			data, err := json.Marshal(d.Message)
			if err != nil {
				log.Error("Failed to marshal outbound message", zap.Error(err))
				continue
			}
			seq++
			h.sendEvent(c.Writer, SSEMessage{
				Event: d.Topic,
				Data:  string(data),
				ID:    strconv.FormatInt(seq, 10),
			})
			c.Writer.Flush()
		}
	}
}

// sendEvent writes an SSE event to the response writer
func (h *StreamHandler) sendEvent(w io.Writer, msg SSEMessage) {
	if msg.Event != "" {
		fmt.Fprintf(w, "event: %s\n", msg.Event)
	}
	if msg.ID != "" {
		fmt.Fprintf(w, "id: %s\n", msg.ID)
	}
	fmt.Fprintf(w, "data: %s\n\n", msg.Data)
}

package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/domain/integration"
	"github.com/storefront/backend/internal/infrastructure/event"
)

// TransportStatusProvider reports the status of the active transport
type TransportStatusProvider interface {
	Status() integration.TransportStatus
}

// HubStatsProvider reports local topic hub statistics
type HubStatsProvider interface {
	Stats() event.HubStats
}

// BridgeStatusResponse is the bridge status snapshot
type BridgeStatusResponse struct {
	Transport integration.TransportStatus `json:"transport"`
	Stream    *event.HubStats             `json:"stream,omitempty"`
	SinkMode  string                      `json:"sinkMode"`
	StartedAt time.Time                   `json:"startedAt"`
	Uptime    string                      `json:"uptime"`
}

// BridgeHandler exposes the bridge status. It only reads snapshots and never
// blocks on the transport.
type BridgeHandler struct {
	BaseHandler
	transport TransportStatusProvider
	hub       HubStatsProvider
	sinkMode  string
	startedAt time.Time
}

// NewBridgeHandler creates a new BridgeHandler. hub may be nil when
// messages are relayed to another process.
func NewBridgeHandler(transport TransportStatusProvider, hub HubStatsProvider, sinkMode string) *BridgeHandler {
	return &BridgeHandler{
		transport: transport,
		hub:       hub,
		sinkMode:  sinkMode,
		startedAt: time.Now().UTC(),
	}
}

// Status godoc
//
//	@Summary		Get bridge status
//	@Description	Returns the active transport's connection or polling state and local stream statistics
//	@Tags			bridge
//	@Produce		json
//	@Success		200	{object}	APIResponse[BridgeStatusResponse]
//	@Router			/bridge/status [get]
func (h *BridgeHandler) Status(c *gin.Context) {
	resp := BridgeStatusResponse{
		Transport: h.transport.Status(),
		SinkMode:  h.sinkMode,
		StartedAt: h.startedAt,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
	}
	if h.hub != nil {
		stats := h.hub.Stats()
		resp.Stream = &stats
	}
	h.Success(c, resp)
}

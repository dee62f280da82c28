package integration

import (
	"context"
	"time"
)

// Transport is the single active source of admin events, either the push
// subscription or the polling scheduler.
type Transport interface {
	// Name returns "push" or "poll"
	Name() string
	Start(ctx context.Context) error
	// Stop cancels pending work and waits for it to finish within ctx
	Stop(ctx context.Context) error
	Status() TransportStatus
}

// TransportStatus is a point-in-time snapshot of a transport. Fields that do
// not apply to a transport are left zero.
type TransportStatus struct {
	Transport      string     `json:"transport"`
	State          string     `json:"state"`
	Attempt        int        `json:"attempt,omitempty"`
	NextDelay      string     `json:"nextDelay,omitempty"`
	LastError      string     `json:"lastError,omitempty"`
	ConnectedSince *time.Time `json:"connectedSince,omitempty"`
	FramesReceived int64      `json:"framesReceived,omitempty"`
	Reconnects     int64      `json:"reconnects,omitempty"`
	LastTickAt     *time.Time `json:"lastTickAt,omitempty"`
	TicksRun       int64      `json:"ticksRun,omitempty"`
	TicksSkipped   int64      `json:"ticksSkipped,omitempty"`
	ItemsProcessed int64      `json:"itemsProcessed,omitempty"`
}

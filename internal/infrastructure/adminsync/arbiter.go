package adminsync

import (
	"fmt"

	"github.com/storefront/backend/internal/domain/integration"
)

// TransportSelection is the push/poll choice from configuration
type TransportSelection struct {
	PushEnabled bool
	PollEnabled bool
}

// TransportFactories builds the transports. Only the selected factory is called.
type TransportFactories struct {
	Push func() (integration.Transport, error)
	Poll func() (integration.Transport, error)
}

// NewTransport returns the single admin transport allowed by sel. Enabling
// both or neither is a startup error.
func NewTransport(sel TransportSelection, factories TransportFactories) (integration.Transport, error) {
	var (
		name    string
		factory func() (integration.Transport, error)
	)
	switch {
	case sel.PushEnabled && sel.PollEnabled:
		return nil, ErrTransportConflict
	case sel.PushEnabled:
		name, factory = TransportNamePush, factories.Push
	case sel.PollEnabled:
		name, factory = "poll", factories.Poll
	default:
		return nil, ErrNoTransportEnabled
	}

	if factory == nil {
		return nil, fmt.Errorf("%w: no factory for %s transport", ErrInvalidConfig, name)
	}
	t, err := factory()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s transport: %w", name, err)
	}
	return t, nil
}

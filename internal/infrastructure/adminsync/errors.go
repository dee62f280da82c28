package adminsync

import "errors"

var (
	// ErrInvalidConfig is returned when the transport configuration is unusable
	ErrInvalidConfig = errors.New("adminsync: invalid configuration")

	// ErrTransportConflict is returned when both push and poll are enabled
	ErrTransportConflict = errors.New("adminsync: push and poll transports are mutually exclusive")

	// ErrNoTransportEnabled is returned when neither push nor poll is enabled
	ErrNoTransportEnabled = errors.New("adminsync: no admin transport enabled")

	// ErrSupervisorStopped is returned when starting a supervisor after Stop
	ErrSupervisorStopped = errors.New("adminsync: supervisor has been stopped")

	// ErrRemoteError is returned when the admin server sends an error frame
	ErrRemoteError = errors.New("adminsync: admin server reported an error")

	// ErrSessionClosed is returned by a session after Close
	ErrSessionClosed = errors.New("adminsync: session closed")
)

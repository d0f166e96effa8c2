package tcpserver

import "errors"

var (
	// ErrSessionNotConnected is returned by sends on a session that is
	// closing or closed.
	ErrSessionNotConnected = errors.New("session not connected")

	// ErrSendQueueFull is returned by TrySend when the session's send queue
	// is at capacity.
	ErrSendQueueFull = errors.New("send queue full")

	// ErrServerNotInitialized is returned by Start before a successful Setup.
	ErrServerNotInitialized = errors.New("server not initialized")

	// ErrServerRunning is returned by Start when the server already runs.
	ErrServerRunning = errors.New("server already running")

	// ErrServerNotRunning is returned by Stop when the server is stopped.
	ErrServerNotRunning = errors.New("server not running")

	// ErrTooManyItems is returned by SetItem when the session already holds
	// the maximum number of user items.
	ErrTooManyItems = errors.New("too many session items")
)

// Package command provides the named command registry the server dispatches
// framed requests to. The registry is immutable after each publish and is
// swapped atomically, so dispatch never takes a lock. Loaders supply the
// command set at setup and may push add/remove/update events at runtime.
package command

import (
	"net"

	"github.com/cyberinferno/tcpserve/framing"
)

// Session is the application-session surface commands and filters operate on.
// It is implemented by the server's app session; commands needing the full
// session API may type-assert to the concrete type.
type Session interface {
	// ID returns the server-unique session identifier.
	ID() string

	// RemoteAddr returns the remote endpoint of the session.
	RemoteAddr() net.Addr

	// Send enqueues data for delivery to the peer, waiting while the send
	// queue is full.
	Send(data []byte) error

	// TrySend enqueues data without waiting; it fails when the queue is full
	// or the session is not connected.
	TrySend(data []byte) error

	// SendString transcodes text with the session charset and sends it.
	SendString(text string) error

	// Close closes the session.
	Close()
}

// Command handles all requests dispatched under its name. Name comparison at
// dispatch time is case-insensitive; two commands whose names differ only in
// case collide at load time.
type Command interface {
	// Name returns the command key this command is registered under.
	Name() string

	// Execute handles one request on the given session. A returned error is
	// routed to the session's exception handler and closes the session.
	//
	// Parameters:
	//   - session: The session the request arrived on
	//   - req: The framed request
	//
	// Returns:
	//   - An error if handling failed
	Execute(session Session, req *framing.Request) error
}

// Func adapts a function to the Command interface.
type Func struct {
	name string
	fn   func(session Session, req *framing.Request) error
}

// NewFunc creates a Command with the given name backed by fn.
//
// Parameters:
//   - name: The command key
//   - fn: The handler invoked for each request
//
// Returns:
//   - A Command wrapping fn
func NewFunc(name string, fn func(session Session, req *framing.Request) error) *Func {
	return &Func{name: name, fn: fn}
}

// Name implements Command.
func (f *Func) Name() string {
	return f.name
}

// Execute implements Command.
func (f *Func) Execute(session Session, req *framing.Request) error {
	return f.fn(session, req)
}

// FilteredCommand is implemented by commands that declare their own filters
// in addition to the server's global filters.
type FilteredCommand interface {
	Command

	// Filters returns the filters to run around this command, in order.
	Filters() []Filter
}

package tcpserver

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/cyberinferno/tcpserve/framing"
	"github.com/cyberinferno/tcpserve/logger"
	"github.com/cyberinferno/tcpserve/safemap"
)

// maxSessionItems caps the per-session user item map.
const maxSessionItems = 10

// SessionEvents is the lifecycle vtable the application supplies to hook
// session events. Embed DefaultSessionEvents to override only some hooks.
type SessionEvents interface {
	// OnInit runs after the session is wired to its socket and framer,
	// before OnSessionStarted.
	OnInit(session *AppSession)

	// OnSessionStarted runs once the session is registered and ready; a
	// typical implementation sends a welcome message.
	OnSessionStarted(session *AppSession)

	// OnSessionClosed runs after the session left the registry.
	OnSessionClosed(session *AppSession, reason CloseReason)

	// HandleUnknownRequest runs for requests whose key matches no command.
	HandleUnknownRequest(session *AppSession, req *framing.Request)

	// HandleException runs for dispatch errors and handler panics. The
	// default implementation logs and closes the session.
	HandleException(session *AppSession, err error)
}

// DefaultSessionEvents is the text-oriented default implementation of
// SessionEvents. Unknown requests get an "Unknown request" reply; exceptions
// are logged and close the session with CloseReasonApplicationError.
type DefaultSessionEvents struct{}

// OnInit implements SessionEvents.
func (DefaultSessionEvents) OnInit(session *AppSession) {}

// OnSessionStarted implements SessionEvents.
func (DefaultSessionEvents) OnSessionStarted(session *AppSession) {}

// OnSessionClosed implements SessionEvents.
func (DefaultSessionEvents) OnSessionClosed(session *AppSession, reason CloseReason) {}

// HandleUnknownRequest implements SessionEvents.
func (DefaultSessionEvents) HandleUnknownRequest(session *AppSession, req *framing.Request) {
	_ = session.SendString("Unknown request: " + req.Key)
}

// HandleException implements SessionEvents.
func (DefaultSessionEvents) HandleException(session *AppSession, err error) {
	session.server.log.Error("session error",
		logger.Field{Key: "session", Value: session.ID()},
		logger.Field{Key: "error", Value: err})
	session.CloseWithReason(CloseReasonApplicationError)
}

// AppSession is the application-visible session. It carries identity,
// timestamps, the user item map, and the charset, and sits atop exactly one
// SocketSession it exclusively owns. While the session is registered in the
// server its connected bit is true; the last-active time only advances, on
// every receive and on every successful enqueue.
type AppSession struct {
	id     string
	server *Server
	socket *SocketSession
	framer framing.Framer
	events SessionEvents

	startTime   time.Time
	lastActive  atomic.Int64
	connected   atomic.Bool
	currentCmd  atomic.Value
	previousCmd atomic.Value

	items   *safemap.SafeMap[string, any]
	itemsMu sync.Mutex

	charsetName string
	charset     encoding.Encoding
	charsetMu   sync.RWMutex
}

func newAppSession(server *Server, socket *SocketSession, framer framing.Framer, id string) *AppSession {
	now := time.Now()
	a := &AppSession{
		id:        id,
		server:    server,
		socket:    socket,
		framer:    framer,
		events:    server.sessionEvents,
		startTime: now,
		items:     safemap.NewSafeMap[string, any](),
	}
	a.lastActive.Store(now.UnixNano())
	a.connected.Store(true)
	a.currentCmd.Store("")
	a.previousCmd.Store("")
	socket.app = a

	if server.config.TextEncoding != "" {
		_ = a.SetCharset(server.config.TextEncoding)
	}

	return a
}

// ID returns the server-unique session identifier assigned at accept.
// Identifiers compare case-insensitively.
func (a *AppSession) ID() string {
	return a.id
}

// Server returns the server this session belongs to.
func (a *AppSession) Server() *Server {
	return a.server
}

// RemoteAddr returns the remote endpoint of the session.
func (a *AppSession) RemoteAddr() net.Addr {
	return a.socket.RemoteAddr()
}

// LocalAddr returns the local endpoint of the session.
func (a *AppSession) LocalAddr() net.Addr {
	return a.socket.LocalAddr()
}

// StartTime returns when the session was accepted.
func (a *AppSession) StartTime() time.Time {
	return a.startTime
}

// LastActiveTime returns the last time the session received data or
// successfully enqueued a send.
func (a *AppSession) LastActiveTime() time.Time {
	return time.Unix(0, a.lastActive.Load())
}

// Connected reports whether the session is still open and registered.
func (a *AppSession) Connected() bool {
	return a.connected.Load()
}

// CurrentCommand returns the key of the command currently dispatching, or
// the empty string.
func (a *AppSession) CurrentCommand() string {
	return a.currentCmd.Load().(string)
}

// PreviousCommand returns the key of the last command that completed
// normally, or the empty string.
func (a *AppSession) PreviousCommand() string {
	return a.previousCmd.Load().(string)
}

// CloseReason returns the recorded close reason, or CloseReasonUnknown while
// the session is open.
func (a *AppSession) CloseReason() CloseReason {
	return a.socket.CloseReason()
}

// SetItem stores a user item on the session. At most ten items may be set;
// overwriting an existing key is always allowed.
//
// Parameters:
//   - key: The item key
//   - value: The item value
//
// Returns:
//   - ErrTooManyItems when the item map is full and key is new
func (a *AppSession) SetItem(key string, value any) error {
	a.itemsMu.Lock()
	defer a.itemsMu.Unlock()

	if !a.items.Has(key) && a.items.Len() >= maxSessionItems {
		return ErrTooManyItems
	}

	a.items.Store(key, value)
	return nil
}

// GetItem returns the user item stored under key.
//
// Parameters:
//   - key: The item key
//
// Returns:
//   - The item value and true, or nil and false when absent
func (a *AppSession) GetItem(key string) (any, bool) {
	return a.items.Load(key)
}

// RemoveItem deletes the user item stored under key.
//
// Parameters:
//   - key: The item key
func (a *AppSession) RemoveItem(key string) {
	a.itemsMu.Lock()
	defer a.itemsMu.Unlock()
	a.items.Delete(key)
}

// Charset returns the IANA name of the charset outgoing strings are
// transcoded with. Defaults to UTF-8.
func (a *AppSession) Charset() string {
	a.charsetMu.RLock()
	defer a.charsetMu.RUnlock()

	if a.charsetName == "" {
		return "UTF-8"
	}

	return a.charsetName
}

// SetCharset selects the charset for outgoing strings by IANA name.
//
// Parameters:
//   - name: The IANA charset name, e.g. "UTF-8" or "ISO-8859-1"
//
// Returns:
//   - An error when the charset is unknown
func (a *AppSession) SetCharset(name string) error {
	if strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		a.charsetMu.Lock()
		a.charsetName = "UTF-8"
		a.charset = nil
		a.charsetMu.Unlock()
		return nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return fmt.Errorf("unknown charset %q: %w", name, err)
	}
	if enc == nil {
		return fmt.Errorf("unsupported charset %q", name)
	}

	a.charsetMu.Lock()
	a.charsetName = name
	a.charset = enc
	a.charsetMu.Unlock()
	return nil
}

// TrySend enqueues data without waiting. It fails with
// ErrSessionNotConnected when the session is not connected and with
// ErrSendQueueFull when the send queue is at capacity.
//
// Parameters:
//   - data: The bytes to send
//
// Returns:
//   - nil on success, ErrSessionNotConnected or ErrSendQueueFull otherwise
func (a *AppSession) TrySend(data []byte) error {
	return a.trySendSegments(data)
}

// TrySendSegments enqueues the segments atomically without waiting; the
// segments reach the socket contiguously and in order.
//
// Parameters:
//   - segments: The byte segments to send
//
// Returns:
//   - nil on success, ErrSessionNotConnected or ErrSendQueueFull otherwise
func (a *AppSession) TrySendSegments(segments ...[]byte) error {
	return a.trySendSegments(segments...)
}

// Send enqueues data, waiting with increasing backoff while the send queue
// is full. When the session becomes disconnected during the wait, Send
// returns nil without sending; use TrySend to observe that case.
//
// Parameters:
//   - data: The bytes to send
//
// Returns:
//   - nil once enqueued or once the session is disconnected
func (a *AppSession) Send(data []byte) error {
	return a.sendSegments(data)
}

// SendSegments enqueues the segments atomically, waiting like Send.
//
// Parameters:
//   - segments: The byte segments to send
//
// Returns:
//   - nil once enqueued or once the session is disconnected
func (a *AppSession) SendSegments(segments ...[]byte) error {
	return a.sendSegments(segments...)
}

// SendString transcodes text with the session charset and sends it, waiting
// like Send. In stream mode the configured line terminator is appended;
// datagram sessions never get a terminator.
//
// Parameters:
//   - text: The text to send
//
// Returns:
//   - nil once enqueued or once the session is disconnected
func (a *AppSession) SendString(text string) error {
	data, err := a.encodeText(text)
	if err != nil {
		return err
	}

	if term := a.server.lineTerminator; len(term) > 0 && !a.socket.datagram {
		return a.sendSegments(data, term)
	}

	return a.sendSegments(data)
}

func (a *AppSession) encodeText(text string) ([]byte, error) {
	a.charsetMu.RLock()
	enc := a.charset
	a.charsetMu.RUnlock()

	if enc == nil {
		return []byte(text), nil
	}

	data, err := enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("charset %s: %w", a.Charset(), err)
	}

	return data, nil
}

func (a *AppSession) trySendSegments(segments ...[]byte) error {
	if err := a.socket.TrySend(segments...); err != nil {
		return err
	}

	a.touch()
	return nil
}

func (a *AppSession) sendSegments(segments ...[]byte) error {
	backoff := time.Millisecond
	for {
		err := a.socket.TrySend(segments...)
		if err == nil {
			a.touch()
			return nil
		}
		if errors.Is(err, ErrSessionNotConnected) {
			return nil
		}

		time.Sleep(backoff)
		if backoff < 64*time.Millisecond {
			backoff *= 2
		}
	}
}

// Close closes the session with CloseReasonServerClosing.
func (a *AppSession) Close() {
	a.CloseWithReason(CloseReasonServerClosing)
}

// CloseWithReason closes the session with the given reason. Idempotent; the
// first reason wins.
//
// Parameters:
//   - reason: Why the session is being closed
func (a *AppSession) CloseWithReason(reason CloseReason) {
	a.socket.Close(reason)
}

// processReceiveData drives the framer over one received window and
// dispatches every request it produces, in receive order. Called only from
// the session's receive loop, so framing of one session is never parallel.
func (a *AppSession) processReceiveData(buf []byte, offset, length int) error {
	a.touch()

	for {
		req, rest, err := a.framer.Filter(buf, offset, length, true)
		if err != nil {
			return err
		}

		if req == nil {
			if a.framer.LeftBufferSize() >= a.server.config.MaxRequestLength {
				a.server.log.Error("request exceeds maximum length",
					logger.Field{Key: "session", Value: a.id},
					logger.Field{Key: "max", Value: a.server.config.MaxRequestLength},
					logger.Field{Key: "current", Value: a.framer.LeftBufferSize()})
				a.CloseWithReason(CloseReasonServerClosing)
			}
			return nil
		}

		a.server.executeCommand(a, req)

		if next := a.framer.NextFramer(); next != nil && next != a.framer {
			a.framer = next
		}

		if rest <= 0 {
			return nil
		}

		offset = offset + length - rest
		length = rest
	}
}

func (a *AppSession) touch() {
	now := time.Now().UnixNano()
	for {
		prev := a.lastActive.Load()
		if prev >= now || a.lastActive.CompareAndSwap(prev, now) {
			return
		}
	}
}

func (a *AppSession) markDisconnected() {
	a.connected.Store(false)
}

func (a *AppSession) setCurrentCommand(key string) {
	a.currentCmd.Store(key)
}

func (a *AppSession) setPreviousCommand(key string) {
	a.previousCmd.Store(key)
}

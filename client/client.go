// Package client provides an event-driven TCP client used to exercise and
// test servers built on this framework. Callers register handlers for
// connection state changes, received data, and errors, then drive the
// connection with Connect, Send, and Close.
package client

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// ConnectionState represents the current state of the TCP connection.
type ConnectionState int

const (
	Disconnected ConnectionState = iota // Not connected
	Connecting                          // Connection attempt in progress
	Connected                           // Successfully connected
	Closed                              // Client has been closed
)

// String returns a human-readable name for the connection state.
func (cs ConnectionState) String() string {
	switch cs {
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Closed:
		return "Closed"
	default:
		return "Disconnected"
	}
}

// StateHandler is called when the connection state changes. Handlers are
// invoked from goroutines; implementations must be safe for concurrent use.
type StateHandler func(state ConnectionState, err error)

// DataHandler is called with each chunk of received data. The slice is only
// valid for the duration of the call; copy it if needed.
type DataHandler func(data []byte)

// ErrorHandler is called when a read, write, or connection error occurs.
type ErrorHandler func(err error)

// Config holds configuration for the TCP client.
type Config struct {
	// Address is the "host:port" to connect to.
	Address string
	// ReadBufferSize is the size of the read buffer. Default 4096.
	ReadBufferSize int
	// WriteTimeout is the max duration for a single write; 0 means none.
	WriteTimeout time.Duration
	// ReadTimeout is the max duration to wait for read data; 0 means none.
	ReadTimeout time.Duration
	// ConnectionTimeout is the max duration for establishing the connection.
	ConnectionTimeout time.Duration
}

// TCPClient is an event-driven TCP client. Register handlers, then call
// Connect to start the read loop. It is safe for concurrent use.
type TCPClient struct {
	config Config
	conn   net.Conn
	state  ConnectionState

	onState StateHandler
	onData  DataHandler
	onError ErrorHandler

	mu     sync.RWMutex
	wg     sync.WaitGroup
	closed bool
}

// NewTCPClient creates a client for the given config. The client starts in
// Disconnected state; call Connect to establish the connection.
//
// Parameters:
//   - config: Connection settings
//
// Returns:
//   - A new *TCPClient; call Close when done to release resources
func NewTCPClient(config Config) *TCPClient {
	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = 4096
	}

	return &TCPClient{
		config: config,
		state:  Disconnected,
	}
}

// OnState registers the handler for connection state changes. Repeated calls
// replace the previous handler; pass nil to clear it.
//
// Parameters:
//   - handler: Function called on state changes
func (c *TCPClient) OnState(handler StateHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = handler
}

// OnData registers the handler for incoming data. Repeated calls replace the
// previous handler; pass nil to clear it.
//
// Parameters:
//   - handler: Function called with each chunk of received data
func (c *TCPClient) OnData(handler DataHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onData = handler
}

// OnError registers the handler for read, write, and connection errors.
// Repeated calls replace the previous handler; pass nil to clear it.
//
// Parameters:
//   - handler: Function called when an error occurs
func (c *TCPClient) OnError(handler ErrorHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = handler
}

// Connect establishes the TCP connection and starts the read loop. It
// returns an error if the client is closed, already connected, or the dial
// fails.
//
// Returns:
//   - nil on success, otherwise the dial or state error
func (c *TCPClient) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("client is closed")
	}
	if c.state == Connected || c.state == Connecting {
		c.mu.Unlock()
		return fmt.Errorf("already connected or connecting")
	}
	c.state = Connecting
	c.mu.Unlock()

	c.emitState(Connecting, nil)

	dialer := net.Dialer{Timeout: c.config.ConnectionTimeout}
	conn, err := dialer.Dial("tcp", c.config.Address)
	if err != nil {
		c.setState(Disconnected)
		c.emitState(Disconnected, err)
		c.emitError(err)
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.state = Connected
	c.mu.Unlock()

	c.emitState(Connected, nil)

	c.wg.Add(1)
	go c.readLoop()

	return nil
}

// Send writes data to the connection. It returns an error if not connected
// or the write fails. When WriteTimeout is set, each write is limited to
// that duration.
//
// Parameters:
//   - data: Bytes to send; not modified
//
// Returns:
//   - nil on success, otherwise the write or state error
func (c *TCPClient) Send(data []byte) error {
	c.mu.RLock()
	conn := c.conn
	state := c.state
	c.mu.RUnlock()

	if state != Connected || conn == nil {
		return fmt.Errorf("not connected")
	}

	if c.config.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
			return err
		}
	}

	_, err := conn.Write(data)
	if err != nil {
		c.emitError(err)
	}

	return err
}

// IsConnected reports whether the client is in Connected state.
func (c *TCPClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == Connected
}

// Close shuts down the client, closes the connection, and waits for the
// read loop to exit. Idempotent.
//
// Returns:
//   - nil
func (c *TCPClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}

	c.closed = true
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.wg.Wait()
	c.setState(Closed)
	c.emitState(Closed, nil)

	return nil
}

func (c *TCPClient) readLoop() {
	defer c.wg.Done()

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return
	}

	buf := make([]byte, c.config.ReadBufferSize)
	for {
		if c.config.ReadTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout)); err != nil {
				c.handleReadExit(err)
				return
			}
		}

		n, err := conn.Read(buf)
		if n > 0 {
			c.mu.RLock()
			handler := c.onData
			c.mu.RUnlock()
			if handler != nil {
				handler(buf[:n])
			}
		}
		if err != nil {
			c.handleReadExit(err)
			return
		}
	}
}

func (c *TCPClient) handleReadExit(err error) {
	c.mu.Lock()
	wasClosed := c.closed
	if !wasClosed {
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
		c.state = Disconnected
	}
	c.mu.Unlock()

	if !wasClosed {
		c.emitState(Disconnected, err)
		c.emitError(err)
	}
}

func (c *TCPClient) setState(state ConnectionState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *TCPClient) emitState(state ConnectionState, err error) {
	c.mu.RLock()
	handler := c.onState
	c.mu.RUnlock()

	if handler != nil {
		handler(state, err)
	}
}

func (c *TCPClient) emitError(err error) {
	c.mu.RLock()
	handler := c.onError
	c.mu.RUnlock()

	if handler != nil {
		handler(err)
	}
}

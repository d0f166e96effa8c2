package framing

import "net"

// Framer is the stateful stream-to-request parser driven by a session's
// receive loop. Filter is handed a window into the receive buffer; the framer
// either returns one parsed request together with the count of trailing bytes
// it did not consume, or returns nil and retains the unparsed bytes
// internally until the next receive.
//
// A framer instance belongs to exactly one session and is never shared.
type Framer interface {
	// Filter parses buf[offset : offset+length]. When a complete frame is
	// found it returns the request and rest, the number of trailing bytes of
	// the window left unconsumed; the caller re-invokes Filter on that tail.
	// When no complete frame is present it returns (nil, 0, nil) and the
	// framer retains the window's bytes. When toBeCopied is true the window
	// will be invalidated before the next call and any retained reference
	// must be a copy.
	//
	// Parameters:
	//   - buf: The session receive buffer
	//   - offset: Start of the window within buf
	//   - length: Length of the window
	//   - toBeCopied: Whether retained bytes must be copied out of buf
	//
	// Returns:
	//   - The parsed request, or nil if the frame is incomplete
	//   - The number of trailing window bytes not consumed
	//   - An error if the stream violates the framing protocol
	Filter(buf []byte, offset, length int, toBeCopied bool) (*Request, int, error)

	// LeftBufferSize returns the total number of unparsed bytes the framer
	// has retained. Sessions close the connection when this reaches the
	// configured maximum request length.
	//
	// Returns:
	//   - The retained byte count
	LeftBufferSize() int

	// OffsetDelta returns the framer's hint for sliding the next read so
	// unconsumed bytes can stay in place at the end of the receive buffer.
	// Framers that copy their residue return 0.
	//
	// Returns:
	//   - The offset adjustment for the next receive
	OffsetDelta() int

	// NextFramer returns the framer that should replace this one after the
	// current request, or nil to keep using this framer. Used for protocol
	// upgrades, e.g. a text handshake switching to a binary framer.
	//
	// Returns:
	//   - The replacement framer, or nil
	NextFramer() Framer

	// Reset discards all retained bytes and internal parse state.
	Reset()
}

// Factory creates one framer per new session.
type Factory interface {
	// CreateFramer returns a fresh framer for the session connected from
	// remoteAddr. The returned framer must not be shared between sessions.
	//
	// Parameters:
	//   - remoteAddr: The remote endpoint of the new session
	//
	// Returns:
	//   - A new framer instance
	CreateFramer(remoteAddr net.Addr) Framer
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(remoteAddr net.Addr) Framer

// CreateFramer implements Factory.
func (f FactoryFunc) CreateFramer(remoteAddr net.Addr) Framer {
	return f(remoteAddr)
}

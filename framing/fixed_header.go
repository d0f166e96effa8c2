package framing

import (
	"bytes"
	"fmt"

	"github.com/cyberinferno/tcpserve/utils"
)

// HeaderParser derives the body length of a frame from its fixed-size header.
// Returning an error aborts the session with a protocol error.
type HeaderParser func(header []byte) (int, error)

// HeaderFrameParser converts a complete header and body into a Request. The
// slices may alias the session's receive buffer; parsers must copy any bytes
// they retain.
type HeaderFrameParser func(header, body []byte) (*Request, error)

// FixedHeaderFramer frames the stream using a fixed-size header that encodes
// the length of the variable-size body that follows it.
type FixedHeaderFramer struct {
	headerSize int
	bodyLen    HeaderParser
	parse      HeaderFrameParser
	left       bytes.Buffer
	frameSize  int
	next       Framer
}

// NewFixedHeaderFramer creates a framer that reads headerSize bytes, derives
// the body length with bodyLen, and emits one request per header+body frame.
// The default parser copies the body into Request.Data. Panics if headerSize
// is not positive or bodyLen is nil.
//
// Parameters:
//   - headerSize: The fixed header length in bytes
//   - bodyLen: Function deriving the body length from the header
//
// Returns:
//   - A new FixedHeaderFramer
func NewFixedHeaderFramer(headerSize int, bodyLen HeaderParser) *FixedHeaderFramer {
	return NewFixedHeaderFramerWithParser(headerSize, bodyLen, func(header, body []byte) (*Request, error) {
		return &Request{Data: utils.CloneBytes(body)}, nil
	})
}

// NewFixedHeaderFramerWithParser creates a fixed-header framer using a custom
// frame parser. Panics if headerSize is not positive or a function is nil.
//
// Parameters:
//   - headerSize: The fixed header length in bytes
//   - bodyLen: Function deriving the body length from the header
//   - parse: Parser applied to each complete header and body
//
// Returns:
//   - A new FixedHeaderFramer
func NewFixedHeaderFramerWithParser(headerSize int, bodyLen HeaderParser, parse HeaderFrameParser) *FixedHeaderFramer {
	if headerSize <= 0 {
		panic("framing: header size must be positive")
	}
	if bodyLen == nil || parse == nil {
		panic("framing: nil parser")
	}

	return &FixedHeaderFramer{
		headerSize: headerSize,
		bodyLen:    bodyLen,
		parse:      parse,
		frameSize:  -1,
	}
}

// Filter implements Framer.
func (f *FixedHeaderFramer) Filter(buf []byte, offset, length int, toBeCopied bool) (*Request, int, error) {
	data := buf[offset : offset+length]

	// Fast path: header and body both inside the caller's window.
	if f.left.Len() == 0 && f.frameSize < 0 && length >= f.headerSize {
		header := data[:f.headerSize]
		bodyLen, err := f.bodyLen(header)
		if err != nil || bodyLen < 0 {
			return nil, 0, fmt.Errorf("fixed header framer: invalid body length: %w", err)
		}

		frameSize := f.headerSize + bodyLen
		if length >= frameSize {
			req, err := f.parse(header, data[f.headerSize:frameSize])
			if err != nil {
				return nil, 0, fmt.Errorf("fixed header framer: %w", err)
			}

			return req, length - frameSize, nil
		}

		f.frameSize = frameSize
		f.left.Write(data)
		return nil, 0, nil
	}

	f.left.Write(data)

	if f.frameSize < 0 {
		if f.left.Len() < f.headerSize {
			return nil, 0, nil
		}

		bodyLen, err := f.bodyLen(f.left.Bytes()[:f.headerSize])
		if err != nil || bodyLen < 0 {
			f.left.Reset()
			return nil, 0, fmt.Errorf("fixed header framer: invalid body length: %w", err)
		}

		f.frameSize = f.headerSize + bodyLen
	}

	if f.left.Len() < f.frameSize {
		return nil, 0, nil
	}

	whole := f.left.Bytes()
	req, err := f.parse(whole[:f.headerSize], whole[f.headerSize:f.frameSize])
	if err != nil {
		f.left.Reset()
		f.frameSize = -1
		return nil, 0, fmt.Errorf("fixed header framer: %w", err)
	}

	rest := f.left.Len() - f.frameSize
	f.left.Reset()
	f.frameSize = -1

	// Any surplus past the frame arrived in the current window, so the rest
	// count maps back onto the caller's buffer.
	return req, rest, nil
}

// LeftBufferSize implements Framer.
func (f *FixedHeaderFramer) LeftBufferSize() int {
	return f.left.Len()
}

// OffsetDelta implements Framer.
func (f *FixedHeaderFramer) OffsetDelta() int {
	return 0
}

// NextFramer implements Framer.
func (f *FixedHeaderFramer) NextFramer() Framer {
	return f.next
}

// SetNextFramer arranges for the session to switch to the given framer after
// the current request completes.
//
// Parameters:
//   - next: The framer to switch to; nil keeps the current framer
func (f *FixedHeaderFramer) SetNextFramer(next Framer) {
	f.next = next
}

// Reset implements Framer.
func (f *FixedHeaderFramer) Reset() {
	f.left.Reset()
	f.frameSize = -1
	f.next = nil
}

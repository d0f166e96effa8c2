package framing

import (
	"bytes"
	"fmt"
)

// FixedSizeFramer frames the stream into frames of a constant byte length.
type FixedSizeFramer struct {
	size  int
	parse RequestParser
	left  bytes.Buffer
	next  Framer
}

// NewFixedSizeFramer creates a framer emitting one request per size bytes,
// parsed with BinaryRequestParser. Panics if size is not positive.
//
// Parameters:
//   - size: The fixed frame length in bytes
//
// Returns:
//   - A new FixedSizeFramer
func NewFixedSizeFramer(size int) *FixedSizeFramer {
	return NewFixedSizeFramerWithParser(size, BinaryRequestParser)
}

// NewFixedSizeFramerWithParser creates a fixed-size framer using a custom
// request parser. Panics if size is not positive.
//
// Parameters:
//   - size: The fixed frame length in bytes
//   - parse: Parser applied to each complete frame payload
//
// Returns:
//   - A new FixedSizeFramer
func NewFixedSizeFramerWithParser(size int, parse RequestParser) *FixedSizeFramer {
	if size <= 0 {
		panic("framing: fixed frame size must be positive")
	}

	return &FixedSizeFramer{
		size:  size,
		parse: parse,
	}
}

// Filter implements Framer.
func (f *FixedSizeFramer) Filter(buf []byte, offset, length int, toBeCopied bool) (*Request, int, error) {
	data := buf[offset : offset+length]

	if f.left.Len() == 0 {
		if length < f.size {
			f.left.Write(data)
			return nil, 0, nil
		}

		req, err := f.parse(data[:f.size])
		if err != nil {
			return nil, 0, fmt.Errorf("fixed size framer: %w", err)
		}

		return req, length - f.size, nil
	}

	need := f.size - f.left.Len()
	if length < need {
		f.left.Write(data)
		return nil, 0, nil
	}

	f.left.Write(data[:need])
	req, err := f.parse(f.left.Bytes())
	f.left.Reset()
	if err != nil {
		return nil, 0, fmt.Errorf("fixed size framer: %w", err)
	}

	return req, length - need, nil
}

// LeftBufferSize implements Framer.
func (f *FixedSizeFramer) LeftBufferSize() int {
	return f.left.Len()
}

// OffsetDelta implements Framer.
func (f *FixedSizeFramer) OffsetDelta() int {
	return 0
}

// NextFramer implements Framer.
func (f *FixedSizeFramer) NextFramer() Framer {
	return f.next
}

// SetNextFramer arranges for the session to switch to the given framer after
// the current request completes.
//
// Parameters:
//   - next: The framer to switch to; nil keeps the current framer
func (f *FixedSizeFramer) SetNextFramer(next Framer) {
	f.next = next
}

// Reset implements Framer.
func (f *FixedSizeFramer) Reset() {
	f.left.Reset()
	f.next = nil
}

package framing

import (
	"bytes"
	"fmt"
)

// TerminatorFramer frames the stream on a terminating byte sequence, e.g.
// "\r\n" for line-oriented protocols. It handles terminators split across
// receives, terminators straddling retained and new bytes, and empty frames.
type TerminatorFramer struct {
	terminator []byte
	parse      RequestParser
	left       bytes.Buffer
	next       Framer
}

// NewTerminatorFramer creates a framer that splits the stream on the given
// terminator and parses each frame with TextRequestParser. Panics if the
// terminator is empty.
//
// Parameters:
//   - terminator: The byte sequence marking the end of each frame
//
// Returns:
//   - A new TerminatorFramer
func NewTerminatorFramer(terminator []byte) *TerminatorFramer {
	return NewTerminatorFramerWithParser(terminator, TextRequestParser)
}

// NewTerminatorFramerWithParser creates a terminator framer using a custom
// request parser. Panics if the terminator is empty.
//
// Parameters:
//   - terminator: The byte sequence marking the end of each frame
//   - parse: Parser applied to each complete frame payload
//
// Returns:
//   - A new TerminatorFramer
func NewTerminatorFramerWithParser(terminator []byte, parse RequestParser) *TerminatorFramer {
	if len(terminator) == 0 {
		panic("framing: empty terminator")
	}

	return &TerminatorFramer{
		terminator: terminator,
		parse:      parse,
	}
}

// Filter implements Framer.
func (f *TerminatorFramer) Filter(buf []byte, offset, length int, toBeCopied bool) (*Request, int, error) {
	data := buf[offset : offset+length]

	if f.left.Len() == 0 {
		// Fast path: the whole candidate frame lies in the caller's window.
		idx := bytes.Index(data, f.terminator)
		if idx < 0 {
			f.left.Write(data)
			return nil, 0, nil
		}

		req, err := f.parse(data[:idx])
		if err != nil {
			return nil, 0, fmt.Errorf("terminator framer: %w", err)
		}

		return req, length - idx - len(f.terminator), nil
	}

	// Retained bytes exist: the terminator may straddle the retained region
	// and the new window. Append and scan from just before the boundary;
	// any terminator fully inside the retained region would have been found
	// on a previous call.
	oldLen := f.left.Len()
	f.left.Write(data)

	scanFrom := oldLen - len(f.terminator) + 1
	if scanFrom < 0 {
		scanFrom = 0
	}

	whole := f.left.Bytes()
	idx := bytes.Index(whole[scanFrom:], f.terminator)
	if idx < 0 {
		return nil, 0, nil
	}
	idx += scanFrom

	req, err := f.parse(whole[:idx])
	if err != nil {
		f.left.Reset()
		return nil, 0, fmt.Errorf("terminator framer: %w", err)
	}

	consumedFromWindow := idx + len(f.terminator) - oldLen
	f.left.Reset()
	return req, length - consumedFromWindow, nil
}

// LeftBufferSize implements Framer.
func (f *TerminatorFramer) LeftBufferSize() int {
	return f.left.Len()
}

// OffsetDelta implements Framer. Retained bytes are copied, so the next read
// always starts at the buffer head.
func (f *TerminatorFramer) OffsetDelta() int {
	return 0
}

// NextFramer implements Framer.
func (f *TerminatorFramer) NextFramer() Framer {
	return f.next
}

// SetNextFramer arranges for the session to switch to the given framer after
// the current request completes, e.g. after a successful handshake.
//
// Parameters:
//   - next: The framer to switch to; nil keeps the current framer
func (f *TerminatorFramer) SetNextFramer(next Framer) {
	f.next = next
}

// Reset implements Framer.
func (f *TerminatorFramer) Reset() {
	f.left.Reset()
	f.next = nil
}

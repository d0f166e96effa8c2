// Package framing turns a raw byte stream into discrete application requests.
// A Framer is plugged in per server and driven per session: it consumes
// windows of the session's receive buffer, retains partial frames across
// receives, and emits one Request per complete frame. Four framing
// strategies are provided: terminator, fixed size, fixed header with a
// length field, and begin/end marks.
package framing

import (
	"strings"

	"github.com/cyberinferno/tcpserve/utils"
)

// Request is one framed application request. Text protocols populate Key,
// Body, and Parameters; binary protocols populate Data and may leave Key
// empty or derive it in a custom RequestParser.
type Request struct {
	// Key identifies the command the request is dispatched to. Matching at
	// dispatch time is case-insensitive.
	Key string

	// Body is the request text after the key, without the terminator.
	Body string

	// Parameters are the space-separated tokens of Body.
	Parameters []string

	// Data is the raw frame payload for binary protocols.
	Data []byte
}

// RequestParser converts a complete frame payload into a Request. The payload
// slice may alias the session's receive buffer; parsers must copy any bytes
// they retain.
type RequestParser func(payload []byte) (*Request, error)

// TextRequestParser parses a frame as "KEY arg1 arg2 ...". The first
// space-separated token becomes the key, the remainder the body. An empty
// frame yields a request with an empty key.
//
// Parameters:
//   - payload: The frame payload, without framing bytes
//
// Returns:
//   - The parsed request; never an error
func TextRequestParser(payload []byte) (*Request, error) {
	line := string(payload)
	key, body, found := strings.Cut(line, " ")
	req := &Request{Key: key}
	if found {
		req.Body = body
		req.Parameters = strings.Fields(body)
	}

	return req, nil
}

// BinaryRequestParser copies the frame payload into Request.Data and leaves
// the key empty. Servers using binary framing install a RequestHandler or a
// custom parser that derives the key from the payload.
//
// Parameters:
//   - payload: The frame payload, without framing bytes
//
// Returns:
//   - A request carrying a copy of the payload; never an error
func BinaryRequestParser(payload []byte) (*Request, error) {
	return &Request{Data: utils.CloneBytes(payload)}, nil
}

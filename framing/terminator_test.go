package framing

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feedFramer drives a framer the way a session receive loop does: each chunk
// is one receive, and the framer is re-invoked on the unconsumed tail until
// it stops producing requests.
func feedFramer(t *testing.T, f Framer, chunks ...[]byte) []*Request {
	t.Helper()

	var requests []*Request
	for _, chunk := range chunks {
		offset, length := 0, len(chunk)
		for {
			req, rest, err := f.Filter(chunk, offset, length, true)
			require.NoError(t, err)
			if req == nil {
				break
			}

			requests = append(requests, req)
			if rest <= 0 {
				break
			}

			offset = offset + length - rest
			length = rest
		}
	}

	return requests
}

func TestTerminatorFramer_SingleReceive(t *testing.T) {
	t.Run("one complete frame", func(t *testing.T) {
		f := NewTerminatorFramer([]byte("\r\n"))
		requests := feedFramer(t, f, []byte("ECHO hello\r\n"))

		require.Len(t, requests, 1)
		assert.Equal(t, "ECHO", requests[0].Key)
		assert.Equal(t, "hello", requests[0].Body)
		assert.Equal(t, []string{"hello"}, requests[0].Parameters)
		assert.Equal(t, 0, f.LeftBufferSize())
	})

	t.Run("pipelined frames in one receive arrive in order", func(t *testing.T) {
		f := NewTerminatorFramer([]byte("\r\n"))
		requests := feedFramer(t, f, []byte("ECHO a\r\nECHO b\r\nECHO c\r\n"))

		require.Len(t, requests, 3)
		assert.Equal(t, "a", requests[0].Body)
		assert.Equal(t, "b", requests[1].Body)
		assert.Equal(t, "c", requests[2].Body)
	})

	t.Run("empty frame is a valid request", func(t *testing.T) {
		f := NewTerminatorFramer([]byte("\r\n"))
		requests := feedFramer(t, f, []byte("\r\n"))

		require.Len(t, requests, 1)
		assert.Equal(t, "", requests[0].Key)
		assert.Equal(t, "", requests[0].Body)
	})

	t.Run("trailing partial frame is retained", func(t *testing.T) {
		f := NewTerminatorFramer([]byte("\r\n"))
		requests := feedFramer(t, f, []byte("ECHO a\r\nECH"))

		require.Len(t, requests, 1)
		assert.Equal(t, 3, f.LeftBufferSize())
	})
}

func TestTerminatorFramer_SplitReceives(t *testing.T) {
	t.Run("frame split mid payload", func(t *testing.T) {
		f := NewTerminatorFramer([]byte("\r\n"))
		requests := feedFramer(t, f, []byte("EC"), []byte("HO hi"), []byte("\r\n"))

		require.Len(t, requests, 1)
		assert.Equal(t, "ECHO", requests[0].Key)
		assert.Equal(t, "hi", requests[0].Body)
	})

	t.Run("terminator split across two receives", func(t *testing.T) {
		f := NewTerminatorFramer([]byte("\r\n"))
		requests := feedFramer(t, f, []byte("ECHO hi\r"), []byte("\n"))

		require.Len(t, requests, 1)
		assert.Equal(t, "hi", requests[0].Body)
		assert.Equal(t, 0, f.LeftBufferSize())
	})

	t.Run("terminator straddling retained and new bytes with trailing frame", func(t *testing.T) {
		f := NewTerminatorFramer([]byte("\r\n"))
		requests := feedFramer(t, f, []byte("ECHO a\r"), []byte("\nECHO b\r\n"))

		require.Len(t, requests, 2)
		assert.Equal(t, "a", requests[0].Body)
		assert.Equal(t, "b", requests[1].Body)
	})

	t.Run("false terminator prefix stays in the payload", func(t *testing.T) {
		f := NewTerminatorFramer([]byte("\r\n"))
		requests := feedFramer(t, f, []byte("A\r"), []byte("B\r\n"))

		require.Len(t, requests, 1)
		assert.Equal(t, "A\rB", requests[0].Key)
	})

	t.Run("multi byte terminator fed one byte at a time", func(t *testing.T) {
		f := NewTerminatorFramer([]byte("##|##"))
		payload := "PING x##|##"

		var chunks [][]byte
		for i := 0; i < len(payload); i++ {
			chunks = append(chunks, []byte{payload[i]})
		}

		requests := feedFramer(t, f, chunks...)
		require.Len(t, requests, 1)
		assert.Equal(t, "PING", requests[0].Key)
		assert.Equal(t, "x", requests[0].Body)
	})
}

func TestTerminatorFramer_RoundTrip(t *testing.T) {
	t.Run("any chunking of N frames yields exactly N requests", func(t *testing.T) {
		const frames = 20
		var stream strings.Builder
		var want []string
		for i := 0; i < frames; i++ {
			body := fmt.Sprintf("payload-%d", i)
			want = append(want, body)
			stream.WriteString("MSG " + body + "\r\n")
		}
		full := []byte(stream.String())

		rng := rand.New(rand.NewSource(42))
		for trial := 0; trial < 50; trial++ {
			var chunks [][]byte
			for pos := 0; pos < len(full); {
				n := 1 + rng.Intn(9)
				if pos+n > len(full) {
					n = len(full) - pos
				}
				chunks = append(chunks, full[pos:pos+n])
				pos += n
			}

			f := NewTerminatorFramer([]byte("\r\n"))
			requests := feedFramer(t, f, chunks...)

			require.Len(t, requests, frames, "trial %d", trial)
			for i, req := range requests {
				assert.Equal(t, "MSG", req.Key)
				assert.Equal(t, want[i], req.Body)
			}
			assert.Equal(t, 0, f.LeftBufferSize())
		}
	})
}

func TestTerminatorFramer_LeftBufferSize(t *testing.T) {
	t.Run("retained bytes accumulate across receives", func(t *testing.T) {
		f := NewTerminatorFramer([]byte("\r\n"))

		feedFramer(t, f, []byte("aaaa"))
		assert.Equal(t, 4, f.LeftBufferSize())

		feedFramer(t, f, []byte("bbbb"))
		assert.Equal(t, 8, f.LeftBufferSize())
	})

	t.Run("reset discards retained bytes", func(t *testing.T) {
		f := NewTerminatorFramer([]byte("\r\n"))
		feedFramer(t, f, []byte("aaaa"))

		f.Reset()
		assert.Equal(t, 0, f.LeftBufferSize())
	})
}

func TestTerminatorFramer_Chaining(t *testing.T) {
	t.Run("next framer replaces the current one after a request", func(t *testing.T) {
		text := NewTerminatorFramer([]byte("\r\n"))
		binary := NewFixedSizeFramer(4)
		text.SetNextFramer(binary)

		req, rest, err := text.Filter([]byte("STARTTLS\r\n"), 0, 10, true)
		require.NoError(t, err)
		require.NotNil(t, req)
		assert.Equal(t, 0, rest)
		assert.Same(t, Framer(binary), text.NextFramer())
	})

	t.Run("no next framer by default", func(t *testing.T) {
		f := NewTerminatorFramer([]byte("\r\n"))
		assert.Nil(t, f.NextFramer())
	})
}

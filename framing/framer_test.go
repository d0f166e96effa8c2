package framing

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextRequestParser(t *testing.T) {
	t.Run("splits key and body", func(t *testing.T) {
		req, err := TextRequestParser([]byte("LOGIN user secret"))
		require.NoError(t, err)
		assert.Equal(t, "LOGIN", req.Key)
		assert.Equal(t, "user secret", req.Body)
		assert.Equal(t, []string{"user", "secret"}, req.Parameters)
	})

	t.Run("key only", func(t *testing.T) {
		req, err := TextRequestParser([]byte("PING"))
		require.NoError(t, err)
		assert.Equal(t, "PING", req.Key)
		assert.Equal(t, "", req.Body)
		assert.Empty(t, req.Parameters)
	})

	t.Run("empty payload", func(t *testing.T) {
		req, err := TextRequestParser(nil)
		require.NoError(t, err)
		assert.Equal(t, "", req.Key)
	})
}

func TestBinaryRequestParser(t *testing.T) {
	t.Run("copies the payload", func(t *testing.T) {
		src := []byte{1, 2, 3}
		req, err := BinaryRequestParser(src)
		require.NoError(t, err)

		src[0] = 9
		assert.Equal(t, []byte{1, 2, 3}, req.Data)
	})
}

func TestFixedSizeFramer(t *testing.T) {
	t.Run("one frame per size bytes", func(t *testing.T) {
		f := NewFixedSizeFramer(4)
		requests := feedFramer(t, f, []byte("aaaabbbbcccc"))

		require.Len(t, requests, 3)
		assert.Equal(t, []byte("aaaa"), requests[0].Data)
		assert.Equal(t, []byte("bbbb"), requests[1].Data)
		assert.Equal(t, []byte("cccc"), requests[2].Data)
	})

	t.Run("frame split across receives", func(t *testing.T) {
		f := NewFixedSizeFramer(6)
		requests := feedFramer(t, f, []byte("ab"), []byte("cd"), []byte("efgh"))

		require.Len(t, requests, 1)
		assert.Equal(t, []byte("abcdef"), requests[0].Data)
		assert.Equal(t, 2, f.LeftBufferSize())
	})

	t.Run("invalid size panics", func(t *testing.T) {
		assert.Panics(t, func() { NewFixedSizeFramer(0) })
	})
}

func TestFixedHeaderFramer(t *testing.T) {
	newFramer := func() *FixedHeaderFramer {
		return NewFixedHeaderFramer(2, func(header []byte) (int, error) {
			return int(binary.BigEndian.Uint16(header)), nil
		})
	}

	frame := func(payload string) []byte {
		buf := make([]byte, 2+len(payload))
		binary.BigEndian.PutUint16(buf, uint16(len(payload)))
		copy(buf[2:], payload)
		return buf
	}

	t.Run("one complete frame", func(t *testing.T) {
		f := newFramer()
		requests := feedFramer(t, f, frame("hello"))

		require.Len(t, requests, 1)
		assert.Equal(t, []byte("hello"), requests[0].Data)
	})

	t.Run("pipelined frames", func(t *testing.T) {
		f := newFramer()
		data := append(frame("one"), frame("two")...)
		requests := feedFramer(t, f, data)

		require.Len(t, requests, 2)
		assert.Equal(t, []byte("one"), requests[0].Data)
		assert.Equal(t, []byte("two"), requests[1].Data)
	})

	t.Run("header split across receives", func(t *testing.T) {
		f := newFramer()
		data := frame("payload")
		requests := feedFramer(t, f, data[:1], data[1:3], data[3:])

		require.Len(t, requests, 1)
		assert.Equal(t, []byte("payload"), requests[0].Data)
	})

	t.Run("empty body frame", func(t *testing.T) {
		f := newFramer()
		requests := feedFramer(t, f, frame(""))

		require.Len(t, requests, 1)
		assert.Empty(t, requests[0].Data)
	})

	t.Run("negative body length is a protocol error", func(t *testing.T) {
		f := NewFixedHeaderFramer(1, func(header []byte) (int, error) {
			return -1, nil
		})

		_, _, err := f.Filter([]byte{0xff}, 0, 1, true)
		assert.Error(t, err)
	})
}

func TestBeginEndMarkFramer(t *testing.T) {
	t.Run("payload between the marks", func(t *testing.T) {
		f := NewBeginEndMarkFramer([]byte("!"), []byte("$"))
		requests := feedFramer(t, f, []byte("!hello$"))

		require.Len(t, requests, 1)
		assert.Equal(t, []byte("hello"), requests[0].Data)
	})

	t.Run("pipelined frames", func(t *testing.T) {
		f := NewBeginEndMarkFramer([]byte("!"), []byte("$"))
		requests := feedFramer(t, f, []byte("!a$!b$"))

		require.Len(t, requests, 2)
		assert.Equal(t, []byte("a"), requests[0].Data)
		assert.Equal(t, []byte("b"), requests[1].Data)
	})

	t.Run("end mark split across receives", func(t *testing.T) {
		f := NewBeginEndMarkFramer([]byte("<<"), []byte(">>"))
		requests := feedFramer(t, f, []byte("<<data>"), []byte(">"))

		require.Len(t, requests, 1)
		assert.Equal(t, []byte("data"), requests[0].Data)
	})

	t.Run("stream not starting with begin mark is a protocol error", func(t *testing.T) {
		f := NewBeginEndMarkFramer([]byte("!"), []byte("$"))

		_, _, err := f.Filter([]byte("xhello$"), 0, 7, true)
		assert.Error(t, err)
	})

	t.Run("begin mark violation detected across receives", func(t *testing.T) {
		f := NewBeginEndMarkFramer([]byte("ab"), []byte("$"))

		_, _, err := f.Filter([]byte("a"), 0, 1, true)
		require.NoError(t, err)

		_, _, err = f.Filter([]byte("x"), 0, 1, true)
		assert.Error(t, err)
	})

	t.Run("empty frame between marks", func(t *testing.T) {
		f := NewBeginEndMarkFramer([]byte("!"), []byte("$"))
		requests := feedFramer(t, f, []byte("!$"))

		require.Len(t, requests, 1)
		assert.Empty(t, requests[0].Data)
	})
}

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeFixedLengthStringBytes(t *testing.T) {
	t.Run("pads short strings with zero bytes", func(t *testing.T) {
		result := MakeFixedLengthStringBytes("ab", 4)

		assert.Equal(t, []byte{'a', 'b', 0, 0}, result)
	})

	t.Run("truncates long strings", func(t *testing.T) {
		result := MakeFixedLengthStringBytes("abcdef", 3)

		assert.Equal(t, []byte("abc"), result)
	})

	t.Run("exact length is unchanged", func(t *testing.T) {
		result := MakeFixedLengthStringBytes("abc", 3)

		assert.Equal(t, []byte("abc"), result)
	})
}

func TestJoinBytes(t *testing.T) {
	t.Run("joins multiple slices in order", func(t *testing.T) {
		result := JoinBytes([]byte("ab"), []byte("cd"), []byte("e"))

		assert.Equal(t, []byte("abcde"), result)
	})

	t.Run("empty input yields empty slice", func(t *testing.T) {
		result := JoinBytes()

		assert.Empty(t, result)
	})
}

func TestCloneBytes(t *testing.T) {
	t.Run("copy is independent of the source", func(t *testing.T) {
		src := []byte("abc")
		clone := CloneBytes(src)
		src[0] = 'x'

		assert.Equal(t, []byte("abc"), clone)
	})

	t.Run("nil input yields non-nil empty slice", func(t *testing.T) {
		clone := CloneBytes(nil)

		assert.NotNil(t, clone)
		assert.Empty(t, clone)
	})
}

func TestReadStringFromBytes(t *testing.T) {
	t.Run("stops at the first null byte", func(t *testing.T) {
		result := ReadStringFromBytes([]byte{'a', 'b', 0, 'c'})

		assert.Equal(t, "ab", result)
	})

	t.Run("returns the whole buffer without null byte", func(t *testing.T) {
		result := ReadStringFromBytes([]byte("abc"))

		assert.Equal(t, "abc", result)
	})
}

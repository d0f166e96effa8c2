// Package utils provides common helper functions for bytes and strings used
// across the framework and its tests.
package utils

import "bytes"

// MakeFixedLengthStringBytes creates a byte slice of the given length containing
// the string's bytes. If the string is shorter than length, the remainder is
// zero-padded; if longer, the string is truncated.
//
// Parameters:
//   - str: The string to convert to bytes
//   - length: The fixed length of the resulting byte slice
//
// Returns:
//   - A byte slice of length bytes with the string content (padded or truncated)
func MakeFixedLengthStringBytes(str string, length int) []byte {
	bytesMsg := make([]byte, length)
	strBytes := []byte(str)
	copy(bytesMsg, strBytes)
	return bytesMsg
}

// JoinBytes concatenates the given byte slices into a single byte slice.
//
// Parameters:
//   - s: One or more byte slices to concatenate
//
// Returns:
//   - A new byte slice containing all input slices in order
func JoinBytes(s ...[]byte) []byte {
	n := 0
	for _, v := range s {
		n += len(v)
	}

	b, i := make([]byte, n), 0
	for _, v := range s {
		i += copy(b[i:], v)
	}

	return b
}

// CloneBytes returns a copy of the given byte slice. The result is always
// non-nil, so callers can retain it safely after the source buffer is reused.
//
// Parameters:
//   - b: The byte slice to copy
//
// Returns:
//   - A new byte slice with the same contents as b
func CloneBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

// ReadStringFromBytes interprets the byte slice as a null-terminated string.
// It returns the string up to the first null byte (0x00), or the entire buffer
// if no null byte is present.
//
// Parameters:
//   - buffer: The byte slice to read from (e.g. a fixed-size header field)
//
// Returns:
//   - The string content before the first null byte, or the whole buffer as a string
func ReadStringFromBytes(buffer []byte) string {
	nullIndex := bytes.IndexByte(buffer, 0)
	if nullIndex == -1 {
		return string(buffer)
	}

	return string(buffer[:nullIndex])
}

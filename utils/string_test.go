package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRandomString(t *testing.T) {
	t.Run("returns string of requested length", func(t *testing.T) {
		result := GenerateRandomString(16)

		assert.Len(t, result, 16)
	})

	t.Run("only contains alphanumeric characters", func(t *testing.T) {
		result := GenerateRandomString(64)

		for _, r := range result {
			isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
			assert.True(t, isAlnum, "unexpected character %q", r)
		}
	})

	t.Run("zero length yields empty string", func(t *testing.T) {
		assert.Empty(t, GenerateRandomString(0))
	})
}

package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLogger_Levels(t *testing.T) {
	t.Run("entries below the level are filtered", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewZerologLogger(zerolog.New(&buf), "test", zerolog.InfoLevel)

		log.Debug("hidden")
		log.Info("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("enabled checks reflect the level", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewZerologLogger(zerolog.New(&buf), "test", zerolog.InfoLevel)

		assert.False(t, log.DebugEnabled())
		assert.True(t, log.InfoEnabled())
		assert.True(t, log.ErrorEnabled())
	})

	t.Run("fields appear in the entry", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewZerologLogger(zerolog.New(&buf), "test", zerolog.InfoLevel)

		log.Info("msg", Field{Key: "session", Value: "abc"})

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "abc", entry["session"])
		assert.Equal(t, "test", entry["service"])
	})

	t.Run("with derives a logger carrying extra fields", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewZerologLogger(zerolog.New(&buf), "test", zerolog.InfoLevel)

		derived := log.With(Field{Key: "component", Value: "server"})
		derived.Info("msg")

		assert.Contains(t, buf.String(), "server")
	})
}

func TestNopLogger(t *testing.T) {
	log := NewNopLogger()

	log.Debug("x")
	log.Info("x")
	log.Warn("x")
	log.Error("x")

	assert.False(t, log.InfoEnabled())
	assert.False(t, log.ErrorEnabled())
	assert.NoError(t, log.Close())
}

func TestDailyFileWriter(t *testing.T) {
	t.Run("writes into a dated file", func(t *testing.T) {
		dir := t.TempDir()
		w, err := NewDailyFileWriter("svc", dir)
		require.NoError(t, err)

		_, err = w.Write([]byte("entry\n"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		path := w.CurrentLogFile()
		assert.Empty(t, path, "closed writer has no current file")

		files, err := filepath.Glob(filepath.Join(dir, "svc_*.log"))
		require.NoError(t, err)
		require.Len(t, files, 1)

		content, err := os.ReadFile(files[0])
		require.NoError(t, err)
		assert.Equal(t, "entry\n", string(content))
	})

	t.Run("write after close fails", func(t *testing.T) {
		w, err := NewDailyFileWriter("svc", t.TempDir())
		require.NoError(t, err)
		require.NoError(t, w.Close())

		_, err = w.Write([]byte("x"))
		assert.Error(t, err)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		w, err := NewDailyFileWriter("svc", t.TempDir())
		require.NoError(t, err)
		require.NoError(t, w.Close())
		require.NoError(t, w.Close())
	})
}

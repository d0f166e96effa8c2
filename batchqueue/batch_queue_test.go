package batchqueue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/tcpserve/utils"
)

func TestNewBatchQueue(t *testing.T) {
	t.Run("creates empty queue with requested capacity", func(t *testing.T) {
		q := NewBatchQueue(5)
		require.NotNil(t, q)
		assert.Equal(t, 0, q.Len())
		assert.Equal(t, 5, q.Cap())
	})

	t.Run("capacity below one is raised to one", func(t *testing.T) {
		q := NewBatchQueue(0)
		assert.Equal(t, 1, q.Cap())
	})
}

func TestBatchQueue_Enqueue(t *testing.T) {
	t.Run("enqueue succeeds until capacity", func(t *testing.T) {
		q := NewBatchQueue(3)
		assert.True(t, q.Enqueue([]byte("a")))
		assert.True(t, q.Enqueue([]byte("b")))
		assert.True(t, q.Enqueue([]byte("c")))
		assert.False(t, q.Enqueue([]byte("d")))
		assert.Equal(t, 3, q.Len())
	})

	t.Run("enqueue signals the notify channel", func(t *testing.T) {
		q := NewBatchQueue(3)
		q.Enqueue([]byte("a"))

		select {
		case <-q.Notify():
		default:
			t.Fatal("expected notify signal after enqueue")
		}
	})

	t.Run("enqueue on closed queue fails", func(t *testing.T) {
		q := NewBatchQueue(3)
		q.Close()
		assert.False(t, q.Enqueue([]byte("a")))
	})
}

func TestBatchQueue_EnqueueAll(t *testing.T) {
	t.Run("appends all segments contiguously", func(t *testing.T) {
		q := NewBatchQueue(4)
		require.True(t, q.Enqueue([]byte("a")))
		require.True(t, q.EnqueueAll([][]byte{[]byte("b"), []byte("c")}))

		var out [][]byte
		require.True(t, q.TryDequeue(&out))
		assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, out)
	})

	t.Run("rejects the whole batch on overflow", func(t *testing.T) {
		q := NewBatchQueue(3)
		require.True(t, q.EnqueueAll([][]byte{[]byte("a"), []byte("b")}))
		assert.False(t, q.EnqueueAll([][]byte{[]byte("c"), []byte("d")}))
		assert.Equal(t, 2, q.Len())
	})

	t.Run("empty batch succeeds without signalling", func(t *testing.T) {
		q := NewBatchQueue(3)
		assert.True(t, q.EnqueueAll(nil))
		assert.Equal(t, 0, q.Len())
	})
}

func TestBatchQueue_TryDequeue(t *testing.T) {
	t.Run("drains all segments in FIFO order", func(t *testing.T) {
		q := NewBatchQueue(5)
		for _, s := range []string{"1", "2", "3"} {
			q.Enqueue([]byte(s))
		}

		var out [][]byte
		require.True(t, q.TryDequeue(&out))
		assert.Equal(t, [][]byte{[]byte("1"), []byte("2"), []byte("3")}, out)
		assert.Equal(t, 0, q.Len())
	})

	t.Run("empty queue returns false", func(t *testing.T) {
		q := NewBatchQueue(5)
		var out [][]byte
		assert.False(t, q.TryDequeue(&out))
		assert.Empty(t, out)
	})

	t.Run("appends to a reused output slice", func(t *testing.T) {
		q := NewBatchQueue(5)
		q.Enqueue([]byte("a"))

		out := [][]byte{[]byte("existing")}
		require.True(t, q.TryDequeue(&out))
		assert.Equal(t, [][]byte{[]byte("existing"), []byte("a")}, out)
	})
}

func TestBatchQueue_ConcurrentProducers(t *testing.T) {
	t.Run("no bytes are lost or reordered within a producer", func(t *testing.T) {
		const producers = 8
		const perProducer = 50

		q := NewBatchQueue(producers * perProducer)
		var wg sync.WaitGroup

		for p := 0; p < producers; p++ {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				for i := 0; i < perProducer; i++ {
					seg := []byte{byte(p), byte(i)}
					for !q.Enqueue(seg) {
					}
				}
			}(p)
		}
		wg.Wait()

		var out [][]byte
		require.True(t, q.TryDequeue(&out))
		require.Len(t, out, producers*perProducer)

		// Per-producer arrival order must be preserved by the queue.
		lastSeen := map[byte]int{}
		for _, seg := range out {
			p, i := seg[0], int(seg[1])
			last, seen := lastSeen[p]
			if seen {
				assert.Equal(t, last+1, i, "producer %d segments out of order", p)
			} else {
				assert.Equal(t, 0, i)
			}
			lastSeen[p] = i
		}
	})

	t.Run("total dequeued bytes equal total enqueued bytes", func(t *testing.T) {
		q := NewBatchQueue(100)
		enqueued := 0
		for i := 0; i < 100; i++ {
			seg := []byte(utils.GenerateRandomString(i%7 + 1))
			require.True(t, q.Enqueue(seg))
			enqueued += len(seg)
		}

		var out [][]byte
		require.True(t, q.TryDequeue(&out))
		dequeued := 0
		for _, seg := range out {
			dequeued += len(seg)
		}
		assert.Equal(t, enqueued, dequeued)
	})
}

func TestBatchQueue_Close(t *testing.T) {
	t.Run("close discards queued segments", func(t *testing.T) {
		q := NewBatchQueue(3)
		q.Enqueue([]byte("a"))
		q.Close()

		var out [][]byte
		assert.False(t, q.TryDequeue(&out))
	})

	t.Run("close is idempotent", func(t *testing.T) {
		q := NewBatchQueue(3)
		q.Close()
		q.Close()
	})
}

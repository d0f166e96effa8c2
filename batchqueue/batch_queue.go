// Package batchqueue provides a bounded, multi-producer single-consumer queue
// of outbound byte segments. Producers enqueue without blocking; the single
// consumer drains the queue in batches, preserving arrival order.
package batchqueue

import "sync"

// BatchQueue is a bounded queue of byte segments. Any goroutine may enqueue;
// only one goroutine (the session's send pump) should drain. Segments leave
// the queue in the order producers enqueued them, and the segments of one
// EnqueueAll call stay contiguous.
//
// A BatchQueue must not be copied after first use.
type BatchQueue struct {
	mu       sync.Mutex
	items    [][]byte
	capacity int
	closed   bool
	notify   chan struct{}
}

// NewBatchQueue creates a BatchQueue with the given capacity, measured in
// segments. Capacities below 1 are treated as 1.
//
// Parameters:
//   - capacity: Maximum number of segments the queue holds at once
//
// Returns:
//   - A new, empty BatchQueue
func NewBatchQueue(capacity int) *BatchQueue {
	if capacity < 1 {
		capacity = 1
	}

	return &BatchQueue{
		items:    make([][]byte, 0, capacity),
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

// Enqueue appends one segment to the queue. It never blocks: if appending
// would exceed capacity, or the queue is closed, it returns false and the
// queue is unchanged. On success the draining side is signalled.
//
// Parameters:
//   - segment: The byte segment to append; the queue does not copy it
//
// Returns:
//   - true if the segment was appended, false on overflow or closed queue
func (q *BatchQueue) Enqueue(segment []byte) bool {
	q.mu.Lock()
	if q.closed || len(q.items)+1 > q.capacity {
		q.mu.Unlock()
		return false
	}

	q.items = append(q.items, segment)
	q.mu.Unlock()

	q.signal()
	return true
}

// EnqueueAll appends all segments atomically: either every segment is
// appended, keeping the list contiguous in the queue, or none is. It never
// blocks. On success the draining side is signalled.
//
// Parameters:
//   - segments: The byte segments to append; the queue does not copy them
//
// Returns:
//   - true if all segments were appended, false on overflow or closed queue
func (q *BatchQueue) EnqueueAll(segments [][]byte) bool {
	if len(segments) == 0 {
		return true
	}

	q.mu.Lock()
	if q.closed || len(q.items)+len(segments) > q.capacity {
		q.mu.Unlock()
		return false
	}

	q.items = append(q.items, segments...)
	q.mu.Unlock()

	q.signal()
	return true
}

// TryDequeue drains all queued segments into out in FIFO order. The segments
// are appended to *out, so callers can reuse a slice across drains by
// truncating it first.
//
// Parameters:
//   - out: Destination slice the segments are appended to
//
// Returns:
//   - true if at least one segment was moved, false if the queue was empty
func (q *BatchQueue) TryDequeue(out *[][]byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return false
	}

	*out = append(*out, q.items...)
	q.items = q.items[:0]
	return true
}

// Len returns the number of segments currently queued.
//
// Returns:
//   - The current queue length in segments
func (q *BatchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Cap returns the queue capacity in segments.
//
// Returns:
//   - The maximum number of segments the queue holds
func (q *BatchQueue) Cap() int {
	return q.capacity
}

// Notify returns the channel the queue signals after a successful enqueue.
// The single consumer selects on it to wake up and drain.
//
// Returns:
//   - A receive-only channel signalled at most once per pending drain
func (q *BatchQueue) Notify() <-chan struct{} {
	return q.notify
}

// Close marks the queue closed and discards any queued segments. Further
// enqueues fail. Safe to call multiple times.
func (q *BatchQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.items = nil
}

func (q *BatchQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

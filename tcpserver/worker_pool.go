package tcpserver

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// WorkerPoolConfig tunes the process-wide worker pool that runs asynchronous
// lifecycle callbacks (session connected/closed events). Negative values
// leave the default in place. The pool is configured once per process; the
// first server whose Setup gets past config validation wins, even if a later
// setup step fails, and later servers reuse it.
type WorkerPoolConfig struct {
	// MaxWorkers caps callbacks running concurrently. Default is twice the
	// number of CPUs.
	MaxWorkers int
}

type workerPool struct {
	sem *semaphore.Weighted
}

var (
	poolOnce sync.Once
	pool     *workerPool
)

// ConfigureWorkerPool applies the given tuning to the process-wide worker
// pool. Only the first call has an effect; subsequent calls (e.g. from
// additional servers in one bootstrap) are no-ops.
//
// Parameters:
//   - cfg: The pool tuning to apply
func ConfigureWorkerPool(cfg WorkerPoolConfig) {
	poolOnce.Do(func() {
		max := cfg.MaxWorkers
		if max <= 0 {
			max = runtime.NumCPU() * 2
		}

		pool = &workerPool{sem: semaphore.NewWeighted(int64(max))}
	})
}

// submitTask runs task on the process-wide worker pool. The task starts as
// soon as a worker slot is free; submission itself never blocks the caller.
func submitTask(task func()) {
	ConfigureWorkerPool(WorkerPoolConfig{MaxWorkers: -1})

	go func() {
		_ = pool.sem.Acquire(context.Background(), 1)
		defer pool.sem.Release(1)
		task()
	}()
}

package workers

import (
	"context"
	"sync"
	"time"
)

// job is the shared ticker lifecycle embedded by every worker: a goroutine
// that runs tick once immediately and then every interval, until the parent
// context is cancelled or stop is called.
type job struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (j *job) start(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	j.stop()

	j.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.wg.Add(1)
	j.mu.Unlock()

	go func() {
		defer j.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()

		tick(jobCtx)
		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				tick(jobCtx)
			}
		}
	}()
}

// stop cancels the goroutine and blocks until it has fully exited. Safe to
// call when the job is not running.
func (j *job) stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	j.wg.Wait()
}

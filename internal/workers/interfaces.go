// Package workers runs the background polling jobs: the public order book
// and dispute list refresh, the per-trade coordinator message listener and
// the dispute chat fetch loop.
package workers

import "context"

// Worker is a background job with a start/stop lifecycle. Start is
// non-blocking; the job spawns its goroutine internally and keeps running
// until ctx is cancelled or Stop is called.
type Worker interface {
	Start(ctx context.Context)
	Stop()
}

package workers

import (
	"context"
	"time"

	"github.com/MostroP2P/mostrix/internal/logger"
)

const DefaultChatFetchInterval = 5 * time.Second

// chatFetcher is satisfied by *chatsync.Syncer. FetchAll is single-flight
// on the syncer side, so overlapping ticks are harmless.
type chatFetcher interface {
	FetchAll(ctx context.Context)
}

// ChatFetchJob drives the dispute chat syncer on a fixed interval.
type ChatFetchJob struct {
	job

	fetcher  chatFetcher
	interval time.Duration
	log      *logger.Logger
}

func NewChatFetchJob(fetcher chatFetcher, interval time.Duration, log *logger.Logger) *ChatFetchJob {
	if interval <= 0 {
		interval = DefaultChatFetchInterval
	}
	return &ChatFetchJob{fetcher: fetcher, interval: interval, log: log}
}

func (c *ChatFetchJob) Start(ctx context.Context) {
	c.job.start(ctx, c.interval, c.fetcher.FetchAll)
}

func (c *ChatFetchJob) Stop() {
	c.job.stop()
}

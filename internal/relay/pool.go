// Package relay maintains connections to a set of relays and exposes
// publish, one-shot fetch and live subscribe over all of them at once.
// One reachable relay is enough; the rest degrade to log lines.
package relay

import (
	"context"
	"errors"
	"sync"

	"github.com/nbd-wtf/go-nostr"

	"github.com/MostroP2P/mostrix/internal/logger"
)

// ErrNoRelays means not a single configured relay could be reached.
var ErrNoRelays = errors.New("no relays available")

// Pool is the Client implementation over a set of nostr relays.
type Pool struct {
	relays []*nostr.Relay
	log    *logger.Logger
}

// Connect dials every URL and keeps whichever connections succeed.
func Connect(ctx context.Context, urls []string, log *logger.Logger) (Client, error) {
	p := &Pool{log: log}
	for _, url := range urls {
		r, err := nostr.RelayConnect(ctx, url)
		if err != nil {
			log.Warn().Err(err).Str("relay", url).Msg("relay connect failed")
			continue
		}
		log.Debug().Str("relay", url).Msg("relay connected")
		p.relays = append(p.relays, r)
	}
	if len(p.relays) == 0 {
		return nil, ErrNoRelays
	}
	return p, nil
}

// Publish sends the event to all relays concurrently. Any single ack counts
// as success; the joined per-relay errors are returned only when every relay
// rejects.
func (p *Pool) Publish(ctx context.Context, ev *nostr.Event) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   bool
		errs []error
	)
	for _, r := range p.relays {
		wg.Add(1)
		go func(r *nostr.Relay) {
			defer wg.Done()
			err := r.Publish(ctx, *ev)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			ok = true
		}(r)
	}
	wg.Wait()

	if ok {
		return nil
	}
	return errors.Join(append([]error{ErrNoRelays}, errs...)...)
}

// Fetch runs the filters against every relay and merges stored results.
// Each relay contributes until its end-of-stored-events marker; a relay that
// errors or stalls past ctx is skipped, it never fails the whole fetch.
func (p *Pool) Fetch(ctx context.Context, filters nostr.Filters) ([]*nostr.Event, error) {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]struct{})
		out  []*nostr.Event
	)
	for _, r := range p.relays {
		wg.Add(1)
		go func(r *nostr.Relay) {
			defer wg.Done()
			sub, err := r.Subscribe(ctx, filters)
			if err != nil {
				p.log.Debug().Err(err).Str("relay", r.URL).Msg("fetch subscribe failed")
				return
			}
			defer sub.Unsub()
			for {
				select {
				case ev, open := <-sub.Events:
					if !open {
						return
					}
					mu.Lock()
					if _, dup := seen[ev.ID]; !dup {
						seen[ev.ID] = struct{}{}
						out = append(out, ev)
					}
					mu.Unlock()
				case <-sub.EndOfStoredEvents:
					return
				case <-ctx.Done():
					return
				}
			}
		}(r)
	}
	wg.Wait()
	return out, nil
}

// Subscribe opens one live subscription per relay and merges them into a
// single deduplicated channel. Cancelling tears down all of them and closes
// the channel.
func (p *Pool) Subscribe(ctx context.Context, filters nostr.Filters) (<-chan *nostr.Event, context.CancelFunc, error) {
	ctx, cancel := context.WithCancel(ctx)

	var subs []*nostr.Subscription
	for _, r := range p.relays {
		sub, err := r.Subscribe(ctx, filters)
		if err != nil {
			p.log.Warn().Err(err).Str("relay", r.URL).Msg("subscribe failed")
			continue
		}
		subs = append(subs, sub)
	}
	if len(subs) == 0 {
		cancel()
		return nil, nil, ErrNoRelays
	}

	merged := make(chan *nostr.Event)
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]struct{})

	for _, sub := range subs {
		wg.Add(1)
		go func(sub *nostr.Subscription) {
			defer wg.Done()
			defer sub.Unsub()
			for {
				select {
				case ev, open := <-sub.Events:
					if !open {
						return
					}
					mu.Lock()
					_, dup := seen[ev.ID]
					if !dup {
						seen[ev.ID] = struct{}{}
					}
					mu.Unlock()
					if dup {
						continue
					}
					select {
					case merged <- ev:
					case <-ctx.Done():
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}(sub)
	}
	go func() {
		wg.Wait()
		close(merged)
	}()

	return merged, cancel, nil
}

// Close disconnects from every relay.
func (p *Pool) Close() {
	for _, r := range p.relays {
		if err := r.Close(); err != nil {
			p.log.Debug().Err(err).Str("relay", r.URL).Msg("relay close failed")
		}
	}
}

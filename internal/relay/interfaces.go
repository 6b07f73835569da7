package relay

import (
	"context"

	"github.com/nbd-wtf/go-nostr"
)

// Client is the transport surface the rest of the application depends on.
// The concrete implementation is a multi-relay pool; tests substitute spies.
type Client interface {
	// Publish sends the event to every relay and succeeds if at least one
	// accepts it.
	Publish(ctx context.Context, ev *nostr.Event) error

	// Fetch collects stored events matching the filters from all relays
	// until each reports end-of-stored-events or ctx expires, deduplicated
	// by event id.
	Fetch(ctx context.Context, filters nostr.Filters) ([]*nostr.Event, error)

	// Subscribe opens a merged live subscription across all relays. The
	// returned cancel func must be called to release it.
	Subscribe(ctx context.Context, filters nostr.Filters) (<-chan *nostr.Event, context.CancelFunc, error)

	// Close disconnects from all relays.
	Close()
}

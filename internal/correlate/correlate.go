// Package correlate matches coordinator responses to outstanding requests.
//
// Every request carries a random 64-bit request id. The correlator
// subscribes to the reply key before publishing, so a responder faster than
// the subscription round-trip cannot slip its answer past us, then resolves
// the exchange to exactly one of: matched, mismatched, timed out.
package correlate

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/MostroP2P/mostrix/internal/envelope"
	"github.com/MostroP2P/mostrix/internal/keyring"
	"github.com/MostroP2P/mostrix/internal/logger"
	"github.com/MostroP2P/mostrix/internal/relay"
	"github.com/MostroP2P/mostrix/models"
)

var (
	// ErrTimedOut means no response with the request id arrived in the window.
	ErrTimedOut = errors.New("request timed out")
	// ErrMismatched means a response arrived carrying a different request id.
	// Surfaced explicitly: a coordinator answering the wrong request is a
	// protocol fault, not noise to drop.
	ErrMismatched = errors.New("response request id mismatch")
)

// NewRequestID returns a fresh random correlation id.
func NewRequestID() uint64 {
	return rand.Uint64()
}

// Correlator runs request/response exchanges over the relay transport.
type Correlator struct {
	transport relay.Client
	timeout   time.Duration
	log       *logger.Logger
}

func New(transport relay.Client, timeout time.Duration, log *logger.Logger) *Correlator {
	return &Correlator{transport: transport, timeout: timeout, log: log}
}

// Exchange publishes the request wrap and waits for the response addressed
// to replyKeys whose embedded request id equals requestID.
//
// Undecodable events and messages without a request id are logged and
// skipped; relay streams carry traffic for keys we no longer hold. The
// first id-bearing response resolves the exchange, later arrivals are
// never seen because the subscription is torn down on return.
func (c *Correlator) Exchange(ctx context.Context, req *nostr.Event, requestID uint64, replyKeys *keyring.Keys) (*models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// Response wraps carry randomized timestamps, reach behind the clock.
	since := nostr.Now() - envelope.MaxTimestampSkew
	filters := nostr.Filters{{
		Kinds: []int{nostr.KindGiftWrap},
		Tags:  nostr.TagMap{"p": []string{replyKeys.PublicHex()}},
		Since: &since,
	}}

	// Subscribe before publish.
	events, stop, err := c.transport.Subscribe(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("subscribe for response: %w", err)
	}
	defer stop()

	if err = c.transport.Publish(ctx, req); err != nil {
		return nil, fmt.Errorf("publish request: %w", err)
	}

	for {
		select {
		case ev, open := <-events:
			if !open {
				return nil, ErrTimedOut
			}
			msg, id, ok := c.decodeResponse(ev, replyKeys)
			if !ok {
				continue
			}
			if id != requestID {
				return nil, fmt.Errorf("%w: got %d, want %d", ErrMismatched, id, requestID)
			}
			return msg, nil
		case <-ctx.Done():
			return nil, ErrTimedOut
		}
	}
}

// decodeResponse unwraps one candidate event. ok is false for anything that
// cannot participate in correlation: undecodable wraps and messages without
// a request id.
func (c *Correlator) decodeResponse(ev *nostr.Event, replyKeys *keyring.Keys) (*models.Message, uint64, bool) {
	decoded, err := envelope.Decode(ev, replyKeys)
	if err != nil {
		c.log.Debug().Err(err).Str("event", ev.ID).Msg("skipping undecodable event")
		return nil, 0, false
	}
	inner := decoded.Message.Inner()
	if inner == nil || inner.RequestID == nil {
		c.log.Debug().Str("event", ev.ID).Msg("skipping response without request id")
		return nil, 0, false
	}
	return decoded.Message, *inner.RequestID, true
}

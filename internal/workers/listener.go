package workers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/MostroP2P/mostrix/internal/envelope"
	"github.com/MostroP2P/mostrix/internal/keyring"
	"github.com/MostroP2P/mostrix/internal/logger"
	"github.com/MostroP2P/mostrix/internal/relay"
	"github.com/MostroP2P/mostrix/internal/store"
	"github.com/MostroP2P/mostrix/models"
)

const (
	DefaultListenInterval = 5 * time.Second

	// listenFetchLimit bounds how many wraps per trade key each poll pulls.
	// Wrap timestamps are randomized, so relay-side ordering is approximate
	// and a single-event fetch could miss the actual latest message.
	listenFetchLimit = 10
)

// Notification is the latest coordinator message observed for one trade.
type Notification struct {
	OrderID   string
	Action    models.Action
	Message   *models.Message
	Timestamp int64
}

// OrderMessageListener polls the trade key of every active trade for new
// coordinator messages and keeps the latest one per order, with a pending
// counter the UI drains.
type OrderMessageListener struct {
	job

	deriver   *keyring.Deriver
	transport relay.Client
	trades    store.TradeRepository
	interval  time.Duration
	log       *logger.Logger

	mu       sync.RWMutex
	latest   map[string]Notification
	lastSeen map[string]int64
	pending  int
}

func NewOrderMessageListener(deriver *keyring.Deriver, transport relay.Client, trades store.TradeRepository, interval time.Duration, log *logger.Logger) *OrderMessageListener {
	if interval <= 0 {
		interval = DefaultListenInterval
	}
	return &OrderMessageListener{
		deriver:   deriver,
		transport: transport,
		trades:    trades,
		interval:  interval,
		log:       log,
		latest:    map[string]Notification{},
		lastSeen:  map[string]int64{},
	}
}

func (l *OrderMessageListener) Start(ctx context.Context) {
	l.job.start(ctx, l.interval, l.poll)
}

func (l *OrderMessageListener) Stop() {
	l.job.stop()
}

func (l *OrderMessageListener) poll(ctx context.Context) {
	records, err := l.trades.GetActiveTrades(ctx)
	if err != nil {
		l.log.Err(err).Str("func", "OrderMessageListener.poll").Msg("cannot list active trades")
		return
	}
	for _, rec := range records {
		if ctx.Err() != nil {
			return
		}
		l.pollTrade(ctx, rec)
	}
}

func (l *OrderMessageListener) pollTrade(ctx context.Context, rec models.TradeRecord) {
	keys, err := l.deriver.TradeKeys(rec.TradeIndex)
	if err != nil {
		l.log.Err(err).Str("order_id", rec.OrderID).Msg("cannot derive trade keys")
		return
	}

	since := nostr.Now() - envelope.MaxTimestampSkew
	events, err := l.transport.Fetch(ctx, nostr.Filters{{
		Kinds: []int{nostr.KindGiftWrap},
		Tags:  nostr.TagMap{"p": []string{keys.PublicHex()}},
		Since: &since,
		Limit: listenFetchLimit,
	}})
	if err != nil {
		l.log.Err(err).Str("order_id", rec.OrderID).Msg("message poll fetch failed")
		return
	}

	for _, ev := range events {
		decoded, err := envelope.Decode(ev, keys)
		if err != nil {
			continue
		}
		l.record(rec.OrderID, decoded)
	}
}

// record keeps only the newest message per order and counts each advance as
// one unread notification.
func (l *OrderMessageListener) record(orderID string, decoded *envelope.Decoded) {
	ts := int64(decoded.Timestamp)

	l.mu.Lock()
	defer l.mu.Unlock()

	if ts <= l.lastSeen[orderID] {
		return
	}
	l.lastSeen[orderID] = ts
	l.latest[orderID] = Notification{
		OrderID:   orderID,
		Action:    decoded.Message.Inner().Action,
		Message:   decoded.Message,
		Timestamp: ts,
	}
	l.pending++
}

// Pending returns the number of notification advances since the last
// MarkRead.
func (l *OrderMessageListener) Pending() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pending
}

// MarkRead resets the pending counter. The per-order latest messages stay
// available.
func (l *OrderMessageListener) MarkRead() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = 0
}

// Notifications returns the latest message of every tracked order, newest
// first.
func (l *OrderMessageListener) Notifications() []Notification {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Notification, 0, len(l.latest))
	for _, n := range l.latest {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out
}

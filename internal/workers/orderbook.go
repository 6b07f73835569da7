package workers

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nbd-wtf/go-nostr"

	"github.com/MostroP2P/mostrix/internal/logger"
	"github.com/MostroP2P/mostrix/internal/relay"
	"github.com/MostroP2P/mostrix/models"
)

const (
	// orderBookKind is the replaceable event kind the coordinator publishes
	// the public order book and dispute list under.
	orderBookKind = 38383

	// orderBookWindow bounds how far back the poller looks. Replaceable
	// events older than this are stale offers anyway.
	orderBookWindow = 7 * 24 * time.Hour

	DefaultOrderBookInterval = 10 * time.Second
)

// DisputeEntry is one row of the coordinator's public dispute list.
type DisputeEntry struct {
	DisputeID string
	Status    string
	CreatedAt int64
}

type bookOrder struct {
	order models.Order
	seen  nostr.Timestamp
}

type bookDispute struct {
	entry DisputeEntry
	seen  nostr.Timestamp
}

// OrderBookPoller keeps an in-memory mirror of the coordinator's published
// order book and dispute list, refreshed on a fixed interval. Entries are
// keyed by their replaceable `d` tag; only the latest version of each is
// retained.
type OrderBookPoller struct {
	job

	transport   relay.Client
	coordinator string
	interval    time.Duration
	log         *logger.Logger

	mu         sync.RWMutex
	orders     map[string]bookOrder
	disputes   map[string]bookDispute
	currencies map[string]struct{}
}

func NewOrderBookPoller(transport relay.Client, coordinator string, interval time.Duration, log *logger.Logger) *OrderBookPoller {
	if interval <= 0 {
		interval = DefaultOrderBookInterval
	}
	return &OrderBookPoller{
		transport:   transport,
		coordinator: coordinator,
		interval:    interval,
		log:         log,
		orders:      map[string]bookOrder{},
		disputes:    map[string]bookDispute{},
	}
}

// FilterCurrencies restricts the Orders view to the given fiat codes. The
// full book stays cached, so clearing the filter re-exposes everything.
func (p *OrderBookPoller) FilterCurrencies(codes []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(codes) == 0 {
		p.currencies = nil
		return
	}
	p.currencies = make(map[string]struct{}, len(codes))
	for _, code := range codes {
		p.currencies[strings.ToUpper(code)] = struct{}{}
	}
}

func (p *OrderBookPoller) Start(ctx context.Context) {
	p.job.start(ctx, p.interval, p.refresh)
}

func (p *OrderBookPoller) Stop() {
	p.job.stop()
}

func (p *OrderBookPoller) refresh(ctx context.Context) {
	since := nostr.Timestamp(time.Now().Add(-orderBookWindow).Unix())
	events, err := p.transport.Fetch(ctx, nostr.Filters{{
		Kinds:   []int{orderBookKind},
		Authors: []string{p.coordinator},
		Since:   &since,
	}})
	if err != nil {
		p.log.Err(err).Str("func", "OrderBookPoller.refresh").Msg("order book fetch failed")
		return
	}
	p.Apply(events)
}

// Apply folds a batch of kind-38383 events into the book, keeping the
// newest version per `d` tag. Exported so tests and one-shot refreshes can
// feed events directly.
func (p *OrderBookPoller) Apply(events []*nostr.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ev := range events {
		if ev.Kind != orderBookKind || ev.Tags.GetFirst([]string{"y"}) == nil {
			continue
		}
		switch tagValue(ev, "z") {
		case "order":
			id, order, ok := parseBookOrder(ev)
			if !ok {
				continue
			}
			if prev, exists := p.orders[id]; exists && prev.seen >= ev.CreatedAt {
				continue
			}
			p.orders[id] = bookOrder{order: order, seen: ev.CreatedAt}
		case "dispute":
			id, entry, ok := parseBookDispute(ev)
			if !ok {
				continue
			}
			if prev, exists := p.disputes[id]; exists && prev.seen >= ev.CreatedAt {
				continue
			}
			p.disputes[id] = bookDispute{entry: entry, seen: ev.CreatedAt}
		}
	}
}

// Orders returns the current book snapshot, newest first.
func (p *OrderBookPoller) Orders() []models.Order {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]models.Order, 0, len(p.orders))
	for _, entry := range p.orders {
		if p.currencies != nil {
			if _, ok := p.currencies[strings.ToUpper(entry.order.FiatCode)]; !ok {
				continue
			}
		}
		out = append(out, entry.order)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out
}

// Disputes returns the current dispute list, newest first.
func (p *OrderBookPoller) Disputes() []DisputeEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]DisputeEntry, 0, len(p.disputes))
	for _, entry := range p.disputes {
		out = append(out, entry.entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out
}

// parseBookOrder decodes the single-letter tag format of a published order:
// d=id, k=buy|sell, f=fiat code, s=status, amt=sats, fa=fiat amount (two
// values for a range), pm=payment method, premium=percent.
func parseBookOrder(ev *nostr.Event) (string, models.Order, bool) {
	id := tagValue(ev, "d")
	orderID, err := uuid.Parse(id)
	if err != nil {
		return "", models.Order{}, false
	}

	order := models.Order{
		ID:            &orderID,
		Kind:          models.OrderKind(tagValue(ev, "k")),
		Status:        models.Status(tagValue(ev, "s")),
		FiatCode:      tagValue(ev, "f"),
		PaymentMethod: tagValue(ev, "pm"),
		Amount:        tagInt(ev, "amt"),
		Premium:       tagInt(ev, "premium"),
		CreatedAt:     int64(ev.CreatedAt),
	}

	if fa := ev.Tags.GetFirst([]string{"fa"}); fa != nil && len(*fa) >= 2 {
		first, _ := strconv.ParseInt((*fa)[1], 10, 64)
		if len(*fa) >= 3 {
			second, _ := strconv.ParseInt((*fa)[2], 10, 64)
			order.MinAmount = &first
			order.MaxAmount = &second
		} else {
			order.FiatAmount = first
		}
	}
	return id, order, true
}

func parseBookDispute(ev *nostr.Event) (string, DisputeEntry, bool) {
	id := tagValue(ev, "d")
	if id == "" {
		return "", DisputeEntry{}, false
	}
	return id, DisputeEntry{
		DisputeID: id,
		Status:    tagValue(ev, "s"),
		CreatedAt: int64(ev.CreatedAt),
	}, true
}

func tagValue(ev *nostr.Event, name string) string {
	if tag := ev.Tags.GetFirst([]string{name}); tag != nil {
		return tag.Value()
	}
	return ""
}

func tagInt(ev *nostr.Event, name string) int64 {
	n, _ := strconv.ParseInt(tagValue(ev, name), 10, 64)
	return n
}

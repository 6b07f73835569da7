package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"

	"github.com/MostroP2P/mostrix/internal/logger"
	"github.com/MostroP2P/mostrix/models"
)

type spyTransport struct {
	mu          sync.Mutex
	events      []*nostr.Event
	byRecipient map[string][]*nostr.Event
	lastFilters nostr.Filters
	fetches     int
}

func (s *spyTransport) Publish(context.Context, *nostr.Event) error { return nil }

func (s *spyTransport) Fetch(_ context.Context, filters nostr.Filters) ([]*nostr.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	s.lastFilters = filters

	if s.byRecipient != nil && len(filters) > 0 {
		if targets, ok := filters[0].Tags["p"]; ok && len(targets) > 0 {
			return s.byRecipient[targets[0]], nil
		}
	}
	return s.events, nil
}

func (s *spyTransport) Subscribe(context.Context, nostr.Filters) (<-chan *nostr.Event, context.CancelFunc, error) {
	return nil, func() {}, nil
}

func (s *spyTransport) Close() {}

func bookEvent(z string, createdAt int64, tags ...nostr.Tag) *nostr.Event {
	all := nostr.Tags{{"y", "mostro"}, {"z", z}}
	all = append(all, tags...)
	return &nostr.Event{
		Kind:      orderBookKind,
		CreatedAt: nostr.Timestamp(createdAt),
		Tags:      all,
	}
}

func TestOrderBookPoller_ParsesOrders(t *testing.T) {
	orderID := uuid.New()
	poller := NewOrderBookPoller(&spyTransport{}, "coordpub", time.Second, logger.Nop())

	poller.Apply([]*nostr.Event{bookEvent("order", 1000,
		nostr.Tag{"d", orderID.String()},
		nostr.Tag{"k", "sell"},
		nostr.Tag{"f", "EUR"},
		nostr.Tag{"s", "pending"},
		nostr.Tag{"amt", "21000"},
		nostr.Tag{"fa", "100"},
		nostr.Tag{"pm", "SEPA"},
		nostr.Tag{"premium", "3"},
	)})

	orders := poller.Orders()
	require.Len(t, orders, 1)
	got := orders[0]
	require.Equal(t, orderID, *got.ID)
	require.Equal(t, models.KindSell, got.Kind)
	require.Equal(t, models.StatusPending, got.Status)
	require.Equal(t, "EUR", got.FiatCode)
	require.Equal(t, int64(21000), got.Amount)
	require.Equal(t, int64(100), got.FiatAmount)
	require.Equal(t, "SEPA", got.PaymentMethod)
	require.Equal(t, int64(3), got.Premium)
	require.False(t, got.IsRange())
}

func TestOrderBookPoller_RangeOrder(t *testing.T) {
	orderID := uuid.New()
	poller := NewOrderBookPoller(&spyTransport{}, "coordpub", time.Second, logger.Nop())

	poller.Apply([]*nostr.Event{bookEvent("order", 1000,
		nostr.Tag{"d", orderID.String()},
		nostr.Tag{"k", "buy"},
		nostr.Tag{"f", "VES"},
		nostr.Tag{"s", "pending"},
		nostr.Tag{"fa", "100", "500"},
		nostr.Tag{"pm", "face to face"},
	)})

	orders := poller.Orders()
	require.Len(t, orders, 1)
	require.True(t, orders[0].IsRange())
	require.Equal(t, int64(100), *orders[0].MinAmount)
	require.Equal(t, int64(500), *orders[0].MaxAmount)
	require.Zero(t, orders[0].FiatAmount)
}

func TestOrderBookPoller_KeepsLatestVersion(t *testing.T) {
	orderID := uuid.New()
	poller := NewOrderBookPoller(&spyTransport{}, "coordpub", time.Second, logger.Nop())

	newer := bookEvent("order", 2000,
		nostr.Tag{"d", orderID.String()}, nostr.Tag{"k", "sell"}, nostr.Tag{"s", "taken"})
	older := bookEvent("order", 1000,
		nostr.Tag{"d", orderID.String()}, nostr.Tag{"k", "sell"}, nostr.Tag{"s", "pending"})

	// apply out of order: the stale version must not win
	poller.Apply([]*nostr.Event{newer, older})

	orders := poller.Orders()
	require.Len(t, orders, 1)
	require.Equal(t, models.Status("taken"), orders[0].Status)
}

func TestOrderBookPoller_Disputes(t *testing.T) {
	poller := NewOrderBookPoller(&spyTransport{}, "coordpub", time.Second, logger.Nop())

	poller.Apply([]*nostr.Event{
		bookEvent("dispute", 1000, nostr.Tag{"d", "dispute-1"}, nostr.Tag{"s", "initiated"}),
		bookEvent("dispute", 2000, nostr.Tag{"d", "dispute-2"}, nostr.Tag{"s", "in-progress"}),
	})

	disputes := poller.Disputes()
	require.Len(t, disputes, 2)
	require.Equal(t, "dispute-2", disputes[0].DisputeID, "newest first")
	require.Equal(t, "in-progress", disputes[0].Status)
}

func TestOrderBookPoller_CurrencyFilter(t *testing.T) {
	poller := NewOrderBookPoller(&spyTransport{}, "coordpub", time.Second, logger.Nop())
	poller.Apply([]*nostr.Event{
		bookEvent("order", 1000, nostr.Tag{"d", uuid.NewString()}, nostr.Tag{"f", "EUR"}),
		bookEvent("order", 1000, nostr.Tag{"d", uuid.NewString()}, nostr.Tag{"f", "VES"}),
	})

	poller.FilterCurrencies([]string{"eur"})
	orders := poller.Orders()
	require.Len(t, orders, 1)
	require.Equal(t, "EUR", orders[0].FiatCode)

	poller.FilterCurrencies(nil)
	require.Len(t, poller.Orders(), 2, "clearing the filter restores the full book")
}

func TestOrderBookPoller_SkipsForeignEvents(t *testing.T) {
	orderID := uuid.New()
	poller := NewOrderBookPoller(&spyTransport{}, "coordpub", time.Second, logger.Nop())

	unmarked := bookEvent("order", 1000, nostr.Tag{"d", orderID.String()})
	unmarked.Tags = nostr.Tags{{"z", "order"}, {"d", orderID.String()}}

	poller.Apply([]*nostr.Event{
		unmarked,
		bookEvent("order", 1000, nostr.Tag{"d", "not-a-uuid"}),
		bookEvent("listing", 1000, nostr.Tag{"d", orderID.String()}),
		{Kind: nostr.KindTextNote, Tags: nostr.Tags{{"y", "mostro"}, {"z", "order"}}},
	})

	require.Empty(t, poller.Orders())
	require.Empty(t, poller.Disputes())
}

func TestOrderBookPoller_RefreshFilter(t *testing.T) {
	transport := &spyTransport{}
	poller := NewOrderBookPoller(transport, "coordpub", time.Second, logger.Nop())

	poller.refresh(context.Background())

	require.Equal(t, 1, transport.fetches)
	filter := transport.lastFilters[0]
	require.Equal(t, []int{orderBookKind}, filter.Kinds)
	require.Equal(t, []string{"coordpub"}, filter.Authors)
	require.NotNil(t, filter.Since)
}

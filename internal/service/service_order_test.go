package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"

	"github.com/MostroP2P/mostrix/internal/envelope"
	"github.com/MostroP2P/mostrix/internal/keyring"
	"github.com/MostroP2P/mostrix/internal/logger"
	"github.com/MostroP2P/mostrix/internal/store"
	"github.com/MostroP2P/mostrix/models"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

type spyExchanger struct {
	resp *models.Message
	err  error

	calls     int
	lastEvent *nostr.Event
	lastID    uint64
	lastReply *keyring.Keys
}

func (s *spyExchanger) Exchange(_ context.Context, req *nostr.Event, requestID uint64, replyKeys *keyring.Keys) (*models.Message, error) {
	s.calls++
	s.lastEvent = req
	s.lastID = requestID
	s.lastReply = replyKeys
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

type spyUserRepo struct {
	index int64
}

func (s *spyUserRepo) CreateUser(context.Context, string) error       { return nil }
func (s *spyUserRepo) GetMnemonic(context.Context) (string, error)    { return testMnemonic, nil }
func (s *spyUserRepo) GetTradeIndex(context.Context) (int64, error)   { return s.index, nil }
func (s *spyUserRepo) NextTradeIndex(context.Context) (int64, error) {
	s.index++
	return s.index, nil
}

type savedTrade struct {
	orderID string
	index   int64
	status  models.Status
}

type spyTradeRepo struct {
	saved     []savedTrade
	snapshots map[string]models.TradeSnapshot
}

func (s *spyTradeRepo) SaveTrade(_ context.Context, orderID string, tradeIndex int64, status models.Status, _ *uint64) error {
	s.saved = append(s.saved, savedTrade{orderID: orderID, index: tradeIndex, status: status})
	return nil
}

func (s *spyTradeRepo) GetActiveTrades(context.Context) ([]models.TradeRecord, error) {
	return nil, nil
}

func (s *spyTradeRepo) ApplySnapshot(context.Context, models.TradeSnapshot) error { return nil }

func (s *spyTradeRepo) GetSnapshot(_ context.Context, orderID string) (models.TradeSnapshot, error) {
	snap, ok := s.snapshots[orderID]
	if !ok {
		return models.TradeSnapshot{}, store.ErrNotFound
	}
	return snap, nil
}

type spyPublisher struct {
	published []*nostr.Event
}

func (s *spyPublisher) Publish(_ context.Context, ev *nostr.Event) error {
	s.published = append(s.published, ev)
	return nil
}

func (s *spyPublisher) Fetch(context.Context, nostr.Filters) ([]*nostr.Event, error) {
	return nil, nil
}

func (s *spyPublisher) Subscribe(context.Context, nostr.Filters) (<-chan *nostr.Event, context.CancelFunc, error) {
	return nil, func() {}, nil
}

func (s *spyPublisher) Close() {}

type orderFixture struct {
	service     OrderService
	deriver     *keyring.Deriver
	exchange    *spyExchanger
	users       *spyUserRepo
	trades      *spyTradeRepo
	transport   *spyPublisher
	coordinator *keyring.Keys
}

func newOrderFixture(t *testing.T, resp *models.Message) *orderFixture {
	t.Helper()

	deriver, err := keyring.NewDeriver(testMnemonic)
	require.NoError(t, err)
	identity, err := deriver.IdentityKeys()
	require.NoError(t, err)
	coordinator, err := keyring.GenerateKeys()
	require.NoError(t, err)

	f := &orderFixture{
		deriver:     deriver,
		exchange:    &spyExchanger{resp: resp},
		users:       &spyUserRepo{},
		trades:      &spyTradeRepo{snapshots: map[string]models.TradeSnapshot{}},
		transport:   &spyPublisher{},
		coordinator: coordinator,
	}
	f.service = NewOrderService(
		deriver, identity, f.transport, f.exchange, f.users, f.trades,
		coordinator.PublicHex(), envelope.Options{Mode: envelope.ModeReputation},
		func() uint64 { return 42 }, logger.Nop(),
	)
	return f
}

func orderResponse(orderID uuid.UUID, status models.Status) *models.Message {
	requestID := uint64(42)
	return models.NewOrderMessage(&orderID, &requestID, nil, models.ActionNewOrder,
		&models.Payload{Order: &models.Order{ID: &orderID, Status: status}})
}

func TestOrderService_NewOrder(t *testing.T) {
	orderID := uuid.New()
	f := newOrderFixture(t, orderResponse(orderID, models.StatusPending))

	resp, err := f.service.NewOrder(context.Background(), models.Order{
		Kind:          models.KindSell,
		Amount:        0,
		FiatCode:      "EUR",
		FiatAmount:    100,
		PaymentMethod: "SEPA",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Inner().Payload.Order)

	// a fresh trade index was allocated and its key answered the exchange
	require.Equal(t, int64(1), f.users.index)
	wantKeys, err := f.deriver.TradeKeys(1)
	require.NoError(t, err)
	require.Equal(t, wantKeys.PublicHex(), f.exchange.lastReply.PublicHex())
	require.Equal(t, uint64(42), f.exchange.lastID)

	// the wrap is addressed to the coordinator
	require.Equal(t, nostr.KindGiftWrap, f.exchange.lastEvent.Kind)
	pTag := f.exchange.lastEvent.Tags.GetFirst([]string{"p"})
	require.NotNil(t, pTag)
	require.Equal(t, f.coordinator.PublicHex(), pTag.Value())

	// the created order landed in the trade table
	require.Len(t, f.trades.saved, 1)
	require.Equal(t, orderID.String(), f.trades.saved[0].orderID)
	require.Equal(t, int64(1), f.trades.saved[0].index)
	require.Equal(t, models.StatusPending, f.trades.saved[0].status)
}

func TestOrderService_TakeSell(t *testing.T) {
	orderID := uuid.New()
	f := newOrderFixture(t, orderResponse(orderID, models.StatusWaitingPayment))

	_, err := f.service.TakeSell(context.Background(), orderID, "lnbc10n1...", nil)
	require.NoError(t, err)

	require.Len(t, f.trades.saved, 1)
	require.Equal(t, orderID.String(), f.trades.saved[0].orderID)
	require.Equal(t, models.StatusActive, f.trades.saved[0].status)
}

func TestOrderService_CantDoResponse(t *testing.T) {
	reason := models.ReasonOutOfRangeSatsAmount
	rejection := &models.Message{CantDo: &models.MessageKind{
		Action:  models.ActionCantDo,
		Payload: &models.Payload{CantDo: &reason},
	}}
	f := newOrderFixture(t, rejection)

	_, err := f.service.TakeBuy(context.Background(), uuid.New(), nil)

	var cantDoErr *CantDoError
	require.ErrorAs(t, err, &cantDoErr)
	require.Equal(t, reason, cantDoErr.Reason)
	require.Empty(t, f.trades.saved, "rejected trades must not be persisted")
}

func TestOrderService_FiatSentReusesTradeKeys(t *testing.T) {
	orderID := uuid.New()
	f := newOrderFixture(t, orderResponse(orderID, models.StatusFiatSent))
	f.trades.snapshots[orderID.String()] = models.TradeSnapshot{
		OrderID:    orderID.String(),
		TradeIndex: 3,
		Status:     models.StatusActive,
	}

	_, err := f.service.FiatSent(context.Background(), orderID)
	require.NoError(t, err)

	wantKeys, err := f.deriver.TradeKeys(3)
	require.NoError(t, err)
	require.Equal(t, wantKeys.PublicHex(), f.exchange.lastReply.PublicHex())
	require.Equal(t, int64(0), f.users.index, "lifecycle actions must not burn trade indexes")
}

func TestOrderService_UnknownOrder(t *testing.T) {
	f := newOrderFixture(t, nil)

	_, err := f.service.Release(context.Background(), uuid.New())
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Zero(t, f.exchange.calls)
}

func TestOrderService_SendTextMessage(t *testing.T) {
	orderID := uuid.New()
	f := newOrderFixture(t, nil)
	peer, err := keyring.GenerateKeys()
	require.NoError(t, err)
	f.trades.snapshots[orderID.String()] = models.TradeSnapshot{
		OrderID:      orderID.String(),
		TradeIndex:   2,
		Status:       models.StatusActive,
		Counterparty: peer.PublicHex(),
	}

	err = f.service.SendTextMessage(context.Background(), orderID, "payment ref is 48213")
	require.NoError(t, err)
	require.Zero(t, f.exchange.calls, "direct messages bypass the coordinator")
	require.Len(t, f.transport.published, 1)

	decoded, err := envelope.Decode(f.transport.published[0], peer)
	require.NoError(t, err)
	inner := decoded.Message.Inner()
	require.Equal(t, models.ActionSendDM, inner.Action)
	require.Equal(t, "payment ref is 48213", *inner.Payload.TextMessage)

	wantKeys, err := f.deriver.TradeKeys(2)
	require.NoError(t, err)
	require.Equal(t, wantKeys.PublicHex(), decoded.Sender)
}

func TestOrderService_SendTextMessageNoCounterparty(t *testing.T) {
	orderID := uuid.New()
	f := newOrderFixture(t, nil)
	f.trades.snapshots[orderID.String()] = models.TradeSnapshot{
		OrderID:    orderID.String(),
		TradeIndex: 2,
		Status:     models.StatusActive,
	}

	err := f.service.SendTextMessage(context.Background(), orderID, "anyone there?")
	require.ErrorIs(t, err, ErrNoCounterparty)
	require.Empty(t, f.transport.published)
}

func TestOrderService_ExchangeFailure(t *testing.T) {
	f := newOrderFixture(t, nil)
	f.exchange.err = errors.New("relay unreachable")
	f.trades.snapshots["11111111-1111-1111-1111-111111111111"] = models.TradeSnapshot{
		TradeIndex: 1,
		Status:     models.StatusActive,
	}

	_, err := f.service.Cancel(context.Background(), uuid.MustParse("11111111-1111-1111-1111-111111111111"))
	require.ErrorContains(t, err, "relay unreachable")
}

package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nbd-wtf/go-nostr"

	"github.com/MostroP2P/mostrix/internal/envelope"
	"github.com/MostroP2P/mostrix/internal/keyring"
	"github.com/MostroP2P/mostrix/internal/logger"
	"github.com/MostroP2P/mostrix/internal/relay"
	"github.com/MostroP2P/mostrix/internal/store"
	"github.com/MostroP2P/mostrix/models"
)

// exchanger is the correlated request/response surface, satisfied by
// *correlate.Correlator.
type exchanger interface {
	Exchange(ctx context.Context, req *nostr.Event, requestID uint64, replyKeys *keyring.Keys) (*models.Message, error)
}

// requestIDSource decouples id generation for tests.
type requestIDSource func() uint64

type orderService struct {
	deriver     *keyring.Deriver
	identity    *keyring.Keys
	transport   relay.Client
	exchange    exchanger
	users       store.UserRepository
	trades      store.TradeRepository
	coordinator string
	opts        envelope.Options
	newRequest  requestIDSource
	log         *logger.Logger
}

func NewOrderService(deriver *keyring.Deriver, identity *keyring.Keys, transport relay.Client, exchange exchanger, users store.UserRepository, trades store.TradeRepository, coordinator string, opts envelope.Options, newRequest requestIDSource, log *logger.Logger) OrderService {
	return &orderService{
		deriver:     deriver,
		identity:    identity,
		transport:   transport,
		exchange:    exchange,
		users:       users,
		trades:      trades,
		coordinator: coordinator,
		opts:        opts,
		newRequest:  newRequest,
		log:         log,
	}
}

// sealIdentity is nil in full-privacy mode: the envelope then carries no
// link to the long-lived key.
func (s *orderService) sealIdentity() *keyring.Keys {
	if s.opts.Mode == envelope.ModeFullPrivacy {
		return nil
	}
	return s.identity
}

// submit wraps msg for the coordinator with the given trade keys, runs the
// exchange and surfaces cant-do rejections as typed errors.
func (s *orderService) submit(ctx context.Context, msg *models.Message, tradeKeys *keyring.Keys, requestID uint64) (*models.Message, error) {
	wrap, err := envelope.Encode(ctx, msg, tradeKeys, s.sealIdentity(), s.coordinator, s.opts)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	resp, err := s.exchange.Exchange(ctx, wrap, requestID, tradeKeys)
	if err != nil {
		return nil, err
	}
	if err = cantDo(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// freshTradeKeys allocates the next trade index and derives its keys.
func (s *orderService) freshTradeKeys(ctx context.Context) (*keyring.Keys, int64, error) {
	index, err := s.users.NextTradeIndex(ctx)
	if err != nil {
		return nil, 0, err
	}
	keys, err := s.deriver.TradeKeys(index)
	if err != nil {
		return nil, 0, err
	}
	return keys, index, nil
}

// tradeKeysFor re-derives the keys of an order we already hold.
func (s *orderService) tradeKeysFor(ctx context.Context, orderID uuid.UUID) (*keyring.Keys, models.TradeSnapshot, error) {
	snap, err := s.trades.GetSnapshot(ctx, orderID.String())
	if err != nil {
		return nil, models.TradeSnapshot{}, err
	}
	keys, err := s.deriver.TradeKeys(snap.TradeIndex)
	if err != nil {
		return nil, models.TradeSnapshot{}, err
	}
	return keys, snap, nil
}

func (s *orderService) NewOrder(ctx context.Context, order models.Order) (*models.Message, error) {
	keys, index, err := s.freshTradeKeys(ctx)
	if err != nil {
		return nil, err
	}
	requestID := s.newRequest()
	msg := models.NewOrderMessage(nil, &requestID, &index, models.ActionNewOrder, &models.Payload{Order: &order})

	resp, err := s.submit(ctx, msg, keys, requestID)
	if err != nil {
		return nil, err
	}

	if inner := resp.Inner(); inner != nil && inner.Payload != nil && inner.Payload.Order != nil && inner.Payload.Order.ID != nil {
		created := inner.Payload.Order
		if err = s.trades.SaveTrade(ctx, created.ID.String(), index, created.Status, &requestID); err != nil {
			s.log.Err(err).Str("order_id", created.ID.String()).Msg("cannot persist created order")
		}
	}
	return resp, nil
}

func (s *orderService) TakeSell(ctx context.Context, orderID uuid.UUID, invoice string, amount *int64) (*models.Message, error) {
	keys, index, err := s.freshTradeKeys(ctx)
	if err != nil {
		return nil, err
	}
	requestID := s.newRequest()
	payload := &models.Payload{PaymentRequest: &models.PaymentRequest{Invoice: invoice, Amount: amount}}
	msg := models.NewOrderMessage(&orderID, &requestID, &index, models.ActionTakeSell, payload)

	resp, err := s.submit(ctx, msg, keys, requestID)
	if err != nil {
		return nil, err
	}
	if err = s.trades.SaveTrade(ctx, orderID.String(), index, models.StatusActive, &requestID); err != nil {
		s.log.Err(err).Str("order_id", orderID.String()).Msg("cannot persist taken order")
	}
	return resp, nil
}

func (s *orderService) TakeBuy(ctx context.Context, orderID uuid.UUID, amount *int64) (*models.Message, error) {
	keys, index, err := s.freshTradeKeys(ctx)
	if err != nil {
		return nil, err
	}
	requestID := s.newRequest()
	var payload *models.Payload
	if amount != nil {
		payload = &models.Payload{Amount: amount}
	}
	msg := models.NewOrderMessage(&orderID, &requestID, &index, models.ActionTakeBuy, payload)

	resp, err := s.submit(ctx, msg, keys, requestID)
	if err != nil {
		return nil, err
	}
	if err = s.trades.SaveTrade(ctx, orderID.String(), index, models.StatusActive, &requestID); err != nil {
		s.log.Err(err).Str("order_id", orderID.String()).Msg("cannot persist taken order")
	}
	return resp, nil
}

func (s *orderService) AddInvoice(ctx context.Context, orderID uuid.UUID, invoice string) (*models.Message, error) {
	keys, _, err := s.tradeKeysFor(ctx, orderID)
	if err != nil {
		return nil, err
	}
	requestID := s.newRequest()
	payload := &models.Payload{PaymentRequest: &models.PaymentRequest{Invoice: invoice}}
	msg := models.NewOrderMessage(&orderID, &requestID, nil, models.ActionAddInvoice, payload)
	return s.submit(ctx, msg, keys, requestID)
}

func (s *orderService) FiatSent(ctx context.Context, orderID uuid.UUID) (*models.Message, error) {
	return s.plainOrderAction(ctx, orderID, models.ActionFiatSent)
}

func (s *orderService) Release(ctx context.Context, orderID uuid.UUID) (*models.Message, error) {
	return s.plainOrderAction(ctx, orderID, models.ActionRelease)
}

func (s *orderService) Cancel(ctx context.Context, orderID uuid.UUID) (*models.Message, error) {
	return s.plainOrderAction(ctx, orderID, models.ActionCancel)
}

func (s *orderService) OpenDispute(ctx context.Context, orderID uuid.UUID) (*models.Message, error) {
	return s.plainOrderAction(ctx, orderID, models.ActionDispute)
}

func (s *orderService) RateCounterparty(ctx context.Context, orderID uuid.UUID, rating int64) (*models.Message, error) {
	keys, _, err := s.tradeKeysFor(ctx, orderID)
	if err != nil {
		return nil, err
	}
	requestID := s.newRequest()
	msg := models.NewOrderMessage(&orderID, &requestID, nil, models.ActionRateUser, &models.Payload{Amount: &rating})
	return s.submit(ctx, msg, keys, requestID)
}

// plainOrderAction covers the payload-less lifecycle transitions.
func (s *orderService) plainOrderAction(ctx context.Context, orderID uuid.UUID, action models.Action) (*models.Message, error) {
	keys, _, err := s.tradeKeysFor(ctx, orderID)
	if err != nil {
		return nil, err
	}
	requestID := s.newRequest()
	msg := models.NewOrderMessage(&orderID, &requestID, nil, action, nil)
	return s.submit(ctx, msg, keys, requestID)
}

// SendTextMessage goes straight to the counterparty's trade key, no
// coordinator and no correlation.
func (s *orderService) SendTextMessage(ctx context.Context, orderID uuid.UUID, text string) error {
	keys, snap, err := s.tradeKeysFor(ctx, orderID)
	if err != nil {
		return err
	}
	if snap.Counterparty == "" {
		return fmt.Errorf("%w: order %s", ErrNoCounterparty, orderID)
	}
	msg := models.NewOrderMessage(&orderID, nil, nil, models.ActionSendDM, &models.Payload{TextMessage: &text})
	wrap, err := envelope.Encode(ctx, msg, keys, s.sealIdentity(), snap.Counterparty, s.opts)
	if err != nil {
		return fmt.Errorf("encode direct message: %w", err)
	}
	return s.transport.Publish(ctx, wrap)
}

package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/MostroP2P/mostrix/internal/envelope"
	"github.com/MostroP2P/mostrix/internal/keyring"
	"github.com/MostroP2P/mostrix/internal/logger"
	"github.com/MostroP2P/mostrix/internal/store"
	"github.com/MostroP2P/mostrix/models"
)

type spyDisputeRepo struct {
	disputes map[string]models.Dispute
	saved    []models.Dispute
	statuses map[string]string
}

func newSpyDisputeRepo() *spyDisputeRepo {
	return &spyDisputeRepo{
		disputes: map[string]models.Dispute{},
		statuses: map[string]string{},
	}
}

func (s *spyDisputeRepo) SaveDispute(_ context.Context, d models.Dispute) error {
	s.saved = append(s.saved, d)
	s.disputes[d.DisputeID] = d
	return nil
}

func (s *spyDisputeRepo) GetDisputes(context.Context) ([]models.Dispute, error) { return nil, nil }

func (s *spyDisputeRepo) GetDispute(_ context.Context, disputeID string) (models.Dispute, error) {
	d, ok := s.disputes[disputeID]
	if !ok {
		return models.Dispute{}, store.ErrNotFound
	}
	return d, nil
}

func (s *spyDisputeRepo) SetDisputeStatus(_ context.Context, disputeID, status string) error {
	s.statuses[disputeID] = status
	return nil
}

type adminFixture struct {
	service     AdminService
	admin       *keyring.Keys
	coordinator *keyring.Keys
	exchange    *spyExchanger
	disputes    *spyDisputeRepo
}

func newAdminFixture(t *testing.T, resp *models.Message) *adminFixture {
	t.Helper()

	admin, err := keyring.GenerateKeys()
	require.NoError(t, err)
	coordinator, err := keyring.GenerateKeys()
	require.NoError(t, err)

	f := &adminFixture{
		admin:       admin,
		coordinator: coordinator,
		exchange:    &spyExchanger{resp: resp},
		disputes:    newSpyDisputeRepo(),
	}
	f.service = NewAdminService(
		admin, f.exchange, f.disputes, coordinator.PublicHex(),
		envelope.Options{Mode: envelope.ModeReputation},
		func() uint64 { return 7 }, logger.Nop(),
	)
	return f
}

// sentRequest decrypts the request the fixture handed to the exchanger, as
// the coordinator would.
func (f *adminFixture) sentRequest(t *testing.T) *models.Message {
	t.Helper()
	decoded, err := envelope.Decode(f.exchange.lastEvent, f.coordinator)
	require.NoError(t, err)
	return decoded.Message
}

func tookDisputeResponse(disputeID, orderID uuid.UUID) *models.Message {
	requestID := uint64(7)
	buyer := "buyerpubkey"
	seller := "sellerpubkey"
	return models.NewDisputeMessage(&disputeID, &requestID, models.ActionAdminTookDispute, &models.Payload{
		Dispute: &models.DisputeRef{ID: disputeID, Info: &models.DisputeInfo{
			ID:              orderID,
			Kind:            models.KindSell,
			Status:          "initiated",
			InitiatorPubkey: buyer,
			BuyerPubkey:     &buyer,
			SellerPubkey:    &seller,
			PaymentMethod:   "SEPA",
			Amount:          21000,
			FiatCode:        "EUR",
			FiatAmount:      100,
		}},
	})
}

func TestAdminService_TakeDispute(t *testing.T) {
	disputeID := uuid.New()
	orderID := uuid.New()
	f := newAdminFixture(t, tookDisputeResponse(disputeID, orderID))

	dispute, err := f.service.TakeDispute(context.Background(), disputeID)
	require.NoError(t, err)

	sent := f.sentRequest(t)
	require.Equal(t, models.ActionAdminTakeDispute, sent.Inner().Action)
	require.Equal(t, disputeID, *sent.Inner().ID)

	require.Equal(t, disputeID.String(), dispute.DisputeID)
	require.Equal(t, orderID.String(), dispute.OrderID)
	require.Equal(t, DisputeStatusInProgress, dispute.Status)
	require.Equal(t, "buyerpubkey", *dispute.BuyerPubkey)
	require.Equal(t, "sellerpubkey", *dispute.SellerPubkey)
	require.Len(t, f.disputes.saved, 1)
}

func TestAdminService_TakeDisputeWithoutContext(t *testing.T) {
	disputeID := uuid.New()
	requestID := uint64(7)
	f := newAdminFixture(t, models.NewDisputeMessage(&disputeID, &requestID, models.ActionAdminTookDispute, nil))

	dispute, err := f.service.TakeDispute(context.Background(), disputeID)
	require.NoError(t, err)

	// no context from the coordinator still yields a trackable record
	require.Equal(t, disputeID.String(), dispute.DisputeID)
	require.Equal(t, DisputeStatusInProgress, dispute.Status)
	require.Empty(t, dispute.OrderID)
}

func TestAdminService_Settle(t *testing.T) {
	disputeID := uuid.New()
	orderID := uuid.New()
	requestID := uint64(7)
	f := newAdminFixture(t, models.NewOrderMessage(&orderID, &requestID, nil, models.ActionAdminSettled, nil))
	f.disputes.disputes[disputeID.String()] = models.Dispute{
		DisputeID: disputeID.String(),
		OrderID:   orderID.String(),
		Status:    DisputeStatusInProgress,
	}

	_, err := f.service.Settle(context.Background(), disputeID.String())
	require.NoError(t, err)

	sent := f.sentRequest(t)
	require.Equal(t, models.ActionAdminSettle, sent.Inner().Action)
	require.Equal(t, orderID, *sent.Inner().ID)
	require.Equal(t, DisputeStatusSettled, f.disputes.statuses[disputeID.String()])
}

func TestAdminService_Cancel(t *testing.T) {
	disputeID := uuid.New()
	orderID := uuid.New()
	requestID := uint64(7)
	f := newAdminFixture(t, models.NewOrderMessage(&orderID, &requestID, nil, models.ActionAdminCanceled, nil))
	f.disputes.disputes[disputeID.String()] = models.Dispute{
		DisputeID: disputeID.String(),
		OrderID:   orderID.String(),
		Status:    DisputeStatusInProgress,
	}

	_, err := f.service.Cancel(context.Background(), disputeID.String())
	require.NoError(t, err)

	sent := f.sentRequest(t)
	require.Equal(t, models.ActionAdminCancel, sent.Inner().Action)
	require.Equal(t, DisputeStatusSellerRefunded, f.disputes.statuses[disputeID.String()])
}

func TestAdminService_ResolveUnknownDispute(t *testing.T) {
	f := newAdminFixture(t, nil)

	_, err := f.service.Settle(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Zero(t, f.exchange.calls)
}

func TestAdminService_CantDoKeepsStatus(t *testing.T) {
	disputeID := uuid.New()
	reason := models.ReasonIsNotYourDispute
	f := newAdminFixture(t, &models.Message{CantDo: &models.MessageKind{
		Action:  models.ActionCantDo,
		Payload: &models.Payload{CantDo: &reason},
	}})
	f.disputes.disputes[disputeID.String()] = models.Dispute{
		DisputeID: disputeID.String(),
		OrderID:   uuid.NewString(),
		Status:    DisputeStatusInProgress,
	}

	_, err := f.service.Cancel(context.Background(), disputeID.String())

	var cantDoErr *CantDoError
	require.ErrorAs(t, err, &cantDoErr)
	require.Equal(t, reason, cantDoErr.Reason)
	require.NotContains(t, f.disputes.statuses, disputeID.String())
}

func TestAdminService_AddSolver(t *testing.T) {
	requestID := uint64(7)
	f := newAdminFixture(t, models.NewDisputeMessage(nil, &requestID, models.ActionAdminAddSolver, nil))

	_, err := f.service.AddSolver(context.Background(), "solverpubkeyhex")
	require.NoError(t, err)

	sent := f.sentRequest(t)
	require.Equal(t, models.ActionAdminAddSolver, sent.Inner().Action)
	require.Equal(t, "solverpubkeyhex", *sent.Inner().Payload.TextMessage)
}

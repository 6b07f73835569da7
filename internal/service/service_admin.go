package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MostroP2P/mostrix/internal/envelope"
	"github.com/MostroP2P/mostrix/internal/keyring"
	"github.com/MostroP2P/mostrix/internal/logger"
	"github.com/MostroP2P/mostrix/internal/store"
	"github.com/MostroP2P/mostrix/models"
)

// Dispute status labels as the coordinator reports them.
const (
	DisputeStatusInProgress     = "in-progress"
	DisputeStatusSellerRefunded = "seller-refunded"
	DisputeStatusSettled        = "settled"
)

type adminService struct {
	admin       *keyring.Keys
	exchange    exchanger
	disputes    store.DisputeRepository
	coordinator string
	opts        envelope.Options
	newRequest  requestIDSource
	log         *logger.Logger
}

func NewAdminService(admin *keyring.Keys, exchange exchanger, disputes store.DisputeRepository, coordinator string, opts envelope.Options, newRequest requestIDSource, log *logger.Logger) AdminService {
	return &adminService{
		admin:       admin,
		exchange:    exchange,
		disputes:    disputes,
		coordinator: coordinator,
		opts:        opts,
		newRequest:  newRequest,
		log:         log,
	}
}

// submit sends a dispute-category message signed end to end by the admin
// identity; arbitrator actions are reputation-bearing by definition.
func (a *adminService) submit(ctx context.Context, msg *models.Message) (*models.Message, error) {
	opts := a.opts
	opts.Mode = envelope.ModeReputation

	inner := msg.Inner()
	wrap, err := envelope.Encode(ctx, msg, a.admin, a.admin, a.coordinator, opts)
	if err != nil {
		return nil, fmt.Errorf("encode admin request: %w", err)
	}
	resp, err := a.exchange.Exchange(ctx, wrap, *inner.RequestID, a.admin)
	if err != nil {
		return nil, err
	}
	if err = cantDo(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (a *adminService) TakeDispute(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	requestID := a.newRequest()
	msg := models.NewDisputeMessage(&disputeID, &requestID, models.ActionAdminTakeDispute, nil)

	resp, err := a.submit(ctx, msg)
	if err != nil {
		return nil, err
	}

	dispute := disputeFromResponse(disputeID, resp)
	if err = a.disputes.SaveDispute(ctx, dispute); err != nil {
		return nil, fmt.Errorf("persist dispute: %w", err)
	}
	return &dispute, nil
}

func (a *adminService) Cancel(ctx context.Context, disputeID string) (*models.Message, error) {
	return a.resolve(ctx, disputeID, models.ActionAdminCancel, DisputeStatusSellerRefunded)
}

func (a *adminService) Settle(ctx context.Context, disputeID string) (*models.Message, error) {
	return a.resolve(ctx, disputeID, models.ActionAdminSettle, DisputeStatusSettled)
}

// resolve sends the admin order action for the dispute's order and records
// the final dispute status locally.
func (a *adminService) resolve(ctx context.Context, disputeID string, action models.Action, finalStatus string) (*models.Message, error) {
	dispute, err := a.disputes.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	orderID, err := uuid.Parse(dispute.OrderID)
	if err != nil {
		return nil, fmt.Errorf("dispute %s order id: %w", disputeID, err)
	}

	requestID := a.newRequest()
	msg := models.NewOrderMessage(&orderID, &requestID, nil, action, nil)
	resp, err := a.submit(ctx, msg)
	if err != nil {
		return nil, err
	}

	if err = a.disputes.SetDisputeStatus(ctx, disputeID, finalStatus); err != nil {
		a.log.Err(err).Str("dispute_id", disputeID).Msg("cannot record dispute resolution")
	}
	return resp, nil
}

func (a *adminService) AddSolver(ctx context.Context, solverPubkey string) (*models.Message, error) {
	requestID := a.newRequest()
	msg := models.NewDisputeMessage(nil, &requestID, models.ActionAdminAddSolver, &models.Payload{TextMessage: &solverPubkey})
	return a.submit(ctx, msg)
}

// disputeFromResponse maps the coordinator's dispute context onto the local
// record. A response without context still yields a usable stub.
func disputeFromResponse(disputeID uuid.UUID, resp *models.Message) models.Dispute {
	dispute := models.Dispute{
		DisputeID: disputeID.String(),
		Status:    DisputeStatusInProgress,
	}
	inner := resp.Inner()
	if inner == nil || inner.Payload == nil || inner.Payload.Dispute == nil {
		return dispute
	}

	ref := inner.Payload.Dispute
	if ref.Info == nil {
		return dispute
	}
	info := ref.Info
	dispute.OrderID = info.ID.String()
	dispute.Kind = string(info.Kind)
	dispute.InitiatorPubkey = info.InitiatorPubkey
	dispute.BuyerPubkey = info.BuyerPubkey
	dispute.SellerPubkey = info.SellerPubkey
	dispute.PaymentMethod = info.PaymentMethod
	dispute.Amount = info.Amount
	dispute.FiatCode = info.FiatCode
	dispute.FiatAmount = info.FiatAmount
	dispute.Premium = info.Premium
	dispute.Fee = info.Fee
	dispute.RoutingFee = info.RoutingFee
	dispute.BuyerInvoice = info.BuyerInvoice
	dispute.TakenAt = info.TakenAt
	dispute.CreatedAt = info.CreatedAt
	return dispute
}

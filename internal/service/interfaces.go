package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/MostroP2P/mostrix/models"
)

// OrderService is every trade operation a regular user can run against the
// coordinator. Each call allocates or reuses the order's trade key, sends
// the wrapped request and waits for the correlated response.
type OrderService interface {
	// NewOrder publishes a buy/sell offer and records the resulting trade.
	NewOrder(ctx context.Context, order models.Order) (*models.Message, error)
	// TakeSell takes a sell order, supplying the lightning invoice sats
	// will be paid to. amount picks a point inside a range order.
	TakeSell(ctx context.Context, orderID uuid.UUID, invoice string, amount *int64) (*models.Message, error)
	// TakeBuy takes a buy order.
	TakeBuy(ctx context.Context, orderID uuid.UUID, amount *int64) (*models.Message, error)
	// AddInvoice supplies the buyer invoice the coordinator asked for.
	AddInvoice(ctx context.Context, orderID uuid.UUID, invoice string) (*models.Message, error)
	// FiatSent tells the coordinator the fiat leg is done.
	FiatSent(ctx context.Context, orderID uuid.UUID) (*models.Message, error)
	// Release releases the sats to the buyer.
	Release(ctx context.Context, orderID uuid.UUID) (*models.Message, error)
	// Cancel asks the coordinator to cancel the order.
	Cancel(ctx context.Context, orderID uuid.UUID) (*models.Message, error)
	// OpenDispute starts a dispute over the order.
	OpenDispute(ctx context.Context, orderID uuid.UUID) (*models.Message, error)
	// RateCounterparty rates the peer after a completed trade, 1 to 5.
	RateCounterparty(ctx context.Context, orderID uuid.UUID, rating int64) (*models.Message, error)
	// SendTextMessage sends a direct message to the trade counterparty.
	SendTextMessage(ctx context.Context, orderID uuid.UUID, text string) error
}

// AdminService is the arbitrator surface: taking and resolving disputes.
type AdminService interface {
	// TakeDispute assigns the dispute to this arbitrator and persists the
	// dispute context the coordinator returns.
	TakeDispute(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error)
	// Cancel resolves the dispute by cancelling the order and refunding
	// the seller.
	Cancel(ctx context.Context, disputeID string) (*models.Message, error)
	// Settle resolves the dispute by paying the hold invoice out to the
	// buyer.
	Settle(ctx context.Context, disputeID string) (*models.Message, error)
	// AddSolver registers another pubkey as a dispute solver.
	AddSolver(ctx context.Context, solverPubkey string) (*models.Message, error)
}

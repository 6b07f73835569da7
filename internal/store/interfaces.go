package store

import (
	"context"

	"github.com/MostroP2P/mostrix/models"
)

// UserRepository owns the single local user row: the seed phrase and the
// monotonic trade index counter.
type UserRepository interface {
	CreateUser(ctx context.Context, mnemonic string) error
	GetMnemonic(ctx context.Context) (string, error)
	GetTradeIndex(ctx context.Context) (int64, error)
	// NextTradeIndex increments the counter read-modify-write inside a
	// transaction and returns the freshly allocated index.
	NextTradeIndex(ctx context.Context) (int64, error)
}

// TradeRepository persists the (order id, trade index) records recovery
// depends on, plus the last reconstructed snapshot per trade.
type TradeRepository interface {
	SaveTrade(ctx context.Context, orderID string, tradeIndex int64, status models.Status, requestID *uint64) error
	GetActiveTrades(ctx context.Context) ([]models.TradeRecord, error)
	ApplySnapshot(ctx context.Context, snap models.TradeSnapshot) error
	GetSnapshot(ctx context.Context, orderID string) (models.TradeSnapshot, error)
}

// DisputeRepository persists disputes the arbitrator has taken.
type DisputeRepository interface {
	SaveDispute(ctx context.Context, d models.Dispute) error
	GetDisputes(ctx context.Context) ([]models.Dispute, error)
	GetDispute(ctx context.Context, disputeID string) (models.Dispute, error)
	SetDisputeStatus(ctx context.Context, disputeID, status string) error
}

// ChatRepository persists per-(dispute, party) fetch cursors and shared
// channel keys.
type ChatRepository interface {
	GetChatCursor(ctx context.Context, disputeID string, party models.ChatParty) (int64, bool, error)
	// SetChatCursor only ever moves the cursor forward; the affected row
	// count tells the caller whether the write took effect.
	SetChatCursor(ctx context.Context, disputeID string, party models.ChatParty, lastSeen int64) (int64, error)
	GetSharedKey(ctx context.Context, disputeID string, party models.ChatParty) (string, bool, error)
	SetSharedKey(ctx context.Context, disputeID string, party models.ChatParty, secretHex string) error
}

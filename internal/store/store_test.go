package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MostroP2P/mostrix/internal/logger"
	"github.com/MostroP2P/mostrix/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewConnectSQLite(context.Background(), ":memory:", logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUserRepository_MnemonicAndTradeIndex(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t), logger.Nop())

	_, err := repo.GetMnemonic(ctx)
	assert.ErrorIs(t, err, ErrNoUser)

	require.NoError(t, repo.CreateUser(ctx, "abandon abandon about"))

	mnemonic, err := repo.GetMnemonic(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abandon abandon about", mnemonic)

	index, err := repo.GetTradeIndex(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, index)

	// allocation is strictly increasing
	for want := int64(1); want <= 4; want++ {
		got, err := repo.NextTradeIndex(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	index, err = repo.GetTradeIndex(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, index)
}

func TestTradeRepository_ActiveTradesAndSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := NewTradeRepository(newTestDB(t), logger.Nop())

	requestID := uint64(99)
	require.NoError(t, repo.SaveTrade(ctx, "order-a", 1, models.StatusPending, &requestID))
	require.NoError(t, repo.SaveTrade(ctx, "order-b", 2, models.StatusActive, nil))
	require.NoError(t, repo.SaveTrade(ctx, "order-c", 3, models.StatusSuccess, nil))

	active, err := repo.GetActiveTrades(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, models.TradeRecord{OrderID: "order-a", TradeIndex: 1}, active[0])
	assert.Equal(t, models.TradeRecord{OrderID: "order-b", TradeIndex: 2}, active[1])

	sats := int64(40000)
	require.NoError(t, repo.ApplySnapshot(ctx, models.TradeSnapshot{
		OrderID:      "order-a",
		Status:       models.StatusFiatSent,
		LastAction:   models.ActionFiatSent,
		Counterparty: "deadbeef",
		SatAmount:    &sats,
		UpdatedAt:    1700000000,
	}))

	snap, err := repo.GetSnapshot(ctx, "order-a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFiatSent, snap.Status)
	assert.Equal(t, models.ActionFiatSent, snap.LastAction)
	assert.Equal(t, "deadbeef", snap.Counterparty)
	require.NotNil(t, snap.SatAmount)
	assert.EqualValues(t, 40000, *snap.SatAmount)
	assert.Nil(t, snap.BuyerInvoice)

	_, err = repo.GetSnapshot(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDisputeRepository_Roundtrip(t *testing.T) {
	ctx := context.Background()
	repo := NewDisputeRepository(newTestDB(t), logger.Nop())

	buyer := "aabb"
	dispute := models.Dispute{
		DisputeID:       "d-1",
		OrderID:         "order-a",
		Kind:            "sell",
		Status:          "initiated",
		InitiatorPubkey: buyer,
		BuyerPubkey:     &buyer,
		PaymentMethod:   "revolut",
		Amount:          21000,
		FiatCode:        "EUR",
		FiatAmount:      10,
		TakenAt:         1700000001,
		CreatedAt:       1700000000,
	}
	require.NoError(t, repo.SaveDispute(ctx, dispute))

	got, err := repo.GetDispute(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, dispute, got)

	require.NoError(t, repo.SetDisputeStatus(ctx, "d-1", "in-progress"))
	got, err = repo.GetDispute(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, "in-progress", got.Status)

	all, err := repo.GetDisputes(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = repo.GetDispute(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChatRepository_CursorIsMonotonic(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepository(newTestDB(t), logger.Nop())

	_, found, err := repo.GetChatCursor(ctx, "d-1", models.PartyBuyer)
	require.NoError(t, err)
	assert.False(t, found)

	affected, err := repo.SetChatCursor(ctx, "d-1", models.PartyBuyer, 100)
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)

	// moving backwards is a no-op reported through the row count
	affected, err = repo.SetChatCursor(ctx, "d-1", models.PartyBuyer, 50)
	require.NoError(t, err)
	assert.EqualValues(t, 0, affected)

	affected, err = repo.SetChatCursor(ctx, "d-1", models.PartyBuyer, 150)
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)

	lastSeen, found, err := repo.GetChatCursor(ctx, "d-1", models.PartyBuyer)
	require.NoError(t, err)
	assert.True(t, found)
	assert.EqualValues(t, 150, lastSeen)

	// the other party has an independent cursor
	_, found, err = repo.GetChatCursor(ctx, "d-1", models.PartySeller)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestChatRepository_SharedKeys(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepository(newTestDB(t), logger.Nop())

	_, found, err := repo.GetSharedKey(ctx, "d-1", models.PartyBuyer)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.SetSharedKey(ctx, "d-1", models.PartyBuyer, "aa01"))
	require.NoError(t, repo.SetSharedKey(ctx, "d-1", models.PartySeller, "bb02"))

	key, found, err := repo.GetSharedKey(ctx, "d-1", models.PartyBuyer)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "aa01", key)

	key, found, err = repo.GetSharedKey(ctx, "d-1", models.PartySeller)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "bb02", key)
}

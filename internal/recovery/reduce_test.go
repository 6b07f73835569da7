package recovery

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MostroP2P/mostrix/internal/envelope"
	"github.com/MostroP2P/mostrix/models"
)

func decodedAt(ts int64, action models.Action, payload *models.Payload) *envelope.Decoded {
	msg := models.NewOrderMessage(nil, nil, nil, action, payload)
	return &envelope.Decoded{Message: msg, Sender: "cafe01", Timestamp: nostr.Timestamp(ts)}
}

func TestReduce_EmptyInput(t *testing.T) {
	_, ok := Reduce(models.TradeRecord{OrderID: "o", TradeIndex: 1}, nil)
	assert.False(t, ok)
}

func TestReduce_LatestMessageWins(t *testing.T) {
	rec := models.TradeRecord{OrderID: "order-a", TradeIndex: 3}
	invoice := "lnbc1..."
	decoded := []*envelope.Decoded{
		decodedAt(100, models.ActionAddInvoice, &models.Payload{
			Order: &models.Order{BuyerInvoice: &invoice},
		}),
		decodedAt(200, models.ActionFiatSent, nil),
	}

	snap, ok := Reduce(rec, decoded)
	require.True(t, ok)
	assert.Equal(t, models.ActionFiatSent, snap.LastAction)
	assert.Equal(t, models.StatusFiatSent, snap.Status)
	assert.EqualValues(t, 200, snap.UpdatedAt)
	// the older message still contributes the invoice the latest one lacks
	require.NotNil(t, snap.BuyerInvoice)
	assert.Equal(t, invoice, *snap.BuyerInvoice)
}

func TestReduce_OrderIndependent(t *testing.T) {
	rec := models.TradeRecord{OrderID: "order-a", TradeIndex: 3}
	a := decodedAt(100, models.ActionBuyerTookOrder, nil)
	b := decodedAt(200, models.ActionRelease, nil)

	forward, ok := Reduce(rec, []*envelope.Decoded{a, b})
	require.True(t, ok)
	backward, ok := Reduce(rec, []*envelope.Decoded{b, a})
	require.True(t, ok)

	assert.Equal(t, forward, backward)
	assert.Equal(t, models.StatusSettledHoldInvoice, forward.Status)
}

func TestReduce_PeerDisclosesCounterparty(t *testing.T) {
	rec := models.TradeRecord{OrderID: "order-a", TradeIndex: 1}
	decoded := []*envelope.Decoded{
		decodedAt(50, models.ActionBuyerTookOrder, &models.Payload{Peer: &models.Peer{Pubkey: "beef02"}}),
	}

	snap, ok := Reduce(rec, decoded)
	require.True(t, ok)
	assert.Equal(t, "beef02", snap.Counterparty)
}

func TestReduce_UnknownLifecycleKeepsStatus(t *testing.T) {
	rec := models.TradeRecord{OrderID: "order-a", TradeIndex: 1}
	decoded := []*envelope.Decoded{
		decodedAt(10, models.ActionBuyerTookOrder, nil),
		decodedAt(20, models.ActionSendDM, nil),
	}

	snap, ok := Reduce(rec, decoded)
	require.True(t, ok)
	assert.Equal(t, models.ActionSendDM, snap.LastAction)
	assert.Equal(t, models.StatusActive, snap.Status)
}

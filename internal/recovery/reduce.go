package recovery

import (
	"github.com/MostroP2P/mostrix/internal/envelope"
	"github.com/MostroP2P/mostrix/models"
)

// Reduce folds the decoded messages of one trade into its current state: the
// latest message wins, earlier ones only contribute fields the latest did
// not carry. Pure function, no I/O.
func Reduce(rec models.TradeRecord, decoded []*envelope.Decoded) (models.TradeSnapshot, bool) {
	snap := models.TradeSnapshot{OrderID: rec.OrderID, TradeIndex: rec.TradeIndex}

	var applied bool
	for _, d := range decoded {
		inner := d.Message.Inner()
		if inner == nil {
			continue
		}
		if applied && int64(d.Timestamp) <= snap.UpdatedAt {
			// older than what we already applied: only fill gaps
			mergeDetails(&snap, inner, d.Sender, false)
			continue
		}
		snap.LastAction = inner.Action
		snap.Status = statusOf(inner.Action, snap.Status)
		snap.UpdatedAt = int64(d.Timestamp)
		mergeDetails(&snap, inner, d.Sender, true)
		applied = true
	}
	return snap, applied
}

// mergeDetails copies payload facts into the snapshot. When overwrite is
// false only empty fields are filled.
func mergeDetails(snap *models.TradeSnapshot, inner *models.MessageKind, sender string, overwrite bool) {
	p := inner.Payload
	if p == nil {
		if overwrite && snap.Counterparty == "" {
			snap.Counterparty = sender
		}
		return
	}
	if p.Peer != nil && (overwrite || snap.Counterparty == "") {
		snap.Counterparty = p.Peer.Pubkey
	}
	if p.Amount != nil && (overwrite || snap.SatAmount == nil) {
		amount := *p.Amount
		snap.SatAmount = &amount
	}
	if p.Order != nil {
		if p.Order.Amount != 0 && (overwrite || snap.SatAmount == nil) {
			amount := p.Order.Amount
			snap.SatAmount = &amount
		}
		if p.Order.BuyerInvoice != nil && (overwrite || snap.BuyerInvoice == nil) {
			invoice := *p.Order.BuyerInvoice
			snap.BuyerInvoice = &invoice
		}
		if p.Order.Status != "" && overwrite {
			snap.Status = p.Order.Status
		}
	}
	if p.PaymentRequest != nil && p.PaymentRequest.Invoice != "" && (overwrite || snap.BuyerInvoice == nil) {
		invoice := p.PaymentRequest.Invoice
		snap.BuyerInvoice = &invoice
	}
}

// statusOf maps a protocol action to the order status it implies. Actions
// that carry no lifecycle meaning keep the current status.
func statusOf(action models.Action, current models.Status) models.Status {
	switch action {
	case models.ActionNewOrder:
		return models.StatusPending
	case models.ActionWaitingSellerToPay, models.ActionPayInvoice:
		return models.StatusWaitingPayment
	case models.ActionWaitingBuyerInvoice, models.ActionAddInvoice:
		return models.StatusWaitingBuyerInvoice
	case models.ActionBuyerTookOrder, models.ActionHoldInvoicePaymentAccepted:
		return models.StatusActive
	case models.ActionFiatSent, models.ActionFiatSentOK:
		return models.StatusFiatSent
	case models.ActionRelease, models.ActionReleased:
		return models.StatusSettledHoldInvoice
	case models.ActionPurchaseCompleted, models.ActionRate, models.ActionRateUser, models.ActionRateReceived:
		return models.StatusSuccess
	case models.ActionCanceled, models.ActionCancel:
		return models.StatusCanceled
	case models.ActionAdminCanceled:
		return models.StatusCanceledByAdmin
	case models.ActionAdminSettled:
		return models.StatusSettledByAdmin
	case models.ActionDispute, models.ActionDisputeInitiatedByYou, models.ActionDisputeInitiatedByPeer:
		return models.StatusDispute
	default:
		return current
	}
}

package models

import (
	"encoding/json"
	"fmt"
)

// Action identifies the protocol operation a message carries. The set is
// closed: unmarshalling an unknown action fails instead of propagating a
// string nobody dispatches on.
type Action string

const (
	ActionNewOrder              Action = "new-order"
	ActionTakeSell              Action = "take-sell"
	ActionTakeBuy               Action = "take-buy"
	ActionPayInvoice            Action = "pay-invoice"
	ActionAddInvoice            Action = "add-invoice"
	ActionWaitingSellerToPay    Action = "waiting-seller-to-pay"
	ActionWaitingBuyerInvoice   Action = "waiting-buyer-invoice"
	ActionBuyerTookOrder        Action = "buyer-took-order"
	ActionHoldInvoicePaymentAccepted Action = "hold-invoice-payment-accepted"
	ActionFiatSent              Action = "fiat-sent"
	ActionFiatSentOK            Action = "fiat-sent-ok"
	ActionRelease               Action = "release"
	ActionReleased              Action = "released"
	ActionCancel                Action = "cancel"
	ActionCanceled              Action = "canceled"
	ActionPurchaseCompleted     Action = "purchase-completed"
	ActionRate                  Action = "rate"
	ActionRateUser              Action = "rate-user"
	ActionRateReceived          Action = "rate-received"
	ActionDispute               Action = "dispute"
	ActionDisputeInitiatedByYou Action = "dispute-initiated-by-you"
	ActionDisputeInitiatedByPeer Action = "dispute-initiated-by-peer"
	ActionAdminCancel           Action = "admin-cancel"
	ActionAdminCanceled         Action = "admin-canceled"
	ActionAdminSettle           Action = "admin-settle"
	ActionAdminSettled          Action = "admin-settled"
	ActionAdminAddSolver        Action = "admin-add-solver"
	ActionAdminTakeDispute      Action = "admin-take-dispute"
	ActionAdminTookDispute      Action = "admin-took-dispute"
	ActionSendDM                Action = "send-dm"
	ActionCantDo                Action = "cant-do"
)

var knownActions = map[Action]struct{}{
	ActionNewOrder: {}, ActionTakeSell: {}, ActionTakeBuy: {},
	ActionPayInvoice: {}, ActionAddInvoice: {},
	ActionWaitingSellerToPay: {}, ActionWaitingBuyerInvoice: {},
	ActionBuyerTookOrder: {}, ActionHoldInvoicePaymentAccepted: {},
	ActionFiatSent: {}, ActionFiatSentOK: {},
	ActionRelease: {}, ActionReleased: {},
	ActionCancel: {}, ActionCanceled: {}, ActionPurchaseCompleted: {},
	ActionRate: {}, ActionRateUser: {}, ActionRateReceived: {},
	ActionDispute: {}, ActionDisputeInitiatedByYou: {}, ActionDisputeInitiatedByPeer: {},
	ActionAdminCancel: {}, ActionAdminCanceled: {},
	ActionAdminSettle: {}, ActionAdminSettled: {},
	ActionAdminAddSolver: {}, ActionAdminTakeDispute: {}, ActionAdminTookDispute: {},
	ActionSendDM: {}, ActionCantDo: {},
}

// Valid reports whether a is part of the protocol action set.
func (a Action) Valid() bool {
	_, ok := knownActions[a]
	return ok
}

// UnmarshalJSON implements json.Unmarshaler and rejects unknown actions.
func (a *Action) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if !Action(s).Valid() {
		return fmt.Errorf("unknown action %q", s)
	}
	*a = Action(s)
	return nil
}

// Title returns a short operator-facing label for notifications.
func (a Action) Title() string {
	switch a {
	case ActionAddInvoice:
		return "Invoice Request"
	case ActionPayInvoice:
		return "Payment Request"
	case ActionTakeSell:
		return "Take Sell"
	case ActionTakeBuy:
		return "Take Buy"
	case ActionFiatSent:
		return "Fiat Sent"
	case ActionFiatSentOK:
		return "Fiat Received"
	case ActionRelease, ActionReleased:
		return "Release"
	case ActionDispute, ActionDisputeInitiatedByYou:
		return "Dispute"
	case ActionWaitingSellerToPay:
		return "Waiting for Seller to Pay"
	case ActionRate, ActionRateReceived:
		return "Rate Counterparty"
	default:
		return "New Message"
	}
}

package models

// CantDoReason is the coordinator's rejection code attached to a cant-do
// response.
type CantDoReason string

const (
	ReasonInvalidSignature      CantDoReason = "invalid-signature"
	ReasonInvalidTradeIndex     CantDoReason = "invalid-trade-index"
	ReasonInvalidAmount         CantDoReason = "invalid-amount"
	ReasonInvalidInvoice        CantDoReason = "invalid-invoice"
	ReasonInvalidPaymentRequest CantDoReason = "invalid-payment-request"
	ReasonInvalidPeer           CantDoReason = "invalid-peer"
	ReasonInvalidRating         CantDoReason = "invalid-rating"
	ReasonInvalidTextMessage    CantDoReason = "invalid-text-message"
	ReasonInvalidOrderKind      CantDoReason = "invalid-order-kind"
	ReasonInvalidOrderStatus    CantDoReason = "invalid-order-status"
	ReasonInvalidPubkey         CantDoReason = "invalid-pubkey"
	ReasonInvalidParameters     CantDoReason = "invalid-parameters"
	ReasonOrderAlreadyCanceled  CantDoReason = "order-already-canceled"
	ReasonCantCreateUser        CantDoReason = "cant-create-user"
	ReasonIsNotYourOrder        CantDoReason = "is-not-your-order"
	ReasonNotAllowedByStatus    CantDoReason = "not-allowed-by-status"
	ReasonOutOfRangeFiatAmount  CantDoReason = "out-of-range-fiat-amount"
	ReasonOutOfRangeSatsAmount  CantDoReason = "out-of-range-sats-amount"
	ReasonIsNotYourDispute      CantDoReason = "is-not-your-dispute"
	ReasonDisputeTakenByAdmin   CantDoReason = "dispute-taken-by-admin"
	ReasonDisputeCreationError  CantDoReason = "dispute-creation-error"
	ReasonNotFound              CantDoReason = "not-found"
	ReasonInvalidDisputeStatus  CantDoReason = "invalid-dispute-status"
	ReasonInvalidAction         CantDoReason = "invalid-action"
	ReasonPendingOrderExists    CantDoReason = "pending-order-exists"
	ReasonInvalidFiatCurrency   CantDoReason = "invalid-fiat-currency"
	ReasonTooManyRequests       CantDoReason = "too-many-requests"
)

var cantDoDescriptions = map[CantDoReason]string{
	ReasonInvalidSignature:      "Invalid signature - authentication failed",
	ReasonInvalidTradeIndex:     "Invalid trade index - please try again",
	ReasonInvalidAmount:         "Invalid amount - check your order values",
	ReasonInvalidInvoice:        "Invalid invoice - please provide a valid lightning invoice",
	ReasonInvalidPaymentRequest: "Invalid payment request",
	ReasonInvalidPeer:           "Invalid peer information",
	ReasonInvalidRating:         "Invalid rating value",
	ReasonInvalidTextMessage:    "Invalid text message",
	ReasonInvalidOrderKind:      "Invalid order kind - must be 'buy' or 'sell'",
	ReasonInvalidOrderStatus:    "Invalid order status",
	ReasonInvalidPubkey:         "Invalid public key",
	ReasonInvalidParameters:     "Invalid parameters - check your order details",
	ReasonOrderAlreadyCanceled:  "Order is already canceled",
	ReasonCantCreateUser:        "Cannot create user - please contact support",
	ReasonIsNotYourOrder:        "This is not your order",
	ReasonNotAllowedByStatus:    "Action not allowed - order status prevents this operation",
	ReasonOutOfRangeFiatAmount:  "Fiat amount is out of acceptable range",
	ReasonOutOfRangeSatsAmount:  "Satoshis amount is out of acceptable range",
	ReasonIsNotYourDispute:      "This is not your dispute",
	ReasonDisputeTakenByAdmin:   "Dispute has been taken over by an administrator",
	ReasonDisputeCreationError:  "Cannot create dispute for this order",
	ReasonNotFound:              "Resource not found",
	ReasonInvalidDisputeStatus:  "Invalid dispute status",
	ReasonInvalidAction:         "Invalid action for current state",
	ReasonPendingOrderExists:    "You already have a pending order - please complete or cancel it first",
	ReasonInvalidFiatCurrency:   "Invalid fiat currency - currency not supported or specify a fixed rate",
	ReasonTooManyRequests:       "Too many requests - please wait and try again",
}

// Description maps the wire code to an operator-readable sentence.
func (r CantDoReason) Description() string {
	if d, ok := cantDoDescriptions[r]; ok {
		return d
	}
	return "Unknown error - the coordinator couldn't process your request"
}

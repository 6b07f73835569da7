package models

import (
	"github.com/google/uuid"
)

// OrderKind is the side of the order book an order sits on.
type OrderKind string

const (
	KindBuy  OrderKind = "buy"
	KindSell OrderKind = "sell"
)

// Status is the coordinator-side lifecycle state of an order.
type Status string

const (
	StatusPending           Status = "pending"
	StatusActive            Status = "active"
	StatusWaitingPayment    Status = "waiting-payment"
	StatusWaitingBuyerInvoice Status = "waiting-buyer-invoice"
	StatusFiatSent          Status = "fiat-sent"
	StatusSettledHoldInvoice Status = "settled-hold-invoice"
	StatusSuccess           Status = "success"
	StatusDispute           Status = "dispute"
	StatusCanceled          Status = "canceled"
	StatusCanceledByAdmin   Status = "canceled-by-admin"
	StatusSettledByAdmin    Status = "settled-by-admin"
	StatusExpired           Status = "expired"
)

// Order is the public order-book entry exchanged with the coordinator.
// A zero fiat amount with min/max set denotes a range order.
type Order struct {
	ID            *uuid.UUID `json:"id,omitempty"`
	Kind          OrderKind  `json:"kind,omitempty"`
	Status        Status     `json:"status,omitempty"`
	Amount        int64      `json:"amount"`
	FiatCode      string     `json:"fiat_code"`
	MinAmount     *int64     `json:"min_amount,omitempty"`
	MaxAmount     *int64     `json:"max_amount,omitempty"`
	FiatAmount    int64      `json:"fiat_amount"`
	PaymentMethod string     `json:"payment_method"`
	Premium       int64      `json:"premium"`
	BuyerInvoice  *string    `json:"buyer_invoice,omitempty"`
	CreatedAt     int64      `json:"created_at,omitempty"`
	ExpiresAt     *int64     `json:"expires_at,omitempty"`
}

// IsRange reports whether the order carries a min/max fiat range instead of
// a fixed fiat amount.
func (o *Order) IsRange() bool {
	return o.MinAmount != nil && o.MaxAmount != nil
}

// TradeRecord links a locally stored order to the derivation index of the
// ephemeral key it was created with. (orderID, index) pairs are the only
// secret-free state needed to recover a trade after restart.
type TradeRecord struct {
	OrderID    string
	TradeIndex int64
}

// TradeSnapshot is the reconstructed state of a trade after replaying the
// latest decodable relay message addressed to its trade key.
type TradeSnapshot struct {
	OrderID      string
	TradeIndex   int64
	LastAction   Action
	Status       Status
	Counterparty string // hex pubkey, when the last message disclosed one
	SatAmount    *int64
	BuyerInvoice *string
	UpdatedAt    int64
}

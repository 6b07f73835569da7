package models

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

var errPayloadShape = errors.New("malformed payload")

// PaymentRequest is the (order, invoice, amount) triple sent when taking a
// buy order. It is serialized as a three-element JSON array on the wire.
type PaymentRequest struct {
	Order   *Order
	Invoice string
	Amount  *int64
}

// MarshalJSON implements json.Marshaler using the wire tuple form.
func (p PaymentRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]any{p.Order, p.Invoice, p.Amount})
}

// UnmarshalJSON implements json.Unmarshaler for the wire tuple form.
func (p *PaymentRequest) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return errPayloadShape
	}
	if err := json.Unmarshal(raw[0], &p.Order); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[1], &p.Invoice); err != nil {
		return err
	}
	return json.Unmarshal(raw[2], &p.Amount)
}

// DisputeInfo is the dispute context the coordinator hands to the arbitrator
// who takes a dispute.
type DisputeInfo struct {
	ID                  uuid.UUID `json:"id"`
	Kind                OrderKind `json:"kind,omitempty"`
	Status              string    `json:"status,omitempty"`
	Hash                *string   `json:"hash,omitempty"`
	Preimage            *string   `json:"preimage,omitempty"`
	OrderPreviousStatus string    `json:"order_previous_status,omitempty"`
	InitiatorPubkey     string    `json:"initiator_pubkey"`
	BuyerPubkey         *string   `json:"buyer_pubkey,omitempty"`
	SellerPubkey        *string   `json:"seller_pubkey,omitempty"`
	Premium             int64     `json:"premium"`
	PaymentMethod       string    `json:"payment_method"`
	Amount              int64     `json:"amount"`
	FiatCode            string    `json:"fiat_code"`
	FiatAmount          int64     `json:"fiat_amount"`
	Fee                 int64     `json:"fee"`
	RoutingFee          int64     `json:"routing_fee"`
	BuyerInvoice        *string   `json:"buyer_invoice,omitempty"`
	TakenAt             int64     `json:"taken_at"`
	CreatedAt           int64     `json:"created_at"`
}

// DisputeRef pairs a dispute id with its optional context. Serialized as
// [id, info] on the wire.
type DisputeRef struct {
	ID   uuid.UUID
	Info *DisputeInfo
}

// MarshalJSON implements json.Marshaler using the wire tuple form.
func (d DisputeRef) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{d.ID, d.Info})
}

// UnmarshalJSON implements json.Unmarshaler for the wire tuple form.
func (d *DisputeRef) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) < 1 {
		return errPayloadShape
	}
	if err := json.Unmarshal(raw[0], &d.ID); err != nil {
		return err
	}
	if len(raw) > 1 {
		return json.Unmarshal(raw[1], &d.Info)
	}
	return nil
}

// Peer discloses a counterparty trade pubkey.
type Peer struct {
	Pubkey string `json:"pubkey"`
}

// Payload is the closed union of message bodies. Exactly one field is
// non-nil; the JSON key doubles as the variant tag.
type Payload struct {
	Order          *Order          `json:"order,omitempty"`
	PaymentRequest *PaymentRequest `json:"payment_request,omitempty"`
	Amount         *int64          `json:"amount,omitempty"`
	TextMessage    *string         `json:"text_message,omitempty"`
	Dispute        *DisputeRef     `json:"dispute,omitempty"`
	Peer           *Peer           `json:"peer,omitempty"`
	CantDo         *CantDoReason   `json:"cant_do,omitempty"`
}

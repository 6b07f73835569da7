package models

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

// protocol version carried in every message
const messageVersion = 1

// MessageKind is the inner body of a protocol message: the operation, its
// correlation metadata and the optional payload.
type MessageKind struct {
	Version    int        `json:"version"`
	RequestID  *uint64    `json:"request_id,omitempty"`
	TradeIndex *int64     `json:"trade_index,omitempty"`
	ID         *uuid.UUID `json:"id,omitempty"`
	Action     Action     `json:"action"`
	Payload    *Payload   `json:"payload,omitempty"`
}

// Message is the top-level protocol envelope payload. The category key
// ("order", "dispute", ...) mirrors the wire format; exactly one is set.
type Message struct {
	Order   *MessageKind `json:"order,omitempty"`
	Dispute *MessageKind `json:"dispute,omitempty"`
	CantDo  *MessageKind `json:"cant_do,omitempty"`
	Rate    *MessageKind `json:"rate,omitempty"`
}

var ErrEmptyMessage = errors.New("message has no inner kind")

// Inner returns whichever category body is present.
func (m *Message) Inner() *MessageKind {
	switch {
	case m.Order != nil:
		return m.Order
	case m.Dispute != nil:
		return m.Dispute
	case m.CantDo != nil:
		return m.CantDo
	case m.Rate != nil:
		return m.Rate
	default:
		return nil
	}
}

// JSON returns the canonical serialized form, the byte string that
// message-level signatures are computed over.
func (m *Message) JSON() ([]byte, error) {
	if m.Inner() == nil {
		return nil, ErrEmptyMessage
	}
	return json.Marshal(m)
}

// ParseMessage decodes a canonical message and rejects bodies with no
// category set.
func ParseMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Inner() == nil {
		return nil, ErrEmptyMessage
	}
	return &m, nil
}

// NewOrderMessage builds an order-category message.
func NewOrderMessage(id *uuid.UUID, requestID *uint64, tradeIndex *int64, action Action, payload *Payload) *Message {
	return &Message{Order: &MessageKind{
		Version:    messageVersion,
		RequestID:  requestID,
		TradeIndex: tradeIndex,
		ID:         id,
		Action:     action,
		Payload:    payload,
	}}
}

// NewDisputeMessage builds a dispute-category message.
func NewDisputeMessage(id *uuid.UUID, requestID *uint64, action Action, payload *Payload) *Message {
	return &Message{Dispute: &MessageKind{
		Version:   messageVersion,
		RequestID: requestID,
		ID:        id,
		Action:    action,
		Payload:   payload,
	}}
}

// CantDoOf extracts the rejection reason when the message is a cant-do
// response, in either the category or the payload position.
func (m *Message) CantDoOf() (CantDoReason, bool) {
	inner := m.Inner()
	if inner == nil {
		return "", false
	}
	if inner.Payload != nil && inner.Payload.CantDo != nil {
		return *inner.Payload.CantDo, true
	}
	if m.CantDo != nil {
		return "", true
	}
	return "", false
}

package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ChatParty is the dispute side a private chat channel belongs to.
type ChatParty string

const (
	PartyBuyer  ChatParty = "buyer"
	PartySeller ChatParty = "seller"
)

// ParseChatParty validates a stored party label.
func ParseChatParty(s string) (ChatParty, error) {
	switch ChatParty(s) {
	case PartyBuyer, PartySeller:
		return ChatParty(s), nil
	}
	return "", fmt.Errorf("unknown chat party %q", s)
}

// ChatSender is who authored a chat line: the arbitrator or one of the
// disputing parties.
type ChatSender string

const (
	SenderAdmin  ChatSender = "admin"
	SenderBuyer  ChatSender = "buyer"
	SenderSeller ChatSender = "seller"
)

// ChatMessage is one line of a dispute conversation.
type ChatMessage struct {
	Sender     ChatSender
	Content    string
	Timestamp  int64
	Attachment *ChatAttachment
}

// ChatAttachment references an encrypted blob sent through the chat. The
// content of an attachment message is this struct as JSON; the blob itself
// lives on a media server.
type ChatAttachment struct {
	BlossomURL    string `json:"blossom_url"`
	Filename      string `json:"filename"`
	MimeType      string `json:"mime_type,omitempty"`
	DecryptionKey string `json:"decryption_key,omitempty"` // hex, optional
}

// ParseChatAttachment interprets a chat line as an attachment reference.
// Returns false for ordinary text.
func ParseChatAttachment(content string) (*ChatAttachment, bool) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	var att ChatAttachment
	if err := json.Unmarshal([]byte(trimmed), &att); err != nil {
		return nil, false
	}
	if att.BlossomURL == "" {
		return nil, false
	}
	return &att, true
}

// ChatCursor is the per-(dispute, party) incremental fetch position:
// the highest inner-event timestamp of any fully applied batch.
type ChatCursor struct {
	DisputeID string
	Party     ChatParty
	LastSeen  int64
}

// Dispute is the locally persisted record of a dispute the arbitrator has
// taken.
type Dispute struct {
	OrderID         string
	DisputeID       string
	Kind            string
	Status          string
	InitiatorPubkey string
	BuyerPubkey     *string
	SellerPubkey    *string
	PaymentMethod   string
	Amount          int64
	FiatCode        string
	FiatAmount      int64
	Premium         int64
	Fee             int64
	RoutingFee      int64
	BuyerInvoice    *string
	TakenAt         int64
	CreatedAt       int64
}

// PartyPubkey returns the trade pubkey of the given side, when known.
func (d *Dispute) PartyPubkey(p ChatParty) (string, bool) {
	switch p {
	case PartyBuyer:
		if d.BuyerPubkey != nil && *d.BuyerPubkey != "" {
			return *d.BuyerPubkey, true
		}
	case PartySeller:
		if d.SellerPubkey != nil && *d.SellerPubkey != "" {
			return *d.SellerPubkey, true
		}
	}
	return "", false
}

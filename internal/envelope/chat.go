package envelope

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip44"

	"github.com/MostroP2P/mostrix/internal/keyring"
)

// Chat wrap errors. Non-fatal like the envelope decode errors.
var (
	ErrChatDecrypt   = errors.New("cannot decrypt chat wrap")
	ErrMalformedChat = errors.New("malformed chat inner event")
	ErrChatSignature = errors.New("invalid chat inner signature")
)

// ChatDecoded is one plaintext chat line recovered from a shared channel.
type ChatDecoded struct {
	// Sender is the inner event author: a party's trade key or the admin's
	// identity key.
	Sender    string
	Content   string
	Timestamp nostr.Timestamp
}

// EncodeChat wraps a chat line for a shared dispute channel. The inner
// kind-1 event is signed by the sender so parties can attribute lines; the
// outer wrap is signed by a throwaway key and addressed to the shared
// public key, which is all a relay ever sees.
func EncodeChat(content string, sender *keyring.Keys, sharedPub string) (*nostr.Event, error) {
	inner := nostr.Event{
		CreatedAt: nostr.Now(),
		Kind:      nostr.KindTextNote,
		Tags:      nostr.Tags{},
		Content:   content,
	}
	if err := inner.Sign(sender.SecretHex()); err != nil {
		return nil, fmt.Errorf("sign chat message: %w", err)
	}

	oneTimeSecret := nostr.GeneratePrivateKey()
	ciphertext, err := closeLayer(&inner, oneTimeSecret, sharedPub)
	if err != nil {
		return nil, fmt.Errorf("encrypt chat message: %w", err)
	}
	wrap := nostr.Event{
		CreatedAt: skewedNow(),
		Kind:      nostr.KindGiftWrap,
		Tags:      nostr.Tags{{"p", sharedPub}},
		Content:   ciphertext,
	}
	if err = wrap.Sign(oneTimeSecret); err != nil {
		return nil, fmt.Errorf("sign chat wrap: %w", err)
	}
	return &wrap, nil
}

// DecodeChat opens a shared-channel wrap with the shared secret key.
func DecodeChat(ev *nostr.Event, shared *keyring.Keys) (*ChatDecoded, error) {
	if ev.Kind != nostr.KindGiftWrap {
		return nil, ErrNotGiftWrap
	}
	conversationKey, err := nip44.GenerateConversationKey(ev.PubKey, shared.SecretHex())
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrChatDecrypt, err)
	}
	plaintext, err := nip44.Decrypt(ev.Content, conversationKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrChatDecrypt, err)
	}

	var inner nostr.Event
	if err = json.Unmarshal([]byte(plaintext), &inner); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedChat, err)
	}
	if inner.Kind != nostr.KindTextNote || inner.PubKey == "" {
		return nil, ErrMalformedChat
	}
	if ok, err := inner.CheckSignature(); err != nil || !ok {
		return nil, ErrChatSignature
	}
	return &ChatDecoded{
		Sender:    inner.PubKey,
		Content:   inner.Content,
		Timestamp: inner.CreatedAt,
	}, nil
}

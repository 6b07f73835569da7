// Package envelope implements the three-layer encrypted wrapping of protocol
// messages: an unsigned rumor carrying the payload, a NIP-44 encrypted seal,
// and an outer gift wrap signed by a disposable one-time key.
//
// Decode failures are typed, non-fatal errors. Relay streams routinely carry
// events addressed to keys this process no longer holds, so listener loops
// log and skip instead of aborting.
package envelope

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip13"
	"github.com/nbd-wtf/go-nostr/nip44"

	"github.com/MostroP2P/mostrix/internal/keyring"
	"github.com/MostroP2P/mostrix/models"
)

// Mode selects how the seal layer is keyed.
type Mode int

const (
	// ModeReputation signs the seal with the long-lived identity key and adds
	// a message-level signature by the trade key, linking the message to the
	// sender's reputation.
	ModeReputation Mode = iota
	// ModeFullPrivacy signs the seal with the trade key itself; no
	// message-level signature, no linkage to the identity key.
	ModeFullPrivacy
)

// MaxTimestampSkew is how many seconds the seal and wrap timestamps may be
// pushed back so relay metadata does not reveal send times. Subscription
// `since` filters must reach at least this far behind the wall clock or
// they will miss freshly published wraps.
const MaxTimestampSkew = 2 * 24 * 60 * 60

// Decode errors. All non-fatal: log and skip the event.
var (
	ErrNotGiftWrap      = errors.New("event is not a gift wrap")
	ErrWrapDecrypt      = errors.New("cannot decrypt wrap layer")
	ErrMalformedSeal    = errors.New("malformed seal event")
	ErrSealSignature    = errors.New("invalid seal signature")
	ErrSealDecrypt      = errors.New("cannot decrypt seal layer")
	ErrMalformedRumor   = errors.New("malformed rumor event")
	ErrAuthorMismatch   = errors.New("seal and rumor authors differ")
	ErrMessageSignature = errors.New("invalid message signature")
	ErrMalformedMessage = errors.New("malformed message payload")
)

// Options tune the outgoing wrap.
type Options struct {
	Mode Mode
	// PoW is the proof-of-work difficulty mined into the wrap event id.
	// Zero disables mining.
	PoW int
}

// Decoded is the result of unwrapping an incoming envelope.
type Decoded struct {
	Message *models.Message
	// Sender is the rumor author: the counterparty's trade public key.
	Sender    string
	Timestamp nostr.Timestamp
}

// Encode wraps msg for the recipient. The trade keys author the rumor; in
// reputation mode identity must be non-nil and signs the seal, and the trade
// key signs the message itself. The returned event is ready to publish.
func Encode(ctx context.Context, msg *models.Message, trade, identity *keyring.Keys, recipientPub string, opts Options) (*nostr.Event, error) {
	sealKeys := trade
	var sigHex string
	switch opts.Mode {
	case ModeReputation:
		if identity == nil {
			return nil, errors.New("reputation mode requires identity keys")
		}
		sealKeys = identity
		signed, err := signMessage(msg, trade)
		if err != nil {
			return nil, err
		}
		sigHex = signed
	case ModeFullPrivacy:
	default:
		return nil, fmt.Errorf("unknown privacy mode %d", opts.Mode)
	}

	content, err := rumorContent(msg, sigHex)
	if err != nil {
		return nil, err
	}

	rumor := nostr.Event{
		PubKey:    trade.PublicHex(),
		CreatedAt: nostr.Now(),
		Kind:      nostr.KindTextNote,
		Tags:      nostr.Tags{},
		Content:   content,
	}
	rumor.ID = rumor.GetID()

	seal, err := sealRumor(&rumor, sealKeys, recipientPub)
	if err != nil {
		return nil, err
	}
	return wrapSeal(ctx, seal, recipientPub, opts.PoW)
}

// Decode unwraps a gift wrap addressed to the given keys.
func Decode(ev *nostr.Event, recipient *keyring.Keys) (*Decoded, error) {
	if ev.Kind != nostr.KindGiftWrap {
		return nil, ErrNotGiftWrap
	}

	seal, err := openLayer(ev.Content, ev.PubKey, recipient)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWrapDecrypt, err)
	}
	if seal.Kind != nostr.KindSeal {
		return nil, ErrMalformedSeal
	}
	if ok, err := seal.CheckSignature(); err != nil || !ok {
		return nil, ErrSealSignature
	}

	rumor, err := openLayer(seal.Content, seal.PubKey, recipient)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSealDecrypt, err)
	}
	if rumor.Kind != nostr.KindTextNote || rumor.PubKey == "" {
		return nil, ErrMalformedRumor
	}

	raw, sigHex, err := splitRumorContent(rumor.Content)
	if err != nil {
		return nil, err
	}
	if sigHex == "" {
		// Full privacy: with no message signature the seal author must be
		// the rumor author, otherwise anyone could impersonate the sender.
		if seal.PubKey != rumor.PubKey {
			return nil, ErrAuthorMismatch
		}
	} else if err = verifyMessage(raw, sigHex, rumor.PubKey); err != nil {
		return nil, err
	}

	msg, err := models.ParseMessage(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedMessage, err)
	}
	return &Decoded{Message: msg, Sender: rumor.PubKey, Timestamp: rumor.CreatedAt}, nil
}

// rumorContent serializes the two-element wire array [message, sig-or-null].
func rumorContent(msg *models.Message, sigHex string) (string, error) {
	raw, err := msg.JSON()
	if err != nil {
		return "", err
	}
	sig := json.RawMessage("null")
	if sigHex != "" {
		if sig, err = json.Marshal(sigHex); err != nil {
			return "", err
		}
	}
	content, err := json.Marshal([]json.RawMessage{raw, sig})
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func splitRumorContent(content string) (raw []byte, sigHex string, err error) {
	var parts []json.RawMessage
	if err = json.Unmarshal([]byte(content), &parts); err != nil || len(parts) != 2 {
		return nil, "", ErrMalformedRumor
	}
	var sig *string
	if err = json.Unmarshal(parts[1], &sig); err != nil {
		return nil, "", ErrMalformedRumor
	}
	if sig != nil {
		sigHex = *sig
	}
	return parts[0], sigHex, nil
}

// signMessage computes the message-level schnorr signature over the SHA-256
// digest of the canonical message JSON.
func signMessage(msg *models.Message, trade *keyring.Keys) (string, error) {
	raw, err := msg.JSON()
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256(raw)
	sig, err := schnorr.Sign(trade.Priv(), digest[:])
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}
	return hex.EncodeToString(sig.Serialize()), nil
}

func verifyMessage(raw []byte, sigHex, authorPub string) error {
	sigBytes, err := hex.DecodeString(sigHex)
	if err != nil {
		return ErrMessageSignature
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return ErrMessageSignature
	}
	pubBytes, err := hex.DecodeString(authorPub)
	if err != nil || len(pubBytes) != 32 {
		return ErrMessageSignature
	}
	pub, err := schnorr.ParsePubKey(pubBytes)
	if err != nil {
		return ErrMessageSignature
	}
	digest := sha256.Sum256(raw)
	if !sig.Verify(digest[:], pub) {
		return ErrMessageSignature
	}
	return nil
}

// sealRumor NIP-44 encrypts the rumor to the recipient and signs the seal.
func sealRumor(rumor *nostr.Event, signer *keyring.Keys, recipientPub string) (*nostr.Event, error) {
	ciphertext, err := closeLayer(rumor, signer.SecretHex(), recipientPub)
	if err != nil {
		return nil, fmt.Errorf("seal rumor: %w", err)
	}
	seal := nostr.Event{
		CreatedAt: skewedNow(),
		Kind:      nostr.KindSeal,
		Tags:      nostr.Tags{},
		Content:   ciphertext,
	}
	if err = seal.Sign(signer.SecretHex()); err != nil {
		return nil, fmt.Errorf("sign seal: %w", err)
	}
	return &seal, nil
}

// wrapSeal encrypts the seal under a disposable key and signs the outer
// kind-1059 event with it, optionally mining proof of work into the id.
func wrapSeal(ctx context.Context, seal *nostr.Event, recipientPub string, pow int) (*nostr.Event, error) {
	oneTimeSecret := nostr.GeneratePrivateKey()
	ciphertext, err := closeLayer(seal, oneTimeSecret, recipientPub)
	if err != nil {
		return nil, fmt.Errorf("wrap seal: %w", err)
	}
	wrap := nostr.Event{
		CreatedAt: skewedNow(),
		Kind:      nostr.KindGiftWrap,
		Tags:      nostr.Tags{{"p", recipientPub}},
		Content:   ciphertext,
	}
	if pow > 0 {
		nonceTag, err := nip13.DoWork(ctx, wrap, pow)
		if err != nil {
			return nil, fmt.Errorf("mine wrap pow: %w", err)
		}
		wrap.Tags = append(wrap.Tags, nonceTag)
	}
	if err = wrap.Sign(oneTimeSecret); err != nil {
		return nil, fmt.Errorf("sign wrap: %w", err)
	}
	return &wrap, nil
}

// closeLayer serializes an event and NIP-44 encrypts it between the given
// secret key and recipient public key.
func closeLayer(ev *nostr.Event, secretHex, recipientPub string) (string, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}
	conversationKey, err := nip44.GenerateConversationKey(recipientPub, secretHex)
	if err != nil {
		return "", err
	}
	return nip44.Encrypt(string(raw), conversationKey)
}

// openLayer reverses closeLayer using the recipient's secret key and the
// layer author's public key.
func openLayer(ciphertext, authorPub string, recipient *keyring.Keys) (*nostr.Event, error) {
	conversationKey, err := nip44.GenerateConversationKey(authorPub, recipient.SecretHex())
	if err != nil {
		return nil, err
	}
	plaintext, err := nip44.Decrypt(ciphertext, conversationKey)
	if err != nil {
		return nil, err
	}
	var ev nostr.Event
	if err = json.Unmarshal([]byte(plaintext), &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func skewedNow() nostr.Timestamp {
	return nostr.Now() - nostr.Timestamp(rand.Int64N(MaxTimestampSkew))
}

// Package keyring derives every key the client uses from a single BIP-39
// mnemonic: the long-lived identity keypair, one ephemeral keypair per
// trade, and ECDH shared keys for dispute chat channels.
//
// Derivation is deterministic, so the mnemonic plus a trade index counter is
// sufficient to regenerate all secret material after a restart; nothing else
// has to be stored.
package keyring

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"
)

const (
	// purpose' / coin' per NIP-06, account' is the order event kind so trade
	// keys live in their own subtree: m/44'/1237'/38383'/<index>/0
	purposeIndex = 44
	coinIndex    = 1237
	accountIndex = 38383

	// IdentityIndex is the derivation index of the long-lived identity key.
	IdentityIndex = 0
)

var (
	// ErrInvalidMnemonic is fatal: without a valid seed no key exists.
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	// ErrInvalidPublicKey marks a malformed remote key; not retryable.
	ErrInvalidPublicKey = errors.New("invalid public key")
)

// Keys is a secp256k1 keypair in the x-only form the relay protocol uses.
type Keys struct {
	priv *btcec.PrivateKey
}

// GenerateKeys returns a fresh random keypair, used for disposable
// one-time wrap signers.
func GenerateKeys() (*Keys, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &Keys{priv: priv}, nil
}

// KeysFromHex parses a 32-byte hex secret key.
func KeysFromHex(secretHex string) (*Keys, error) {
	raw, err := hex.DecodeString(secretHex)
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("secret key must be 32 hex bytes")
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	return &Keys{priv: priv}, nil
}

// SecretHex returns the 32-byte secret key in hex.
func (k *Keys) SecretHex() string {
	return hex.EncodeToString(k.priv.Serialize())
}

// PublicHex returns the x-only public key in hex, the form used in event
// author fields and filters.
func (k *Keys) PublicHex() string {
	return hex.EncodeToString(schnorr.SerializePubKey(k.priv.PubKey()))
}

// Priv exposes the underlying private key for signing.
func (k *Keys) Priv() *btcec.PrivateKey { return k.priv }

// Deriver turns the root mnemonic into concrete keypairs.
type Deriver struct {
	seed []byte
}

// GenerateMnemonic creates a fresh 12-word seed phrase. Called once on
// first run; the result is persisted and never transmitted.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// NewDeriver validates the mnemonic and precomputes the BIP-39 seed.
// An invalid mnemonic is a fatal configuration error.
func NewDeriver(mnemonic string) (*Deriver, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	return &Deriver{seed: bip39.NewSeed(mnemonic, "")}, nil
}

// IdentityKeys derives the long-lived identity keypair (index 0).
func (d *Deriver) IdentityKeys() (*Keys, error) {
	return d.TradeKeys(IdentityIndex)
}

// TradeKeys derives the ephemeral keypair for the given trade index.
// Same index, same keys - recovery depends on it.
func (d *Deriver) TradeKeys(index int64) (*Keys, error) {
	if index < 0 || index > 0x7fffffff {
		return nil, fmt.Errorf("trade index %d out of range", index)
	}

	key, err := hdkeychain.NewMaster(d.seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("derive master key: %w", err)
	}
	path := []uint32{
		hdkeychain.HardenedKeyStart + purposeIndex,
		hdkeychain.HardenedKeyStart + coinIndex,
		hdkeychain.HardenedKeyStart + accountIndex,
		uint32(index),
		0,
	}
	for _, step := range path {
		if key, err = key.Derive(step); err != nil {
			return nil, fmt.Errorf("derive step %d: %w", step, err)
		}
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("extract private key: %w", err)
	}
	return &Keys{priv: priv}, nil
}

// SharedSecret computes the 32-byte x coordinate of the ECDH point between
// a local secret key and a remote x-only public key. Commutative: both
// parties derive the same bytes from their own secret and the other's
// public key.
func SharedSecret(local *Keys, remotePublicHex string) ([]byte, error) {
	remote, err := parseXOnly(remotePublicHex)
	if err != nil {
		return nil, err
	}
	return btcec.GenerateSharedSecret(local.priv, remote), nil
}

// SharedKeys turns the ECDH secret into a keypair. Its public key addresses
// the private chat channel; its secret key decrypts it.
func SharedKeys(local *Keys, remotePublicHex string) (*Keys, error) {
	secret, err := SharedSecret(local, remotePublicHex)
	if err != nil {
		return nil, err
	}
	priv, _ := btcec.PrivKeyFromBytes(secret)
	if priv.Key.IsZero() {
		return nil, fmt.Errorf("degenerate shared secret")
	}
	return &Keys{priv: priv}, nil
}

// parseXOnly decodes a 32-byte x-only public key, assuming even parity as
// the protocol does.
func parseXOnly(pubHex string) (*btcec.PublicKey, error) {
	raw, err := hex.DecodeString(pubHex)
	if err != nil || len(raw) != 32 {
		return nil, ErrInvalidPublicKey
	}
	pub, err := schnorr.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPublicKey, err)
	}
	return pub, nil
}

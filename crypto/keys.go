package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrInvalidKey is returned for key material of the wrong shape.
var ErrInvalidKey = errors.New("invalid key")

// PrivateKey is an ed25519 private key.
type PrivateKey []byte

// PublicKey is an ed25519 public key. Accounts are identified by its hex
// form.
type PublicKey []byte

// GenerateKeyPair creates a fresh ed25519 key pair from crypto/rand.
func GenerateKeyPair() (PrivateKey, PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return PrivateKey(priv), PublicKey(pub), nil
}

// Address is a short 40-char display form of the key: the first 20 bytes
// of its BLAKE2b-256 digest. Chain state is keyed by Hex, not Address.
func (pub PublicKey) Address() string {
	return hex.EncodeToString(Blake2b256(pub)[:20])
}

// Hex returns the 64-char account id.
func (pub PublicKey) Hex() string { return hex.EncodeToString(pub) }

func (priv PrivateKey) Hex() string { return hex.EncodeToString(priv) }

// Public derives the public half of priv.
func (priv PrivateKey) Public() PublicKey {
	return PublicKey(ed25519.PrivateKey(priv).Public().(ed25519.PublicKey))
}

// PubKeyFromHex parses a 64-char account id.
func PubKeyFromHex(s string) (PublicKey, error) {
	b, err := decodeKey(s, ed25519.PublicKeySize, "pubkey")
	return PublicKey(b), err
}

// PrivKeyFromHex parses a hex private key as written by Hex.
func PrivKeyFromHex(s string) (PrivateKey, error) {
	b, err := decodeKey(s, ed25519.PrivateKeySize, "privkey")
	return PrivateKey(b), err
}

func decodeKey(s string, size int, what string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%s hex: %w", what, ErrInvalidKey)
	}
	if len(b) != size {
		return nil, fmt.Errorf("%s is %d bytes, want %d: %w", what, len(b), size, ErrInvalidKey)
	}
	return b, nil
}

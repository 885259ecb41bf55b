package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Hash returns the SHA-256 hash of data as a lowercase hex string.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashBytes returns the raw SHA-256 bytes of data.
func HashBytes(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

// Blake2b256 returns the raw BLAKE2b-256 digest of the concatenated parts.
func Blake2b256(parts ...[]byte) []byte {
	h, _ := blake2b.New256(nil) // only fails for oversized keys
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// ModuleAccount derives the keyless account a module holds escrow in.
// It is the same width as an ed25519 pubkey hex but has no private key.
func ModuleAccount(id string) string {
	return hex.EncodeToString(Blake2b256([]byte("modl"), []byte(id)))
}

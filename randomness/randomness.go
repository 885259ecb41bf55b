// Package randomness derives per-block pseudo-random values. The output is
// predictable to the block proposer and must not guard anything of value.
package randomness

import (
	"encoding/binary"

	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/crypto"
)

// Block is a core.Randomness seeded by the parent hash and height of the
// block being executed.
type Block struct {
	prevHash string
	height   int64
}

var _ core.Randomness = (*Block)(nil)

// FromBlock returns a source bound to b.
func FromBlock(b *core.Block) *Block {
	return &Block{prevHash: b.Header.PrevHash, height: b.Header.Height}
}

// Random returns blake2b-256(seed || prevHash || height) and the height.
func (r *Block) Random(seed []byte) ([]byte, int64) {
	var h [8]byte
	binary.BigEndian.PutUint64(h[:], uint64(r.height))
	return crypto.Blake2b256(seed, []byte(r.prevHash), h[:]), r.height
}

// Uint32 reads the little-endian word at bytes 4..8 of out.
func Uint32(out []byte) uint32 {
	if len(out) < 8 {
		return 0
	}
	return binary.LittleEndian.Uint32(out[4:8])
}

// Fixed always returns the same output. Tests use it to pin property
// selection and mint colors.
type Fixed []byte

func (f Fixed) Random(_ []byte) ([]byte, int64) { return []byte(f), 0 }

// FixedUint32 returns a Fixed source whose Uint32 reading is v.
func FixedUint32(v uint32) Fixed {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint32(out[4:8], v)
	return Fixed(out)
}

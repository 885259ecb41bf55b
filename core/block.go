package core

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/tolelom/propchain/crypto"
)

// BlockHeader is the hashed and signed part of a block.
type BlockHeader struct {
	Height    int64  `json:"height"`
	PrevHash  string `json:"prev_hash"`
	StateRoot string `json:"state_root"` // root of the state after this block
	TxRoot    string `json:"tx_root"`
	Timestamp int64  `json:"timestamp"`
	Proposer  string `json:"proposer"` // account id of the signing validator
}

// Block is an ordered batch of transactions sealed by its proposer.
type Block struct {
	Header       BlockHeader    `json:"header"`
	Transactions []*Transaction `json:"transactions"`
	Hash         string         `json:"hash"`
	Signature    string         `json:"signature"`
}

// NewBlock creates an unsigned block stamped with the current time.
func NewBlock(height int64, prevHash, proposer string, txs []*Transaction) *Block {
	return &Block{
		Header: BlockHeader{
			Height:    height,
			PrevHash:  prevHash,
			TxRoot:    ComputeTxRoot(txs),
			Timestamp: time.Now().UnixNano(),
			Proposer:  proposer,
		},
		Transactions: txs,
	}
}

// ComputeHash returns the SHA-256 of the JSON header.
func (b *Block) ComputeHash() string {
	data, err := json.Marshal(b.Header)
	if err != nil {
		return ""
	}
	return crypto.Hash(data)
}

// Sign seals the header: it sets Hash and the proposer's signature over it.
func (b *Block) Sign(priv crypto.PrivateKey) {
	b.Hash = b.ComputeHash()
	b.Signature = crypto.Sign(priv, []byte(b.Hash))
}

// Verify checks that Hash is the header hash and that the header's
// proposer signed it.
func (b *Block) Verify() error {
	if b.Hash != b.ComputeHash() {
		return ErrBlockHash
	}
	return crypto.VerifyHex(b.Header.Proposer, []byte(b.Hash), b.Signature)
}

// TxIDs lists the block's transaction ids in execution order.
func (b *Block) TxIDs() []string {
	ids := make([]string, len(b.Transactions))
	for i, tx := range b.Transactions {
		ids[i] = tx.ID
	}
	return ids
}

// ComputeTxRoot commits to the ordered transaction ids. Ids are fixed-width
// hex so plain concatenation is unambiguous.
func ComputeTxRoot(txs []*Transaction) string {
	parts := make([][]byte, len(txs))
	for i, tx := range txs {
		parts[i] = []byte(tx.ID)
	}
	return hex.EncodeToString(crypto.Blake2b256(parts...))
}

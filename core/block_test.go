package core

import (
	"errors"
	"testing"

	"github.com/tolelom/propchain/crypto"
)

func TestBlockSignVerify(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	b := NewBlock(1, "prev", pub.Hex(), nil)
	b.Sign(priv)
	if err := b.Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if b.ComputeHash() != b.Hash {
		t.Error("hash is not deterministic")
	}

	b.Header.StateRoot = "changed"
	if err := b.Verify(); !errors.Is(err, ErrBlockHash) {
		t.Errorf("edited header: got %v want ErrBlockHash", err)
	}

	other, otherPub, _ := crypto.GenerateKeyPair()
	b.Header.Proposer = otherPub.Hex()
	b.Hash = b.ComputeHash()
	b.Signature = crypto.Sign(priv, []byte(b.Hash))
	if err := b.Verify(); !errors.Is(err, crypto.ErrBadSignature) {
		t.Errorf("wrong signer: got %v want ErrBadSignature", err)
	}
	b.Sign(other)
	if err := b.Verify(); err != nil {
		t.Errorf("re-signed: %v", err)
	}
}

func TestTxRootOrderSensitive(t *testing.T) {
	a := &Transaction{ID: "aa"}
	b := &Transaction{ID: "bb"}
	if ComputeTxRoot([]*Transaction{a, b}) == ComputeTxRoot([]*Transaction{b, a}) {
		t.Error("tx root ignores order")
	}
	if ComputeTxRoot(nil) == ComputeTxRoot([]*Transaction{a}) {
		t.Error("empty root collides")
	}
	blk := NewBlock(2, "p", "", []*Transaction{a, b})
	if ids := blk.TxIDs(); len(ids) != 2 || ids[0] != "aa" {
		t.Errorf("tx ids: %v", ids)
	}
}

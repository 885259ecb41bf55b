package wallet

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestKeystoreRoundTrip(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "origin.json")
	if err := SaveKey(path, "hunter2", w.PrivKey()); err != nil {
		t.Fatalf("save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("mode: got %o want 600", perm)
	}

	loaded, err := LoadWallet(path, "hunter2")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.PubKey() != w.PubKey() {
		t.Error("loaded wallet has a different key")
	}

	if _, err := LoadKey(path, "hunter3"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("wrong password: got %v want ErrWrongPassword", err)
	}
}

func TestBuildAdvancesNonce(t *testing.T) {
	w, _ := Generate()
	w.WithChain("c", 4)
	w.SetFee(2)

	tx, err := w.Transfer("someone", 1)
	if err != nil {
		t.Fatal(err)
	}
	if tx.Nonce != 4 || tx.Fee != 2 || tx.ChainID != "c" {
		t.Errorf("tx: nonce %d fee %d chain %q", tx.Nonce, tx.Fee, tx.ChainID)
	}
	if w.Nonce() != 5 {
		t.Errorf("next nonce: got %d want 5", w.Nonce())
	}
	if err := tx.Verify(); err != nil {
		t.Errorf("verify: %v", err)
	}
}

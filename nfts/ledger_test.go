package nfts_test

import (
	"errors"
	"testing"

	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/events"
	"github.com/tolelom/propchain/internal/testutil"
	"github.com/tolelom/propchain/nfts"
)

func newLedger(t *testing.T) (*nfts.Ledger, *[]events.EventType) {
	t.Helper()
	var seen []events.EventType
	l := nfts.New(testutil.NewStateDB(), func(typ events.EventType, _ map[string]any) {
		seen = append(seen, typ)
	})
	return l, &seen
}

func TestMintAndTransfer(t *testing.T) {
	l, seen := newLedger(t)
	id, err := l.CreateCollection("escrow", "escrow")
	if err != nil || id != 0 {
		t.Fatalf("create: %d (%v)", id, err)
	}
	if next, _ := l.CreateCollection("escrow", "escrow"); next != 1 {
		t.Errorf("second collection id: got %d want 1", next)
	}

	if err := l.Mint(0, 0, "alice", "escrow"); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := l.Mint(0, 0, "bob", "escrow"); err == nil {
		t.Error("minted the same item twice")
	}
	if err := l.Mint(9, 0, "bob", "escrow"); !errors.Is(err, core.ErrUnknownCollection) {
		t.Errorf("unknown collection: got %v want ErrUnknownCollection", err)
	}

	if err := l.Transfer("bob", 0, 0, "carol"); !errors.Is(err, core.ErrNoPermission) {
		t.Errorf("transfer by non-owner: got %v want ErrNoPermission", err)
	}
	if err := l.Transfer("alice", 0, 0, "bob"); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if owner, _ := l.Owner(0, 0); owner != "bob" {
		t.Errorf("owner: got %s want bob", owner)
	}
	if _, err := l.Owner(0, 5); !errors.Is(err, core.ErrUnknownItem) {
		t.Errorf("unknown item: got %v want ErrUnknownItem", err)
	}

	want := []events.EventType{events.EventNftMinted, events.EventNftTransferred}
	if len(*seen) != 2 || (*seen)[0] != want[0] || (*seen)[1] != want[1] {
		t.Errorf("events: got %v want %v", *seen, want)
	}
}

func TestLockBlocksOwnerTransferOnly(t *testing.T) {
	l, _ := newLedger(t)
	_, _ = l.CreateCollection("escrow", "escrow")
	if err := l.Mint(0, 0, "alice", "escrow"); err != nil {
		t.Fatal(err)
	}
	if err := l.LockItemTransfer(0, 0); err != nil {
		t.Fatal(err)
	}

	if err := l.Transfer("alice", 0, 0, "bob"); !errors.Is(err, core.ErrItemLocked) {
		t.Fatalf("locked transfer: got %v want ErrItemLocked", err)
	}
	if err := l.DoTransfer(0, 0, "bob"); err != nil {
		t.Fatalf("forced transfer: %v", err)
	}
	if err := l.UnlockItemTransfer(0, 0); err != nil {
		t.Fatal(err)
	}
	if err := l.Transfer("bob", 0, 0, "alice"); err != nil {
		t.Errorf("unlocked transfer: %v", err)
	}
}

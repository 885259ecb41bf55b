package currency_test

import (
	"testing"

	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/currency"
	"github.com/tolelom/propchain/internal/testutil"
)

func TestTransferAndSetBalance(t *testing.T) {
	state := testutil.NewStateDB()
	l := currency.New(state)

	if err := l.MakeFreeBalanceBe("a", 100); err != nil {
		t.Fatal(err)
	}
	if err := l.Transfer("a", "b", 30); err != nil {
		t.Fatal(err)
	}
	if err := l.Transfer("a", "b", 71); err == nil {
		t.Error("overdraft allowed")
	}
	// Setting a balance overwrites rather than adds.
	if err := l.MakeFreeBalanceBe("b", 5); err != nil {
		t.Fatal(err)
	}

	a, _ := state.GetAccount("a")
	b, _ := state.GetAccount("b")
	if a.Balance != 70 || b.Balance != 5 {
		t.Errorf("balances: a %d b %d", a.Balance, b.Balance)
	}
	if err := l.Transfer("a", "a", 1000); err != nil {
		t.Errorf("self transfer: %v", err)
	}
}

// TestLedgerServesCurrency drives the ledger through the interface handlers see.
func TestLedgerServesCurrency(t *testing.T) {
	state := testutil.NewStateDB()
	var c core.Currency = currency.New(state)

	if err := c.MakeFreeBalanceBe("a", 10); err != nil {
		t.Fatal(err)
	}
	if err := c.Transfer("a", "b", 4); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	b, _ := state.GetAccount("b")
	if b.Balance != 4 {
		t.Errorf("b balance: got %d want 4", b.Balance)
	}
}

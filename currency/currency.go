// Package currency manages native token balances stored on core.Account.
package currency

import (
	"fmt"

	"github.com/tolelom/propchain/core"
)

// Ledger implements core.Currency over a core.State.
type Ledger struct {
	state core.State
}

var _ core.Currency = (*Ledger)(nil)

func New(state core.State) *Ledger {
	return &Ledger{state: state}
}

// MakeFreeBalanceBe sets the balance of account to exactly amount.
func (l *Ledger) MakeFreeBalanceBe(account string, amount uint64) error {
	acc, err := l.state.GetAccount(account)
	if err != nil {
		return err
	}
	acc.Balance = amount
	return l.state.SetAccount(acc)
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(from, to string, amount uint64) error {
	if from == to {
		return nil
	}
	sender, err := l.state.GetAccount(from)
	if err != nil {
		return err
	}
	if sender.Balance < amount {
		return fmt.Errorf("insufficient balance: have %d need %d", sender.Balance, amount)
	}
	recipient, err := l.state.GetAccount(to)
	if err != nil {
		return err
	}
	credited, err := core.AddU64(recipient.Balance, amount)
	if err != nil {
		return fmt.Errorf("credit %s: %w", to, err)
	}
	sender.Balance -= amount
	recipient.Balance = credited
	if err := l.state.SetAccount(sender); err != nil {
		return err
	}
	return l.state.SetAccount(recipient)
}

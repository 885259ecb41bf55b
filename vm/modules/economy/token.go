// Package economy registers the native token transfer.
package economy

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/events"
	"github.com/tolelom/propchain/vm"
)

var (
	errZeroAmount  = errors.New("transfer amount must be positive")
	errNoRecipient = errors.New("transfer recipient required")
)

func init() {
	vm.Register(core.TxTransfer, transfer)
}

// transfer moves tokens between accounts. Balances are plain uint64 and
// unrelated to game points.
func transfer(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TransferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode transfer: %w", err)
	}
	switch {
	case p.Amount == 0:
		return errZeroAmount
	case p.To == "":
		return errNoRecipient
	}
	if err := ctx.Currency.Transfer(ctx.Sender(), p.To, p.Amount); err != nil {
		return err
	}
	ctx.Emit(events.EventTokenTransfer, map[string]any{
		"from":   ctx.Sender(),
		"to":     p.To,
		"amount": p.Amount,
	})
	return nil
}

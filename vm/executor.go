package vm

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/currency"
	"github.com/tolelom/propchain/events"
	"github.com/tolelom/propchain/nfts"
	"github.com/tolelom/propchain/randomness"
)

// DispatchError is a handler failure. The transaction still counts as
// included: its fee and nonce are charged, its own writes are reverted.
type DispatchError struct {
	TxID string
	Type core.TxType
	Err  error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("tx %s (%s): %v", e.TxID, e.Type, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Option configures an Executor.
type Option func(*Executor)

// WithRandomness overrides the per-block randomness source.
func WithRandomness(fn func(*core.Block) core.Randomness) Option {
	return func(e *Executor) { e.random = fn }
}

// WithChainID makes the executor reject transactions signed for another chain.
func WithChainID(id string) Option {
	return func(e *Executor) { e.chainID = id }
}

// Executor applies transactions to the state using the global Handler registry.
type Executor struct {
	state    core.State
	emitter  *events.Emitter
	registry *Registry
	chainID  string
	random   func(*core.Block) core.Randomness
}

// NewExecutor creates an Executor with the given state and event emitter.
func NewExecutor(state core.State, emitter *events.Emitter, opts ...Option) *Executor {
	e := &Executor{
		state:    state,
		emitter:  emitter,
		registry: globalRegistry,
		random: func(b *core.Block) core.Randomness {
			return randomness.FromBlock(b)
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) newContext(block *core.Block, tx *core.Transaction) *Context {
	ctx := &Context{
		State:    e.state,
		Block:    block,
		Tx:       tx,
		Currency: currency.New(e.state),
		Random:   e.random(block),
	}
	ctx.NFTs = nfts.New(e.state, ctx.Emit)
	return ctx
}

// BeginBlock runs every registered block hook against block. Hooks share
// one snapshot: if any fails, all their writes are reverted.
func (e *Executor) BeginBlock(block *core.Block) error {
	snapID, err := e.state.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	ctx := e.newContext(block, nil)
	for _, h := range e.registry.blockHooks() {
		if err := h.fn(ctx); err != nil {
			if revertErr := e.state.RevertToSnapshot(snapID); revertErr != nil {
				return fmt.Errorf("revert snapshot after hook failure: %w (revert: %v)", err, revertErr)
			}
			return fmt.Errorf("hook %s: %w", h.name, err)
		}
	}
	ctx.flush(e.emitter)
	return nil
}

// ExecuteBlock runs the block hooks and then all transactions in block.
// A transaction that fails validation rejects the whole block. Dispatch
// failures are recorded and execution continues.
// EventBlockCommit is emitted by the caller (consensus) after signing so
// the event carries the correct block hash.
func (e *Executor) ExecuteBlock(block *core.Block) error {
	if err := e.BeginBlock(block); err != nil {
		return err
	}
	for _, tx := range block.Transactions {
		err := e.ExecuteTx(block, tx)
		var de *DispatchError
		if err != nil && !errors.As(err, &de) {
			return fmt.Errorf("tx %s failed: %w", tx.ID, err)
		}
	}
	return nil
}

// BuildBlock runs the block hooks and then executes candidates in order,
// keeping every transaction that passes validation. It sets the block's
// transaction list and TxRoot and returns the ids it dropped.
func (e *Executor) BuildBlock(block *core.Block, candidates []*core.Transaction) ([]string, error) {
	if err := e.BeginBlock(block); err != nil {
		return nil, err
	}
	included := make([]*core.Transaction, 0, len(candidates))
	var dropped []string
	for _, tx := range candidates {
		err := e.ExecuteTx(block, tx)
		var de *DispatchError
		if err != nil && !errors.As(err, &de) {
			log.Debug().Str("tx", tx.ID).Err(err).Msg("dropping invalid transaction")
			dropped = append(dropped, tx.ID)
			continue
		}
		included = append(included, tx)
	}
	block.Transactions = included
	block.Header.TxRoot = core.ComputeTxRoot(included)
	return dropped, nil
}

// ExecuteTx verifies and executes a single transaction with snapshot/rollback.
// Validation failures leave state untouched and are returned as-is. Handler
// failures are returned as *DispatchError after the fee has been charged.
func (e *Executor) ExecuteTx(block *core.Block, tx *core.Transaction) error {
	if err := tx.Verify(); err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	if e.chainID != "" && tx.ChainID != e.chainID {
		return fmt.Errorf("chain id mismatch: got %q want %q", tx.ChainID, e.chainID)
	}
	if !e.registry.Has(tx.Type) {
		return fmt.Errorf("unknown tx type %q", tx.Type)
	}

	snapID, err := e.state.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := e.chargeTx(tx); err != nil {
		if revertErr := e.state.RevertToSnapshot(snapID); revertErr != nil {
			return fmt.Errorf("revert snapshot after tx failure: %w (revert: %v)", err, revertErr)
		}
		return err
	}

	dispatchSnap, err := e.state.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	ctx := e.newContext(block, tx)
	if err := e.registry.Execute(tx.Type, ctx, tx.Payload); err != nil {
		if revertErr := e.state.RevertToSnapshot(dispatchSnap); revertErr != nil {
			return fmt.Errorf("revert snapshot after tx failure: %w (revert: %v)", err, revertErr)
		}
		e.emit(events.Event{
			Type:        events.EventTxFailed,
			TxID:        tx.ID,
			BlockHeight: block.Header.Height,
			Data:        map[string]any{"type": string(tx.Type), "from": tx.From, "error": err.Error()},
		})
		return &DispatchError{TxID: tx.ID, Type: tx.Type, Err: err}
	}

	ctx.flush(e.emitter)
	e.emit(events.Event{
		Type:        events.EventTxExecuted,
		TxID:        tx.ID,
		BlockHeight: block.Header.Height,
		Data:        map[string]any{"type": string(tx.Type), "from": tx.From},
	})
	return nil
}

func (e *Executor) emit(ev events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(ev)
	}
}

// chargeTx deducts the fee and increments the nonce.
func (e *Executor) chargeTx(tx *core.Transaction) error {
	acc, err := e.state.GetAccount(tx.From)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	if acc.Nonce != tx.Nonce {
		return fmt.Errorf("invalid nonce: expected %d got %d", acc.Nonce, tx.Nonce)
	}
	if acc.Balance < tx.Fee {
		return fmt.Errorf("insufficient balance for fee: have %d need %d", acc.Balance, tx.Fee)
	}
	if acc.Nonce == math.MaxUint64 {
		return fmt.Errorf("nonce overflow for account %s", tx.From)
	}
	acc.Balance -= tx.Fee
	acc.Nonce++
	return e.state.SetAccount(acc)
}

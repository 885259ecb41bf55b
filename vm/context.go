package vm

import (
	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/events"
)

// Context is passed to every Handler and provides access to the chain state,
// the current block, the triggering transaction, and the engine's
// collaborators. Tx is nil inside block hooks.
type Context struct {
	State    core.State
	Block    *core.Block
	Tx       *core.Transaction
	NFTs     core.NFTs
	Currency core.Currency
	Random   core.Randomness

	params  *core.Params
	pending []events.Event
}

// Sender returns the transaction signer, or "" inside a hook.
func (c *Context) Sender() string {
	if c.Tx == nil {
		return ""
	}
	return c.Tx.From
}

// Height is the height of the block being executed.
func (c *Context) Height() int64 {
	return c.Block.Header.Height
}

// Params returns the engine parameters, read once per context.
func (c *Context) Params() (*core.Params, error) {
	if c.params != nil {
		return c.params, nil
	}
	p, err := c.State.GetParams()
	if err != nil {
		return nil, err
	}
	c.params = p
	return p, nil
}

// Emit queues an event. Queued events are published only if the call
// that raised them succeeds.
func (c *Context) Emit(typ events.EventType, data map[string]any) {
	ev := events.Event{Type: typ, BlockHeight: c.Height(), Data: data}
	if c.Tx != nil {
		ev.TxID = c.Tx.ID
	}
	c.pending = append(c.pending, ev)
}

func (c *Context) flush(em *events.Emitter) {
	if em != nil {
		for _, ev := range c.pending {
			em.Emit(ev)
		}
	}
	c.pending = nil
}

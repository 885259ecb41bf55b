package testutil

import (
	"testing"

	"github.com/tolelom/propchain/config"
	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/crypto"
	"github.com/tolelom/propchain/events"
	"github.com/tolelom/propchain/randomness"
	"github.com/tolelom/propchain/storage"
	"github.com/tolelom/propchain/vm"
	"github.com/tolelom/propchain/wallet"
)

// ChainID is the chain id every harness signs for.
const ChainID = "propchain-test"

// Harness drives an executor block by block without consensus. Handlers
// must be registered by the test package (blank-import the modules).
type Harness struct {
	t       testing.TB
	State   *storage.StateDB
	Emitter *events.Emitter
	Exec    *vm.Executor
	Origin  *wallet.Wallet
	Admin   *wallet.Wallet

	// Random overrides block randomness when non-nil.
	Random core.Randomness
	Events []events.Event

	block *core.Block
}

// HarnessOption adjusts genesis before it is written.
type HarnessOption func(*config.Config)

// WithParams replaces the engine parameters. GameOrigin is still set to
// the harness origin.
func WithParams(p core.Params) HarnessOption {
	return func(cfg *config.Config) {
		p.GameOrigin = ""
		cfg.Genesis.Params = &p
	}
}

// NewHarness writes genesis (an origin account, one admin, default params)
// and opens block 1.
func NewHarness(t testing.TB, opts ...HarnessOption) *Harness {
	t.Helper()
	origin, err := wallet.Generate()
	if err != nil {
		t.Fatalf("origin wallet: %v", err)
	}
	admin, err := wallet.Generate()
	if err != nil {
		t.Fatalf("admin wallet: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Genesis.ChainID = ChainID
	cfg.Genesis.GameOrigin = origin.PubKey()
	cfg.Genesis.Admins = []string{admin.PubKey()}
	for _, opt := range opts {
		opt(cfg)
	}

	h := &Harness{
		t:       t,
		State:   NewStateDB(),
		Emitter: events.NewEmitter(),
		Origin:  origin.WithChain(ChainID, 0),
		Admin:   admin.WithChain(ChainID, 0),
	}
	if err := config.InitGenesisState(cfg, h.State, origin.PubKey()); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	if err := h.State.Commit(); err != nil {
		t.Fatalf("commit genesis: %v", err)
	}

	h.Emitter.SubscribeAll(func(ev events.Event) { h.Events = append(h.Events, ev) })
	h.Exec = vm.NewExecutor(h.State, h.Emitter,
		vm.WithChainID(ChainID),
		vm.WithRandomness(func(b *core.Block) core.Randomness {
			if h.Random != nil {
				return h.Random
			}
			return randomness.FromBlock(b)
		}),
	)
	h.block = core.NewBlock(0, config.GenesisHash, "", nil)
	h.NextBlock()
	return h
}

// Height is the height of the open block.
func (h *Harness) Height() int64 { return h.block.Header.Height }

// Block returns the open block.
func (h *Harness) Block() *core.Block { return h.block }

// NextBlock commits the open block and opens the next one, running block
// hooks.
func (h *Harness) NextBlock() {
	h.t.Helper()
	if err := h.State.Commit(); err != nil {
		h.t.Fatalf("commit block %d: %v", h.Height(), err)
	}
	prev := h.block.ComputeHash()
	h.block = core.NewBlock(h.Height()+1, prev, "", nil)
	if err := h.Exec.BeginBlock(h.block); err != nil {
		h.t.Fatalf("begin block %d: %v", h.Height(), err)
	}
}

// AdvanceTo opens blocks until height is reached.
func (h *Harness) AdvanceTo(height int64) {
	h.t.Helper()
	for h.Height() < height {
		h.NextBlock()
	}
}

// SetRandom pins the random word every handler reads.
func (h *Harness) SetRandom(v uint32) {
	h.Random = randomness.FixedUint32(v)
}

// NewPlayer creates a wallet and registers it through the admin.
func (h *Harness) NewPlayer() *wallet.Wallet {
	h.t.Helper()
	w := h.NewWallet()
	h.MustSubmit(h.Admin.RegisterUser(w.PubKey()))
	return w
}

// NewWallet creates an unregistered wallet bound to the harness chain.
func (h *Harness) NewWallet() *wallet.Wallet {
	h.t.Helper()
	w, err := wallet.Generate()
	if err != nil {
		h.t.Fatalf("wallet: %v", err)
	}
	return w.WithChain(ChainID, 0)
}

// Submit executes tx in the open block. Handler failures come back as
// *vm.DispatchError, which unwraps to the handler's error.
func (h *Harness) Submit(tx *core.Transaction, err error) error {
	h.t.Helper()
	if err != nil {
		h.t.Fatalf("build tx: %v", err)
	}
	h.block.Transactions = append(h.block.Transactions, tx)
	return h.Exec.ExecuteTx(h.block, tx)
}

// MustSubmit is Submit that fails the test on any error.
func (h *Harness) MustSubmit(tx *core.Transaction, err error) {
	h.t.Helper()
	if err := h.Submit(tx, err); err != nil {
		h.t.Fatalf("%s: %v", tx.Type, err)
	}
}

// Setup starts a round from the origin account.
func (h *Harness) Setup() {
	h.t.Helper()
	h.MustSubmit(h.Origin.SetupGame())
}

// User loads account's game record.
func (h *Harness) User(account string) *core.User {
	h.t.Helper()
	u, err := h.State.GetUser(account)
	if err != nil {
		h.t.Fatalf("user %s: %v", account, err)
	}
	return u
}

// EventsOf returns the recorded events of type typ, oldest first.
func (h *Harness) EventsOf(typ events.EventType) []events.Event {
	var out []events.Event
	for _, ev := range h.Events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// Escrow is the module account of the configured pallet id.
func (h *Harness) Escrow() string {
	p, err := h.State.GetParams()
	if err != nil {
		h.t.Fatalf("params: %v", err)
	}
	return crypto.ModuleAccount(p.PalletID)
}

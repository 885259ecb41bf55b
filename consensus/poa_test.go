package consensus_test

import (
	"errors"
	"testing"

	"github.com/tolelom/propchain/config"
	"github.com/tolelom/propchain/consensus"
	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/crypto"
	"github.com/tolelom/propchain/events"
	"github.com/tolelom/propchain/internal/testutil"
	"github.com/tolelom/propchain/storage"
	"github.com/tolelom/propchain/vm"
	"github.com/tolelom/propchain/wallet"

	_ "github.com/tolelom/propchain/vm/modules/economy"
	_ "github.com/tolelom/propchain/vm/modules/game"
)

type node struct {
	state *storage.StateDB
	bc    *core.Blockchain
	pool  *core.Mempool
	poa   *consensus.PoA
}

func newNode(cfg *config.Config, priv crypto.PrivateKey) *node {
	n := &node{
		state: testutil.NewStateDB(),
		bc:    testutil.NewBlockchain(),
		pool:  core.NewMempool(),
	}
	em := events.NewEmitter()
	exec := vm.NewExecutor(n.state, em, vm.WithChainID(cfg.Genesis.ChainID))
	n.poa = consensus.New(cfg, n.bc, n.state, n.pool, exec, em, priv)
	return n
}

type fixture struct {
	t                  *testing.T
	validator, replica *node
	valPriv            crypto.PrivateKey
	origin, admin      *wallet.Wallet
}

// newFixture builds a single-validator chain and a replica that imports
// the validator's genesis block.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	valPriv, valPub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	replicaPriv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	origin, _ := wallet.Generate()
	admin, _ := wallet.Generate()

	cfg := config.DefaultConfig()
	cfg.Genesis.ChainID = testutil.ChainID
	cfg.Genesis.GameOrigin = origin.PubKey()
	cfg.Genesis.Admins = []string{admin.PubKey()}
	cfg.Validators = []string{valPub.Hex()}

	f := &fixture{
		t:         t,
		validator: newNode(cfg, valPriv),
		replica:   newNode(cfg, replicaPriv),
		valPriv:   valPriv,
		origin:    origin.WithChain(testutil.ChainID, 0),
		admin:     admin.WithChain(testutil.ChainID, 0),
	}
	genesis, err := config.CreateGenesisBlock(cfg, f.validator.state, valPriv)
	if err != nil {
		t.Fatalf("genesis: %v", err)
	}
	if err := f.validator.bc.AddBlock(genesis); err != nil {
		t.Fatal(err)
	}
	if err := config.InitGenesisState(cfg, f.replica.state, valPub.Hex()); err != nil {
		t.Fatal(err)
	}
	if err := f.replica.state.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := f.replica.bc.AddBlock(genesis); err != nil {
		t.Fatal(err)
	}
	if f.replica.state.ComputeRoot() != genesis.Header.StateRoot {
		t.Fatal("replica genesis state differs")
	}
	return f
}

// queue adds a freshly built transaction to the validator's mempool.
func (f *fixture) queue(tx *core.Transaction, err error) {
	f.t.Helper()
	if err != nil {
		f.t.Fatal(err)
	}
	if err := f.validator.pool.Add(tx); err != nil {
		f.t.Fatalf("mempool: %v", err)
	}
}

// step produces one block on the validator and imports it on the replica.
func (f *fixture) step(t *testing.T) *core.Block {
	t.Helper()
	b, err := f.validator.poa.ProduceBlock()
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if err := f.replica.poa.ImportBlock(b); err != nil {
		t.Fatalf("import block %d: %v", b.Header.Height, err)
	}
	if got := f.replica.state.ComputeRoot(); got != b.Header.StateRoot {
		t.Fatalf("replica root %s, header %s", got, b.Header.StateRoot)
	}
	return b
}

func TestReplicaReachesSameState(t *testing.T) {
	f := newFixture(t)
	player, _ := wallet.Generate()
	player = player.WithChain(testutil.ChainID, 0)

	f.queue(f.origin.SetupGame())
	f.queue(f.admin.RegisterUser(player.PubKey()))
	f.queue(player.PlayGame(core.DifficultyPractice))
	b1 := f.step(t)
	if len(b1.Transactions) != 3 {
		t.Fatalf("block 1 txs: got %d want 3", len(b1.Transactions))
	}
	if f.validator.pool.Size() != 0 {
		t.Errorf("mempool not drained: %d", f.validator.pool.Size())
	}

	g, err := f.replica.state.GetGame(0)
	if err != nil {
		t.Fatalf("replica game: %v", err)
	}
	price, _ := f.replica.state.GetPrice(g.Property.ID)
	f.queue(player.SubmitAnswer(0, price))
	f.step(t)

	u, err := f.replica.state.GetUser(player.PubKey())
	if err != nil || u.Points != 55 || u.PracticeRounds != 1 {
		t.Errorf("replica user: %+v (%v)", u, err)
	}
	if f.replica.bc.Height() != 2 {
		t.Errorf("replica height: got %d want 2", f.replica.bc.Height())
	}
}

func TestProduceDropsStaleTransactions(t *testing.T) {
	f := newFixture(t)
	stale, err := f.origin.NewTx(testutil.ChainID, core.TxSetupGame, 5, 0, core.SetupGamePayload{})
	f.queue(stale, err)

	b := f.step(t)
	if len(b.Transactions) != 0 {
		t.Errorf("stale tx included")
	}
	if f.validator.pool.Size() != 0 {
		t.Errorf("stale tx left in mempool")
	}
}

func TestImportRejectsForgedBlocks(t *testing.T) {
	f := newFixture(t)
	f.queue(f.origin.SetupGame())
	b, err := f.validator.poa.ProduceBlock()
	if err != nil {
		t.Fatal(err)
	}
	before := f.replica.state.ComputeRoot()

	forged := *b
	forged.Header.StateRoot = "bogus"
	forged.Sign(f.valPriv)
	if err := f.replica.poa.ImportBlock(&forged); !errors.Is(err, consensus.ErrStateRootMismatch) {
		t.Fatalf("bad root: got %v want ErrStateRootMismatch", err)
	}
	if f.replica.state.ComputeRoot() != before {
		t.Fatal("rejected block left writes behind")
	}

	otherPriv, otherPub, _ := crypto.GenerateKeyPair()
	impostor := *b
	impostor.Header.Proposer = otherPub.Hex()
	impostor.Sign(otherPriv)
	if err := f.replica.poa.ImportBlock(&impostor); err == nil {
		t.Fatal("block from a non-validator accepted")
	}

	unsigned := *b
	unsigned.Signature = ""
	if err := f.replica.poa.ImportBlock(&unsigned); !errors.Is(err, crypto.ErrBadSignature) {
		t.Fatalf("unsigned: got %v want ErrBadSignature", err)
	}

	if err := f.replica.poa.ImportBlock(b); err != nil {
		t.Fatalf("genuine block: %v", err)
	}
	if err := f.replica.poa.ImportBlock(b); !errors.Is(err, core.ErrNotExtending) {
		t.Errorf("replayed block: got %v want ErrNotExtending", err)
	}
}

func TestReplicaIsNotProposer(t *testing.T) {
	f := newFixture(t)
	if _, err := f.replica.poa.ProduceBlock(); !errors.Is(err, consensus.ErrNotProposer) {
		t.Errorf("got %v want ErrNotProposer", err)
	}
	if !f.validator.poa.IsProposer() {
		t.Error("sole validator is not the proposer")
	}
}

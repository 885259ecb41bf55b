// Package consensus implements Proof-of-Authority block production.
// Validators propose blocks in round-robin order. Each block is signed by
// the proposer; other nodes verify the signature, re-execute the block and
// compare state roots before accepting it.
package consensus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tolelom/propchain/config"
	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/crypto"
	"github.com/tolelom/propchain/events"
	"github.com/tolelom/propchain/vm"
)

const defaultMaxBlockTxs = 500

// ErrNotProposer is returned by ProduceBlock when another validator owns
// the next height.
var ErrNotProposer = errors.New("not the proposer for this round")

// ErrStateRootMismatch means re-executing an imported block did not
// reproduce the proposer's state root.
var ErrStateRootMismatch = errors.New("state root mismatch")

// PoA is the Proof-of-Authority consensus engine.
type PoA struct {
	mu      sync.Mutex
	cfg     *config.Config
	bc      *core.Blockchain
	state   core.State
	mempool *core.Mempool
	exec    *vm.Executor
	emitter *events.Emitter
	privKey crypto.PrivateKey
	pubKey  crypto.PublicKey
}

// New creates a PoA engine for the local validator identified by privKey.
func New(
	cfg *config.Config,
	bc *core.Blockchain,
	state core.State,
	mempool *core.Mempool,
	exec *vm.Executor,
	emitter *events.Emitter,
	privKey crypto.PrivateKey,
) *PoA {
	return &PoA{
		cfg:     cfg,
		bc:      bc,
		state:   state,
		mempool: mempool,
		exec:    exec,
		emitter: emitter,
		privKey: privKey,
		pubKey:  privKey.Public(),
	}
}

func (p *PoA) proposerAt(height int64) (string, error) {
	if len(p.cfg.Validators) == 0 {
		return "", errors.New("no validators configured")
	}
	return p.cfg.Validators[int(height)%len(p.cfg.Validators)], nil
}

// IsProposer reports whether this node should propose the next block.
func (p *PoA) IsProposer() bool {
	expected, err := p.proposerAt(p.bc.Height() + 1)
	return err == nil && expected == p.pubKey.Hex()
}

// ProduceBlock builds, signs, executes and commits the next block.
// Candidates that fail validation are dropped from the block and evicted
// from the mempool.
func (p *PoA) ProduceBlock() (*core.Block, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.IsProposer() {
		return nil, ErrNotProposer
	}

	limit := p.cfg.MaxBlockTxs
	if limit <= 0 {
		limit = defaultMaxBlockTxs
	}
	candidates := p.mempool.Pending(limit)

	prevHash, nextHeight := p.next()
	block := core.NewBlock(nextHeight, prevHash, p.pubKey.Hex(), nil)

	snapID, err := p.state.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	dropped, err := p.exec.BuildBlock(block, candidates)
	if err != nil {
		p.discard(snapID)
		return nil, fmt.Errorf("build block: %w", err)
	}

	// Compute root from the write buffer before flushing so that if AddBlock
	// fails the state has not yet been persisted.
	block.Header.StateRoot = p.state.ComputeRoot()
	block.Sign(p.privKey)

	if err := p.commit(block, snapID); err != nil {
		return nil, err
	}

	p.mempool.Remove(append(dropped, block.TxIDs()...))
	p.pruneMempool()

	log.Info().
		Int64("height", block.Header.Height).
		Str("hash", block.Hash).
		Int("txs", len(block.Transactions)).
		Int("dropped", len(dropped)).
		Msg("block produced")
	return block, nil
}

// ImportBlock validates a block from another validator, re-executes it and
// commits it if the resulting state root matches the header.
func (p *PoA) ImportBlock(block *core.Block) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ValidateBlock(block); err != nil {
		return err
	}

	snapID, err := p.state.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := p.exec.ExecuteBlock(block); err != nil {
		p.discard(snapID)
		return fmt.Errorf("execute block %d: %w", block.Header.Height, err)
	}
	if root := p.state.ComputeRoot(); root != block.Header.StateRoot {
		p.discard(snapID)
		return fmt.Errorf("block %d: %w: got %s want %s",
			block.Header.Height, ErrStateRootMismatch, root, block.Header.StateRoot)
	}
	if err := p.commit(block, snapID); err != nil {
		return err
	}

	p.mempool.Remove(block.TxIDs())
	p.pruneMempool()

	log.Info().Int64("height", block.Header.Height).Str("hash", block.Hash).Msg("block imported")
	return nil
}

// ValidateBlock checks that block was proposed and signed by the expected
// validator and that it extends the current tip.
func (p *PoA) ValidateBlock(block *core.Block) error {
	expected, err := p.proposerAt(block.Header.Height)
	if err != nil {
		return err
	}
	if block.Header.Proposer != expected {
		return fmt.Errorf("wrong proposer: got %s want %s", block.Header.Proposer, expected)
	}

	if err := block.Verify(); err != nil {
		return fmt.Errorf("block %d: %w", block.Header.Height, err)
	}
	if root := core.ComputeTxRoot(block.Transactions); root != block.Header.TxRoot {
		return fmt.Errorf("tx_root mismatch: got %s want %s", root, block.Header.TxRoot)
	}

	if p.bc.Tip() == nil && !config.IsGenesisHash(block.Header.PrevHash) {
		return errors.New("first block must reference genesis prev-hash")
	}
	return p.bc.CheckExtends(block)
}

// Run starts the block-production loop with the given interval. It blocks
// until done is closed.
func (p *PoA) Run(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if !p.IsProposer() {
				continue
			}
			if _, err := p.ProduceBlock(); err != nil {
				log.Error().Err(err).Msg("produce block")
			}
		}
	}
}

func (p *PoA) next() (prevHash string, height int64) {
	tip := p.bc.Tip()
	if tip == nil {
		return config.GenesisHash, 1
	}
	return tip.Hash, tip.Header.Height + 1
}

// commit stores block, flushes the state buffer and announces the block.
func (p *PoA) commit(block *core.Block, snapID int) error {
	if err := p.bc.AddBlock(block); err != nil {
		p.discard(snapID)
		return fmt.Errorf("add block: %w", err)
	}
	// Flush state only after the block is safely stored.
	if err := p.state.Commit(); err != nil {
		log.Fatal().Err(err).Int64("height", block.Header.Height).
			Msg("block stored but state commit failed")
	}
	p.emitter.Emit(events.Event{
		Type:        events.EventBlockCommit,
		BlockHeight: block.Header.Height,
		Data:        map[string]any{"hash": block.Hash, "txs": len(block.Transactions)},
	})
	return nil
}

// pruneMempool evicts transactions made stale by the committed block.
func (p *PoA) pruneMempool() {
	if n := p.mempool.Prune(p.state); n > 0 {
		log.Debug().Int("txs", n).Msg("pruned stale mempool transactions")
	}
}

func (p *PoA) discard(snapID int) {
	if err := p.state.RevertToSnapshot(snapID); err != nil {
		log.Error().Err(err).Msg("discard block writes")
	}
}

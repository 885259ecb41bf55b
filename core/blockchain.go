package core

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotExtending means a block does not sit directly on the current tip.
var ErrNotExtending = errors.New("block does not extend the tip")

// BlockStore persists blocks. The storage package implements it over the
// node's key-value store.
type BlockStore interface {
	GetBlock(hash string) (*Block, error)
	GetBlockByHeight(height int64) (*Block, error)
	// GetTip returns the current tip hash, or ("", nil) for a fresh chain.
	GetTip() (string, error)
	// CommitBlock writes the block, its height index entry and the new tip
	// in one batch.
	CommitBlock(block *Block) error
}

// Blockchain tracks the canonical chain tip over a BlockStore.
type Blockchain struct {
	mu    sync.RWMutex
	store BlockStore
	tip   *Block
}

// NewBlockchain returns a Blockchain backed by store. Call Init before use.
func NewBlockchain(store BlockStore) *Blockchain {
	return &Blockchain{store: store}
}

// Init loads the persisted tip, if any.
func (bc *Blockchain) Init() error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	hash, err := bc.store.GetTip()
	if err != nil {
		return fmt.Errorf("get tip: %w", err)
	}
	if hash == "" {
		return nil
	}
	tip, err := bc.store.GetBlock(hash)
	if err != nil {
		return fmt.Errorf("load tip %s: %w", hash, err)
	}
	bc.tip = tip
	return nil
}

// CheckExtends reports whether block is the next block on the tip. Any
// block extends an empty chain; the caller checks genesis linkage.
func (bc *Blockchain) CheckExtends(block *Block) error {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.extends(block)
}

func (bc *Blockchain) extends(block *Block) error {
	if bc.tip == nil {
		return nil
	}
	if want := bc.tip.Header.Height + 1; block.Header.Height != want {
		return fmt.Errorf("%w: height %d, want %d", ErrNotExtending, block.Header.Height, want)
	}
	if block.Header.PrevHash != bc.tip.Hash {
		return fmt.Errorf("%w: prev_hash %.16s, tip %.16s", ErrNotExtending, block.Header.PrevHash, bc.tip.Hash)
	}
	return nil
}

// AddBlock persists block and advances the tip.
func (bc *Blockchain) AddBlock(block *Block) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if err := bc.extends(block); err != nil {
		return err
	}
	if err := bc.store.CommitBlock(block); err != nil {
		return fmt.Errorf("commit block: %w", err)
	}
	bc.tip = block
	return nil
}

func (bc *Blockchain) GetBlock(hash string) (*Block, error) {
	return bc.store.GetBlock(hash)
}

func (bc *Blockchain) GetBlockByHeight(height int64) (*Block, error) {
	return bc.store.GetBlockByHeight(height)
}

// Tip returns the current tip, or nil for a fresh chain.
func (bc *Blockchain) Tip() *Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.tip
}

// Height is the tip height, 0 for a fresh chain.
func (bc *Blockchain) Height() int64 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	if bc.tip == nil {
		return 0
	}
	return bc.tip.Header.Height
}

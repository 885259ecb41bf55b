package config

import (
	"fmt"
	"strings"

	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/crypto"
)

// GenesisHash is a canonical all-zeros previous hash for the genesis block.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// GenesisParams resolves the engine parameters for cfg. The game origin
// falls back to the first validator and then to fallbackOrigin.
func GenesisParams(cfg *Config, fallbackOrigin string) core.Params {
	p := core.DefaultParams()
	if cfg.Genesis.Params != nil {
		p = *cfg.Genesis.Params
	}
	switch {
	case cfg.Genesis.GameOrigin != "":
		p.GameOrigin = cfg.Genesis.GameOrigin
	case p.GameOrigin != "":
	case len(cfg.Validators) > 0:
		p.GameOrigin = cfg.Validators[0]
	default:
		p.GameOrigin = fallbackOrigin
	}
	return p
}

// InitGenesisState writes the alloc balances, engine parameters and admin
// list into state without committing.
func InitGenesisState(cfg *Config, state core.State, fallbackOrigin string) error {
	for pubkeyHex, balance := range cfg.Genesis.Alloc {
		acc := &core.Account{
			Address: pubkeyHex,
			Balance: balance,
			Nonce:   0,
		}
		if err := state.SetAccount(acc); err != nil {
			return err
		}
	}

	params := GenesisParams(cfg, fallbackOrigin)
	if len(cfg.Genesis.Admins) > params.MaxAdmins {
		return fmt.Errorf("%d genesis admins: %w", len(cfg.Genesis.Admins), core.ErrTooManyAdmins)
	}
	if err := state.SetParams(&params); err != nil {
		return err
	}
	if len(cfg.Genesis.Admins) > 0 {
		if err := state.SetAdmins(append([]string(nil), cfg.Genesis.Admins...)); err != nil {
			return err
		}
	}
	return nil
}

// CreateGenesisBlock builds and signs block #0 from the genesis config.
// It also writes the initial state and commits.
func CreateGenesisBlock(cfg *Config, state core.State, proposerPriv crypto.PrivateKey) (*core.Block, error) {
	proposerPub := proposerPriv.Public()

	if err := InitGenesisState(cfg, state, proposerPub.Hex()); err != nil {
		return nil, err
	}

	stateRoot := state.ComputeRoot()
	if err := state.Commit(); err != nil {
		return nil, err
	}

	block := core.NewBlock(0, GenesisHash, proposerPub.Hex(), nil)
	block.Header.StateRoot = stateRoot
	// Genesis has no transactions, so TxRoot carries the chain id instead.
	block.Header.TxRoot = crypto.Hash([]byte(cfg.Genesis.ChainID))
	block.Sign(proposerPriv)
	return block, nil
}

// IsGenesisHash returns true if the hash is the canonical genesis prev-hash.
func IsGenesisHash(h string) bool {
	return strings.Count(h, "0") == len(h) && len(h) == 64
}

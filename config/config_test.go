package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tolelom/propchain/crypto"
)

func TestApplyEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.json")
	cfg := DefaultConfig()
	cfg.RPCPort = 9000
	if err := Save(cfg, path); err != nil {
		t.Fatal(err)
	}
	dotenv := filepath.Join(dir, ".env")
	if err := os.WriteFile(dotenv, []byte("PROPCHAIN_NODE_ID=from-dotenv\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("PROPCHAIN_NODE_ID") })
	t.Setenv("PROPCHAIN_RPC_PORT", "9100")
	t.Setenv("PROPCHAIN_VALIDATORS", "aa,bb")

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := ApplyEnv(loaded, dotenv, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if loaded.RPCPort != 9100 {
		t.Errorf("rpc port: got %d want 9100", loaded.RPCPort)
	}
	if loaded.NodeID != "from-dotenv" {
		t.Errorf("node id: got %q", loaded.NodeID)
	}
	if len(loaded.Validators) != 2 || loaded.Validators[1] != "bb" {
		t.Errorf("validators: %v", loaded.Validators)
	}
}

func TestValidate(t *testing.T) {
	_, pub, _ := crypto.GenerateKeyPair()
	cfg := DefaultConfig()
	cfg.Validators = []string{pub.Hex()}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}

	bad := *cfg
	bad.Validators = []string{"not-a-key"}
	if bad.Validate() == nil {
		t.Error("malformed validator accepted")
	}
	bad = *cfg
	bad.RPCPort = 70000
	if bad.Validate() == nil {
		t.Error("out of range port accepted")
	}
	bad = *cfg
	bad.Genesis.ChainID = ""
	if bad.Validate() == nil {
		t.Error("empty chain id accepted")
	}
}

func TestGenesisParamsOriginFallback(t *testing.T) {
	cfg := DefaultConfig()
	if p := GenesisParams(cfg, "node-key"); p.GameOrigin != "node-key" {
		t.Errorf("no validators: got %q want node-key", p.GameOrigin)
	}
	cfg.Validators = []string{"v1", "v2"}
	if p := GenesisParams(cfg, "node-key"); p.GameOrigin != "v1" {
		t.Errorf("validators: got %q want v1", p.GameOrigin)
	}
	cfg.Genesis.GameOrigin = "explicit"
	if p := GenesisParams(cfg, "node-key"); p.GameOrigin != "explicit" {
		t.Errorf("explicit: got %q", p.GameOrigin)
	}
}

func TestDurations(t *testing.T) {
	cfg := &Config{}
	if cfg.BlockInterval().Seconds() != 2 || cfg.FeedInterval().Minutes() != 1 {
		t.Errorf("defaults: block %v feed %v", cfg.BlockInterval(), cfg.FeedInterval())
	}
	cfg.BlockIntervalMS = 250
	if cfg.BlockInterval().Milliseconds() != 250 {
		t.Errorf("block interval: %v", cfg.BlockInterval())
	}
}

func TestIsGenesisHash(t *testing.T) {
	if !IsGenesisHash(GenesisHash) {
		t.Error("canonical genesis hash rejected")
	}
	if IsGenesisHash("00") || IsGenesisHash(crypto.Hash([]byte("x"))) {
		t.Error("non-genesis hash accepted")
	}
}

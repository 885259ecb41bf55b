package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/crypto"
)

// GenesisConfig describes the chain's initial state.
type GenesisConfig struct {
	ChainID string            `json:"chain_id" env:"PROPCHAIN_CHAIN_ID"`
	Alloc   map[string]uint64 `json:"alloc"` // pubkey hex → initial balance
	// GameOrigin is the privileged account. Empty means the first validator.
	GameOrigin string       `json:"game_origin" env:"PROPCHAIN_GAME_ORIGIN"`
	Admins     []string     `json:"admins"`
	Params     *core.Params `json:"params,omitempty"`
}

// Config holds all node configuration. Values come from the JSON file and
// may be overridden by PROPCHAIN_* environment variables.
type Config struct {
	NodeID          string        `json:"node_id" env:"PROPCHAIN_NODE_ID"`
	DataDir         string        `json:"data_dir" env:"PROPCHAIN_DATA_DIR"`
	RPCPort         int           `json:"rpc_port" env:"PROPCHAIN_RPC_PORT"`
	RPCAuthToken    string        `json:"rpc_auth_token" env:"PROPCHAIN_RPC_AUTH_TOKEN"`
	RPCRateLimit    int           `json:"rpc_rate_limit" env:"PROPCHAIN_RPC_RATE_LIMIT"` // calls per minute per IP; 0 disables
	RPCCORSOrigins  []string      `json:"rpc_cors_origins" env:"PROPCHAIN_RPC_CORS_ORIGINS" envSeparator:","`
	NATSURL         string        `json:"nats_url" env:"PROPCHAIN_NATS_URL"`             // empty disables the event bridge
	NATSToken       string        `json:"nats_token" env:"PROPCHAIN_NATS_TOKEN"`
	NATSSubject     string        `json:"nats_subject" env:"PROPCHAIN_NATS_SUBJECT"`
	BlockIntervalMS int           `json:"block_interval_ms" env:"PROPCHAIN_BLOCK_INTERVAL_MS"`
	MaxBlockTxs     int           `json:"max_block_txs" env:"PROPCHAIN_MAX_BLOCK_TXS"` // max transactions per block; 0 → 500
	Validators      []string      `json:"validators" env:"PROPCHAIN_VALIDATORS" envSeparator:","`
	FeedURL         string        `json:"feed_url" env:"PROPCHAIN_FEED_URL"`
	FeedIntervalMS  int           `json:"feed_interval_ms" env:"PROPCHAIN_FEED_INTERVAL_MS"`
	Genesis         GenesisConfig `json:"genesis"`
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		NodeID:          "node0",
		DataDir:         "./data",
		RPCPort:         8545,
		RPCRateLimit:    120,
		NATSSubject:     "propchain",
		BlockIntervalMS: 2000,
		MaxBlockTxs:     500,
		Genesis: GenesisConfig{
			ChainID: "propchain-dev",
			Alloc:   map[string]uint64{},
		},
	}
}

// BlockInterval is the pause between produced blocks.
func (c *Config) BlockInterval() time.Duration {
	if c.BlockIntervalMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.BlockIntervalMS) * time.Millisecond
}

// FeedInterval is the pause between property feed polls.
func (c *Config) FeedInterval() time.Duration {
	if c.FeedIntervalMS <= 0 {
		return time.Minute
	}
	return time.Duration(c.FeedIntervalMS) * time.Millisecond
}

// Load reads a JSON config file from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv loads any dotenv files that exist and then overrides cfg with
// the environment. Variables already set in the process win over dotenv.
func ApplyEnv(cfg *Config, dotenvFiles ...string) error {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks the fields the node cannot start without.
func (c *Config) Validate() error {
	if c.Genesis.ChainID == "" {
		return errors.New("genesis.chain_id is required")
	}
	if c.RPCPort <= 0 || c.RPCPort > 65535 {
		return fmt.Errorf("rpc_port %d out of range", c.RPCPort)
	}
	for _, v := range c.Validators {
		if _, err := crypto.PubKeyFromHex(v); err != nil {
			return fmt.Errorf("validator %q: %w", v, err)
		}
	}
	return nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LogConfig controls the global logger. It is read from the environment only.
type LogConfig struct {
	Level       string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty      bool   `env:"LOG_PRETTY" envDefault:"false"`
	SampleEvery int    `env:"LOG_SAMPLE_EVERY" envDefault:"0"`
}

// LoadLog reads the logger settings from the environment.
func LoadLog() (LogConfig, error) {
	var cfg LogConfig
	err := env.Parse(&cfg)
	return cfg, err
}

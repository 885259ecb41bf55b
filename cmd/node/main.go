// Command node runs a propchain validator: block production, the game
// engine, JSON-RPC and the optional NATS event bridge.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tolelom/propchain/config"
	"github.com/tolelom/propchain/consensus"
	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/crypto"
	"github.com/tolelom/propchain/events"
	"github.com/tolelom/propchain/indexer"
	"github.com/tolelom/propchain/logging"
	"github.com/tolelom/propchain/rpc"
	"github.com/tolelom/propchain/storage"
	"github.com/tolelom/propchain/vm"
	"github.com/tolelom/propchain/wallet"

	// Import VM modules to trigger their init() self-registration.
	_ "github.com/tolelom/propchain/vm/modules/economy"
	_ "github.com/tolelom/propchain/vm/modules/game"
	_ "github.com/tolelom/propchain/vm/modules/market"
	_ "github.com/tolelom/propchain/vm/modules/nft"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	keyPath := flag.String("key", "validator.key", "path to keystore file")
	genKey := flag.Bool("genkey", false, "generate a new validator key and exit")
	flag.Parse()

	logCfg, err := config.LoadLog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "log config: %v\n", err)
		os.Exit(1)
	}
	logging.Init(logCfg)

	// Read keystore password from environment (not CLI flags; they leak via ps).
	password := os.Getenv("PROPCHAIN_PASSWORD")
	if password == "" {
		log.Warn().Msg("PROPCHAIN_PASSWORD not set, keystore uses an empty password")
	}

	if *genKey {
		w, err := wallet.Generate()
		if err != nil {
			log.Fatal().Err(err).Msg("generate key")
		}
		if err := wallet.SaveKey(*keyPath, password, w.PrivKey()); err != nil {
			log.Fatal().Err(err).Msg("save key")
		}
		fmt.Printf("Generated key. Public key (validator address): %s\n", w.PubKey())
		fmt.Printf("Saved to: %s\n", *keyPath)
		return
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	privKey, err := wallet.LoadKey(*keyPath, password)
	if err != nil {
		log.Fatal().Err(err).Msg("load key")
	}
	if len(cfg.Validators) == 0 {
		log.Warn().Msg("no validators configured, running as the only validator")
		cfg.Validators = []string{privKey.Public().Hex()}
	}

	if err := run(cfg, privKey); err != nil {
		log.Fatal().Err(err).Msg("node stopped")
	}
	log.Info().Msg("shutdown complete")
}

func run(cfg *config.Config, privKey crypto.PrivateKey) error {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("mkdir data dir: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "chain"))
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	// Blocks, state and indexes share one DB under different key prefixes.
	state := storage.NewStateDB(db)
	bc := core.NewBlockchain(storage.NewBlockStore(db))
	if err := bc.Init(); err != nil {
		return fmt.Errorf("blockchain init: %w", err)
	}
	if bc.Tip() == nil {
		genesis, err := config.CreateGenesisBlock(cfg, state, privKey)
		if err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
		if err := bc.AddBlock(genesis); err != nil {
			return fmt.Errorf("add genesis: %w", err)
		}
		log.Info().Str("hash", genesis.Hash).Str("chain", cfg.Genesis.ChainID).Msg("genesis block committed")
	}

	emitter := events.NewEmitter()
	idx := indexer.New(db, emitter)
	if cfg.NATSURL != "" {
		nc, err := events.ConnectNATS(cfg.NATSURL, cfg.NATSToken, cfg.NodeID)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer nc.Drain()
		events.Bridge(emitter, nc, cfg.NATSSubject)
		log.Info().Str("url", cfg.NATSURL).Str("subject", cfg.NATSSubject).Msg("nats event bridge enabled")
	}

	mempool := core.NewMempool()
	exec := vm.NewExecutor(state, emitter, vm.WithChainID(cfg.Genesis.ChainID))
	poa := consensus.New(cfg, bc, state, mempool, exec, emitter, privKey)

	stream := rpc.NewStream(emitter, cfg.RPCCORSOrigins...)
	handler := rpc.NewHandler(bc, mempool, state, idx, cfg.Genesis.ChainID)
	server := rpc.NewServer(fmt.Sprintf(":%d", cfg.RPCPort), handler, cfg.RPCAuthToken,
		rpc.WithRateLimit(cfg.RPCRateLimit),
		rpc.WithCORS(cfg.RPCCORSOrigins),
		rpc.WithStream(stream),
	)
	if err := server.Start(); err != nil {
		return fmt.Errorf("rpc start: %w", err)
	}
	if cfg.RPCAuthToken != "" {
		log.Info().Msg("rpc bearer token authentication enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		poa.Run(cfg.BlockInterval(), ctx.Done())
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		// Consensus exits on the same signal; RPC goes last so clients see
		// the final block.
		if err := server.Stop(); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("rpc stop: %w", err)
		}
		return nil
	})
	log.Info().
		Str("validator", privKey.Public().Hex()).
		Int("height", int(bc.Height())).
		Dur("interval", cfg.BlockInterval()).
		Msg("consensus running")
	return g.Wait()
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		log.Warn().Str("path", path).Msg("config file not found, using defaults")
		cfg = config.DefaultConfig()
	}
	if err := config.ApplyEnv(cfg, ".env"); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

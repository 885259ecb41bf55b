// Command feeder polls a property feed and adds each new listing to the
// on-chain catalog, signing with the game origin key.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/tolelom/propchain/config"
	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/feeder"
	"github.com/tolelom/propchain/logging"
	"github.com/tolelom/propchain/wallet"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	keyPath := flag.String("key", "origin.key", "path to the game origin keystore")
	rpcURL := flag.String("rpc", "http://127.0.0.1:8545/", "node JSON-RPC endpoint")
	once := flag.Bool("once", false, "submit the newest record once and exit")
	flag.Parse()

	logCfg, err := config.LoadLog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "log config: %v\n", err)
		os.Exit(1)
	}
	logging.Init(logCfg)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Warn().Err(err).Msg("config file unavailable, using defaults")
		cfg = config.DefaultConfig()
	}
	if err := config.ApplyEnv(cfg, ".env"); err != nil {
		log.Fatal().Err(err).Msg("env")
	}
	if cfg.FeedURL == "" {
		log.Fatal().Msg("feed_url (PROPCHAIN_FEED_URL) is required")
	}

	origin, err := wallet.LoadWallet(*keyPath, os.Getenv("PROPCHAIN_PASSWORD"))
	if err != nil {
		log.Fatal().Err(err).Msg("load origin key")
	}

	limit := core.DefaultParams().StringLimit
	if cfg.Genesis.Params != nil {
		limit = cfg.Genesis.Params.StringLimit
	}
	f := &feeder.Feeder{
		Fetcher: feeder.NewFetcher(cfg.FeedURL, limit),
		Client:  feeder.NewClient(*rpcURL, cfg.RPCAuthToken),
		Origin:  origin,
		ChainID: cfg.Genesis.ChainID,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *once {
		if err := f.RunOnce(ctx); err != nil {
			log.Fatal().Err(err).Msg("feed")
		}
		return
	}
	log.Info().Str("feed", cfg.FeedURL).Dur("interval", cfg.FeedInterval()).Msg("feeder running")
	f.Run(ctx, cfg.FeedInterval())
}

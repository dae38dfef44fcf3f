// borsa-seed loads a seed universe JSON file into the configured market
// store. The memory driver seeds itself at startup; this tool exists to
// populate SurrealDB.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/karimadel/borsa/internal/common"
	"github.com/karimadel/borsa/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to borsa.toml (defaults to BORSA_CONFIG)")
	seedPath := flag.String("seed", "", "path to the seed universe JSON file (defaults to storage.seed_path)")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline for the load")
	flag.Parse()

	if *configPath == "" {
		*configPath = os.Getenv("BORSA_CONFIG")
	}

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := common.NewLoggerFromConfig(cfg.Logging)

	if cfg.Storage.Driver == "memory" {
		fmt.Fprintln(os.Stderr, "The memory driver seeds itself at startup; nothing to do")
		os.Exit(1)
	}

	path := *seedPath
	if path == "" {
		path = cfg.Storage.SeedPath
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "No seed file: pass -seed or set storage.seed_path")
		os.Exit(1)
	}

	seed, err := storage.LoadSeedFile(path)
	if err != nil {
		logger.Fatal().Err(err).Str("path", path).Msg("Failed to load seed file")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	manager, err := storage.NewManager(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer manager.Close()

	if err := storage.ApplySeed(ctx, manager.MarketStore(), seed, logger); err != nil {
		logger.Fatal().Err(err).Msg("Seed load failed")
	}

	logger.Info().Str("path", path).Msg("Seed load complete")
}

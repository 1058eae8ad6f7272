package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"leafmart.dev/catalog/internal/catalog"
	"leafmart.dev/catalog/internal/cli"
	"leafmart.dev/catalog/internal/config"
	"leafmart.dev/catalog/internal/db"
	"leafmart.dev/catalog/internal/logging"
)

func runDupscan(args []string) int {
	fs := flag.NewFlagSet("dupscan", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	engine := catalog.NewEngine(txRunner(db.NewStore(pool)), catalog.NewScorer(cfg.AutoMergeThreshold), logger)
	flagged, err := engine.ScanDuplicates(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Duplicate scan failed: %v\n", err)
		return 1
	}

	fmt.Printf("flagged=%d\n", flagged)
	return 0
}

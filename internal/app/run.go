package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"leafmart.dev/catalog/internal/catalog"
	"leafmart.dev/catalog/internal/cli"
	"leafmart.dev/catalog/internal/config"
	"leafmart.dev/catalog/internal/db"
	"leafmart.dev/catalog/internal/logging"
	payloadschema "leafmart.dev/catalog/schema"
)

func runBatch(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	input := fs.String("input", "", "Path to scraped listings JSON file (object or array)")
	dispensary := fs.String("dispensary", "", "Dispensary id for the run (default: taken from listings)")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if strings.TrimSpace(*input) == "" {
		fmt.Fprintln(os.Stderr, "--input is required")
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

	listings, err := readListingFile(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid input: %v\n", err)
		return 2
	}

	dispensaryID := strings.TrimSpace(*dispensary)
	if dispensaryID == "" {
		dispensaryID = strings.TrimSpace(listings[0].DispensaryID)
	}
	if dispensaryID == "" {
		fmt.Fprintln(os.Stderr, "--dispensary is required when listings carry no dispensary_id")
		return 2
	}

	records := make([]catalog.Record, 0, len(listings))
	for _, listing := range listings {
		records = append(records, recordFromListing(listing))
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
	summary, err := engine.ProcessBatch(ctx, dispensaryID, records)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Run failed: %v\n", err)
		return 1
	}

	fmt.Printf("run_uuid=%s processed=%d skipped=%d auto_merged=%d created=%d flagged=%d\n",
		summary.RunUUID, summary.Processed, summary.Skipped, summary.AutoMerged, summary.Created, summary.Flagged)
	return 0
}

// txRunner adapts the concrete store's transaction boundary to the
// interface the engine and review manager take.
func txRunner(store *db.Store) catalog.TxRunner {
	return func(ctx context.Context, fn func(tx catalog.Store) error) error {
		return store.WithTx(ctx, func(tx *db.Store) error {
			return fn(tx)
		})
	}
}

func recordFromListing(listing payloadschema.ScrapedListing) catalog.Record {
	return catalog.Record{
		Name:         listing.Name,
		Brand:        listing.Brand,
		Category:     listing.Category,
		THC:          listing.THC,
		CBD:          listing.CBD,
		Price:        listing.Price,
		WeightText:   listing.WeightText,
		InStock:      listing.InStock,
		SourceURL:    listing.SourceURL,
		DispensaryID: strings.TrimSpace(listing.DispensaryID),
	}
}

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"restock/pkg/config"
	"restock/pkg/duplicate"
	"restock/pkg/fingerprint"
	"restock/pkg/ledger"
	"restock/pkg/marketplace"
	"restock/pkg/publish"
)

func newRunCmd() *cobra.Command {
	var (
		configPath string
		sourceDir  string
		assetKind  string
		price      int
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Publish all images from a folder to every configured destination",
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if len(cfg.Destinations) == 0 {
				return fmt.Errorf("no destinations configured; run 'restock config set destinations.<id>.cookie <cookie>' first")
			}
			if price > 0 {
				cfg.AssetsPrice = price
			}

			return runPublish(cmd, cfg, sourceDir, assetKind, logger)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file path (default ~/.config/restock/config.json)")
	cmd.Flags().StringVar(&sourceDir, "dir", ".", "Folder with images to publish")
	cmd.Flags().StringVar(&assetKind, "kind", "shirt", "Asset kind: shirt or pants")
	cmd.Flags().IntVar(&price, "price", 0, "Listing price (overrides config)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")

	return cmd
}

func runPublish(cmd *cobra.Command, cfg *config.Config, sourceDir, assetKind string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	led, err := openLedger(cfg, logger)
	if err != nil {
		return err
	}
	defer led.Close()

	items, err := listSource(sourceDir)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("no images found in %s", sourceDir)
	}
	logger.Info("starting run",
		"items", len(items), "destinations", len(cfg.Destinations))

	cache := fingerprint.NewCache(cfg.DuplicateDetection.CacheSize)
	matcher, err := buildMatcher(cfg, cache, logger)
	if err != nil {
		return err
	}

	endpoints := endpointsFor(cfg)
	backoff := publish.Backoff{
		Base:        time.Duration(cfg.Retry.BackoffBaseSecs) * time.Second,
		MaxAttempts: cfg.Retry.MaxAttempts,
	}

	var batches []publish.Batch
	for destID, dest := range cfg.Destinations {
		auth := marketplace.NewCookieAuth(dest.Cookie, endpoints.auth)
		corpusDir := dest.CorpusDir

		pipeline := &publish.Pipeline{
			Ledger:  led,
			Cache:   cache,
			Matcher: matcher,
			Corpus: func(req publish.Request) ([]duplicate.Entry, error) {
				if corpusDir == "" {
					return nil, nil
				}
				return duplicate.FromDir(corpusDir, filepath.Base(req.FilePath))
			},
			Client:       marketplace.NewClient(endpoints.assets, endpoints.config, auth),
			Auth:         auth,
			MaxScore:     cfg.MaxNudityValue,
			Backoff:      backoff,
			PollInterval: time.Duration(cfg.Retry.PollIntervalSec) * time.Second,
			PollAttempts: cfg.Retry.PollAttempts,
			Logger:       logger,
		}

		batch := publish.Batch{DestinationID: destID, Pipeline: pipeline}
		for _, item := range items {
			batch.Items = append(batch.Items, publish.Request{
				DisplayName:   publish.SanitizeDisplayName(strings.TrimSuffix(filepath.Base(item), filepath.Ext(item))),
				FilePath:      item,
				AssetKind:     assetKind,
				DestinationID: destID,
				Description:   cfg.Description,
				Price:         cfg.AssetsPrice,
			})
		}
		batches = append(batches, batch)
	}

	stats := publish.NewStats()
	runner := &publish.Runner{
		Stats:                       stats,
		Sleep:                       cfg.SleepBetweenUploads(),
		AbortRunOnInsufficientFunds: cfg.AbortRunOnInsufficientFunds,
		Logger:                      logger,
	}

	runErr := runner.Run(ctx, batches)
	printSummary(stats.Summary())
	return runErr
}

type endpoints struct {
	assets, config, auth string
}

func endpointsFor(cfg *config.Config) endpoints {
	e := endpoints{
		assets: marketplace.DefaultAssetsURL,
		config: marketplace.DefaultConfigURL,
		auth:   marketplace.DefaultAuthURL,
	}
	if cfg.Marketplace.AssetsURL != "" {
		e.assets = cfg.Marketplace.AssetsURL
	}
	if cfg.Marketplace.ConfigURL != "" {
		e.config = cfg.Marketplace.ConfigURL
	}
	if cfg.Marketplace.AuthURL != "" {
		e.auth = cfg.Marketplace.AuthURL
	}
	return e
}

func openLedger(cfg *config.Config, logger *slog.Logger) (ledger.Ledger, error) {
	switch cfg.Ledger.Backend {
	case "", "file":
		return ledger.OpenFileLedger(cfg.Ledger.Path, logger)
	case "sqlite":
		return ledger.OpenSQLiteLedger(cfg.Ledger.Path)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q (want file or sqlite)", cfg.Ledger.Backend)
	}
}

func buildMatcher(cfg *config.Config, cache *fingerprint.Cache, logger *slog.Logger) (*duplicate.Matcher, error) {
	if !cfg.IsDupeCheckEnabled() {
		return nil, nil
	}
	thresholds, err := cfg.Thresholds()
	if err != nil {
		return nil, err
	}
	matcher := duplicate.NewMatcher(cache)
	matcher.Thresholds = thresholds
	matcher.Logger = logger
	if cfg.DuplicateDetection.MinAlgorithmMatches > 0 {
		matcher.MinMatches = cfg.DuplicateDetection.MinAlgorithmMatches
	}
	if cfg.DuplicateDetection.Workers > 0 {
		matcher.Workers = cfg.DuplicateDetection.Workers
	}
	return matcher, nil
}

func listSource(dir string) ([]string, error) {
	entries, err := duplicate.FromDir(dir, "")
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	return paths, nil
}

func printSummary(s publish.Summary) {
	fmt.Printf("\nRun finished in %s\n", s.Runtime.Round(time.Second))
	fmt.Printf("  processed:  %d\n", s.Processed)
	fmt.Printf("  published:  %d\n", s.Published)
	fmt.Printf("  duplicates: %d\n", s.Duplicates)
	fmt.Printf("  rejected:   %d\n", s.Rejected)
	fmt.Printf("  failed:     %d\n", s.Failed)
	for cause, n := range s.RejectCounts {
		fmt.Printf("    %s: %d\n", cause, n)
	}
	if !s.LastPublished.IsZero() {
		fmt.Printf("  last published at %s\n", s.LastPublished.Format(time.Kitchen))
	}
	for _, msg := range s.RecentErrors {
		fmt.Printf("  error: %s\n", msg)
	}
}

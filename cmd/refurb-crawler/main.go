package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/maltedev/refurb-crawler/internal/app"
	"github.com/maltedev/refurb-crawler/internal/config"
	"github.com/maltedev/refurb-crawler/internal/models"
	"github.com/maltedev/refurb-crawler/internal/storage"
	"github.com/maltedev/refurb-crawler/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	var (
		countries     = flag.String("countries", "", "Comma separated region tags to crawl (default: all)")
		startURLs     = flag.String("start-urls", "", "File with start URLs, one per line (TAG<TAB>URL, TAG URL or bare URL)")
		output        = flag.String("output", cfg.Output.Path, "Output JSON path")
		maxPerCountry = flag.Int("max-per-country", cfg.Crawl.MaxResults, "Limit products per region (0 = unlimited)")
		maxDepth      = flag.Int("max-depth", cfg.Crawl.MaxDepth, "Maximum listing depth per region")
		maxPages      = flag.Int("max-pages", cfg.Crawl.MaxPages, "Maximum pages fetched per region")
		concurrency   = flag.Int("concurrency", cfg.Crawl.Concurrency, "Concurrent product validations per region")
		verbose       = flag.Bool("verbose", false, "Log every parsed record")
		showBrowser   = flag.Bool("show-browser", false, "Run the browser with a visible window")
	)
	flag.Parse()

	cfg.Output.Path = *output
	cfg.Crawl.MaxResults = *maxPerCountry
	cfg.Crawl.MaxDepth = *maxDepth
	cfg.Crawl.MaxPages = *maxPages
	cfg.Crawl.Concurrency = *concurrency
	if *verbose {
		cfg.Logging.Level = "debug"
	}
	if *showBrowser {
		cfg.Browser.Headless = false
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	log := logger.Init(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	seeds, err := loadSeeds(*startURLs, *countries)
	if errors.Is(err, config.ErrNoSeeds) {
		fmt.Println("No start URLs available. Provide --start-urls or check --countries.")
		return
	}
	if err != nil {
		log.Error("failed to load seeds", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, cfg, seeds, log)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, seeds []models.Seed, log *slog.Logger) int {
	stack, err := app.Build(ctx, cfg, prometheus.NewRegistry(), log)
	if err != nil {
		log.Error("failed to start crawler", "error", err)
		return 1
	}
	defer stack.Close()

	result, err := stack.Runner.Run(ctx, "", seeds)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("Interrupted by user")
			return 130
		}
		log.Error("crawl failed", "error", err)
		return 1
	}

	path, err := storage.NewResultWriter(cfg.Output.Path, log).Write(result.Results)
	if err != nil {
		log.Error("failed to write results", "error", err)
		return 1
	}

	fmt.Println("Saved:", path)
	return 0
}

func loadSeeds(path, countries string) ([]models.Seed, error) {
	seeds := config.DefaultSeeds()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open start urls: %w", err)
		}
		defer f.Close()

		seeds, err = config.ParseSeeds(f)
		if err != nil {
			return nil, err
		}
	}
	return config.FilterSeeds(seeds, countries)
}

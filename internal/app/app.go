// Package app assembles the crawl stack shared by the CLI and the API server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maltedev/refurb-crawler/internal/browser"
	"github.com/maltedev/refurb-crawler/internal/classifier"
	"github.com/maltedev/refurb-crawler/internal/config"
	"github.com/maltedev/refurb-crawler/internal/crawler"
	"github.com/maltedev/refurb-crawler/internal/database"
	"github.com/maltedev/refurb-crawler/internal/frontier"
	"github.com/maltedev/refurb-crawler/internal/metrics"
	"github.com/maltedev/refurb-crawler/internal/ratelimit"
	pkglogger "github.com/maltedev/refurb-crawler/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

type Stack struct {
	Runner  *crawler.Runner
	Metrics *metrics.Metrics

	// Records is nil unless DB_ENABLED; Relay also needs REDIS_ENABLED.
	Records *database.RecordRepository
	Relay   *database.Relay

	browser *browser.Browser
	db      *database.DB
	redis   *redis.Client
	logger  *slog.Logger
}

// Build connects the optional stores, launches the browser and wires the
// crawler. The caller must Close the returned stack.
func Build(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) (*Stack, error) {
	s := &Stack{
		Metrics: metrics.New(reg),
		logger:  logger,
	}

	var sinks []crawler.RecordSink
	if cfg.Database.Enabled {
		db, err := database.New(ctx, database.Config{
			DSN:      cfg.Database.DSN(),
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db

		if err := db.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}

		s.Records = database.NewRecordRepository(db, logger)
		sinks = append(sinks, s.Records)
	}

	visited := crawler.VisitedFactory(crawler.MemoryVisited)
	if cfg.Redis.Enabled {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		if cfg.Crawl.VisitedBackend == config.VisitedRedis {
			visited = crawler.RedisVisited(s.redis, cfg.Crawl.VisitedTTL)
		}
		if s.db != nil {
			s.Relay = database.NewRelay(s.db, s.redis, logger, database.RelayConfig{
				StreamMaxLen: cfg.Redis.StreamMaxLen,
			})
		}
	}

	b, err := browser.New(&browser.Options{
		Headless:       cfg.Browser.Headless,
		Timeout:        cfg.Browser.Timeout,
		UserAgent:      cfg.Browser.UserAgent,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		Locale:         cfg.Browser.Locale,
	}, logger)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}
	s.browser = b

	renderer := browser.NewRenderer(b, ratelimit.NewJitterDelay(cfg.Crawl.DelayMin, cfg.Crawl.DelayMax), logger)
	cls := classifier.New(classifier.Options{
		ProductTokenMinLen: cfg.Crawl.ProductTokenMinLen,
		VariantParams:      cfg.Crawl.VariantParams,
	})

	c := crawler.New(renderer, nil, cls, crawler.Options{
		Limits: frontier.Limits{
			MaxPages:   cfg.Crawl.MaxPages,
			MaxResults: cfg.Crawl.MaxResults,
			MaxDepth:   cfg.Crawl.MaxDepth,
		},
		Concurrency: cfg.Crawl.Concurrency,
		PageTimeout: cfg.Crawl.PageTimeout,
		Verbose:     pkglogger.ParseLevel(cfg.Logging.Level) == slog.LevelDebug,
	}, logger, crawler.WithMetrics(s.Metrics), crawler.WithSinks(sinks...))

	s.Runner = crawler.NewRunner(c, visited,
		ratelimit.NewJitterDelay(cfg.Crawl.SitePauseMin, cfg.Crawl.SitePauseMax), logger)

	return s, nil
}

// StartRelay publishes queued record events in the background until ctx is done.
func (s *Stack) StartRelay(ctx context.Context) {
	if s.Relay == nil {
		return
	}
	go func() {
		if err := s.Relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("relay stopped with error", "error", err)
		}
	}()
}

func (s *Stack) Close() {
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			s.logger.Warn("failed to close browser", "error", err)
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

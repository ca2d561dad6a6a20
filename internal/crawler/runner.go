package crawler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/refurb-crawler/internal/frontier"
	"github.com/maltedev/refurb-crawler/internal/models"
	"github.com/maltedev/refurb-crawler/internal/ratelimit"
)

// VisitedFactory builds a fresh visited set for one site-root of one run.
type VisitedFactory func(runID, tag string) frontier.VisitedSet

func MemoryVisited(_, _ string) frontier.VisitedSet {
	return frontier.NewMemoryVisitedSet()
}

// RedisVisited keys visited URLs under refurb:visited:<runID>:<tag>:.
func RedisVisited(client frontier.RedisClient, ttl time.Duration) VisitedFactory {
	return func(runID, tag string) frontier.VisitedSet {
		return frontier.NewRedisVisitedSet(client, frontier.VisitedKeyPrefix(runID, tag), ttl)
	}
}

type SiteStats struct {
	Tag      string         `json:"tag"`
	Root     string         `json:"root"`
	Records  int            `json:"records"`
	Stats    frontier.Stats `json:"stats"`
	Duration time.Duration  `json:"duration_ns"`
	Error    string         `json:"error,omitempty"`
}

type RunResult struct {
	RunID   string              `json:"run_id"`
	Results models.CrawlResults `json:"-"`
	Sites   []SiteStats         `json:"sites"`
}

// Runner crawls site-roots one after another.
type Runner struct {
	crawler *Crawler
	visited VisitedFactory
	pause   ratelimit.RateLimiter
	logger  *slog.Logger
}

func NewRunner(c *Crawler, visited VisitedFactory, pause ratelimit.RateLimiter, logger *slog.Logger) *Runner {
	if visited == nil {
		visited = MemoryVisited
	}
	if pause == nil {
		pause = ratelimit.NewJitterDelay(200*time.Millisecond, time.Second)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		crawler: c,
		visited: visited,
		pause:   pause,
		logger:  logger.With("component", "runner"),
	}
}

// Run crawls every seed in order. A site that fails, including one whose
// start page is unreachable, contributes an empty list; only cancellation
// of ctx stops the run early.
func (r *Runner) Run(ctx context.Context, runID string, seeds []models.Seed) (*RunResult, error) {
	return r.run(ctx, r.crawler, runID, seeds)
}

// RunWithLimits is Run with per-run page, result and depth caps.
func (r *Runner) RunWithLimits(ctx context.Context, runID string, seeds []models.Seed, limits frontier.Limits) (*RunResult, error) {
	return r.run(ctx, r.crawler.WithLimits(limits), runID, seeds)
}

func (r *Runner) Limits() frontier.Limits {
	return r.crawler.Limits()
}

func (r *Runner) run(ctx context.Context, c *Crawler, runID string, seeds []models.Seed) (*RunResult, error) {
	if runID == "" {
		runID = uuid.NewString()
	}

	out := &RunResult{
		RunID:   runID,
		Results: make(models.CrawlResults, 0, len(seeds)),
		Sites:   make([]SiteStats, 0, len(seeds)),
	}

	r.logger.Info("starting run", "run_id", runID, "sites", len(seeds))

	for i, seed := range seeds {
		if i > 0 {
			if err := r.pause.Wait(ctx); err != nil {
				return out, err
			}
		}

		start := time.Now()
		res, err := c.CrawlSite(ctx, runID, seed, r.visited(runID, seed.Tag))

		stats := SiteStats{
			Tag:      seed.Tag,
			Root:     res.Root,
			Records:  len(res.Records),
			Stats:    res.Stats,
			Duration: time.Since(start),
		}
		if err != nil {
			stats.Error = err.Error()
		}

		out.Results = append(out.Results, models.RegionRecords{Tag: seed.Tag, Records: res.Records})
		out.Sites = append(out.Sites, stats)

		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return out, err
			}
			r.logger.Warn("site crawl failed", "region", seed.Tag, "error", err)
			continue
		}
		r.logger.Info("parsed products", "region", seed.Tag, "records", len(res.Records))
	}

	r.logger.Info("run finished", "run_id", runID, "records", out.Results.Total())
	return out, nil
}

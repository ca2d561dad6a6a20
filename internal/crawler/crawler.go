package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maltedev/refurb-crawler/internal/browser"
	"github.com/maltedev/refurb-crawler/internal/classifier"
	"github.com/maltedev/refurb-crawler/internal/frontier"
	"github.com/maltedev/refurb-crawler/internal/metrics"
	"github.com/maltedev/refurb-crawler/internal/models"
	"github.com/maltedev/refurb-crawler/internal/parser"
	"github.com/maltedev/refurb-crawler/internal/urlutil"
	"golang.org/x/sync/errgroup"
)

var (
	ErrStartPageUnreachable = errors.New("start page unreachable")
	ErrInvalidSeedURL       = errors.New("invalid seed URL")
)

const (
	kindListing = "listing"
	kindProduct = "product"
)

// RecordSink receives every accepted record as soon as it is accepted.
type RecordSink interface {
	SaveRecord(ctx context.Context, runID, region string, rec models.ExtractedRecord) error
}

type Options struct {
	Limits      frontier.Limits
	Concurrency int
	PageTimeout time.Duration
	Verbose     bool
}

func DefaultOptions() Options {
	return Options{
		Limits: frontier.Limits{
			MaxPages: 200,
			MaxDepth: 2,
		},
		Concurrency: 6,
		PageTimeout: 30 * time.Second,
	}
}

type Crawler struct {
	renderer   browser.Renderer
	extractor  *parser.Extractor
	classifier *classifier.Classifier
	opts       Options
	metrics    *metrics.Metrics
	sinks      []RecordSink
	logger     *slog.Logger
}

type Option func(*Crawler)

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Crawler) {
		c.metrics = m
	}
}

func WithSinks(sinks ...RecordSink) Option {
	return func(c *Crawler) {
		c.sinks = append(c.sinks, sinks...)
	}
}

func New(renderer browser.Renderer, extractor *parser.Extractor, cls *classifier.Classifier, opts Options, logger *slog.Logger, options ...Option) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	if cls == nil {
		cls = classifier.New(classifier.DefaultOptions())
	}
	if extractor == nil {
		extractor = parser.NewExtractor(nil, parser.WithProductURLMatcher(cls.IsProductURL))
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = DefaultOptions().PageTimeout
	}

	c := &Crawler{
		renderer:   renderer,
		extractor:  extractor,
		classifier: cls,
		opts:       opts,
		logger:     logger.With("component", "crawler"),
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// WithLimits returns a crawler sharing c's collaborators but bounded by limits.
func (c *Crawler) WithLimits(limits frontier.Limits) *Crawler {
	cp := *c
	cp.opts.Limits = limits
	return &cp
}

func (c *Crawler) Limits() frontier.Limits {
	return c.opts.Limits
}

// SiteResult is the outcome of crawling one site-root.
type SiteResult struct {
	Tag     string
	Root    string
	Records []models.ExtractedRecord
	Stats   frontier.Stats
}

// site carries the per-crawl state shared by the listing loop and the
// validation workers.
type site struct {
	seed     models.Seed
	runID    string
	frontier *frontier.Frontier
	logger   *slog.Logger

	mu      sync.Mutex
	records []models.ExtractedRecord
}

func (s *site) add(rec models.ExtractedRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

// CrawlSite runs one bounded BFS from seed.URL. Listing pages are expanded
// one at a time on the calling goroutine; product candidates are validated
// by up to Concurrency workers. The visited set must not be shared with any
// other crawl.
func (c *Crawler) CrawlSite(ctx context.Context, runID string, seed models.Seed, visited frontier.VisitedSet) (*SiteResult, error) {
	root, ok := urlutil.Normalize(seed.URL)
	if !ok {
		return &SiteResult{Tag: seed.Tag, Root: seed.URL}, fmt.Errorf("%w: %q", ErrInvalidSeedURL, seed.URL)
	}

	logger := c.logger.With("region", seed.Tag)
	s := &site{
		seed:     models.Seed{Tag: seed.Tag, URL: root},
		runID:    runID,
		frontier: frontier.New(root, c.opts.Limits, visited, logger),
		logger:   logger,
	}
	s.frontier.Seed(root)

	logger.Info("crawling site", "root", root,
		"max_pages", c.opts.Limits.MaxPages,
		"max_results", c.opts.Limits.MaxResults,
		"max_depth", c.opts.Limits.MaxDepth)

	var pool errgroup.Group
	pool.SetLimit(c.opts.Concurrency)

	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		for {
			task, ok := s.frontier.NextProduct(ctx)
			if !ok {
				return
			}
			pool.Go(func() error {
				c.validate(ctx, s, task)
				return nil
			})
		}
	}()

	var startErr error
	for {
		task, ok := s.frontier.NextListing(ctx)
		if !ok {
			break
		}
		if err := c.expand(ctx, s, task); err != nil && task.URL == root {
			startErr = fmt.Errorf("%w: %v", ErrStartPageUnreachable, err)
			break
		}
	}

	s.frontier.CloseProducts()
	<-dispatched
	_ = pool.Wait()

	result := &SiteResult{
		Tag:     seed.Tag,
		Root:    root,
		Records: Dedup(s.records),
		Stats:   s.frontier.Stats(),
	}

	if startErr != nil {
		c.metrics.SiteCrawled("unreachable")
		logger.Error("failed to open start page", "root", root, "error", startErr)
		return result, startErr
	}

	c.metrics.SiteCrawled("completed")
	logger.Info("site crawl finished",
		"records", len(result.Records),
		"pages_visited", result.Stats.PagesVisited,
		"rejected", result.Stats.Rejected,
		"failed", result.Stats.Failed)

	return result, ctx.Err()
}

// expand opens a listing page, reveals more content, and partitions its
// links into validation tasks and deeper listing tasks. A listing URL whose
// canonical address is product-shaped is evaluated in place.
func (c *Crawler) expand(ctx context.Context, s *site, task models.CrawlTask) error {
	opCtx, cancel := context.WithTimeout(ctx, c.opts.PageTimeout)
	defer cancel()

	start := time.Now()
	page, err := c.renderer.Open(opCtx, task.URL)
	if err != nil {
		c.fail(s, task, kindListing, err)
		return err
	}
	defer c.release(s, page)
	c.metrics.PageFetched(s.seed.Tag, kindListing, time.Since(start))

	html, err := page.Content()
	if err != nil {
		c.fail(s, task, kindListing, err)
		return err
	}

	doc, err := parser.NewDocument(task.URL, html)
	if err != nil {
		c.fail(s, task, kindListing, err)
		return err
	}

	if doc.CanonicalURL != "" && c.classifier.IsProductURL(doc.CanonicalURL) {
		c.evaluate(ctx, s, task, doc)
		return nil
	}

	c.renderer.RevealMore(opCtx, page)

	links, err := c.renderer.ExtractLinks(opCtx, page, task.URL)
	if err != nil {
		c.fail(s, task, kindListing, err)
		return err
	}

	products, listings := c.partition(links, s.seed.URL)
	queuedProducts := s.frontier.PushProducts(task, products)
	queuedListings := s.frontier.PushListings(task, listings)
	s.frontier.Complete(task.URL, frontier.StateExpanded)

	s.logger.Debug("expanded listing page",
		"url", task.URL,
		"depth", task.Depth,
		"links", len(links),
		"products_queued", queuedProducts,
		"listings_queued", queuedListings)

	return nil
}

func (c *Crawler) partition(links []string, root string) (products, listings []string) {
	for _, link := range links {
		switch {
		case c.classifier.IsProductURL(link):
			products = append(products, link)
		case c.classifier.IsListingURL(link, root):
			listings = append(listings, link)
		}
	}
	return products, listings
}

// validate performs the single fetch of a product candidate.
func (c *Crawler) validate(ctx context.Context, s *site, task models.CrawlTask) {
	c.metrics.ValidationStarted()
	defer c.metrics.ValidationDone()

	if s.frontier.ResultCapReached() {
		s.frontier.Abandon(task.URL)
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, c.opts.PageTimeout)
	defer cancel()

	start := time.Now()
	page, err := c.renderer.Open(opCtx, task.URL)
	if err != nil {
		c.fail(s, task, kindProduct, err)
		return
	}
	defer c.release(s, page)
	c.metrics.PageFetched(s.seed.Tag, kindProduct, time.Since(start))

	html, err := page.Content()
	if err != nil {
		c.fail(s, task, kindProduct, err)
		return
	}

	doc, err := parser.NewDocument(task.URL, html)
	if err != nil {
		c.fail(s, task, kindProduct, err)
		return
	}

	c.evaluate(ctx, s, task, doc)
}

// evaluate extracts and classifies an already fetched document.
func (c *Crawler) evaluate(ctx context.Context, s *site, task models.CrawlTask, doc *parser.Document) {
	ext := c.extractor.Extract(doc)

	ok, reason := c.classifier.Classify(doc, ext.Signals)
	if !ok {
		s.frontier.Complete(task.URL, frontier.StateRejected)
		c.metrics.CandidateRejected(s.seed.Tag, reason)
		s.logger.Debug("skipping non-product", "url", task.URL, "reason", reason)
		return
	}

	if !s.frontier.TryAccept(task.URL) {
		s.logger.Debug("result cap reached, dropping record", "url", task.URL)
		return
	}

	rec := ext.Record
	s.add(rec)
	c.metrics.RecordAccepted(s.seed.Tag)

	if c.opts.Verbose {
		if data, err := json.Marshal(rec); err == nil {
			s.logger.Debug("accepted record", "record", string(data))
		}
	}

	for _, sink := range c.sinks {
		if err := sink.SaveRecord(ctx, s.runID, s.seed.Tag, rec); err != nil {
			s.logger.Error("failed to save record", "url", rec.SourceURL, "error", err)
		}
	}
}

func (c *Crawler) fail(s *site, task models.CrawlTask, kind string, err error) {
	s.frontier.Complete(task.URL, frontier.StateFailed)
	c.metrics.FetchFailed(s.seed.Tag)
	s.logger.Warn("failed to fetch page", "url", task.URL, "kind", kind, "depth", task.Depth, "error", err)
}

func (c *Crawler) release(s *site, page browser.Page) {
	if err := page.Close(); err != nil {
		s.logger.Debug("failed to close page", "url", page.URL(), "error", err)
	}
}

// Dedup keeps the first record for each canonical address.
func Dedup(records []models.ExtractedRecord) []models.ExtractedRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]models.ExtractedRecord, 0, len(records))
	for _, rec := range records {
		key := rec.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	return out
}

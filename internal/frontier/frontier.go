// Package frontier holds the per-site crawl state: two typed queues (listing
// pages to expand, product candidates to validate), the visited set, the
// page and result caps, and the state of every URL seen.
package frontier

import (
	"context"
	"log/slog"
	"sync"

	"github.com/maltedev/refurb-crawler/internal/models"
	"github.com/maltedev/refurb-crawler/internal/queue"
)

type State string

const (
	StateQueued   State = "queued"
	StateVisiting State = "visiting"
	StateExpanded State = "expanded"
	StateAccepted State = "accepted"
	StateRejected State = "rejected"
	StateFailed   State = "failed"
)

func (s State) Terminal() bool {
	switch s {
	case StateExpanded, StateAccepted, StateRejected, StateFailed:
		return true
	}
	return false
}

// Limits bound one site-root crawl. Zero MaxPages or MaxResults means no cap.
type Limits struct {
	MaxPages   int
	MaxResults int
	MaxDepth   int
}

type Stats struct {
	PagesVisited int `json:"pages_visited"`
	Expanded     int `json:"expanded"`
	Accepted     int `json:"accepted"`
	Rejected     int `json:"rejected"`
	Failed       int `json:"failed"`
	Duplicates   int `json:"duplicates"`
	OverCap      int `json:"over_cap"`
}

type Frontier struct {
	root     string
	limits   Limits
	visited  VisitedSet
	listings *queue.InMemoryQueue[models.CrawlTask]
	products *queue.InMemoryQueue[models.CrawlTask]
	logger   *slog.Logger

	mu       sync.Mutex
	states   map[string]State
	pages    int
	accepted int
	stats    Stats
}

func New(root string, limits Limits, visited VisitedSet, logger *slog.Logger) *Frontier {
	if visited == nil {
		visited = NewMemoryVisitedSet()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if limits.MaxDepth < 1 {
		limits.MaxDepth = 1
	}

	return &Frontier{
		root:     root,
		limits:   limits,
		visited:  visited,
		listings: queue.NewInMemoryQueue[models.CrawlTask](),
		products: queue.NewInMemoryQueue[models.CrawlTask](),
		logger:   logger.With("component", "frontier"),
		states:   make(map[string]State),
	}
}

func (f *Frontier) Root() string {
	return f.root
}

func (f *Frontier) Limits() Limits {
	return f.limits
}

// Seed queues the site-root itself as a depth-1 listing task.
func (f *Frontier) Seed(url string) {
	if f.enqueue(f.listings, models.CrawlTask{URL: url, Depth: 1}) {
		f.logger.Debug("seeded frontier", "url", url)
	}
}

// PushListings queues listing children of parent at parent.Depth+1. Nothing
// is queued once parent.Depth exceeds MaxDepth, so pages at the deepest
// allowed tier are still fetched but their listing children are dropped.
func (f *Frontier) PushListings(parent models.CrawlTask, urls []string) int {
	if parent.Depth > f.limits.MaxDepth || f.Halted() {
		return 0
	}

	n := 0
	for _, u := range urls {
		if f.enqueue(f.listings, models.CrawlTask{URL: u, Depth: parent.Depth + 1}) {
			n++
		}
	}
	return n
}

// PushProducts queues validation tasks. Product candidates are not subject
// to the depth cap.
func (f *Frontier) PushProducts(parent models.CrawlTask, urls []string) int {
	if f.Halted() {
		return 0
	}

	n := 0
	for _, u := range urls {
		if f.enqueue(f.products, models.CrawlTask{URL: u, Depth: parent.Depth + 1}) {
			n++
		}
	}
	return n
}

func (f *Frontier) enqueue(q *queue.InMemoryQueue[models.CrawlTask], task models.CrawlTask) bool {
	f.mu.Lock()
	if _, seen := f.states[task.URL]; seen {
		f.mu.Unlock()
		return false
	}
	f.states[task.URL] = StateQueued
	f.mu.Unlock()

	if err := q.Push(task); err != nil {
		f.mu.Lock()
		delete(f.states, task.URL)
		f.mu.Unlock()
		return false
	}
	return true
}

// NextListing hands out the next listing task without blocking. It reports
// false when the listing queue is empty or the frontier has halted.
func (f *Frontier) NextListing(ctx context.Context) (models.CrawlTask, bool) {
	for {
		if f.Halted() || ctx.Err() != nil {
			return models.CrawlTask{}, false
		}

		task, err := f.listings.TryPop()
		if err != nil {
			return models.CrawlTask{}, false
		}
		if f.claim(ctx, task) {
			return task, true
		}
	}
}

// NextProduct blocks until a validation task is available. It reports false
// once the product queue is closed and drained, ctx is done, or the frontier
// has halted.
func (f *Frontier) NextProduct(ctx context.Context) (models.CrawlTask, bool) {
	for {
		if f.Halted() {
			return models.CrawlTask{}, false
		}

		task, err := f.products.Pop(ctx)
		if err != nil {
			return models.CrawlTask{}, false
		}
		if f.claim(ctx, task) {
			return task, true
		}
	}
}

// CloseProducts signals that no more validation tasks will be queued.
func (f *Frontier) CloseProducts() {
	_ = f.products.Close()
}

// claim reserves a page slot and marks the URL visited before any fetch.
func (f *Frontier) claim(ctx context.Context, task models.CrawlTask) bool {
	f.mu.Lock()
	if f.haltedLocked() {
		f.mu.Unlock()
		return false
	}
	f.pages++
	f.mu.Unlock()

	added, err := f.visited.Add(ctx, task.URL)
	if err != nil || !added {
		f.mu.Lock()
		f.pages--
		if err != nil {
			f.states[task.URL] = StateFailed
			f.stats.Failed++
		} else {
			f.stats.Duplicates++
		}
		f.mu.Unlock()

		if err != nil {
			f.logger.Warn("visited set unavailable, skipping task", "url", task.URL, "error", err)
		}
		return false
	}

	f.mu.Lock()
	f.states[task.URL] = StateVisiting
	f.stats.PagesVisited = f.pages
	f.mu.Unlock()
	return true
}

// TryAccept admits one more result unless the result cap is reached. Work
// that finishes after the cap is counted as over-cap and dropped.
func (f *Frontier) TryAccept(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.limits.MaxResults > 0 && f.accepted >= f.limits.MaxResults {
		f.states[url] = StateRejected
		f.stats.OverCap++
		return false
	}

	f.accepted++
	f.states[url] = StateAccepted
	f.stats.Accepted = f.accepted
	return true
}

// ResultCapReached reports whether no further results can be accepted.
func (f *Frontier) ResultCapReached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.limits.MaxResults > 0 && f.accepted >= f.limits.MaxResults
}

// Abandon drops a claimed task that will not be fetched because the result
// cap was reached while it waited for a worker.
func (f *Frontier) Abandon(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[url] = StateRejected
	f.stats.OverCap++
}

// Complete moves a visiting URL to a terminal non-accepted state.
func (f *Frontier) Complete(url string, state State) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.states[url] = state
	switch state {
	case StateExpanded:
		f.stats.Expanded++
	case StateRejected:
		f.stats.Rejected++
	case StateFailed:
		f.stats.Failed++
	}
}

func (f *Frontier) Halted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.haltedLocked()
}

func (f *Frontier) haltedLocked() bool {
	if f.limits.MaxPages > 0 && f.pages >= f.limits.MaxPages {
		return true
	}
	return f.limits.MaxResults > 0 && f.accepted >= f.limits.MaxResults
}

func (f *Frontier) State(url string) (State, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[url]
	return s, ok
}

func (f *Frontier) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// Pending reports queued listing and product tasks.
func (f *Frontier) Pending() (listings, products int) {
	return f.listings.Size(), f.products.Size()
}

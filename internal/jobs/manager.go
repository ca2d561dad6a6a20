package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/refurb-crawler/internal/config"
	"github.com/maltedev/refurb-crawler/internal/crawler"
	"github.com/maltedev/refurb-crawler/internal/frontier"
	"github.com/maltedev/refurb-crawler/internal/models"
	"github.com/maltedev/refurb-crawler/internal/queue"
	"github.com/maltedev/refurb-crawler/internal/urlutil"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobRunning  = errors.New("job has not finished")
	ErrInvalidURL  = errors.New("invalid start URL")
	ErrInvalidTag  = errors.New("invalid region tag")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Executor runs one crawl over seeds under limits.
type Executor interface {
	RunWithLimits(ctx context.Context, runID string, seeds []models.Seed, limits frontier.Limits) (*crawler.RunResult, error)
}

// Request describes a crawl to start. Zero values fall back to the manager's
// defaults.
type Request struct {
	Regions    []string          `json:"regions"`
	StartURLs  map[string]string `json:"start_urls"`
	MaxResults *int              `json:"max_results"`
	MaxDepth   *int              `json:"max_depth"`
	MaxPages   *int              `json:"max_pages"`
}

// Job represents one crawl run
type Job struct {
	ID          string              `json:"id"`
	Status      Status              `json:"status"`
	Seeds       []models.Seed       `json:"seeds"`
	Limits      frontier.Limits     `json:"limits"`
	Records     int                 `json:"records"`
	Sites       []crawler.SiteStats `json:"sites,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	StartedAt   *time.Time          `json:"started_at,omitempty"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	Error       string              `json:"error,omitempty"`

	results models.CrawlResults
}

type Defaults struct {
	Seeds  []models.Seed
	Limits frontier.Limits
}

// Manager queues crawl jobs and runs them one at a time.
type Manager struct {
	exec     Executor
	defaults Defaults
	queue    *queue.InMemoryQueue[string]
	logger   *slog.Logger

	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewManager(exec Executor, defaults Defaults, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if len(defaults.Seeds) == 0 {
		defaults.Seeds = config.DefaultSeeds()
	}
	return &Manager{
		exec:     exec,
		defaults: defaults,
		queue:    queue.NewInMemoryQueue[string](),
		logger:   logger.With("component", "job_manager"),
		jobs:     make(map[string]*Job),
	}
}

// CreateJob validates req and queues a pending job.
func (m *Manager) CreateJob(req Request) (*Job, error) {
	seeds, err := m.resolveSeeds(req)
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:        uuid.New().String(),
		Status:    StatusPending,
		Seeds:     seeds,
		Limits:    m.resolveLimits(req),
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	snapshot := *job
	m.mu.Unlock()

	if err := m.queue.Push(job.ID); err != nil {
		m.mu.Lock()
		delete(m.jobs, job.ID)
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to queue job: %w", err)
	}

	m.logger.Info("job created", "id", job.ID, "sites", len(seeds))
	return &snapshot, nil
}

func (m *Manager) resolveSeeds(req Request) ([]models.Seed, error) {
	seeds := m.defaults.Seeds
	if len(req.StartURLs) > 0 {
		tags := make([]string, 0, len(req.StartURLs))
		for tag := range req.StartURLs {
			tags = append(tags, tag)
		}
		sort.Strings(tags)

		// Tags are case-insensitive, so "de" and "DE" would both become DE
		// and collide as keys of the results object.
		seen := make(map[string]string, len(tags))
		seeds = make([]models.Seed, 0, len(tags))
		for _, tag := range tags {
			key := strings.ToUpper(strings.TrimSpace(tag))
			if key == "" {
				return nil, fmt.Errorf("%w: empty tag", ErrInvalidTag)
			}
			if prev, dup := seen[key]; dup {
				return nil, fmt.Errorf("%w: %q and %q are the same region", ErrInvalidTag, prev, tag)
			}
			seen[key] = tag

			raw := req.StartURLs[tag]
			if _, ok := urlutil.Normalize(raw); !ok {
				return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
			}
			seeds = append(seeds, models.Seed{Tag: key, URL: raw})
		}
	}

	return config.FilterSeeds(seeds, strings.Join(req.Regions, ","))
}

func (m *Manager) resolveLimits(req Request) frontier.Limits {
	limits := m.defaults.Limits
	if req.MaxResults != nil && *req.MaxResults >= 0 {
		limits.MaxResults = *req.MaxResults
	}
	if req.MaxDepth != nil && *req.MaxDepth >= 1 {
		limits.MaxDepth = *req.MaxDepth
	}
	if req.MaxPages != nil && *req.MaxPages >= 0 {
		limits.MaxPages = *req.MaxPages
	}
	return limits
}

// GetJob returns a snapshot of the job.
func (m *Manager) GetJob(jobID string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	snapshot := *job
	return &snapshot, nil
}

// ListJobs returns all jobs, newest first.
func (m *Manager) ListJobs() []*Job {
	m.mu.RLock()
	out := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		snapshot := *job
		out = append(out, &snapshot)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Results returns the records of a finished job keyed by region.
func (m *Manager) Results(jobID string) (models.CrawlResults, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	if !job.Status.Finished() {
		return nil, ErrJobRunning
	}
	return job.results, nil
}

// Close stops accepting jobs; the worker exits once the queue drains.
func (m *Manager) Close() error {
	return m.queue.Close()
}

func (m *Manager) update(jobID string, fn func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[jobID]; ok {
		fn(job)
	}
}

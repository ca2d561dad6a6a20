package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/maltedev/refurb-crawler/internal/config"
	"github.com/maltedev/refurb-crawler/internal/database"
	"github.com/maltedev/refurb-crawler/internal/jobs"
	"github.com/maltedev/refurb-crawler/internal/models"
)

type JobService interface {
	CreateJob(req jobs.Request) (*jobs.Job, error)
	GetJob(jobID string) (*jobs.Job, error)
	ListJobs() []*jobs.Job
	Results(jobID string) (models.CrawlResults, error)
}

type RecordLister interface {
	ListByRegion(ctx context.Context, region string, limit int) ([]database.StoredRecord, error)
}

type EventStats interface {
	EventCounts(ctx context.Context) (database.EventCounts, error)
}

type Handlers struct {
	jobs    JobService
	records RecordLister
	events  EventStats
	logger  *slog.Logger
}

// NewHandlers wires the crawl job endpoints. records and events are optional
// and only set when persistence is enabled.
func NewHandlers(jobs JobService, records RecordLister, events EventStats, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		jobs:    jobs,
		records: records,
		events:  events,
		logger:  logger.With("component", "api"),
	}
}

// CreateCrawlResponse represents the job creation response
type CreateCrawlResponse struct {
	JobID  string      `json:"job_id"`
	Status jobs.Status `json:"status"`
}

// CreateCrawl queues a crawl. An empty body crawls the default seeds.
func (h *Handlers) CreateCrawl(w http.ResponseWriter, r *http.Request) {
	var req jobs.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := h.jobs.CreateJob(req)
	switch {
	case errors.Is(err, config.ErrNoSeeds), errors.Is(err, jobs.ErrInvalidURL),
		errors.Is(err, jobs.ErrInvalidTag):
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to create job", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	h.respondJSON(w, http.StatusAccepted, CreateCrawlResponse{
		JobID:  job.ID,
		Status: job.Status,
	})
}

func (h *Handlers) ListCrawls(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.jobs.ListJobs())
}

func (h *Handlers) GetCrawl(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetJob(chi.URLParam(r, "jobID"))
	if err != nil {
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

// GetCrawlRecords returns a finished job's records keyed by region.
func (h *Handlers) GetCrawlRecords(w http.ResponseWriter, r *http.Request) {
	results, err := h.jobs.Results(chi.URLParam(r, "jobID"))
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	case errors.Is(err, jobs.ErrJobRunning):
		h.respondError(w, http.StatusConflict, "job has not finished")
		return
	case err != nil:
		h.respondError(w, http.StatusInternalServerError, "failed to get records")
		return
	}

	if results == nil {
		results = models.CrawlResults{}
	}
	h.respondJSON(w, http.StatusOK, results)
}

// ListRecords returns persisted records of one region, newest first.
func (h *Handlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	if h.records == nil {
		h.respondError(w, http.StatusNotImplemented, "record storage is disabled")
		return
	}

	region := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("region")))
	if region == "" {
		h.respondError(w, http.StatusBadRequest, "region is required")
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			h.respondError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	records, err := h.records.ListByRegion(r.Context(), region, limit)
	if err != nil {
		h.logger.Error("failed to list records", "region", region, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list records")
		return
	}
	if records == nil {
		records = []database.StoredRecord{}
	}

	h.respondJSON(w, http.StatusOK, records)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "ok",
	}
	status := http.StatusOK

	if h.events != nil {
		counts, err := h.events.EventCounts(r.Context())
		switch {
		case err != nil:
			h.logger.Error("failed to read record event counters", "error", err)
			health["status"] = "error"
			health["message"] = "Record event store unavailable"
			status = http.StatusServiceUnavailable
		case counts.DeadLetter > 100:
			health["events"] = counts
			health["status"] = "error"
			health["message"] = "High number of dead letter record events"
			status = http.StatusServiceUnavailable
		case counts.Pending > 1000:
			health["events"] = counts
			health["status"] = "warning"
			health["message"] = "High number of pending record events"
		default:
			health["events"] = counts
		}
	}

	h.respondJSON(w, status, health)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

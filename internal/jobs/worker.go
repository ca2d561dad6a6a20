package jobs

import (
	"context"
	"time"

	"github.com/maltedev/refurb-crawler/internal/crawler"
)

// StartWorker runs queued jobs in order until ctx is done or the manager is
// closed.
func (m *Manager) StartWorker(ctx context.Context) {
	m.logger.Info("job worker started")

	for {
		jobID, err := m.queue.Pop(ctx)
		if err != nil {
			m.logger.Info("job worker stopping")
			return
		}
		m.processJob(ctx, jobID)
	}
}

func (m *Manager) processJob(ctx context.Context, jobID string) {
	job, err := m.GetJob(jobID)
	if err != nil {
		return
	}

	now := time.Now()
	m.update(jobID, func(j *Job) {
		j.Status = StatusRunning
		j.StartedAt = &now
	})
	m.logger.Info("processing job", "id", jobID, "sites", len(job.Seeds))

	result, err := m.exec.RunWithLimits(ctx, jobID, job.Seeds, job.Limits)

	done := time.Now()
	m.update(jobID, func(j *Job) {
		j.CompletedAt = &done
		if result != nil {
			j.results = result.Results
			j.Records = result.Results.Total()
			j.Sites = result.Sites
		}
		if err != nil {
			j.Status = StatusFailed
			j.Error = err.Error()
			return
		}
		j.Status = StatusCompleted
	})

	if err != nil {
		m.logger.Error("job failed", "id", jobID, "error", err)
		return
	}
	m.logger.Info("job completed", "id", jobID, "records", result.Results.Total())
}

var _ Executor = (*crawler.Runner)(nil)

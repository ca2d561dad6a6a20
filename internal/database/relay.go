package database

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// EventQueue is the part of EventStore the relay drives.
type EventQueue interface {
	Due(ctx context.Context, limit int) ([]*RecordEvent, error)
	Published(ctx context.Context, ids []uuid.UUID) error
	Failed(ctx context.Context, ev *RecordEvent, cause error) error
	Counts(ctx context.Context) (EventCounts, error)
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// StreamMaxLen approximately trims the stream; 0 keeps everything.
	StreamMaxLen int64
}

// Relay moves saved-record events from postgres onto a redis stream.
type Relay struct {
	redis  RedisClient
	queue  EventQueue
	cfg    RelayConfig
	logger *slog.Logger
}

func NewRelay(db *DB, redisClient RedisClient, logger *slog.Logger, cfg RelayConfig) *Relay {
	return newRelay(NewEventStore(db), redisClient, logger, cfg)
}

func newRelay(queue EventQueue, redisClient RedisClient, logger *slog.Logger, cfg RelayConfig) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		redis:  redisClient,
		queue:  queue,
		cfg:    cfg,
		logger: logger.With("component", "relay"),
	}
}

// Start publishes due events every poll interval until ctx is done.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("starting relay", "interval", r.cfg.PollInterval, "batch_size", r.cfg.BatchSize)

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if n, err := r.Flush(ctx); err != nil {
			r.logger.Error("relay pass failed", "error", err)
		} else if n > 0 {
			r.logger.Debug("published record events", "count", n)
		}

		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Flush publishes one batch of due events and returns how many reached the
// stream. A failed publish is rescheduled and does not stop the batch.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	events, err := r.queue.Due(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	published := make([]uuid.UUID, 0, len(events))
	for _, ev := range events {
		if err := r.publish(ctx, ev); err != nil {
			r.logger.Warn("failed to publish record event",
				"event_id", ev.ID, "url", ev.SourceURL, "attempt", ev.Attempts+1, "error", err)
			if ferr := r.queue.Failed(ctx, ev, err); ferr != nil {
				r.logger.Error("failed to reschedule record event", "event_id", ev.ID, "error", ferr)
			}
			continue
		}
		published = append(published, ev.ID)
	}

	// Events already on the stream are published again on the next pass if
	// this update fails; consumers dedupe on event_id.
	if err := r.queue.Published(ctx, published); err != nil {
		return 0, err
	}
	return len(published), nil
}

func (r *Relay) publish(ctx context.Context, ev *RecordEvent) error {
	args := &redis.XAddArgs{
		Stream: StreamRefurbRecords,
		Values: streamFields(ev),
	}
	if r.cfg.StreamMaxLen > 0 {
		args.MaxLen = r.cfg.StreamMaxLen
		args.Approx = true
	}
	if err := r.redis.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}

// streamFields flattens an event into stream entry fields. The record
// itself travels as its JSON encoding.
func streamFields(ev *RecordEvent) map[string]interface{} {
	return map[string]interface{}{
		"type":        EventRecordDiscovered,
		"event_id":    ev.ID.String(),
		"source_url":  ev.SourceURL,
		"region":      ev.Region,
		"run_id":      ev.RunID,
		"category":    ev.Category,
		"record":      string(ev.Record),
		"attempt":     strconv.Itoa(ev.Attempts + 1),
		"enqueued_at": ev.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (r *Relay) EventCounts(ctx context.Context) (EventCounts, error) {
	return r.queue.Counts(ctx)
}

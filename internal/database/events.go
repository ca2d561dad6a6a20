package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EventStatus is the delivery state of a queued record event.
type EventStatus string

const (
	EventQueued     EventStatus = "queued"
	EventRetrying   EventStatus = "retrying"
	EventPublished  EventStatus = "published"
	EventDeadLetter EventStatus = "dead_letter"
)

const (
	// MaxPublishAttempts failed publishes move an event to dead letter.
	MaxPublishAttempts = 5
	maxRetryDelay      = 5 * time.Minute

	StreamRefurbRecords   = "stream:refurb_records"
	EventRecordDiscovered = "REFURB_RECORD_DISCOVERED"
)

// RecordEvent announces one saved record. It is written in the same
// transaction as the record row and published to redis by the Relay.
type RecordEvent struct {
	ID            uuid.UUID
	SourceURL     string
	Region        string
	RunID         string
	Category      string
	Record        json.RawMessage
	Status        EventStatus
	Attempts      int
	LastError     *string
	CreatedAt     time.Time
	NextAttemptAt time.Time
	PublishedAt   *time.Time
}

// EventCounts feeds the health endpoint.
type EventCounts struct {
	Pending    int64 `json:"pending"`
	DeadLetter int64 `json:"dead_letter"`
}

// EventStore reads and updates the record_events table.
type EventStore struct {
	db *DB
}

func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db}
}

func enqueueEvent(ctx context.Context, tx pgx.Tx, ev *RecordEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	ev.Status = EventQueued
	ev.CreatedAt = time.Now()
	ev.NextAttemptAt = ev.CreatedAt

	_, err := tx.Exec(ctx, `
		INSERT INTO record_events (
			id, source_url, region, run_id, category, record,
			status, attempts, created_at, next_attempt_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $8)`,
		ev.ID, ev.SourceURL, ev.Region, ev.RunID, ev.Category, ev.Record,
		ev.Status, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to queue record event: %w", err)
	}
	return nil
}

// Due returns up to limit events whose next attempt is not in the future,
// oldest first.
func (s *EventStore) Due(ctx context.Context, limit int) ([]*RecordEvent, error) {
	rows, err := s.db.pool.Query(ctx, `
		SELECT id, source_url, region, run_id, category, record,
			status, attempts, last_error, created_at, next_attempt_at, published_at
		FROM record_events
		WHERE status IN ($1, $2) AND next_attempt_at <= NOW()
		ORDER BY created_at
		LIMIT $3`,
		EventQueued, EventRetrying, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load due events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*RecordEvent, error) {
		ev := &RecordEvent{}
		err := row.Scan(&ev.ID, &ev.SourceURL, &ev.Region, &ev.RunID, &ev.Category, &ev.Record,
			&ev.Status, &ev.Attempts, &ev.LastError, &ev.CreatedAt, &ev.NextAttemptAt, &ev.PublishedAt)
		return ev, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan due events: %w", err)
	}
	return events, nil
}

// Published marks a batch of events as delivered.
func (s *EventStore) Published(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	_, err := s.db.pool.Exec(ctx, `
		UPDATE record_events SET status = $1, published_at = NOW()
		WHERE id = ANY($2::uuid[])`,
		EventPublished, keys)
	if err != nil {
		return fmt.Errorf("failed to mark events published: %w", err)
	}
	return nil
}

// Failed records a failed publish of ev. The update only applies while the
// row still has the attempt count ev was loaded with, so two relays cannot
// both count the same attempt.
func (s *EventStore) Failed(ctx context.Context, ev *RecordEvent, cause error) error {
	status, next := afterFailure(ev.Attempts+1, time.Now())

	tag, err := s.db.pool.Exec(ctx, `
		UPDATE record_events
		SET status = $1, attempts = $2, last_error = $3, next_attempt_at = $4
		WHERE id = $5 AND attempts = $6`,
		status, ev.Attempts+1, cause.Error(), next, ev.ID, ev.Attempts)
	if err != nil {
		return fmt.Errorf("failed to record publish failure: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event %s changed concurrently", ev.ID)
	}
	return nil
}

func (s *EventStore) Counts(ctx context.Context) (EventCounts, error) {
	var c EventCounts
	err := s.db.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status IN ($1, $2)),
			COUNT(*) FILTER (WHERE status = $3)
		FROM record_events`,
		EventQueued, EventRetrying, EventDeadLetter).Scan(&c.Pending, &c.DeadLetter)
	if err != nil {
		return EventCounts{}, fmt.Errorf("failed to count record events: %w", err)
	}
	return c, nil
}

// afterFailure returns the status and next attempt time once an event has
// failed attempts times. The delay doubles from two seconds up to
// maxRetryDelay.
func afterFailure(attempts int, now time.Time) (EventStatus, time.Time) {
	if attempts >= MaxPublishAttempts {
		return EventDeadLetter, now
	}
	delay := maxRetryDelay
	if attempts < 9 {
		delay = min(time.Duration(1<<attempts)*time.Second, maxRetryDelay)
	}
	return EventRetrying, now.Add(delay)
}

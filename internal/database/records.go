package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/maltedev/refurb-crawler/internal/models"
)

// StoredRecord is a persisted record with its bookkeeping columns.
type StoredRecord struct {
	models.ExtractedRecord
	Region      string    `json:"region"`
	RunID       string    `json:"run_id"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// RecordRepository persists accepted records and queues a RecordEvent for
// each save in the same transaction.
type RecordRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewRecordRepository(db *DB, logger *slog.Logger) *RecordRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordRepository{
		db:     db,
		logger: logger.With("component", "record_store"),
	}
}

// SaveRecord upserts rec by source URL and queues a discovery event.
func (r *RecordRepository) SaveRecord(ctx context.Context, runID, region string, rec models.ExtractedRecord) error {
	event, err := newRecordEvent(runID, region, rec)
	if err != nil {
		return err
	}

	amount, text := priceColumns(rec.Price)

	err = r.db.WithTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO refurb_records (
				source_url, canonical_url, region, run_id, title,
				price_amount, price_text, currency, ram, storage, chip,
				additional_details, image, category
			) VALUES (
				$1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
			)
			ON CONFLICT (source_url) DO UPDATE SET
				canonical_url = EXCLUDED.canonical_url,
				region = EXCLUDED.region,
				run_id = EXCLUDED.run_id,
				title = EXCLUDED.title,
				price_amount = EXCLUDED.price_amount,
				price_text = EXCLUDED.price_text,
				currency = EXCLUDED.currency,
				ram = EXCLUDED.ram,
				storage = EXCLUDED.storage,
				chip = EXCLUDED.chip,
				additional_details = EXCLUDED.additional_details,
				image = EXCLUDED.image,
				category = EXCLUDED.category,
				last_seen_at = NOW()`

		_, err := tx.Exec(ctx, query,
			rec.SourceURL, rec.CanonicalURL, region, runID, rec.Title,
			amount, text, rec.Currency, rec.RAM, rec.Storage, rec.Chip,
			rec.AdditionalDetails, rec.Image, rec.Category,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert record: %w", err)
		}

		return enqueueEvent(ctx, tx, event)
	})
	if err != nil {
		return err
	}

	r.logger.Debug("saved record", "url", rec.SourceURL, "region", region, "event_id", event.ID)
	return nil
}

// ListByRegion returns the most recently seen records of one region.
func (r *RecordRepository) ListByRegion(ctx context.Context, region string, limit int) ([]StoredRecord, error) {
	query := `
		SELECT
			source_url, COALESCE(canonical_url, ''), region, run_id, title,
			price_amount, price_text, currency, ram, storage, chip,
			additional_details, image, category, first_seen_at, last_seen_at
		FROM refurb_records
		WHERE region = $1
		ORDER BY last_seen_at DESC, source_url
		LIMIT $2`

	rows, err := r.db.pool.Query(ctx, query, region, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var out []StoredRecord
	for rows.Next() {
		var (
			rec    StoredRecord
			amount *float64
			text   *string
		)
		err := rows.Scan(
			&rec.SourceURL, &rec.CanonicalURL, &rec.Region, &rec.RunID, &rec.Title,
			&amount, &text, &rec.Currency, &rec.RAM, &rec.Storage, &rec.Chip,
			&rec.AdditionalDetails, &rec.Image, &rec.Category, &rec.FirstSeenAt, &rec.LastSeenAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.Price = priceFromColumns(amount, text)
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return out, nil
}

func newRecordEvent(runID, region string, rec models.ExtractedRecord) (*RecordEvent, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	return &RecordEvent{
		SourceURL: rec.SourceURL,
		Region:    region,
		RunID:     runID,
		Category:  rec.Category,
		Record:    payload,
	}, nil
}

func priceColumns(p *models.Price) (*float64, *string) {
	switch {
	case p == nil:
		return nil, nil
	case p.Numeric:
		v := p.Amount
		return &v, nil
	default:
		s := p.Text
		return nil, &s
	}
}

func priceFromColumns(amount *float64, text *string) *models.Price {
	switch {
	case amount != nil:
		return models.NumericPrice(*amount)
	case text != nil:
		return models.TextPrice(*text)
	}
	return nil
}

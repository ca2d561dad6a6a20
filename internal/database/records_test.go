package database

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/maltedev/refurb-crawler/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() models.ExtractedRecord {
	return models.ExtractedRecord{
		Title:             models.StringPtr("Refurbished Mac mini Apple M2 Chip"),
		Price:             models.NumericPrice(519),
		Currency:          models.StringPtr("EUR"),
		RAM:               models.StringPtr("8GB"),
		Storage:           models.StringPtr("256GB"),
		Chip:              models.StringPtr("Apple M2"),
		AdditionalDetails: "Released 2023",
		Category:          models.CategoryDesktop,
		SourceURL:         "https://www.apple.com/de/shop/product/FMFJ3D/A",
		CanonicalURL:      "https://www.apple.com/de/shop/product/FMFJ3D/A/mac-mini",
	}
}

func TestNewRecordEvent(t *testing.T) {
	event, err := newRecordEvent("run-1", "DE", sampleRecord())
	require.NoError(t, err)

	assert.Equal(t, "https://www.apple.com/de/shop/product/FMFJ3D/A", event.SourceURL)
	assert.Equal(t, "DE", event.Region)
	assert.Equal(t, "run-1", event.RunID)
	assert.Equal(t, models.CategoryDesktop, event.Category)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(event.Record, &payload))
	assert.Equal(t, "Apple M2", payload["chip"])
	assert.Equal(t, 519.0, payload["price"])
	assert.Nil(t, payload["image"])
	assert.NotContains(t, payload, "CanonicalURL")
}

func TestPriceColumns(t *testing.T) {
	amount, text := priceColumns(models.NumericPrice(1299.5))
	require.NotNil(t, amount)
	assert.Nil(t, text)
	assert.Equal(t, 1299.5, *amount)

	amount, text = priceColumns(models.TextPrice("ab 399 €"))
	assert.Nil(t, amount)
	require.NotNil(t, text)
	assert.Equal(t, "ab 399 €", *text)

	amount, text = priceColumns(nil)
	assert.Nil(t, amount)
	assert.Nil(t, text)

	assert.Equal(t, models.TextPrice("ab 399 €"), priceFromColumns(nil, text))
	assert.Nil(t, priceFromColumns(nil, nil))
}

func TestRecordRepository_SaveRecord(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRecordRepository(db, nil)
	rec := sampleRecord()

	require.NoError(t, repo.SaveRecord(ctx, "run-1", "DE", rec))

	rec.Price = models.TextPrice("519,00 €")
	require.NoError(t, repo.SaveRecord(ctx, "run-2", "DE", rec))

	records, err := repo.ListByRegion(ctx, "DE", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, "run-2", got.RunID)
	assert.Equal(t, models.TextPrice("519,00 €"), got.Price)
	assert.Equal(t, rec.CanonicalURL, got.CanonicalURL)
	assert.Equal(t, "Apple M2", models.Deref(got.Chip))
	assert.Nil(t, got.Image)
	assert.False(t, got.LastSeenAt.Before(got.FirstSeenAt))

	// One discovery event per save.
	counts, err := NewEventStore(db).Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Pending)

	other, err := repo.ListByRegion(ctx, "FR", 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

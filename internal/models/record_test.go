package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceJSON(t *testing.T) {
	tests := []struct {
		name  string
		price *Price
		want  string
	}{
		{"numeric", NumericPrice(1249), `1249`},
		{"fractional", NumericPrice(899.99), `899.99`},
		{"passthrough string", TextPrice("1.249,00"), `"1.249,00"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.price)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}

func TestParsePrice(t *testing.T) {
	p := ParsePrice("1299.00")
	assert.True(t, p.Numeric)
	assert.Equal(t, 1299.0, p.Amount)

	p = ParsePrice("ab 1.299 €")
	assert.False(t, p.Numeric)
	assert.Equal(t, "ab 1.299 €", p.Text)
}

func TestCrawlResultsMarshalKeepsSeedOrder(t *testing.T) {
	title := "MacBook Air <M2>"
	results := CrawlResults{
		{Tag: "US", Records: []ExtractedRecord{{Title: &title, Category: CategoryLaptop, SourceURL: "https://www.apple.com/shop/product/A"}}},
		{Tag: "DE"},
		{Tag: "CA", Records: []ExtractedRecord{}},
	}

	data, err := results.MarshalJSON()
	require.NoError(t, err)

	s := string(data)
	assert.Less(t, strings.Index(s, `"US"`), strings.Index(s, `"DE"`))
	assert.Less(t, strings.Index(s, `"DE"`), strings.Index(s, `"CA"`))
	assert.Contains(t, s, `"DE":[]`)
	assert.Contains(t, s, `MacBook Air <M2>`)
	assert.NotContains(t, s, "CanonicalURL")

	var decoded map[string][]map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded["US"], 1)
	assert.Nil(t, decoded["US"][0]["price"])
	assert.Equal(t, "Laptop", decoded["US"][0]["category"])
	assert.Equal(t, 1, results.Total())

	// json.Marshal re-compacts Marshaler output with HTML escaping.
	escaped, err := json.Marshal(results)
	require.NoError(t, err)
	assert.Contains(t, string(escaped), `MacBook Air \u003cM2\u003e`)
}

func TestDedupKey(t *testing.T) {
	r := ExtractedRecord{SourceURL: "https://a/x"}
	assert.Equal(t, "https://a/x", r.DedupKey())
	r.CanonicalURL = "https://a/y"
	assert.Equal(t, "https://a/y", r.DedupKey())
}


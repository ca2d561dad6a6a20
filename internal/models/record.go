package models

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Category labels produced by the category cascade.
const (
	CategoryLaptop    = "Laptop"
	CategoryDesktop   = "Desktop"
	CategoryTablet    = "Tablet"
	CategoryPhone     = "Phone"
	CategoryWearable  = "Wearable"
	CategoryTV        = "TV"
	CategorySpeaker   = "Speaker"
	CategoryAudio     = "Audio"
	CategoryAccessory = "Accessory"
	CategoryOther     = "Other"
)

// Seed is one site-root: a short region tag and the listing URL to start from.
type Seed struct {
	Tag string `json:"tag"`
	URL string `json:"url"`
}

// CrawlTask is one unit of frontier work. URL is normalized, Depth starts at 1.
type CrawlTask struct {
	URL   string
	Depth int
}

// ExtractedRecord is the normalized output for one product page.
type ExtractedRecord struct {
	Title             *string `json:"title"`
	Price             *Price  `json:"price"`
	Currency          *string `json:"currency"`
	RAM               *string `json:"ram"`
	Storage           *string `json:"storage"`
	Chip              *string `json:"chip"`
	AdditionalDetails string  `json:"additional_details"`
	Image             *string `json:"image"`
	Category          string  `json:"category"`
	SourceURL         string  `json:"source_url"`

	// CanonicalURL is the page's declared canonical address, kept for the
	// final dedup pass only.
	CanonicalURL string `json:"-"`
}

// DedupKey is the address two records must share to be considered the same page.
func (r *ExtractedRecord) DedupKey() string {
	if r.CanonicalURL != "" {
		return r.CanonicalURL
	}
	return r.SourceURL
}

// Price is either a parsed number or the raw string found in markup.
type Price struct {
	Amount  float64
	Text    string
	Numeric bool
}

func NumericPrice(v float64) *Price {
	return &Price{Amount: v, Numeric: true}
}

func TextPrice(s string) *Price {
	return &Price{Text: s}
}

// ParsePrice converts s to a numeric price when possible and otherwise passes
// the string through unchanged.
func ParsePrice(s string) *Price {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return NumericPrice(v)
	}
	return TextPrice(s)
}

func (p Price) String() string {
	if p.Numeric {
		return strconv.FormatFloat(p.Amount, 'f', -1, 64)
	}
	return p.Text
}

func (p Price) MarshalJSON() ([]byte, error) {
	if p.Numeric {
		return []byte(strconv.FormatFloat(p.Amount, 'f', -1, 64)), nil
	}
	return json.Marshal(p.Text)
}

func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		p.Numeric = false
		return json.Unmarshal(data, &p.Text)
	}
	if err := json.Unmarshal(data, &p.Amount); err != nil {
		return err
	}
	p.Numeric = true
	return nil
}

// RegionRecords holds the accepted records for one seed region.
type RegionRecords struct {
	Tag     string
	Records []ExtractedRecord
}

// CrawlResults encodes as a JSON object keyed by region tag, preserving seed order.
type CrawlResults []RegionRecords

func (c CrawlResults) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, region := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(region.Tag)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		records := region.Records
		if records == nil {
			records = []ExtractedRecord{}
		}
		val, err := marshalNoEscape(records)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Total returns the number of records across all regions.
func (c CrawlResults) Total() int {
	n := 0
	for _, region := range c {
		n += len(region.Records)
	}
	return n
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns "" for a nil pointer.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

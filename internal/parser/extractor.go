package parser

import (
	"regexp"
	"strings"

	"github.com/maltedev/refurb-crawler/internal/models"
	"github.com/maltedev/refurb-crawler/internal/specs"
)

// Signals are the classification inputs gathered while extracting. They do
// not appear in the output record.
type Signals struct {
	ProductBlock  bool
	Price         bool
	Image         bool
	Specs         bool
	OGTypeProduct bool
	Title         string
}

// Extraction is the record built from one document plus its signals.
type Extraction struct {
	Record  models.ExtractedRecord
	Signals Signals
}

type Extractor struct {
	detector        *specs.Detector
	productURL      func(string) bool
	detailSelectors []string
	currencyPrice   *regexp.Regexp
	rawAmount       *regexp.Regexp
}

type Option func(*Extractor)

// WithProductURLMatcher decides whether a canonical URL may stand in as the
// record's source_url.
func WithProductURLMatcher(fn func(string) bool) Option {
	return func(e *Extractor) {
		e.productURL = fn
	}
}

func WithDetailSelectors(selectors ...string) Option {
	return func(e *Extractor) {
		e.detailSelectors = selectors
	}
}

func NewExtractor(detector *specs.Detector, opts ...Option) *Extractor {
	if detector == nil {
		detector = specs.NewDetector(nil)
	}

	e := &Extractor{
		detector:        detector,
		detailSelectors: DefaultDetailSelectors,
		currencyPrice:   regexp.MustCompile(`(?is)"priceCurrency"\s*:\s*["']([A-Z]{3})["'].*?"price"\s*:\s*"?([0-9]+(?:\.[0-9]+)?)`),
		rawAmount:       regexp.MustCompile(`"currentPrice"\s*:\s*\{[^}]*"raw_amount"\s*:\s*["']([0-9.]+)["']`),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract builds the normalized record for doc. It never fails: missing
// fields stay nil and the signals say what was found.
func (e *Extractor) Extract(doc *Document) *Extraction {
	var (
		rec         models.ExtractedRecord
		sig         Signals
		title       string
		image       string
		description string
	)

	if product := doc.ProductBlock(); product != nil {
		sig.ProductBlock = true

		title = stringField(product, "name")
		if title == "" {
			title = stringField(product, "headline")
		}

		if offer := firstOffer(product); offer != nil {
			rec.Price = offerPrice(offer)
			rec.Currency = currencyCode(stringField(offer, "priceCurrency"))
		}

		image = imageValue(product["image"])
		if image == "" {
			image = findGalleryImage(doc.Blocks)
		}
		if image == "" {
			image = doc.MetaProperty("og:image")
		}

		description = stringField(product, "description")
		if description == "" {
			description = doc.MetaProperty("og:description")
		}
		if description == "" {
			description = doc.MetaName("description")
		}
	} else {
		image = doc.MetaProperty("og:image")

		description = doc.MetaProperty("og:description")
		if description == "" {
			description = doc.MetaName("description")
		}

		rec.Price, rec.Currency = e.scanInlinePrice(doc.HTML)
	}

	if title == "" {
		title = pageTitle(doc)
	}
	title = collapseSpace(title)
	rec.Title = models.StringPtr(title)
	rec.Image = models.StringPtr(image)
	rec.AdditionalDetails = detailsText(doc, e.detailSelectors)

	rec.CanonicalURL = doc.CanonicalURL
	rec.SourceURL = e.sourceURL(doc)
	rec.Category = Categorize(title, rec.SourceURL)

	suppressChip := rec.Category == models.CategoryAccessory || isAccessoryTitle(title)
	specText := strings.Join([]string{title, description, rec.AdditionalDetails}, "\n")
	hw := e.detector.Detect(specText, suppressChip)
	rec.Chip = hw.Chip
	rec.RAM = hw.RAM
	rec.Storage = hw.Storage

	sig.Price = rec.Price != nil
	sig.Image = rec.Image != nil
	sig.Specs = hw.Any()
	sig.OGTypeProduct = strings.Contains(strings.ToLower(doc.MetaProperty("og:type")), productType)
	sig.Title = title

	return &Extraction{Record: rec, Signals: sig}
}

// scanInlinePrice looks for a price in inline script state: a currency code
// followed by a price, then a currentPrice.raw_amount field.
func (e *Extractor) scanInlinePrice(html string) (*models.Price, *string) {
	if m := e.currencyPrice.FindStringSubmatch(html); m != nil {
		return models.ParsePrice(m[2]), currencyCode(m[1])
	}
	if m := e.rawAmount.FindStringSubmatch(html); m != nil {
		return models.ParsePrice(m[1]), nil
	}
	return nil, nil
}

func (e *Extractor) sourceURL(doc *Document) string {
	if doc.CanonicalURL == "" {
		return doc.URL
	}
	if e.productURL != nil && !e.productURL(doc.CanonicalURL) {
		return doc.URL
	}
	return doc.CanonicalURL
}

// pageTitle is the social-preview title, then the <title> element, then the
// URL itself.
func pageTitle(doc *Document) string {
	for _, t := range []string{doc.MetaProperty("og:title"), doc.MetaName("title"), doc.Title()} {
		if t != "" {
			return t
		}
	}
	return doc.URL
}

func offerPrice(offer map[string]any) *models.Price {
	for _, key := range []string{"price", "lowPrice"} {
		switch v := offer[key].(type) {
		case float64:
			return models.NumericPrice(v)
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return models.TextPrice(s)
			}
		}
	}
	return nil
}

func currencyCode(s string) *string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 3 {
		return nil
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return nil
		}
	}
	return &s
}

package classifier

import (
	"testing"

	"github.com/maltedev/refurb-crawler/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsProductURL(t *testing.T) {
	c := New(DefaultOptions())

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"shop product path", "https://www.apple.com/de/shop/product/FPHE3D/A/macbook-pro-14", true},
		{"generic product path", "https://shop.example.com/product/123", true},
		{"product page suffix", "https://shop.example.com/items/product-page?id=9", true},
		{"part number", "https://www.apple.com/uk/FUXE2B/A", true},
		{"refurbished then product", "https://www.apple.com/shop/refurbished/ipad/product-abc", true},
		{"listing", "https://www.apple.com/de/shop/refurbished/mac", false},
		{"listing root", "https://www.apple.com/shop/refurbished", false},
		{"listing with variant param", "https://www.apple.com/shop/refurbished/mac?fnode=abc", true},
		{"listing with sku param", "https://www.apple.com/shop/refurbished/mac?SKU=1", true},
		{"listing with unrelated param", "https://www.apple.com/shop/refurbished/mac?page=2", false},
		{"listing with part token", "https://www.apple.com/shop/refurbished/mac/MK1E3LLA", true},
		{"token too short", "https://www.apple.com/shop/refurbished/mac/M2PRO", false},
		{"token letters only", "https://www.apple.com/shop/refurbished/mac/MACBOOKAIR", false},
		{"token outside refurbished", "https://www.apple.com/shop/buy-mac/MK1E3LLA", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsProductURL(tt.url))
		})
	}
}

func TestIsProductURL_TokenLengthConfigurable(t *testing.T) {
	u := "https://www.apple.com/shop/refurbished/mac/M2PRO"

	assert.False(t, New(DefaultOptions()).IsProductURL(u))
	assert.True(t, New(Options{ProductTokenMinLen: 4}).IsProductURL(u))
}

func TestIsListingURL(t *testing.T) {
	c := New(DefaultOptions())
	root := "https://www.apple.com/de/shop/refurbished"

	assert.True(t, c.IsListingURL("https://www.apple.com/de/shop/refurbished/mac", root))
	assert.True(t, c.IsListingURL("https://www.apple.com/de/shop/refurbished", root))
	assert.False(t, c.IsListingURL("https://www.apple.com/de/shop/refurbished-deals", root))
	assert.False(t, c.IsListingURL("https://www.apple.com/fr/shop/refurbished/mac", root))
	assert.False(t, c.IsListingURL("https://store.example.com/de/shop/refurbished/mac", root))
	assert.False(t, c.IsListingURL("https://www.apple.com/de/shop/product/FPHE3D/A", root))
}

func TestIsProductPage(t *testing.T) {
	c := New(DefaultOptions())

	tests := []struct {
		name   string
		sig    parser.Signals
		want   bool
		reason string
	}{
		{"structured block alone", parser.Signals{ProductBlock: true, Title: "iPad"}, true, ReasonProductBlock},
		{"structured block wins over missing fields", parser.Signals{ProductBlock: true}, true, ReasonProductBlock},
		{"price", parser.Signals{Price: true, Title: "Mac"}, true, ReasonPrice},
		{"image and specs", parser.Signals{Image: true, Specs: true, Title: "Mac"}, true, ReasonImageAndSpecs},
		{"image without specs", parser.Signals{Image: true, Title: "Mac"}, false, ReasonNoSignal},
		{"og type", parser.Signals{OGTypeProduct: true, Title: "Mac"}, true, ReasonOGType},
		{"nothing", parser.Signals{Title: "Refurbished Mac"}, false, ReasonNoSignal},
		{"not found with block", parser.Signals{ProductBlock: true, Price: true, Title: "Page Not Found - Apple"}, false, ReasonNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := c.Classify(nil, tt.sig)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestIsProductPage_NotFoundLocales(t *testing.T) {
	c := New(DefaultOptions())

	titles := []string{
		"Page not found",
		"Seite nicht gefunden",
		"Page introuvable",
		"Página no encontrada",
		"Pagina non trovata",
		"Pagina niet gevonden",
		"Sidan kunde inte hittas",
		"Error 404",
	}

	for _, title := range titles {
		t.Run(title, func(t *testing.T) {
			assert.False(t, c.IsProductPage(nil, parser.Signals{ProductBlock: true, Title: title}))
		})
	}
}

func TestIsProductPage_Document(t *testing.T) {
	html := `<html><head><title>Apple – Seite nicht gefunden</title>
<script type="application/ld+json">{"@type":"Product","name":""}</script></head></html>`

	doc, err := parser.NewDocument("https://www.apple.com/de/shop/product/FPHE3D/A", html)
	require.NoError(t, err)

	// An empty product name falls back to the <title> element.
	ext := parser.NewExtractor(nil).Extract(doc)
	assert.True(t, ext.Signals.ProductBlock)
	assert.Equal(t, "Apple – Seite nicht gefunden", ext.Signals.Title)
	assert.False(t, New(DefaultOptions()).IsProductPage(doc, ext.Signals))

	assert.False(t, New(DefaultOptions()).IsProductPage(doc, parser.Signals{ProductBlock: true}))
}

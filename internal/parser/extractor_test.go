package parser

import (
	"strings"
	"testing"

	"github.com/maltedev/refurb-crawler/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productPageHTML = `<!DOCTYPE html>
<html><head>
<title>Refurbished MacBook Pro - Apple (DE)</title>
<link rel="canonical" href="https://www.apple.com/de/shop/product/FPHE3D/A/macbook-pro-14/">
<meta property="og:image" content="https://store.storeimages.cdn-apple.com/og.jpg">
<meta name="description" content="Generalüberholtes MacBook Pro">
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"Product","name":"  Refurbished 14-inch MacBook Pro Apple M2 Pro Chip  ",
 "description":"16 GB gemeinsamer Arbeitsspeicher, 512 GB SSD Speicher",
 "image":["https://store.storeimages.cdn-apple.com/1.jpg","https://store.storeimages.cdn-apple.com/2.jpg"],
 "offers":[{"@type":"Offer","price":1869.00,"priceCurrency":"eur"},{"@type":"Offer","price":2000}]}
</script>
</head><body>
<div class="rb-content"><p>Apple M2 Pro Chip</p><p>mit 10-Core CPU</p></div>
</body></html>`

func TestExtract_ProductBlock(t *testing.T) {
	doc, err := NewDocument("https://www.apple.com/de/shop/product/FPHE3D/A/macbook-pro-14?fnode=x#top", productPageHTML)
	require.NoError(t, err)

	ext := NewExtractor(nil).Extract(doc)
	rec := ext.Record

	assert.True(t, ext.Signals.ProductBlock)
	assert.Equal(t, "Refurbished 14-inch MacBook Pro Apple M2 Pro Chip", models.Deref(rec.Title))
	require.NotNil(t, rec.Price)
	assert.True(t, rec.Price.Numeric)
	assert.Equal(t, 1869.0, rec.Price.Amount)
	assert.Equal(t, "EUR", models.Deref(rec.Currency))
	assert.Equal(t, "https://store.storeimages.cdn-apple.com/1.jpg", models.Deref(rec.Image))
	assert.Equal(t, "M2 Pro", models.Deref(rec.Chip))
	assert.Equal(t, "16GB", models.Deref(rec.RAM))
	assert.Equal(t, "512GB", models.Deref(rec.Storage))
	assert.Equal(t, models.CategoryLaptop, rec.Category)
	assert.Equal(t, "Apple M2 Pro Chip mit 10-Core CPU", rec.AdditionalDetails)
	assert.Equal(t, "https://www.apple.com/de/shop/product/FPHE3D/A/macbook-pro-14", rec.SourceURL)
	assert.Equal(t, rec.SourceURL, rec.CanonicalURL)
}

func TestExtract_SourceURLKeepsFetchedWhenCanonicalNotProductShaped(t *testing.T) {
	html := strings.Replace(productPageHTML,
		"https://www.apple.com/de/shop/product/FPHE3D/A/macbook-pro-14/",
		"https://www.apple.com/de/shop/refurbished/mac", 1)
	doc, err := NewDocument("https://www.apple.com/de/shop/product/FPHE3D/A/macbook-pro-14", html)
	require.NoError(t, err)

	isProduct := func(u string) bool { return strings.Contains(u, "/shop/product/") }
	rec := NewExtractor(nil, WithProductURLMatcher(isProduct)).Extract(doc).Record

	assert.Equal(t, "https://www.apple.com/de/shop/product/FPHE3D/A/macbook-pro-14", rec.SourceURL)
	assert.Equal(t, "https://www.apple.com/de/shop/refurbished/mac", rec.CanonicalURL)
}

func TestExtract_MetaFallbackWithInlinePrice(t *testing.T) {
	html := `<html><head>
<meta property="og:title" content="Refurbished iPad Air 11-inch Wi-Fi 128GB">
<meta property="og:image" content="https://img.example/ipad.jpg">
<meta property="og:description" content="Apple M2 chip">
<script>window.PRODUCT = {"priceCurrency":"GBP","name":"x","price":549.00};</script>
</head><body></body></html>`

	doc, err := NewDocument("https://www.apple.com/uk/shop/product/FUXE2B/A", html)
	require.NoError(t, err)

	ext := NewExtractor(nil).Extract(doc)
	rec := ext.Record

	assert.False(t, ext.Signals.ProductBlock)
	assert.True(t, ext.Signals.Price)
	assert.Equal(t, "Refurbished iPad Air 11-inch Wi-Fi 128GB", models.Deref(rec.Title))
	require.NotNil(t, rec.Price)
	assert.Equal(t, 549.0, rec.Price.Amount)
	assert.Equal(t, "GBP", models.Deref(rec.Currency))
	assert.Equal(t, "https://img.example/ipad.jpg", models.Deref(rec.Image))
	assert.Equal(t, models.CategoryTablet, rec.Category)
	assert.Equal(t, "M2", models.Deref(rec.Chip))
	assert.Equal(t, "128GB", models.Deref(rec.Storage))
	assert.Equal(t, "Apple M2 chip", rec.AdditionalDetails)
}

func TestExtract_RawAmountFallback(t *testing.T) {
	html := `<html><head><meta property="og:title" content="Refurbished Mac mini">
<script>var s = {"currentPrice":{"amount":"$499.00","raw_amount":"499.00"}};</script></head></html>`

	doc, err := NewDocument("https://www.apple.com/shop/product/FMXK3LL/A", html)
	require.NoError(t, err)

	ext := NewExtractor(nil).Extract(doc)
	require.NotNil(t, ext.Record.Price)
	assert.Equal(t, 499.0, ext.Record.Price.Amount)
	assert.Nil(t, ext.Record.Currency)
	assert.Equal(t, models.CategoryDesktop, ext.Record.Category)
}

func TestExtract_TitleFallbacks(t *testing.T) {
	doc, err := NewDocument("https://www.apple.com/shop/x", `<html><head><title> Page  Not Found </title></head></html>`)
	require.NoError(t, err)
	ext := NewExtractor(nil).Extract(doc)
	assert.Equal(t, "Page Not Found", ext.Signals.Title)

	doc, err = NewDocument("https://www.apple.com/shop/x", `<html><head></head><body></body></html>`)
	require.NoError(t, err)
	ext = NewExtractor(nil).Extract(doc)
	assert.Equal(t, "https://www.apple.com/shop/x", models.Deref(ext.Record.Title))
	assert.Nil(t, ext.Record.Price)
	assert.Nil(t, ext.Record.Image)
	assert.Equal(t, models.CategoryOther, ext.Record.Category)
}

func TestExtract_AccessorySuppressesChip(t *testing.T) {
	html := `<html><head>
<script type="application/ld+json">{"@type":"Product","name":"Apple Pencil (2nd generation)",
"description":"Compatible with iPad mini (A15) and iPad Air with A12 Bionic","offers":{"price":"119.00","priceCurrency":"USD"}}</script>
</head></html>`

	doc, err := NewDocument("https://www.apple.com/shop/product/FU8F2AM/A/apple-pencil", html)
	require.NoError(t, err)

	rec := NewExtractor(nil).Extract(doc).Record
	assert.Equal(t, models.CategoryAccessory, rec.Category)
	assert.Nil(t, rec.Chip)
	require.NotNil(t, rec.Price)
	assert.False(t, rec.Price.Numeric)
	assert.Equal(t, "119.00", rec.Price.Text)
}

func TestExtract_CompatibilityTitleSuppressesChip(t *testing.T) {
	html := `<html><head>
<script type="application/ld+json">{"@type":"Product","name":"Magic Keyboard for iPad Pro (M4)","offers":{"price":299}}</script>
</head></html>`

	doc, err := NewDocument("https://www.apple.com/shop/product/FXCK3/A", html)
	require.NoError(t, err)

	rec := NewExtractor(nil).Extract(doc).Record
	assert.Equal(t, models.CategoryTablet, rec.Category)
	assert.Nil(t, rec.Chip)
}

func TestExtract_ImageFallbacks(t *testing.T) {
	html := `<html><head>
<meta property="og:image" content="https://img.example/og.jpg">
<script type="application/ld+json">{"@type":"ImageGallery","associatedMedia":[{"@type":"ImageObject","contentUrl":"https://img.example/gallery.jpg"}]}</script>
<script type="application/ld+json">{"@type":"Product","name":"iPhone 14 128GB"}</script>
</head></html>`

	doc, err := NewDocument("https://www.apple.com/shop/product/FPUX3/A", html)
	require.NoError(t, err)
	rec := NewExtractor(nil).Extract(doc).Record
	assert.Equal(t, "https://img.example/gallery.jpg", models.Deref(rec.Image))
	assert.Equal(t, models.CategoryPhone, rec.Category)

	html = strings.Replace(html, `"associatedMedia":[{"@type":"ImageObject","contentUrl":"https://img.example/gallery.jpg"}]`, `"associatedMedia":[]`, 1)
	doc, err = NewDocument("https://www.apple.com/shop/product/FPUX3/A", html)
	require.NoError(t, err)
	rec = NewExtractor(nil).Extract(doc).Record
	assert.Equal(t, "https://img.example/og.jpg", models.Deref(rec.Image))
}

func TestExtract_DetailSelectorsAndMetaDescription(t *testing.T) {
	html := `<html><head><meta name="description" content="8GB RAM and 256GB SSD"></head>
<body><div class="product-hero"> </div><div class="tech-specs"><script>var x=1;</script><span>Chip</span> <b>M1</b></div></body></html>`

	doc, err := NewDocument("https://www.apple.com/shop/product/FGN63LL/A", html)
	require.NoError(t, err)
	rec := NewExtractor(nil).Extract(doc).Record
	assert.Equal(t, "Chip M1", rec.AdditionalDetails)

	doc, err = NewDocument("https://www.apple.com/shop/product/FGN63LL/A", `<html><head><meta name="description" content="8GB RAM and 256GB SSD"></head></html>`)
	require.NoError(t, err)
	rec = NewExtractor(nil, WithDetailSelectors(".missing")).Extract(doc).Record
	assert.Equal(t, "8GB RAM and 256GB SSD", rec.AdditionalDetails)
	assert.Equal(t, "8GB", models.Deref(rec.RAM))
	assert.Equal(t, "256GB", models.Deref(rec.Storage))
}

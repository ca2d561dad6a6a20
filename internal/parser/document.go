package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/refurb-crawler/internal/urlutil"
)

// Document is one fetched page: the raw markup, its parsed DOM, the
// structured-data blocks found in it and the canonical address it declares.
// A Document is read-only after NewDocument returns.
type Document struct {
	URL          string
	HTML         string
	CanonicalURL string
	Blocks       []map[string]any

	dom          *goquery.Document
	metaProperty map[string]string
	metaName     map[string]string
}

// NewDocument parses html fetched from fetchedURL. The canonical URL is
// resolved here, before any field extraction, from <link rel=canonical>,
// then og:url, then the url of a product-typed structured block.
func NewDocument(fetchedURL, html string) (*Document, error) {
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc := &Document{
		URL:          fetchedURL,
		HTML:         html,
		dom:          dom,
		metaProperty: make(map[string]string),
		metaName:     make(map[string]string),
	}
	if normalized, ok := urlutil.Normalize(fetchedURL); ok {
		doc.URL = normalized
	}

	dom.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content, ok := s.Attr("content")
		if !ok {
			return
		}
		content = strings.TrimSpace(content)
		if prop, ok := s.Attr("property"); ok {
			key := strings.ToLower(strings.TrimSpace(prop))
			if _, seen := doc.metaProperty[key]; !seen {
				doc.metaProperty[key] = content
			}
		}
		if name, ok := s.Attr("name"); ok {
			key := strings.ToLower(strings.TrimSpace(name))
			if _, seen := doc.metaName[key]; !seen {
				doc.metaName[key] = content
			}
		}
	})

	doc.Blocks = parseStructuredBlocks(dom)
	doc.CanonicalURL = doc.resolveCanonical()

	return doc, nil
}

// MetaProperty returns the content of <meta property=...>, e.g. og:image.
func (d *Document) MetaProperty(property string) string {
	return d.metaProperty[strings.ToLower(property)]
}

// MetaName returns the content of <meta name=...>.
func (d *Document) MetaName(name string) string {
	return d.metaName[strings.ToLower(name)]
}

// Meta tries the property form first and falls back to the name form.
func (d *Document) Meta(key string) string {
	if v := d.MetaProperty(key); v != "" {
		return v
	}
	return d.MetaName(key)
}

// Title returns the text of the <title> element.
func (d *Document) Title() string {
	return collapseSpace(d.dom.Find("title").First().Text())
}

// Anchors returns the raw href of every <a href> in document order.
func (d *Document) Anchors() []string {
	var hrefs []string
	d.dom.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		hrefs = append(hrefs, strings.TrimSpace(s.AttrOr("href", "")))
	})
	return hrefs
}

// ProductBlock returns the selected product-typed structured block, if any.
func (d *Document) ProductBlock() map[string]any {
	return findProductBlock(d.Blocks)
}

func (d *Document) resolveCanonical() string {
	var candidates []string

	d.dom.Find("link").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel := strings.ToLower(s.AttrOr("rel", ""))
		for _, token := range strings.Fields(rel) {
			if token == "canonical" {
				candidates = append(candidates, s.AttrOr("href", ""))
				return false
			}
		}
		return true
	})

	candidates = append(candidates, d.MetaProperty("og:url"))

	if block := findProductBlock(d.Blocks); block != nil {
		candidates = append(candidates, stringField(block, "url"), stringField(block, "@id"))
	}

	for _, c := range candidates {
		if c == "" {
			continue
		}
		if resolved, ok := urlutil.Resolve(d.URL, c); ok {
			return resolved
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

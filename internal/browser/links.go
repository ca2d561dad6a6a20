package browser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/maltedev/refurb-crawler/internal/parser"
	"github.com/maltedev/refurb-crawler/internal/urlutil"
)

var structuredLinkFields = []string{"url", "@id", "mainEntityOfPage"}

// HarvestLinks collects the outbound links of a rendered page: every anchor
// href plus the url-like field of each structured-data block. Only http(s)
// links on baseURL's host survive; the result is normalized, deduplicated
// and sorted.
func HarvestLinks(html, baseURL string) ([]string, error) {
	doc, err := parser.NewDocument(baseURL, html)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page for links: %w", err)
	}

	var raw []string
	for _, href := range doc.Anchors() {
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			continue
		}
		raw = append(raw, href)
	}

	for _, block := range doc.Blocks {
		for _, field := range structuredLinkFields {
			if s, ok := block[field].(string); ok && strings.TrimSpace(s) != "" {
				raw = append(raw, s)
				break
			}
		}
	}

	seen := make(map[string]struct{}, len(raw))
	links := make([]string, 0, len(raw))
	for _, href := range raw {
		resolved, ok := urlutil.Resolve(baseURL, href)
		if !ok || !urlutil.SameHost(resolved, baseURL) {
			continue
		}
		if _, dup := seen[resolved]; dup {
			continue
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)
	}

	sort.Strings(links)
	return links, nil
}

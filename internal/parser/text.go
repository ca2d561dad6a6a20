package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// DefaultDetailSelectors are the content containers tried, in order, for
// the free-text product details.
var DefaultDetailSelectors = []string{
	".as-productinfo",
	".product-hero",
	".tech-specs",
	".rb-content",
	".product-hero__description",
	".section-copy",
	"#overview",
	".description",
}

// selectionText joins the text nodes under s with single spaces, skipping
// script and style content.
func selectionText(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		writeText(n, &b)
	}
	return collapseSpace(b.String())
}

func writeText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" || n.Data == "noscript" {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(c, b)
	}
}

// detailsText returns the first non-empty selector match, else the page's
// meta description.
func detailsText(doc *Document, selectors []string) string {
	for _, sel := range selectors {
		node := doc.dom.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if text := selectionText(node); text != "" {
			return text
		}
	}

	if desc := doc.MetaName("description"); desc != "" {
		return desc
	}
	return doc.MetaProperty("og:description")
}

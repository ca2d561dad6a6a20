package parser

import (
	"encoding/json"
	"html"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const productType = "product"

func parseStructuredBlocks(dom *goquery.Document) []map[string]any {
	var blocks []map[string]any

	dom.Find("script").Each(func(_ int, s *goquery.Selection) {
		if !strings.EqualFold(strings.TrimSpace(s.AttrOr("type", "")), "application/ld+json") {
			return
		}
		content := strings.TrimSpace(s.Text())
		if content == "" {
			return
		}
		blocks = append(blocks, decodeBlocks(content)...)
	})

	return blocks
}

// decodeBlocks parses one script body. When the body is not valid JSON, the
// HTML-unescaped body is tried, then balanced {...} spans are recovered.
func decodeBlocks(content string) []map[string]any {
	var v any
	if err := json.Unmarshal([]byte(content), &v); err == nil {
		return flattenBlocks(v)
	}

	unescaped := html.UnescapeString(content)
	if unescaped != content {
		if err := json.Unmarshal([]byte(unescaped), &v); err == nil {
			return flattenBlocks(v)
		}
	}

	return recoverObjects(unescaped)
}

// flattenBlocks turns a decoded value into blocks: objects are kept, arrays
// contribute their object elements, and @graph members are lifted next to
// their container.
func flattenBlocks(v any) []map[string]any {
	var out []map[string]any
	switch t := v.(type) {
	case map[string]any:
		out = append(out, t)
		if graph, ok := t["@graph"].([]any); ok {
			for _, item := range graph {
				if m, ok := item.(map[string]any); ok {
					out = append(out, m)
				}
			}
		}
	case []any:
		for _, item := range t {
			out = append(out, flattenBlocks(item)...)
		}
	}
	return out
}

// recoverObjects scans s for top-level brace-balanced spans, honouring JSON
// string quoting, and decodes each one. A span that still fails to decode is
// searched for nested objects.
func recoverObjects(s string) []map[string]any {
	var out []map[string]any

	for _, span := range balancedSpans(s) {
		var m map[string]any
		if err := json.Unmarshal([]byte(span), &m); err == nil {
			out = append(out, flattenBlocks(m)...)
			continue
		}
		if len(span) > 2 {
			out = append(out, recoverObjects(span[1:len(span)-1])...)
		}
	}

	return out
}

func balancedSpans(s string) []string {
	var spans []string
	depth, start := 0, -1
	inString, escaped := false, false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				spans = append(spans, s[start:i+1])
				start = -1
			}
		}
	}

	return spans
}

// typeNames returns the lowercased @type values of a block.
func typeNames(block map[string]any) []string {
	switch t := block["@type"].(type) {
	case string:
		return []string{strings.ToLower(strings.TrimSpace(t))}
	case []any:
		var names []string
		for _, v := range t {
			if s, ok := v.(string); ok {
				names = append(names, strings.ToLower(strings.TrimSpace(s)))
			}
		}
		return names
	}
	return nil
}

func isProductTyped(block map[string]any) bool {
	for _, name := range typeNames(block) {
		if name == productType || strings.HasSuffix(name, productType) {
			return true
		}
	}
	return false
}

func hasType(block map[string]any, want string) bool {
	for _, name := range typeNames(block) {
		if name == want {
			return true
		}
	}
	return false
}

// findProductBlock checks every top-level block before looking one level
// inside each block's values.
func findProductBlock(blocks []map[string]any) map[string]any {
	for _, b := range blocks {
		if isProductTyped(b) {
			return b
		}
	}

	for _, b := range blocks {
		for _, key := range sortedKeys(b) {
			if nested, ok := b[key].(map[string]any); ok && isProductTyped(nested) {
				return nested
			}
		}
	}

	return nil
}

// findGalleryImage returns the first associated media item of an image gallery.
func findGalleryImage(blocks []map[string]any) string {
	for _, b := range blocks {
		media, ok := b["associatedMedia"]
		if !ok && !hasType(b, "imagegallery") {
			continue
		}
		list, ok := media.([]any)
		if !ok || len(list) == 0 {
			continue
		}
		if img := imageValue(list[0]); img != "" {
			return img
		}
	}
	return ""
}

// imageValue accepts a URL string, an ImageObject, or a list of either.
func imageValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		if len(t) > 0 {
			return imageValue(t[0])
		}
	case map[string]any:
		if s := stringField(t, "contentUrl"); s != "" {
			return s
		}
		return stringField(t, "url")
	}
	return ""
}

// firstOffer returns the first offer of a product, whether offers is a list
// or a single object.
func firstOffer(product map[string]any) map[string]any {
	switch t := product["offers"].(type) {
	case []any:
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				return m
			}
		}
	case map[string]any:
		return t
	}
	return nil
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

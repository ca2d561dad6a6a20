package parser

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/maltedev/refurb-crawler/internal/models"
)

type categoryRule struct {
	label   string
	pattern *regexp.Regexp
}

// Laptop and the named desktops are tried before the generic "mac" rule so
// a MacBook never lands in Desktop.
var categoryRules = []categoryRule{
	{models.CategoryLaptop, regexp.MustCompile(`(?i)\bmacbook\b`)},
	{models.CategoryDesktop, regexp.MustCompile(`(?i)\bimac\b|\bmac\s*mini\b|\bmac\s*studio\b|\bmac\s*pro\b`)},
	{models.CategoryTablet, regexp.MustCompile(`(?i)\bipad\b`)},
	{models.CategoryPhone, regexp.MustCompile(`(?i)\biphone\b`)},
	{models.CategoryWearable, regexp.MustCompile(`(?i)\bapple\s*watch\b|\bwatch\b|\bvision\s*pro\b`)},
	{models.CategoryTV, regexp.MustCompile(`(?i)\bapple\s*tv\b|\btv\s*4k\b`)},
	{models.CategorySpeaker, regexp.MustCompile(`(?i)\bhomepod\b`)},
	{models.CategoryAudio, regexp.MustCompile(`(?i)\bairpods\b|\bearpods\b|\bbeats\b|\bheadphones?\b|kopfhörer|écouteurs|auriculares|\bcuffie\b|hoofdtelefoon|hörlurar`)},
	{models.CategoryAccessory, accessoryPattern},
	{models.CategoryDesktop, regexp.MustCompile(`(?i)\bmac\b`)},
}

var accessoryPattern = regexp.MustCompile(`(?i)accessor(?:y|ies)|zubehör|accessoires|accesorios|accessori|tillbehör|\bpencil\b|keyboard|tastatur|clavier|teclado|tastiera|toetsenbord|tangentbord|\bmouse\b|\bmaus\b|\bsouris\b|\bratón\b|trackpad|\bcables?\b|\bkabel\b|\bcâble\b|\bcavo\b|adapter|adaptateur|adattatore|adaptador|charger|ladegerät|chargeur|cargador|\bcase\b|hülle|étui|\bfunda\b|custodia|\bband\b|armband|bracelet|\bcorrea\b|cinturino|airtag|magsafe|\bfolio\b|\bcover\b|studio\s*display|pro\s*display`)

var compatibilityPattern = regexp.MustCompile(`(?i)\b(?:for|für|pour|para|per|voor|för)\s+(?:the\s+)?(?:ipad|iphone|mac|macbook|imac|apple\s*watch)\b`)

// Categorize runs the keyword cascade over the title, then over the URL path
// when the title alone yields nothing.
func Categorize(title, rawURL string) string {
	if label := matchCategory(title); label != "" {
		return label
	}
	if label := matchCategory(urlWords(rawURL)); label != "" {
		return label
	}
	return models.CategoryOther
}

func matchCategory(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	for _, rule := range categoryRules {
		if rule.pattern.MatchString(s) {
			return rule.label
		}
	}
	return ""
}

// isAccessoryTitle catches accessories sold "for" a device, e.g.
// "Magic Keyboard for iPad Pro", which the cascade files under the device.
func isAccessoryTitle(title string) bool {
	return accessoryPattern.MatchString(title) && compatibilityPattern.MatchString(title)
}

var urlSeparators = strings.NewReplacer("/", " ", "-", " ", "_", " ", "+", " ")

func urlWords(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return urlSeparators.Replace(u.Path)
}

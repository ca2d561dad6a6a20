package classifier

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/maltedev/refurb-crawler/internal/parser"
	"github.com/maltedev/refurb-crawler/internal/urlutil"
)

// Reasons reported by Classify.
const (
	ReasonProductBlock  = "product_block"
	ReasonPrice         = "price"
	ReasonImageAndSpecs = "image_and_specs"
	ReasonOGType        = "og_type"
	ReasonNotFound      = "not_found"
	ReasonNoSignal      = "no_signal"
)

var DefaultVariantParams = []string{"fnode", "variant", "product", "sku"}

const DefaultProductTokenMinLen = 6

type Options struct {
	// ProductTokenMinLen is the shortest uppercase letter+digit token that
	// makes a refurbished-listing URL count as product-shaped.
	ProductTokenMinLen int
	VariantParams      []string
}

func DefaultOptions() Options {
	return Options{
		ProductTokenMinLen: DefaultProductTokenMinLen,
		VariantParams:      DefaultVariantParams,
	}
}

type Classifier struct {
	opts          Options
	variantParams map[string]struct{}
}

var (
	productPathPattern = regexp.MustCompile(`(?i)/shop/product/|/product/|/product-page|refurbished.*product`)
	partNumberPattern  = regexp.MustCompile(`/[A-Z0-9]{4,10}/A(?:/|$)`)
	refurbishedPattern = regexp.MustCompile(`(?i)/refurbished(?:/|$)`)
	upperTokenPattern  = regexp.MustCompile(`[A-Z0-9]+`)
)

// notFoundPatterns cover the storefront locales. A match on the title turns
// any page into a non-product.
var notFoundPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bpage not found\b|\bnot found\b|\b404\b|can.t be found|cannot be found`),
	regexp.MustCompile(`(?i)nicht gefunden|seite wurde nicht gefunden`),
	regexp.MustCompile(`(?i)introuvable|page non trouvée|non trouvé`),
	regexp.MustCompile(`(?i)no encontrad[ao]|no se encuentra|no se ha encontrado`),
	regexp.MustCompile(`(?i)non trovat[ao]|pagina non trovata`),
	regexp.MustCompile(`(?i)niet gevonden|pagina niet gevonden`),
	regexp.MustCompile(`(?i)hittades inte|kunde inte hittas`),
}

func New(opts Options) *Classifier {
	if opts.ProductTokenMinLen <= 0 {
		opts.ProductTokenMinLen = DefaultProductTokenMinLen
	}
	if opts.VariantParams == nil {
		opts.VariantParams = DefaultVariantParams
	}

	c := &Classifier{
		opts:          opts,
		variantParams: make(map[string]struct{}, len(opts.VariantParams)),
	}
	for _, p := range opts.VariantParams {
		c.variantParams[strings.ToLower(strings.TrimSpace(p))] = struct{}{}
	}
	return c
}

// IsProductURL reports whether rawURL looks like it addresses a single item.
func (c *Classifier) IsProductURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	target := u.EscapedPath()
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	if productPathPattern.MatchString(target) || partNumberPattern.MatchString(u.EscapedPath()) {
		return true
	}

	if !refurbishedPattern.MatchString(u.EscapedPath()) {
		return false
	}

	for key := range u.Query() {
		if _, ok := c.variantParams[strings.ToLower(key)]; ok {
			return true
		}
	}
	return c.hasProductToken(target)
}

// hasProductToken looks for an uppercase token mixing letters and digits,
// the shape of a part number embedded in a listing URL.
func (c *Classifier) hasProductToken(s string) bool {
	for _, tok := range upperTokenPattern.FindAllString(s, -1) {
		if len(tok) < c.opts.ProductTokenMinLen {
			continue
		}
		if strings.ContainsAny(tok, "0123456789") && strings.ContainsAny(tok, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
			return true
		}
	}
	return false
}

// IsListingURL reports whether rawURL is a listing page under root: same
// host, path inside the root's path, and not product-shaped.
func (c *Classifier) IsListingURL(rawURL, root string) bool {
	if !urlutil.SameHost(rawURL, root) || c.IsProductURL(rawURL) {
		return false
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	r, err := url.Parse(root)
	if err != nil {
		return false
	}

	scope := strings.TrimRight(r.EscapedPath(), "/")
	path := strings.TrimRight(u.EscapedPath(), "/")
	return path == scope || strings.HasPrefix(path, scope+"/")
}

// IsProductPage reports whether a fetched document is a genuine item page.
func (c *Classifier) IsProductPage(doc *parser.Document, sig parser.Signals) bool {
	ok, _ := c.Classify(doc, sig)
	return ok
}

// Classify is IsProductPage plus the reason for the decision.
func (c *Classifier) Classify(doc *parser.Document, sig parser.Signals) (bool, string) {
	title := sig.Title
	if title == "" && doc != nil {
		title = doc.Title()
	}
	if IsNotFoundTitle(title) {
		return false, ReasonNotFound
	}

	switch {
	case sig.ProductBlock:
		return true, ReasonProductBlock
	case sig.Price:
		return true, ReasonPrice
	case sig.Image && sig.Specs:
		return true, ReasonImageAndSpecs
	case sig.OGTypeProduct:
		return true, ReasonOGType
	}
	return false, ReasonNoSignal
}

func IsNotFoundTitle(title string) bool {
	if strings.TrimSpace(title) == "" {
		return false
	}
	for _, p := range notFoundPatterns {
		if p.MatchString(title) {
			return true
		}
	}
	return false
}

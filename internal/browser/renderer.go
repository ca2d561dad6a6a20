package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maltedev/refurb-crawler/internal/ratelimit"
	"github.com/playwright-community/playwright-go"
)

// Page is one rendered document held open by a Renderer.
type Page interface {
	URL() string
	Content() (string, error)
	Close() error
}

// Renderer fetches and renders pages. Implementations must release every
// resource behind a Page when Close is called.
type Renderer interface {
	Open(ctx context.Context, url string) (Page, error)
	RevealMore(ctx context.Context, page Page) bool
	ExtractLinks(ctx context.Context, page Page, baseURL string) ([]string, error)
}

const (
	maxRevealRounds = 6
	scrollSettle    = 800 * time.Millisecond
	fastMoreButton  = `button:has-text('Load more'), button:has-text('Show more'), button:has-text('Mehr')`
)

var moreButtonPatterns = []string{
	"load more",
	"show more",
	"mehr",
	"more results",
	"anzeigen",
	"voir plus",
	"carica altro",
	"cargar más",
	"cargar mas",
	"zeige mehr",
	"view more",
}

type PlaywrightRenderer struct {
	browser *Browser
	delay   *ratelimit.JitterDelay
	logger  *slog.Logger
}

func NewRenderer(b *Browser, delay *ratelimit.JitterDelay, logger *slog.Logger) *PlaywrightRenderer {
	if delay == nil {
		delay = ratelimit.NewJitterDelay(200*time.Millisecond, time.Second)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PlaywrightRenderer{
		browser: b,
		delay:   delay,
		logger:  logger.With("component", "renderer"),
	}
}

type playwrightPage struct {
	page    playwright.Page
	context playwright.BrowserContext
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) Content() (string, error) {
	html, err := p.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}
	return html, nil
}

// Close releases the page and then its context.
func (p *playwrightPage) Close() error {
	var errs []error
	if err := p.page.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close page: %w", err))
	}
	if err := p.context.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close context: %w", err))
	}
	return errors.Join(errs...)
}

// Open navigates a fresh context to url and waits for DOMContentLoaded plus
// a jittered pause. On error nothing is left open.
func (r *PlaywrightRenderer) Open(ctx context.Context, url string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bctx, err := r.browser.NewContext()
	if err != nil {
		return nil, err
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	p := &playwrightPage{page: page, context: bctx}

	_, err = page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(r.browser.Timeout().Milliseconds())),
	})
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	if err := r.delay.Wait(ctx); err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

// RevealMore clicks "load more" style controls for up to maxRevealRounds
// rounds. When no control is found it scrolls to the bottom once and stops.
// Click failures are ignored.
func (r *PlaywrightRenderer) RevealMore(ctx context.Context, p Page) bool {
	pp, ok := p.(*playwrightPage)
	if !ok {
		return false
	}
	page := pp.page

	clicked := false
	for round := 0; round < maxRevealRounds; round++ {
		if ctx.Err() != nil {
			break
		}

		if r.clickFirst(page.Locator(fastMoreButton)) || r.clickMatchingButton(page) {
			clicked = true
			r.logger.Debug("revealed more content", "url", page.URL(), "round", round+1)
			if err := r.delay.Wait(ctx); err != nil {
				break
			}
			continue
		}

		if _, err := page.Evaluate(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
			r.logger.Debug("scroll failed", "url", page.URL(), "error", err)
		}
		page.WaitForTimeout(float64(scrollSettle.Milliseconds()))
		break
	}

	return clicked
}

func (r *PlaywrightRenderer) clickFirst(loc playwright.Locator) bool {
	btn := loc.First()
	count, err := btn.Count()
	if err != nil || count == 0 {
		return false
	}
	if visible, _ := btn.IsVisible(); !visible {
		return false
	}
	return btn.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(5000)}) == nil
}

func (r *PlaywrightRenderer) clickMatchingButton(page playwright.Page) bool {
	buttons := page.Locator("button")
	count, err := buttons.Count()
	if err != nil {
		return false
	}

	for i := 0; i < count; i++ {
		btn := buttons.Nth(i)
		text, err := btn.InnerText()
		if err != nil || !matchesMoreButton(text) {
			continue
		}
		if visible, _ := btn.IsVisible(); !visible {
			continue
		}
		if btn.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(5000)}) == nil {
			return true
		}
	}
	return false
}

func matchesMoreButton(text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return false
	}
	for _, p := range moreButtonPatterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func (r *PlaywrightRenderer) ExtractLinks(_ context.Context, p Page, baseURL string) ([]string, error) {
	html, err := p.Content()
	if err != nil {
		return nil, err
	}
	return HarvestLinks(html, baseURL)
}

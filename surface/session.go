package surface

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/trawlkit/trawl/models"
)

// Session is one pooled browser tab prepared for listing work: stealth
// JS installed, resource blocking mounted, referer set. It implements
// Surface. Sessions are not safe for concurrent use; each worker owns
// its own.
//
// Setup order matters: stealth injection and the hijack router only
// take effect for navigations that happen after they are installed, so
// NewSession does both before the first Navigate.
type Session struct {
	browser *Browser
	page    *rod.Page
	router  *rod.HijackRouter
	navs    int
}

// NewSession borrows a tab from the pool and prepares it.
func (b *Browser) NewSession() (*Session, error) {
	page, err := b.acquire()
	if err != nil {
		return nil, err
	}

	// ── 1. Stealth injection ────────────────────────────────────────
	if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
		slog.Warn("stealth injection failed, proceeding without stealth",
			"error", evalErr,
		)
	}

	// ── 2. Mount hijack router (blocks configured resource types + ads)
	router := setupHijack(page, b.cfg.BlockedResourceTypes)

	return &Session{browser: b, page: page, router: router}, nil
}

// Close stops the hijack router and returns the tab to the pool.
func (s *Session) Close() {
	if s.router != nil {
		_ = s.router.Stop()
	}
	s.browser.release(s.page)
}

// Navigate loads url and waits for the DOM to settle. A Google-search
// referer is sent on the first navigation of the session; overlays
// (cookie walls, consent banners) are stripped after every load.
func (s *Session) Navigate(ctx context.Context, target string) error {
	ctx, cancel := context.WithTimeout(ctx, s.browser.cfg.NavigationTimeout)
	defer cancel()
	p := s.page.Context(ctx)

	if s.navs == 0 {
		if u, parseErr := url.Parse(target); parseErr == nil {
			_ = proto.NetworkSetExtraHTTPHeaders{
				Headers: toHeadersMap(map[string]string{
					"Referer": "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname()),
				}),
			}.Call(p)
		}
	}

	if navErr := p.Navigate(target); navErr != nil {
		return categorizeError(navErr, "navigation to listing URL failed")
	}
	s.navs++

	// Let the initial render settle; the listing-specific readiness
	// decision belongs to the poller, not here.
	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"error", stableErr,
		)
	}

	removeOverlays(p)
	return nil
}

// Location returns the page's current URL.
func (s *Session) Location(ctx context.Context) (string, error) {
	res, err := s.page.Context(ctx).Eval(`() => window.location.href`)
	if err != nil {
		return "", categorizeError(err, "failed to read page location")
	}
	return res.Value.Str(), nil
}

// Eval runs a JS function in the page and returns its JSON value.
func (s *Session) Eval(ctx context.Context, js string, args ...any) (gson.JSON, error) {
	res, err := s.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return gson.New(nil), categorizeError(err, "in-page evaluation failed")
	}
	return res.Value, nil
}

// Content returns the current rendered HTML.
func (s *Session) Content(ctx context.Context) (string, error) {
	html, err := s.page.Context(ctx).HTML()
	if err != nil {
		return "", categorizeError(err, "failed to extract page HTML")
	}
	return html, nil
}

// Click dispatches a real mouse click on the first element matching
// the selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	p := s.page.Context(ctx)
	el, err := p.Element(selector)
	if err != nil {
		return models.NewScrapeError(
			models.ErrCodePagination,
			"element "+selector+" not found",
			err,
		)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return categorizeError(err, "click on "+selector+" failed")
	}
	return nil
}

// Screenshot captures the current viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	return s.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// removeOverlays injects JS to remove fixed/sticky positioned elements
// with high z-index, which are typically cookie consent banners and
// popup overlays. Low z-index fixed elements (headers, pagination
// bars) are left alone so in-page controls stay clickable.
func removeOverlays(p *rod.Page) {
	const js = `() => {
		const els = document.querySelectorAll('*');
		for (const el of els) {
			const style = window.getComputedStyle(el);
			const pos = style.position;
			if (pos === 'fixed' || pos === 'sticky') {
				const z = parseInt(style.zIndex, 10);
				if (z >= 900) {
					el.remove();
				}
			}
		}
		// Also remove common overlay class patterns.
		const selectors = [
			'[class*="cookie"]', '[class*="consent"]',
			'[id*="cookie"]', '[id*="consent"]',
			'[class*="gdpr"]', '[id*="gdpr"]',
		];
		for (const sel of selectors) {
			document.querySelectorAll(sel).forEach(el => {
				const style = window.getComputedStyle(el);
				if (style.position === 'fixed' || style.position === 'sticky' || style.position === 'absolute') {
					el.remove();
				}
			});
		}
		// Remove any overflow:hidden on body/html (often set by modals).
		document.documentElement.style.overflow = '';
		document.body.style.overflow = '';
	}`
	_, _ = p.Eval(js)
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders
// type (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw errors into typed ScrapeErrors so callers
// can tell timeouts from navigation failures.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "operation canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}

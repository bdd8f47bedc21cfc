package engine

import (
	"context"

	"github.com/trawlkit/trawl/surface"
)

// BrowserEngine renders a detail page in a real browser tab. It is the
// escalation tier for pages the HTTP engine cannot read: client-side
// rendered product pages and listings behind bot checks the stealth
// session passes.
type BrowserEngine struct {
	browser *surface.Browser
}

// NewBrowserEngine creates a browser engine over the shared browser.
// Each fetch borrows its own session from the tab pool, so concurrent
// detail workers never share a page.
func NewBrowserEngine(b *surface.Browser) *BrowserEngine {
	return &BrowserEngine{browser: b}
}

func (e *BrowserEngine) Name() string { return "browser" }

func (e *BrowserEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	sess, err := e.browser.NewSession()
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	if err := sess.Navigate(ctx, req.URL); err != nil {
		return nil, err
	}

	page, err := sess.Content(ctx)
	if err != nil {
		return nil, err
	}

	finalURL := req.URL
	if loc, locErr := sess.Location(ctx); locErr == nil && loc != "" {
		finalURL = loc
	}
	title := ""
	if val, evalErr := sess.Eval(ctx, `() => document.title`); evalErr == nil {
		title = val.Str()
	}

	return &FetchResult{
		HTML:       page,
		Title:      title,
		FinalURL:   finalURL,
		EngineName: e.Name(),
	}, nil
}

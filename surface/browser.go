package surface

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"github.com/trawlkit/trawl/config"
	"github.com/trawlkit/trawl/models"
)

// Browser manages the global browser lifecycle and the tab pool.
// It is safe for concurrent use.
type Browser struct {
	browser     *rod.Browser
	pagePool    rod.Pool[rod.Page]
	cfg         config.BrowserConfig
	activePages atomic.Int32
	startTime   time.Time
}

// NewBrowser launches a headless browser and initialises the reusable
// tab pool.
func NewBrowser(cfg config.BrowserConfig) (*Browser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.DefaultProxy != "" {
		l = l.Proxy(cfg.DefaultProxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	maxTabs := cfg.MaxTabs
	if maxTabs < 1 {
		maxTabs = 1
	}
	pool := rod.NewPagePool(maxTabs)
	slog.Info("tab pool created", "maxTabs", maxTabs)

	return &Browser{
		browser:   browser,
		pagePool:  pool,
		cfg:       cfg,
		startTime: time.Now(),
	}, nil
}

// acquire borrows a tab from the pool, creating one on demand.
func (b *Browser) acquire() (*rod.Page, error) {
	page, err := b.pagePool.Get(func() (*rod.Page, error) {
		return b.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to acquire tab from pool",
			err,
		)
	}
	b.activePages.Add(1)
	return page, nil
}

// release parks a tab on about:blank and returns it to the pool. The
// original page reference is used so cleanup succeeds even when the
// session context has expired.
func (b *Browser) release(page *rod.Page) {
	if navErr := page.Navigate("about:blank"); navErr != nil {
		slog.Warn("cleanup: failed to navigate to about:blank",
			"error", navErr,
		)
	}
	b.pagePool.Put(page)
	b.activePages.Add(-1)
}

// Stats returns a snapshot of the browser's current state.
func (b *Browser) Stats() models.BrowserStats {
	return models.BrowserStats{
		Alive:          true,
		ActiveSessions: int(b.activePages.Load()),
	}
}

// Uptime reports how long the browser has been running.
func (b *Browser) Uptime() time.Duration {
	return time.Since(b.startTime)
}

// Close drains the tab pool and kills the browser process.
// Call this on graceful shutdown to prevent zombie Chrome processes.
func (b *Browser) Close() {
	slog.Info("browser shutting down: draining tab pool")
	b.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	slog.Info("browser shutting down: closing browser")
	b.browser.MustClose()
	slog.Info("browser shutdown complete")
}

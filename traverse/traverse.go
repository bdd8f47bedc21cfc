// Package traverse runs listing traversals end to end: per page it
// waits for readiness, extracts and normalizes cards, deduplicates
// them into a running aggregate, and hands control to the pagination
// controller. One surface is exclusively owned by one traversal; the
// loop is strictly sequential.
package traverse

import (
	"context"
	"log/slog"
	"math/rand"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/trawlkit/trawl/config"
	"github.com/trawlkit/trawl/extract"
	"github.com/trawlkit/trawl/models"
	"github.com/trawlkit/trawl/paginate"
	"github.com/trawlkit/trawl/poll"
	"github.com/trawlkit/trawl/surface"
)

// Sink receives anomaly artifacts from the traversal loop.
// *debugsink.Sink satisfies it.
type Sink interface {
	WriteMarkup(query string, page int, markup string)
	WriteScreenshot(query string, page int, png []byte)
	WriteDiag(query string, page int, payload any)
}

// Traverser drives query runs over one exclusively owned surface. A
// single token bucket paces every navigation it causes, across queries
// and profiles.
type Traverser struct {
	cfg      config.TraversalConfig
	sink     Sink
	limiter  *rate.Limiter
	progress func(query string, page, records int)
}

// New creates a Traverser. sink may be nil when anomaly dumps are not
// wanted.
func New(cfg config.TraversalConfig, sink Sink) *Traverser {
	rps := rate.Limit(cfg.NavPerSecond)
	if cfg.NavPerSecond <= 0 {
		rps = rate.Inf
	}
	burst := cfg.NavBurst
	if burst < 1 {
		burst = 1
	}
	return &Traverser{
		cfg:     cfg,
		sink:    sink,
		limiter: rate.NewLimiter(rps, burst),
	}
}

// SetProgress installs a per-page progress callback, invoked after
// every processed page with the running record count. Used by the
// status API; nil disables it.
func (t *Traverser) SetProgress(fn func(query string, page, records int)) {
	t.progress = fn
}

// Run traverses one profile, trying its query variants in order. The
// first variant yielding records wins. When every variant comes back
// empty the first variant's result is returned so its stop reason
// stays visible for diagnostics. An error is returned only when the
// context was cancelled or no variant completed at all.
func (t *Traverser) Run(ctx context.Context, s surface.Surface, profile *config.SiteProfile) (models.TraversalResult, error) {
	paced := pacedSurface{Surface: s, limiter: t.limiter}

	var (
		firstEmpty *models.TraversalResult
		lastRes    models.TraversalResult
		lastErr    error
	)
	for _, query := range profile.Queries {
		res, err := t.runQuery(ctx, paced, profile, query)
		if err != nil {
			if ctx.Err() != nil {
				return res, err
			}
			slog.Warn("query variant failed",
				"profile", profile.Name,
				"query", query,
				"error", err,
			)
			lastRes, lastErr = res, err
			continue
		}
		if len(res.Items) > 0 {
			return res, nil
		}
		slog.Info("query variant yielded no records, trying next",
			"profile", profile.Name,
			"query", query,
			"reason", res.StoppedReason,
		)
		if firstEmpty == nil {
			r := res
			firstEmpty = &r
		}
	}

	if firstEmpty != nil {
		return *firstEmpty, nil
	}
	return lastRes, lastErr
}

// runQuery traverses every page of one query variant.
func (t *Traverser) runQuery(ctx context.Context, s surface.Surface, profile *config.SiteProfile, query string) (models.TraversalResult, error) {
	started := time.Now()
	budget := t.readyBudget()
	ctrl := paginate.NewController(profile, query, t.cfg.MaxPages, budget)
	agg := NewAggregate()
	cursor := models.Cursor{CurrentPage: 1}
	result := models.TraversalResult{BaseURL: profile.BaseURL, Query: query}

	// ── 1. Enter the listing ────────────────────────────────────────
	entry := profile.PageURL(query, 1)
	slog.Info("starting query traversal",
		"profile", profile.Name,
		"query", query,
		"url", entry,
		"page_cap", ctrl.PageCap(),
	)
	if err := s.Navigate(ctx, entry); err != nil {
		result.StoppedReason = models.StopNoNextPage
		return result, err
	}
	if loc, err := s.Location(ctx); err == nil {
		ctrl.MarkVisited(loc)
	}

	var runErr error
	emptyStreak := 0
	for {
		// ── 2. Wait for the listing to settle ───────────────────────
		state, outcome := extract.WaitListing(ctx, s, profile, budget)
		if outcome.State == poll.Failed {
			if ctx.Err() != nil {
				runErr = models.NewScrapeError(models.ErrCodeTimeout, "traversal cancelled", outcome.Err)
				break
			}
			slog.Warn("readiness poll failed, extracting anyway",
				"query", query,
				"page", cursor.CurrentPage,
				"error", outcome.Err,
			)
		}

		// ── 3. Extract cards, retrying zero-card reads ──────────────
		frags, meta, extractErr := t.extractPage(ctx, s, profile, state)

		// ── 4. Normalize and deduplicate ────────────────────────────
		base := pageBase(ctx, s)
		now := time.Now().UTC()
		kept, added := 0, 0
		for _, f := range frags {
			if f.Empty() {
				continue
			}
			rec := buildRecord(profile, query, f, base, now)
			if rec.Name == "" && rec.SKU == "" && f.Link == "" {
				continue
			}
			kept++
			if agg.Add(rec) {
				added++
			}
		}
		slog.Info("page processed",
			"query", query,
			"page", cursor.CurrentPage,
			"cards", len(frags),
			"records", kept,
			"new", added,
			"total", agg.Len(),
		)
		if t.progress != nil {
			t.progress(query, cursor.CurrentPage, agg.Len())
		}

		// ── 5. Empty-page accounting and anomaly dump ───────────────
		if kept == 0 {
			emptyStreak++
			if state.EmptyStateText == "" && meta.EmptyStateText == "" {
				t.dumpPage(ctx, s, query, cursor.CurrentPage, state, extractErr)
			}
			if t.cfg.EmptyStreakLimit > 0 && emptyStreak >= t.cfg.EmptyStreakLimit {
				cursor = cursor.Stop(models.StopEmptyStreak)
				break
			}
		} else {
			emptyStreak = 0
		}

		// ── 6. Jitter between productive pages ──────────────────────
		if kept > 0 {
			if err := sleepJitter(ctx, t.cfg.JitterMin, t.cfg.JitterMax); err != nil {
				runErr = models.NewScrapeError(models.ErrCodeTimeout, "traversal cancelled", err)
				break
			}
		}

		// ── 7. Advance to the next page ─────────────────────────────
		var err error
		cursor, err = ctrl.Advance(ctx, s, cursor, meta)
		if err != nil {
			runErr = err
			break
		}
		if cursor.Stopped() {
			break
		}
	}

	result.Items = agg.Records()
	result.PageCount = cursor.CurrentPage
	result.StoppedReason = cursor.StoppedReason
	slog.Info("query traversal finished",
		"profile", profile.Name,
		"query", query,
		"pages", result.PageCount,
		"records", len(result.Items),
		"reason", result.StoppedReason,
		"duration", time.Since(started).Round(time.Millisecond),
	)
	return result, runErr
}

// extractPage reads the cards, retrying when a page that never declared
// an explicit empty state yields nothing. A page showing empty-state
// text is read once; zero records is its answer.
func (t *Traverser) extractPage(ctx context.Context, s surface.Surface, profile *config.SiteProfile, state models.PageState) ([]models.ItemFragment, models.PageMeta, error) {
	attempts := t.cfg.ExtractRetries
	if attempts < 1 || state.EmptyStateText != "" {
		attempts = 1
	}

	var (
		frags []models.ItemFragment
		meta  models.PageMeta
		err   error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		frags, meta, err = extract.Cards(ctx, s, profile)
		if err == nil && len(frags) > 0 {
			return frags, meta, nil
		}
		if ctx.Err() != nil || attempt == attempts {
			break
		}
		slog.Debug("page yielded no cards, retrying",
			"attempt", attempt,
			"of", attempts,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return frags, meta, err
		case <-time.After(t.cfg.ExtractRetryDelay):
		}
	}
	return frags, meta, err
}

// dumpPage captures markup, screenshot, and a state snapshot after a
// page produced zero records without declaring an empty state.
func (t *Traverser) dumpPage(ctx context.Context, s surface.Surface, query string, page int, state models.PageState, extractErr error) {
	if t.sink == nil {
		return
	}

	loc, _ := s.Location(ctx)
	diag := map[string]any{
		"url":   loc,
		"state": state,
	}
	if extractErr != nil {
		diag["error"] = extractErr.Error()
	}
	t.sink.WriteDiag(query, page, diag)

	if markup, err := s.Content(ctx); err == nil {
		t.sink.WriteMarkup(query, page, markup)
	} else {
		slog.Warn("anomaly dump: content read failed",
			"query", query,
			"page", page,
			"error", err,
		)
	}
	if shot, err := s.Screenshot(ctx); err == nil {
		t.sink.WriteScreenshot(query, page, shot)
	} else {
		slog.Warn("anomaly dump: screenshot failed",
			"query", query,
			"page", page,
			"error", err,
		)
	}
}

func (t *Traverser) readyBudget() poll.Budget {
	return poll.Budget{
		MaxAttempts: t.cfg.ReadyAttempts,
		MinDelay:    t.cfg.ReadyMinDelay,
		MaxDelay:    t.cfg.ReadyMaxDelay,
	}
}

// pageBase reads the effective base URL used to resolve relative
// links and images.
func pageBase(ctx context.Context, s surface.Surface) *url.URL {
	loc, err := s.Location(ctx)
	if err != nil || loc == "" {
		return nil
	}
	u, err := url.Parse(loc)
	if err != nil {
		return nil
	}
	return u
}

// sleepJitter pauses for a uniformly random duration in [min, max].
func sleepJitter(ctx context.Context, min, max time.Duration) error {
	if max < min {
		max = min
	}
	d := min
	if span := max - min; span > 0 {
		d += time.Duration(rand.Float64() * float64(span))
	}
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// pacedSurface gates the operations that cause a page load behind the
// shared token bucket, so direct URL jumps and script-driven next
// clicks pace identically.
type pacedSurface struct {
	surface.Surface
	limiter *rate.Limiter
}

func (p pacedSurface) Navigate(ctx context.Context, rawURL string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	return p.Surface.Navigate(ctx, rawURL)
}

func (p pacedSurface) Click(ctx context.Context, selector string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	return p.Surface.Click(ctx, selector)
}

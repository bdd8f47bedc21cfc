package paginate

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/trawlkit/trawl/config"
	"github.com/trawlkit/trawl/extract"
	"github.com/trawlkit/trawl/models"
	"github.com/trawlkit/trawl/poll"
	"github.com/trawlkit/trawl/surface"
)

// Controller advances a listing traversal one page at a time. It owns
// the visited-URL set for one query run; the position itself travels in
// the Cursor value so callers always hold the current state.
//
// Transition policy per page:
//  1. An enabled next control is attempted first (href navigation when
//     the control carries one, a real click otherwise).
//  2. Failing that, a known maximum page above the current one allows a
//     direct URL-parameter jump to currentPage+1.
//  3. Otherwise the traversal stops with the most specific terminal
//     reason available.
//
// After any transition the active-page indicator is re-read; a mismatch
// means the site did not actually advance and the traversal stops. A
// transition that lands on an already-visited URL is a stall and stops
// the traversal too. The hard page cap outranks every other signal.
type Controller struct {
	profile *config.SiteProfile
	query   string
	pageCap int
	budget  poll.Budget
	visited map[string]bool

	// sawPagination distinguishes a listing whose controls vanished
	// from one that never had any (terminal reason "completed").
	sawPagination bool
}

// NewController prepares a controller for one query run. pageCap is the
// mandatory hard bound on page count; the profile's MaxPages overrides
// it when set.
func NewController(profile *config.SiteProfile, query string, pageCap int, budget poll.Budget) *Controller {
	if profile.MaxPages > 0 {
		pageCap = profile.MaxPages
	}
	if pageCap < 1 {
		pageCap = 1
	}
	return &Controller{
		profile: profile,
		query:   query,
		pageCap: pageCap,
		budget:  budget,
		visited: make(map[string]bool),
	}
}

// MarkVisited records a URL in the stall-detection set. The traversal
// calls it with the entry URL before the first advance. URLs are
// compared exactly: fragment-routed listings change only the fragment
// between pages, so no part of the URL can be dropped.
func (c *Controller) MarkVisited(rawURL string) {
	c.visited[rawURL] = true
}

// PageCap exposes the effective hard page bound.
func (c *Controller) PageCap() int { return c.pageCap }

// Advance applies the transition policy and returns the updated cursor.
// A stopped cursor is returned unchanged. Navigation and click failures
// count as failed transitions, not process errors; only context
// cancellation aborts the run.
func (c *Controller) Advance(ctx context.Context, s surface.Surface, cursor models.Cursor, meta models.PageMeta) (models.Cursor, error) {
	if cursor.Stopped() {
		return cursor, nil
	}
	if err := ctx.Err(); err != nil {
		return cursor, err
	}

	if meta.MaxPageSeen > cursor.MaxPageKnown {
		cursor.MaxPageKnown = meta.MaxPageSeen
	}
	if meta.HasPagination {
		c.sawPagination = true
	}

	// The hard cap is checked before any other signal.
	if cursor.CurrentPage >= c.pageCap {
		return cursor.Stop(models.StopPageLimit), nil
	}

	target := cursor.CurrentPage + 1

	// ── 1. Enabled next control ─────────────────────────────────────
	if meta.HasNext && !meta.NextDisabled {
		ok, err := c.attemptNextControl(ctx, s, meta)
		if err != nil {
			return cursor, err
		}
		if ok {
			return c.settle(ctx, s, cursor, target)
		}
		// The control could not be operated (no href, no clickable
		// selector); fall through to direct navigation.
	}

	// ── 2. Direct jump below a known maximum ────────────────────────
	if cursor.MaxPageKnown > 0 && cursor.CurrentPage < cursor.MaxPageKnown {
		pageURL := c.profile.PageURL(c.query, target)
		if err := s.Navigate(ctx, pageURL); err != nil {
			if ctx.Err() != nil {
				return cursor, ctx.Err()
			}
			slog.Warn("direct page navigation failed",
				"profile", c.profile.Name,
				"page", target,
				"error", err,
			)
			return cursor.Stop(models.StopNoNextPage), nil
		}
		return c.settle(ctx, s, cursor, target)
	}

	// ── 3. Stop with the most specific reason ───────────────────────
	switch {
	case meta.HasNext && meta.NextDisabled:
		return cursor.Stop(models.StopNextDisabled), nil
	case cursor.MaxPageKnown > 0 && cursor.CurrentPage >= cursor.MaxPageKnown:
		return cursor.Stop(models.StopMaxPageReached), nil
	case c.sawPagination:
		return cursor.Stop(models.StopNoNextPage), nil
	default:
		// The listing never showed pagination controls: a single-page
		// result set, finished in the ordinary way.
		return cursor.Stop(models.StopCompleted), nil
	}
}

// attemptNextControl operates the next-page control. Returns false when
// the control cannot be targeted at all.
func (c *Controller) attemptNextControl(ctx context.Context, s surface.Surface, meta models.PageMeta) (bool, error) {
	if navigableHref(meta.NextHref) {
		loc, _ := s.Location(ctx)
		target := resolveHref(loc, meta.NextHref)
		if target != "" {
			if err := s.Navigate(ctx, target); err != nil {
				if ctx.Err() != nil {
					return false, ctx.Err()
				}
				slog.Warn("next-control navigation failed",
					"profile", c.profile.Name,
					"href", meta.NextHref,
					"error", err,
				)
				return false, nil
			}
			return true, nil
		}
	}

	selector := c.profile.Selectors.Next
	if selector == "" {
		selector = `a[rel="next"]`
	}
	if err := s.Click(ctx, selector); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		slog.Warn("next-control click failed",
			"profile", c.profile.Name,
			"selector", selector,
			"error", err,
		)
		return false, nil
	}
	return true, nil
}

// settle waits for the post-transition page, then verifies the advance
// actually happened: the active-page indicator must agree with the
// intended target when the site exposes one, and the resulting URL must
// be new.
func (c *Controller) settle(ctx context.Context, s surface.Surface, cursor models.Cursor, target int) (models.Cursor, error) {
	state, outcome := extract.WaitListing(ctx, s, c.profile, c.budget)
	if outcome.State == poll.Failed {
		if ctx.Err() != nil {
			return cursor, ctx.Err()
		}
		slog.Warn("post-transition page never settled",
			"profile", c.profile.Name,
			"page", target,
			"error", outcome.Err,
		)
		return cursor.Stop(models.StopNoNextPage), nil
	}

	if state.ActivePage > 0 && state.ActivePage != target {
		slog.Warn("active page indicator disagrees with transition",
			"profile", c.profile.Name,
			"want", target,
			"got", state.ActivePage,
		)
		return cursor.Stop(models.StopNoNextPage), nil
	}

	if loc, err := s.Location(ctx); err == nil && loc != "" {
		if c.visited[loc] {
			return cursor.Stop(models.StopStalled), nil
		}
		c.visited[loc] = true
	}

	cursor.CurrentPage = target
	return cursor, nil
}

// navigableHref reports whether a next-control href is worth navigating
// to. Script-driven controls carry "#" or javascript: pseudo-links and
// must be clicked instead.
func navigableHref(href string) bool {
	if href == "" || href == "#" {
		return false
	}
	return !strings.HasPrefix(strings.ToLower(href), "javascript:")
}

// resolveHref makes a next-control href absolute against the current
// location. Returns "" when nothing absolute can be built.
func resolveHref(base, href string) string {
	h, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if h.IsAbs() {
		return h.String()
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return ""
	}
	return b.ResolveReference(h).String()
}


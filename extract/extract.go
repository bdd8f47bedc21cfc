package extract

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/trawlkit/trawl/config"
	"github.com/trawlkit/trawl/models"
	"github.com/trawlkit/trawl/poll"
	"github.com/trawlkit/trawl/surface"
)

// harvestPayload is the JSON shape produced by harvestJS.
type harvestPayload struct {
	Items []models.ItemFragment `json:"items"`
	Meta  models.PageMeta       `json:"meta"`
}

// selectorArg builds the selector object handed to the in-page scripts.
// Keys match the script's field lookups (and the TOML selector names).
func selectorArg(p *config.SiteProfile) map[string]string {
	return map[string]string{
		"card":          p.Selectors.Card,
		"name":          p.Selectors.Name,
		"brand":         p.Selectors.Brand,
		"sku":           p.Selectors.SKU,
		"price":         p.Selectors.Price,
		"regular_price": p.Selectors.RegularPrice,
		"unit_price":    p.Selectors.UnitPrice,
		"unit_label":    p.Selectors.UnitLabel,
		"link":          p.Selectors.Link,
		"image":         p.Selectors.Image,
		"category":      p.Selectors.Category,
		"pagination":    p.Selectors.Pagination,
		"next":          p.Selectors.Next,
		"page_link":     p.Selectors.PageLink,
		"active_page":   p.Selectors.ActivePage,
		"results_count": p.Selectors.ResultsCount,
		"empty_state":   p.Selectors.EmptyState,
		"loader":        p.Selectors.Loader,
	}
}

// Cards harvests every visible listing card plus the pagination
// metadata in one in-page evaluation. When the evaluation itself fails
// (page crashed mid-walk, CSP blocked the script) it falls back to
// parsing the rendered HTML statically; only a double failure surfaces
// as an error.
func Cards(ctx context.Context, s surface.Surface, p *config.SiteProfile) ([]models.ItemFragment, models.PageMeta, error) {
	val, err := s.Eval(ctx, harvestJS, selectorArg(p), p.NextVocabulary)
	if err == nil {
		var payload harvestPayload
		if err = decodeJSON(val, &payload); err == nil {
			return payload.Items, payload.Meta, nil
		}
	}

	slog.Warn("in-page harvest failed, trying static fallback",
		"profile", p.Name,
		"error", err,
	)
	frags, meta, fbErr := staticCards(ctx, s, p)
	if fbErr != nil {
		return nil, models.PageMeta{}, models.NewScrapeError(
			models.ErrCodeExtraction,
			"in-page harvest and static fallback both failed",
			err,
		)
	}
	return frags, meta, nil
}

// decodeJSON re-marshals an evaluated JS value into a typed struct.
func decodeJSON(val any, out any) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeExtraction, "script payload did not marshal", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return models.NewScrapeError(models.ErrCodeExtraction, "script payload did not decode", err)
	}
	return nil
}

// Probe reads the cheap page-state snapshot used by readiness polling.
func Probe(ctx context.Context, s surface.Surface, p *config.SiteProfile) (models.PageState, error) {
	val, err := s.Eval(ctx, probeJS, selectorArg(p))
	if err != nil {
		return models.PageState{}, err
	}
	var state models.PageState
	if err := decodeJSON(val, &state); err != nil {
		return models.PageState{}, err
	}
	return state, nil
}

// WaitListing polls the page until it reaches an interpretable state:
// results present, an explicit empty state, or the loader gone. Budget
// exhaustion is not an error; the last observed state is returned and
// the caller reads it as "possibly empty". The returned outcome tells
// ready from timed-out from failed.
func WaitListing(ctx context.Context, s surface.Surface, p *config.SiteProfile, budget poll.Budget) (models.PageState, poll.Outcome) {
	var last models.PageState
	outcome := poll.Until(ctx, func(ctx context.Context) (bool, error) {
		state, err := Probe(ctx, s, p)
		if err != nil {
			return false, err
		}
		last = state
		return state.Ready(), nil
	}, budget)
	return last, outcome
}

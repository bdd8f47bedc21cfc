package extract

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/trawlkit/trawl/config"
	"github.com/trawlkit/trawl/models"
	"github.com/trawlkit/trawl/surface"
)

// disabledClassRe spots disabled-state markers in a class attribute.
var disabledClassRe = regexp.MustCompile(`(?i)\b(disabled|inactive)\b`)

// staticCards pulls the rendered HTML and parses it with goquery.
func staticCards(ctx context.Context, s surface.Surface, p *config.SiteProfile) ([]models.ItemFragment, models.PageMeta, error) {
	html, err := s.Content(ctx)
	if err != nil {
		return nil, models.PageMeta{}, err
	}
	return ParseListing(html, p)
}

// ParseListing extracts card fragments and pagination metadata from raw
// listing markup. It is the fallback when in-page evaluation is not
// available, and the workhorse of the extraction tests. Without layout
// there is no visibility information, so every card present in the
// markup counts, and a hidden empty-state element cannot be told from a
// shown one.
//
// Profile selectors are compiled at catalogue load, so Find never sees
// an invalid selector here.
func ParseListing(html string, p *config.SiteProfile) ([]models.ItemFragment, models.PageMeta, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, models.PageMeta{}, models.NewScrapeError(
			models.ErrCodeExtraction,
			"listing markup did not parse",
			err,
		)
	}

	var frags []models.ItemFragment
	doc.Find(p.Selectors.Card).Each(func(_ int, card *goquery.Selection) {
		prices := textsOf(card, p.Selectors.Price)
		if regular := textOf(card, p.Selectors.RegularPrice); regular != "" {
			prices = append(prices, regular)
		}

		link := attrOf(card, p.Selectors.Link, "href")
		if link == "" && card.Is("a") {
			link, _ = card.Attr("href")
		}

		sku := attrOf(card, p.Selectors.SKU, "data-product-code", "data-sku", "data-code", "data-id")
		if sku == "" {
			sku = textOf(card, p.Selectors.SKU)
		}

		frags = append(frags, models.ItemFragment{
			Name:          textOf(card, p.Selectors.Name),
			BrandText:     textOf(card, p.Selectors.Brand),
			SKUText:       sku,
			PriceTexts:    prices,
			UnitPriceText: textOf(card, p.Selectors.UnitPrice),
			UnitLabelText: textOf(card, p.Selectors.UnitLabel),
			Link:          link,
			Image:         attrOf(card, p.Selectors.Image, "src", "data-src", "data-lazy-src", "data-original"),
			CategoryText:  textOf(card, p.Selectors.Category),
		})
	})

	return frags, parseMeta(doc, p), nil
}

// parseMeta reads the pagination block the same way harvestJS does.
func parseMeta(doc *goquery.Document, p *config.SiteProfile) models.PageMeta {
	var meta models.PageMeta

	scope := doc.Selection
	if p.Selectors.Pagination != "" {
		if pag := doc.Find(p.Selectors.Pagination).First(); pag.Length() > 0 {
			scope = pag
			meta.HasPagination = true
		}
	}

	if p.Selectors.PageLink != "" {
		scope.Find(p.Selectors.PageLink).Each(func(_ int, a *goquery.Selection) {
			if n, convErr := strconv.Atoi(strings.TrimSpace(a.Text())); convErr == nil {
				meta.HasPagination = true
				if n > meta.MaxPageSeen {
					meta.MaxPageSeen = n
				}
			}
		})
	}

	var active *goquery.Selection
	if p.Selectors.ActivePage != "" {
		active = scope.Find(p.Selectors.ActivePage).First()
	}
	if active == nil || active.Length() == 0 {
		active = scope.Find(`[aria-current="page"]`).First()
	}
	if active.Length() > 0 {
		if n, convErr := strconv.Atoi(strings.TrimSpace(active.Text())); convErr == nil {
			meta.ActivePage = n
			meta.HasPagination = true
		}
	}

	next := findNext(scope, p)
	if next != nil && next.Length() > 0 {
		meta.HasPagination = true
		meta.HasNext = true
		meta.NextDisabled = isDisabled(next)
		meta.NextHref, _ = next.Attr("href")
	}

	if p.Selectors.ResultsCount != "" {
		meta.ResultsCountText = strings.TrimSpace(doc.Find(p.Selectors.ResultsCount).First().Text())
	}
	if p.Selectors.EmptyState != "" {
		meta.EmptyStateText = strings.TrimSpace(doc.Find(p.Selectors.EmptyState).First().Text())
	}
	return meta
}

// findNext locates the next-page control: the profile selector first,
// then rel=next, then a vocabulary scan over anchors and buttons.
func findNext(scope *goquery.Selection, p *config.SiteProfile) *goquery.Selection {
	if p.Selectors.Next != "" {
		if el := scope.Find(p.Selectors.Next).First(); el.Length() > 0 {
			return el
		}
	}
	if el := scope.Find(`a[rel="next"]`).First(); el.Length() > 0 {
		return el
	}

	var found *goquery.Selection
	scope.Find("a, button").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		label := strings.ToLower(strings.TrimSpace(el.AttrOr("aria-label", "") + " " + el.Text()))
		for _, v := range p.NextVocabulary {
			if v != "" && strings.Contains(label, v) {
				found = el
				return false
			}
		}
		return true
	})
	return found
}

// textOf mirrors harvestJS's text helper: the trimmed text of the
// first match under root, or "" when the selector is empty or misses.
func textOf(root *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(root.Find(selector).First().Text())
}

// textsOf mirrors harvestJS's texts helper: the trimmed, non-empty
// texts of every match under root.
func textsOf(root *goquery.Selection, selector string) []string {
	if selector == "" {
		return nil
	}
	var out []string
	root.Find(selector).Each(func(_ int, el *goquery.Selection) {
		if t := strings.TrimSpace(el.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

// attrOf mirrors harvestJS's attr helper: the first non-empty value
// among names on the first match under root.
func attrOf(root *goquery.Selection, selector string, names ...string) string {
	if selector == "" {
		return ""
	}
	el := root.Filter(selector).First()
	if el.Length() == 0 {
		el = root.Find(selector).First()
	}
	if el.Length() == 0 {
		return ""
	}
	for _, name := range names {
		if v := strings.TrimSpace(el.AttrOr(name, "")); v != "" {
			return v
		}
	}
	return ""
}

// isDisabled reports whether a pagination control is marked inert.
func isDisabled(el *goquery.Selection) bool {
	if _, ok := el.Attr("disabled"); ok {
		return true
	}
	if el.AttrOr("aria-disabled", "") == "true" {
		return true
	}
	return disabledClassRe.MatchString(el.AttrOr("class", ""))
}

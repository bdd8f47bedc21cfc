package traverse

import (
	"net/url"
	"strings"
	"time"

	"github.com/trawlkit/trawl/config"
	"github.com/trawlkit/trawl/models"
	"github.com/trawlkit/trawl/normalize"
)

// buildRecord normalizes one harvested fragment into a canonical
// record. Text fields are cleaned, price candidates collapse to the
// published sale/regular pair, and link and image resolve against the
// page's effective base. base may be nil when the page location could
// not be read; relative links then fall back to the deterministic
// origin-anchored address.
func buildRecord(p *config.SiteProfile, query string, f models.ItemFragment, base *url.URL, at time.Time) models.Record {
	sale, regular := normalize.ParsePriceCandidates(f.PriceTexts)
	sale, regular = normalize.NormalizePricePair(sale, regular)

	unitPrice, unitLabel := normalize.ParseUnitPrice(f.UnitPriceText)
	if unitLabel == "" {
		unitLabel = normalize.CleanText(f.UnitLabelText)
	}

	sku := skuOf(f)
	name := normalize.CleanText(f.Name)

	return models.Record{
		Source:       p.Name,
		Query:        query,
		Name:         name,
		Brand:        normalize.CleanText(f.BrandText),
		SKU:          sku,
		PriceSale:    sale,
		PriceRegular: regular,
		UnitLabel:    unitLabel,
		UnitPrice:    unitPrice,
		URL:          recordURL(p, f.Link, sku, name, base),
		Image:        resolveAgainst(base, f.Image),
		Category:     normalize.CleanText(f.CategoryText),
		ScrapedAt:    at,
	}
}

// skuOf extracts the product code from a fragment. A token free of
// prose (a data attribute or a dedicated code cell) is taken as-is;
// anything longer goes through the labelled and bare-number patterns.
func skuOf(f models.ItemFragment) string {
	raw := normalize.CleanText(f.SKUText)
	if raw != "" && !strings.ContainsAny(raw, " :") {
		return raw
	}
	return normalize.DeriveSKU(f.SKUText)
}

// recordURL resolves the card link to an absolute address. Cards with
// no usable link get a deterministic fallback derived from the product
// code or name, anchored at the profile origin, so the published url
// is never empty and stays stable across runs.
func recordURL(p *config.SiteProfile, link, sku, name string, base *url.URL) string {
	if abs := resolveAgainst(base, link); abs != "" {
		return abs
	}
	seed := sku
	if seed == "" {
		seed = name
	}
	return p.Origin() + "/#/" + normalize.Slug(seed)
}

// resolveAgainst turns ref into an absolute URL using the page base.
// Returns "" when ref is empty or cannot be made absolute.
func resolveAgainst(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		return ref
	}
	if base == nil {
		return ""
	}
	abs := base.ResolveReference(u)
	if abs.Scheme == "" || abs.Host == "" {
		return ""
	}
	return abs.String()
}

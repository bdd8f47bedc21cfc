package models

import (
	"strconv"
	"strings"
	"time"
)

// ItemFragment is the unnormalized, text-level bundle harvested from one
// listing card. It lives only between extraction and normalization; the
// JSON tags match the payload produced by the in-page harvest script.
type ItemFragment struct {
	Name          string   `json:"name"`
	BrandText     string   `json:"brand"`
	SKUText       string   `json:"sku"`
	PriceTexts    []string `json:"prices"`
	UnitLabelText string   `json:"unitLabel"`
	UnitPriceText string   `json:"unitPrice"`
	Link          string   `json:"link"`
	Image         string   `json:"image"`
	CategoryText  string   `json:"category"`
}

// Empty reports whether the fragment carries nothing worth normalizing.
func (f ItemFragment) Empty() bool {
	return f.Name == "" && f.SKUText == "" && f.Link == "" && len(f.PriceTexts) == 0
}

// Record is the canonical, published unit of output.
//
// Invariants maintained by the normalization layer:
//   - PriceSale and PriceRegular, when both set, are never equal
//     (equal values collapse to PriceRegular only).
//   - URL is always an absolute address or a deterministic fallback
//     derived from SKU or Name; never empty.
type Record struct {
	Source       string    `json:"source"`
	Query        string    `json:"query"`
	Name         string    `json:"name"`
	Brand        string    `json:"brand,omitempty"`
	SKU          string    `json:"sku,omitempty"`
	PriceSale    *float64  `json:"price_sale"`
	PriceRegular *float64  `json:"price_regular"`
	UnitLabel    string    `json:"unit_label,omitempty"`
	UnitPrice    *float64  `json:"unit_price"`
	URL          string    `json:"url"`
	Image        string    `json:"image,omitempty"`
	Category     string    `json:"category,omitempty"`
	Description  string    `json:"description,omitempty"`
	ScrapedAt    time.Time `json:"scraped_at"`
}

// IdentityKey derives the primary deduplication key with priority
// sku → url → composite of (name, price_sale, unit_label).
// Returns "" when no key is derivable (no sku, no url, no name);
// such records are kept in the output but excluded from dedup accounting.
func (r Record) IdentityKey() string {
	keys := r.IdentityKeys()
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

// IdentityKeys returns every derivable key in priority order. A record
// carrying a sku still registers its url and composite keys, so a later
// sku-less card pointing at the same url resolves to the same product.
func (r Record) IdentityKeys() []string {
	var keys []string
	if sku := strings.TrimSpace(r.SKU); sku != "" {
		keys = append(keys, "sku:"+strings.ToLower(sku))
	}
	if u := strings.TrimSpace(r.URL); u != "" {
		keys = append(keys, "url:"+u)
	}
	if name := strings.TrimSpace(r.Name); name != "" {
		var b strings.Builder
		b.WriteString("cmp:")
		b.WriteString(strings.ToLower(name))
		b.WriteByte('|')
		if r.PriceSale != nil {
			b.WriteString(strconv.FormatFloat(*r.PriceSale, 'f', -1, 64))
		}
		b.WriteByte('|')
		b.WriteString(strings.ToLower(r.UnitLabel))
		keys = append(keys, b.String())
	}
	return keys
}

package traverse

import (
	"net/url"
	"testing"
	"time"

	"github.com/trawlkit/trawl/config"
	"github.com/trawlkit/trawl/models"
)

func recordProfile() *config.SiteProfile {
	return &config.SiteProfile{
		Name:      "grocer",
		BaseURL:   "https://grocer.example/search?q={query}",
		PageParam: "page",
	}
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestBuildRecord_NormalizesFields(t *testing.T) {
	base := mustParse(t, "https://grocer.example/search?q=lait")
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	f := models.ItemFragment{
		Name:          "  Lait 2% Natrel  ",
		BrandText:     "Natrel",
		SKUText:       "Code: 123456",
		PriceTexts:    []string{"3,49 $", "4,29 $"},
		UnitPriceText: "1,33$/100g",
		Link:          "/p/lait-2",
		Image:         "//cdn.grocer.example/i/lait.png",
		CategoryText:  "Produits laitiers",
	}
	rec := buildRecord(recordProfile(), "lait", f, base, at)

	if rec.Name != "Lait 2% Natrel" {
		t.Errorf("got name %q, want cleaned text", rec.Name)
	}
	if rec.SKU != "123456" {
		t.Errorf("got sku %q, want 123456", rec.SKU)
	}
	if rec.PriceSale == nil || *rec.PriceSale != 3.49 {
		t.Errorf("got sale %v, want 3.49", rec.PriceSale)
	}
	if rec.PriceRegular == nil || *rec.PriceRegular != 4.29 {
		t.Errorf("got regular %v, want 4.29", rec.PriceRegular)
	}
	if rec.UnitPrice == nil || *rec.UnitPrice != 1.33 {
		t.Errorf("got unit price %v, want 1.33", rec.UnitPrice)
	}
	if rec.UnitLabel != "100g" {
		t.Errorf("got unit label %q, want 100g", rec.UnitLabel)
	}
	if rec.URL != "https://grocer.example/p/lait-2" {
		t.Errorf("got url %q, want the resolved link", rec.URL)
	}
	if rec.Image != "https://cdn.grocer.example/i/lait.png" {
		t.Errorf("got image %q, want the scheme-filled address", rec.Image)
	}
	if rec.Source != "grocer" || rec.Query != "lait" {
		t.Errorf("got source=%q query=%q, want grocer/lait", rec.Source, rec.Query)
	}
	if !rec.ScrapedAt.Equal(at) {
		t.Errorf("got scraped_at %v, want %v", rec.ScrapedAt, at)
	}
}

func TestBuildRecord_LoneSalePromotedToRegular(t *testing.T) {
	f := models.ItemFragment{Name: "Lait", PriceTexts: []string{"3,49 $"}, Link: "https://grocer.example/p/l"}
	rec := buildRecord(recordProfile(), "lait", f, nil, time.Now())

	if rec.PriceSale != nil {
		t.Errorf("got sale %v, want nil", *rec.PriceSale)
	}
	if rec.PriceRegular == nil || *rec.PriceRegular != 3.49 {
		t.Errorf("got regular %v, want 3.49", rec.PriceRegular)
	}
}

func TestBuildRecord_UnitLabelFallsBackToLabelCell(t *testing.T) {
	f := models.ItemFragment{
		Name:          "Lait",
		UnitPriceText: "pas un prix",
		UnitLabelText: " par 100 ml ",
		Link:          "https://grocer.example/p/l",
	}
	rec := buildRecord(recordProfile(), "lait", f, nil, time.Now())

	if rec.UnitPrice != nil {
		t.Errorf("got unit price %v, want nil", *rec.UnitPrice)
	}
	if rec.UnitLabel != "par 100 ml" {
		t.Errorf("got unit label %q, want the cleaned label cell", rec.UnitLabel)
	}
}

func TestRecordURL_FallbackFromSKU(t *testing.T) {
	rec := buildRecord(recordProfile(), "lait", models.ItemFragment{Name: "Lait 2%", SKUText: "123456"}, nil, time.Now())
	if rec.URL != "https://grocer.example/#/123456" {
		t.Errorf("got %q, want the sku-derived fallback", rec.URL)
	}
}

func TestRecordURL_FallbackFromName(t *testing.T) {
	rec := buildRecord(recordProfile(), "lait", models.ItemFragment{Name: "Lait 2% Natrel"}, nil, time.Now())
	if rec.URL != "https://grocer.example/#/lait-2-natrel" {
		t.Errorf("got %q, want the name-derived fallback", rec.URL)
	}
}

func TestRecordURL_RelativeLinkWithoutBaseFallsBack(t *testing.T) {
	f := models.ItemFragment{Name: "Lait", SKUText: "99871", Link: "/p/lait"}
	rec := buildRecord(recordProfile(), "lait", f, nil, time.Now())
	if rec.URL != "https://grocer.example/#/99871" {
		t.Errorf("got %q, want the fallback when the base is unknown", rec.URL)
	}
}

func TestSkuOf(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"bare digits", "123456", "123456"},
		{"structured token", "AB-99", "AB-99"},
		{"prefixed token", "PROD-12345", "PROD-12345"},
		{"labelled code", "Code: 123456", "123456"},
		{"labelled without space", "sku:778899", "778899"},
		{"digits inside prose", "Article 4567 en stock", "4567"},
		{"no candidate", "deux unités", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := skuOf(models.ItemFragment{SKUText: tt.text})
			if got != tt.want {
				t.Errorf("skuOf(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestResolveAgainst(t *testing.T) {
	base := mustParse(t, "https://grocer.example/search?q=lait")
	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"absolute passes through", "https://other.example/p/1", "https://other.example/p/1"},
		{"root relative", "/p/lait", "https://grocer.example/p/lait"},
		{"document relative", "p/lait", "https://grocer.example/p/lait"},
		{"scheme relative", "//cdn.example/i.png", "https://cdn.example/i.png"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveAgainst(base, tt.ref)
			if got != tt.want {
				t.Errorf("resolveAgainst(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}
}

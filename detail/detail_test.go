package detail

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/trawlkit/trawl/config"
	"github.com/trawlkit/trawl/engine"
	"github.com/trawlkit/trawl/models"
)

// fakeFetcher serves canned HTML per URL and records every request.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	seen  []string
}

func (f *fakeFetcher) Dispatch(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	f.mu.Lock()
	f.seen = append(f.seen, req.URL)
	page, ok := f.pages[req.URL]
	f.mu.Unlock()
	if !ok {
		return nil, errors.New("no such page")
	}
	return &engine.FetchResult{HTML: page, FinalURL: req.URL, EngineName: "http"}, nil
}

func productPage(body string) string {
	return `<html><head>
		<meta property="og:image" content="https://cdn.example/p.jpg">
		<meta property="product:brand" content="Acme">
		</head><body><article><h1>Product</h1>` + body + `</article></body></html>`
}

func longBody() string {
	p := "<p>Rich whole-grain oats rolled thin for quick cooking, with no added sugar or preservatives. A pantry staple for porridge, granola, and baking.</p>"
	return strings.Repeat(p, 4)
}

func testConfig(workers int) config.DetailConfig {
	return config.DetailConfig{
		Workers: workers,
		Timeout: 2 * time.Second,
		// no jitter in tests
	}
}

func TestEnrichPreservesOrder(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://shop.example/p/1": productPage(longBody()),
		"https://shop.example/p/2": productPage(longBody()),
		"https://shop.example/p/3": productPage(longBody()),
	}}
	records := []models.Record{
		{Name: "first", URL: "https://shop.example/p/1"},
		{Name: "second", URL: "https://shop.example/p/2"},
		{Name: "third", URL: "https://shop.example/p/3"},
	}

	NewEnricher(testConfig(3), fetcher).Enrich(context.Background(), records)

	wantNames := []string{"first", "second", "third"}
	for i, want := range wantNames {
		if records[i].Name != want {
			t.Fatalf("records[%d].Name = %q, want %q", i, records[i].Name, want)
		}
		if records[i].Description == "" {
			t.Errorf("records[%d].Description empty after enrichment", i)
		}
	}
}

func TestEnrichBackfillsBrandAndImage(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://shop.example/p/1": productPage(longBody()),
	}}
	records := []models.Record{{Name: "oats", URL: "https://shop.example/p/1"}}

	NewEnricher(testConfig(1), fetcher).Enrich(context.Background(), records)

	if records[0].Brand != "Acme" {
		t.Errorf("Brand = %q, want %q", records[0].Brand, "Acme")
	}
	if records[0].Image != "https://cdn.example/p.jpg" {
		t.Errorf("Image = %q, want og:image", records[0].Image)
	}
}

func TestEnrichKeepsExistingFields(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://shop.example/p/1": productPage(longBody()),
	}}
	records := []models.Record{{
		Name:  "oats",
		Brand: "Original",
		Image: "https://shop.example/card.jpg",
		URL:   "https://shop.example/p/1",
	}}

	NewEnricher(testConfig(1), fetcher).Enrich(context.Background(), records)

	if records[0].Brand != "Original" {
		t.Errorf("Brand = %q, want card value kept", records[0].Brand)
	}
	if records[0].Image != "https://shop.example/card.jpg" {
		t.Errorf("Image = %q, want card value kept", records[0].Image)
	}
}

func TestEnrichFailureLeavesRecordUntouched(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{}}
	records := []models.Record{{Name: "oats", URL: "https://shop.example/p/404"}}

	NewEnricher(testConfig(1), fetcher).Enrich(context.Background(), records)

	if records[0].Description != "" || records[0].Brand != "" {
		t.Errorf("failed fetch mutated record: %+v", records[0])
	}
}

func TestEnrichSkipsFallbackURLs(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{}}
	records := []models.Record{
		{Name: "phantom", URL: "https://shop.example/#/phantom-123"},
	}

	NewEnricher(testConfig(1), fetcher).Enrich(context.Background(), records)

	if len(fetcher.seen) != 0 {
		t.Errorf("fallback URL was fetched: %v", fetcher.seen)
	}
}

func TestDescribeRejectsThinPages(t *testing.T) {
	md := Describe("<html><body><p>nope</p></body></html>", "https://shop.example/p/1")
	if md != "" {
		t.Errorf("Describe() on a thin page = %q, want empty", md)
	}
}

func TestFactsReadsMetadata(t *testing.T) {
	facts := Facts(productPage(longBody()))
	if facts.Image != "https://cdn.example/p.jpg" {
		t.Errorf("Image = %q", facts.Image)
	}
	if facts.Brand != "Acme" {
		t.Errorf("Brand = %q", facts.Brand)
	}
}

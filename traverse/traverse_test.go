package traverse

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/ysmood/gson"

	"github.com/trawlkit/trawl/config"
	"github.com/trawlkit/trawl/models"
)

// pageFixture scripts the probe and harvest payloads one URL serves.
// Calls past the end of a list repeat the last entry.
type pageFixture struct {
	probes   []map[string]any
	harvests []map[string]any
	probeN   int
	harvestN int
}

func nextStep(steps []map[string]any, n *int) map[string]any {
	if len(steps) == 0 {
		return map[string]any{}
	}
	i := *n
	if i >= len(steps) {
		i = len(steps) - 1
	}
	*n++
	return steps[i]
}

type fakeSurface struct {
	t        *testing.T
	location string
	pages    map[string]*pageFixture
	navs     []string
	clicks   []string
}

func (f *fakeSurface) Navigate(ctx context.Context, url string) error {
	f.navs = append(f.navs, url)
	f.location = url
	return nil
}

func (f *fakeSurface) Location(ctx context.Context) (string, error) {
	return f.location, nil
}

// Eval tells the cheap probe from the full harvest apart by argument
// count: the probe script takes the selector set only, the harvest
// script also takes the next-control vocabulary.
func (f *fakeSurface) Eval(ctx context.Context, js string, args ...any) (gson.JSON, error) {
	pg, ok := f.pages[f.location]
	if !ok {
		f.t.Fatalf("no page fixture for %q", f.location)
	}
	if len(args) >= 2 {
		return gson.New(nextStep(pg.harvests, &pg.harvestN)), nil
	}
	return gson.New(nextStep(pg.probes, &pg.probeN)), nil
}

func (f *fakeSurface) Content(ctx context.Context) (string, error) {
	return "<html><body>listing</body></html>", nil
}

func (f *fakeSurface) Click(ctx context.Context, selector string) error {
	f.clicks = append(f.clicks, selector)
	return nil
}

func (f *fakeSurface) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte{0x89, 0x50, 0x4e, 0x47}, nil
}

type recordingSink struct {
	markups     []int
	screenshots []int
	diags       []int
}

func (r *recordingSink) WriteMarkup(query string, page int, markup string) {
	r.markups = append(r.markups, page)
}

func (r *recordingSink) WriteScreenshot(query string, page int, png []byte) {
	r.screenshots = append(r.screenshots, page)
}

func (r *recordingSink) WriteDiag(query string, page int, payload any) {
	r.diags = append(r.diags, page)
}

func testCfg() config.TraversalConfig {
	return config.TraversalConfig{
		ReadyAttempts:     3,
		ReadyMinDelay:     time.Millisecond,
		ReadyMaxDelay:     2 * time.Millisecond,
		ExtractRetries:    1,
		ExtractRetryDelay: time.Millisecond,
		MaxPages:          10,
		EmptyStreakLimit:  2,
	}
}

func traverseProfile(queries ...string) *config.SiteProfile {
	return &config.SiteProfile{
		Name:           "grocer",
		BaseURL:        "https://grocer.example/search?q={query}",
		PageParam:      "page",
		Queries:        queries,
		NextVocabulary: []string{"suivant", "next"},
		Selectors: config.SelectorSet{
			Card: ".product-tile",
			Next: "a.next",
		},
	}
}

func TestRun_TraversesPagesAndAggregates(t *testing.T) {
	p1 := "https://grocer.example/search?q=lait"
	p2 := "https://grocer.example/search?q=lait&page=2"
	fs := &fakeSurface{t: t, pages: map[string]*pageFixture{
		p1: {
			probes: []map[string]any{{"cardCount": 2, "activePage": 1}},
			harvests: []map[string]any{{
				"items": []map[string]any{
					{"name": "Lait 2% Natrel", "sku": "123", "prices": []string{"3,49 $"}, "link": "/p/lait-2"},
					{"name": "Lait 2% Natrel", "link": "/p/lait-2"},
				},
				"meta": map[string]any{
					"hasPagination": true,
					"hasNext":       true,
					"nextHref":      "/search?q=lait&page=2",
					"activePage":    1,
					"maxPageSeen":   2,
				},
			}},
		},
		p2: {
			probes: []map[string]any{{"cardCount": 1, "activePage": 2}},
			harvests: []map[string]any{{
				"items": []map[string]any{
					{"name": "Pain baguette", "sku": "777", "prices": []string{"2,99 $"}, "link": "/p/pain"},
				},
				"meta": map[string]any{
					"hasPagination": true,
					"hasNext":       false,
					"activePage":    2,
					"maxPageSeen":   2,
				},
			}},
		},
	}}

	res, err := New(testCfg(), nil).Run(context.Background(), fs, traverseProfile("lait"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Items) != 2 {
		t.Fatalf("got %d records, want 2 (duplicate url collapsed)", len(res.Items))
	}
	first := res.Items[0]
	if first.Name != "Lait 2% Natrel" || first.SKU != "123" {
		t.Errorf("got first record (%q, %q), want (%q, %q)", first.Name, first.SKU, "Lait 2% Natrel", "123")
	}
	if first.URL != "https://grocer.example/p/lait-2" {
		t.Errorf("got url %q, want the base-resolved link", first.URL)
	}
	if first.PriceSale != nil {
		t.Errorf("got sale %v, want nil for a lone price", *first.PriceSale)
	}
	if first.PriceRegular == nil || *first.PriceRegular != 3.49 {
		t.Errorf("got regular %v, want 3.49", first.PriceRegular)
	}
	if res.Items[1].SKU != "777" {
		t.Errorf("got second record sku %q, want 777", res.Items[1].SKU)
	}

	if res.PageCount != 2 {
		t.Errorf("got page count %d, want 2", res.PageCount)
	}
	if res.StoppedReason != models.StopMaxPageReached {
		t.Errorf("got reason %q, want %q", res.StoppedReason, models.StopMaxPageReached)
	}
	if want := []string{p1, p2}; !reflect.DeepEqual(fs.navs, want) {
		t.Errorf("got navigations %v, want %v", fs.navs, want)
	}
}

func TestRun_FallsBackToSecondQuery(t *testing.T) {
	q1 := "https://grocer.example/search?q=lait"
	q2 := "https://grocer.example/search?q=lait+frais"
	fs := &fakeSurface{t: t, pages: map[string]*pageFixture{
		q1: {
			probes: []map[string]any{{"cardCount": 0, "emptyStateText": "Aucun résultat"}},
			harvests: []map[string]any{{
				"items": []map[string]any{},
				"meta":  map[string]any{"emptyStateText": "Aucun résultat"},
			}},
		},
		q2: {
			probes: []map[string]any{{"cardCount": 1, "activePage": 1}},
			harvests: []map[string]any{{
				"items": []map[string]any{
					{"name": "Lait frais", "sku": "555", "link": "/p/lait-frais"},
				},
				"meta": map[string]any{"hasPagination": false},
			}},
		},
	}}

	res, err := New(testCfg(), nil).Run(context.Background(), fs, traverseProfile("lait", "lait frais"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Query != "lait frais" {
		t.Errorf("got query %q, want the fallback variant", res.Query)
	}
	if len(res.Items) != 1 {
		t.Fatalf("got %d records, want 1", len(res.Items))
	}
	if want := []string{q1, q2}; !reflect.DeepEqual(fs.navs, want) {
		t.Errorf("got navigations %v, want %v", fs.navs, want)
	}
}

func TestRun_AllEmptyReturnsFirstQueryResult(t *testing.T) {
	q1 := "https://grocer.example/search?q=lait"
	q2 := "https://grocer.example/search?q=lait+frais"
	empty := func() *pageFixture {
		return &pageFixture{
			probes: []map[string]any{{"cardCount": 0, "emptyStateText": "Aucun résultat"}},
			harvests: []map[string]any{{
				"items": []map[string]any{},
				"meta":  map[string]any{"emptyStateText": "Aucun résultat"},
			}},
		}
	}
	fs := &fakeSurface{t: t, pages: map[string]*pageFixture{q1: empty(), q2: empty()}}

	res, err := New(testCfg(), nil).Run(context.Background(), fs, traverseProfile("lait", "lait frais"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Query != "lait" {
		t.Errorf("got query %q, want the first variant for diagnostics", res.Query)
	}
	if len(res.Items) != 0 {
		t.Errorf("got %d records, want 0", len(res.Items))
	}
	if res.StoppedReason != models.StopCompleted {
		t.Errorf("got reason %q, want %q", res.StoppedReason, models.StopCompleted)
	}
}

func TestRun_EmptyStreakStopsAndDumps(t *testing.T) {
	p1 := "https://grocer.example/search?q=lait"
	p2 := "https://grocer.example/search?q=lait&page=2"
	blank := func(page int, nextHref string) *pageFixture {
		return &pageFixture{
			probes: []map[string]any{{"cardCount": 0, "activePage": page}},
			harvests: []map[string]any{{
				"items": []map[string]any{},
				"meta": map[string]any{
					"hasPagination": true,
					"hasNext":       true,
					"nextHref":      nextHref,
					"activePage":    page,
				},
			}},
		}
	}
	fs := &fakeSurface{t: t, pages: map[string]*pageFixture{
		p1: blank(1, "/search?q=lait&page=2"),
		p2: blank(2, "/search?q=lait&page=3"),
	}}
	sink := &recordingSink{}

	res, err := New(testCfg(), sink).Run(context.Background(), fs, traverseProfile("lait"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.StoppedReason != models.StopEmptyStreak {
		t.Errorf("got reason %q, want %q", res.StoppedReason, models.StopEmptyStreak)
	}
	if res.PageCount != 2 {
		t.Errorf("got page count %d, want 2", res.PageCount)
	}
	if want := []string{p1, p2}; !reflect.DeepEqual(fs.navs, want) {
		t.Errorf("got navigations %v, want %v (no page 3 visit)", fs.navs, want)
	}
	if want := []int{1, 2}; !reflect.DeepEqual(sink.diags, want) {
		t.Errorf("got diagnostic dumps for pages %v, want %v", sink.diags, want)
	}
	if len(sink.markups) != 2 || len(sink.screenshots) != 2 {
		t.Errorf("got %d markup and %d screenshot dumps, want 2 each",
			len(sink.markups), len(sink.screenshots))
	}
}

func TestRun_RetriesZeroCardExtraction(t *testing.T) {
	p1 := "https://grocer.example/search?q=lait"
	fs := &fakeSurface{t: t, pages: map[string]*pageFixture{
		p1: {
			probes: []map[string]any{{"cardCount": 0, "activePage": 1}},
			harvests: []map[string]any{
				{"items": []map[string]any{}, "meta": map[string]any{"hasPagination": true, "hasNext": false, "activePage": 1, "maxPageSeen": 1}},
				{"items": []map[string]any{
					{"name": "Lait 2% Natrel", "sku": "123", "link": "/p/lait-2"},
				}, "meta": map[string]any{"hasPagination": true, "hasNext": false, "activePage": 1, "maxPageSeen": 1}},
			},
		},
	}}

	cfg := testCfg()
	cfg.ExtractRetries = 3
	res, err := New(cfg, nil).Run(context.Background(), fs, traverseProfile("lait"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Items) != 1 {
		t.Fatalf("got %d records, want 1 from the retried read", len(res.Items))
	}
	if fs.pages[p1].harvestN != 2 {
		t.Errorf("got %d harvest calls, want 2 (first empty, second retried)", fs.pages[p1].harvestN)
	}
}

func TestRun_SkulessCardSharingURLDeduped(t *testing.T) {
	p1 := "https://grocer.example/search?q=lait"
	fs := &fakeSurface{t: t, pages: map[string]*pageFixture{
		p1: {
			probes: []map[string]any{{"cardCount": 3, "activePage": 1}},
			harvests: []map[string]any{{
				"items": []map[string]any{
					{"name": "Lait 2%", "sku": "123", "link": "/p/x"},
					{"name": "Lait 2% format familial", "link": "/p/x"},
					{"name": "Pain", "sku": "777", "link": "/p/y"},
				},
				"meta": map[string]any{"hasPagination": false},
			}},
		},
	}}

	res, err := New(testCfg(), nil).Run(context.Background(), fs, traverseProfile("lait"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Items) != 2 {
		t.Fatalf("got %d records, want 2 (sku-less url duplicate dropped)", len(res.Items))
	}
	if res.Items[0].SKU != "123" || res.Items[1].SKU != "777" {
		t.Errorf("got skus (%q, %q), want (123, 777)", res.Items[0].SKU, res.Items[1].SKU)
	}
	if res.StoppedReason != models.StopCompleted {
		t.Errorf("got reason %q, want %q", res.StoppedReason, models.StopCompleted)
	}
}

func TestRun_CancelledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fs := &fakeSurface{t: t, pages: map[string]*pageFixture{}}
	_, err := New(testCfg(), nil).Run(ctx, fs, traverseProfile("lait"))
	if err == nil {
		t.Fatal("got nil error, want cancellation to surface")
	}
}

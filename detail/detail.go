// Package detail enriches published records with fields only the
// product's own page carries: a markdown description plus brand and
// image backfill. The pass is embarrassingly parallel; a small worker
// pool processes disjoint record indices and writes results back into
// the original slot, so output order always matches input order.
package detail

import (
	"context"
	"log/slog"
	"math/rand"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trawlkit/trawl/config"
	"github.com/trawlkit/trawl/engine"
	"github.com/trawlkit/trawl/models"
)

// Fetcher turns a detail URL into rendered HTML. *engine.Dispatcher is
// the production implementation.
type Fetcher interface {
	Dispatch(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error)
}

// Enricher runs the detail pass over one record list.
type Enricher struct {
	cfg     config.DetailConfig
	fetcher Fetcher
}

// NewEnricher creates an enricher over the given fetcher.
func NewEnricher(cfg config.DetailConfig, fetcher Fetcher) *Enricher {
	return &Enricher{cfg: cfg, fetcher: fetcher}
}

// Enrich fills Description, and missing Brand/Image, on each record in
// place. Records whose URL is the deterministic fallback address are
// skipped; there is no real page behind those. A failed fetch leaves
// its record exactly as it was — enrichment never loses data.
func (e *Enricher) Enrich(ctx context.Context, records []models.Record) {
	if e == nil || e.fetcher == nil || len(records) == 0 {
		return
	}
	started := time.Now()

	workers := e.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(records) {
		workers = len(records)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	var enriched atomic.Int32

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if e.enrichOne(ctx, &records[i]) {
					enriched.Add(1)
				}
			}
		}()
	}

feed:
	for i := range records {
		if !fetchable(records[i].URL) {
			continue
		}
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	slog.Info("detail enrichment finished",
		"records", len(records),
		"enriched", enriched.Load(),
		"workers", workers,
		"duration", time.Since(started).Round(time.Millisecond),
	)
}

// enrichOne fetches one record's page and fills what the listing card
// could not provide. Reports whether anything changed.
func (e *Enricher) enrichOne(ctx context.Context, rec *models.Record) bool {
	if err := sleepJitter(ctx, e.cfg.MinDelay, e.cfg.MaxDelay); err != nil {
		return false
	}

	res, err := e.fetcher.Dispatch(ctx, &engine.FetchRequest{
		URL:     rec.URL,
		Timeout: e.cfg.Timeout,
	})
	if err != nil {
		slog.Debug("detail fetch failed",
			"url", rec.URL,
			"error", err,
		)
		return false
	}

	changed := false
	if rec.Description == "" {
		if md := Describe(res.HTML, res.FinalURL); md != "" {
			rec.Description = md
			changed = true
		}
	}
	facts := Facts(res.HTML)
	if rec.Image == "" && facts.Image != "" {
		rec.Image = facts.Image
		changed = true
	}
	if rec.Brand == "" && facts.Brand != "" {
		rec.Brand = facts.Brand
		changed = true
	}
	return changed
}

// fetchable reports whether a record URL points at a real page. The
// deterministic fallback address carries its seed in the fragment and
// is excluded.
func fetchable(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Fragment == ""
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

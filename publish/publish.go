// Package publish gates dataset writes behind the zero-result
// regression check: a scrape that found nothing must never erase data
// a previous run published.
package publish

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/trawlkit/trawl/models"
)

// Store is the slice of the storage layer the guard drives.
// *store.FileStore and *store.PGStore both satisfy it.
type Store interface {
	LastCount(ctx context.Context) (int, error)
	WriteDataset(ctx context.Context, records []models.Record) error
	WriteSummary(ctx context.Context, sum models.RunSummary) error
}

// Guard owns the publish decision. The primary store provides the
// historical baseline and must succeed; mirror stores are best effort
// and never fail the run.
type Guard struct {
	primary Store
	mirrors []Store
}

// NewGuard creates a guard around the primary store plus any mirrors.
func NewGuard(primary Store, mirrors ...Store) *Guard {
	return &Guard{primary: primary, mirrors: mirrors}
}

// Publish writes the run's output. Zero records against a non-zero
// baseline fails with EMPTY_REGRESSION and writes nothing. Zero
// records with no history writes the summary only. Anything else
// writes the dataset first, then the summary, so a crash in between
// leaves the baseline readable from the dataset itself.
//
// The summary's TotalItems always reflects the record list actually
// written, whatever the caller filled in.
func (g *Guard) Publish(ctx context.Context, records []models.Record, sum models.RunSummary) error {
	prev, err := g.primary.LastCount(ctx)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeStore, "read published baseline", err)
	}

	if len(records) == 0 && prev > 0 {
		return models.NewScrapeError(models.ErrCodeEmptyRegression,
			fmt.Sprintf("scrape produced 0 records but %d were previously published; refusing to overwrite", prev),
			nil)
	}

	sum.TotalItems = len(records)

	if len(records) == 0 {
		slog.Info("no records and no history, writing summary only",
			"run_id", sum.RunID,
		)
		return g.writeSummaries(ctx, sum)
	}

	slog.Info("publishing dataset",
		"run_id", sum.RunID,
		"records", len(records),
		"previous", prev,
	)
	if err := g.primary.WriteDataset(ctx, records); err != nil {
		return err
	}
	for _, m := range g.mirrors {
		if err := m.WriteDataset(ctx, records); err != nil {
			slog.Warn("mirror dataset write failed",
				"run_id", sum.RunID,
				"error", err,
			)
		}
	}
	return g.writeSummaries(ctx, sum)
}

func (g *Guard) writeSummaries(ctx context.Context, sum models.RunSummary) error {
	if err := g.primary.WriteSummary(ctx, sum); err != nil {
		return err
	}
	for _, m := range g.mirrors {
		if err := m.WriteSummary(ctx, sum); err != nil {
			slog.Warn("mirror summary write failed",
				"run_id", sum.RunID,
				"error", err,
			)
		}
	}
	return nil
}

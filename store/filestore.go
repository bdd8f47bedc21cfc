// Package store persists published datasets and run summaries. The
// file store is always on; the Postgres store is an optional second
// sink enabled by DSN.
package store

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/trawlkit/trawl/models"
)

const (
	datasetFile = "products.json"
	csvFile     = "products.csv"
	summaryFile = "summary.json"
)

// FileStore writes the dataset (JSON + CSV) and the run summary under
// one data directory. It is the baseline the publish guard compares
// against and the dataset the MCP server reads.
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir. The directory is
// created on the first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the data directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) datasetPath() string { return filepath.Join(s.dir, datasetFile) }
func (s *FileStore) csvPath() string     { return filepath.Join(s.dir, csvFile) }
func (s *FileStore) summaryPath() string { return filepath.Join(s.dir, summaryFile) }

// WriteDataset writes the full record list as ordered JSON plus a CSV
// export alongside it.
func (s *FileStore) WriteDataset(ctx context.Context, records []models.Record) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return models.NewScrapeError(models.ErrCodeStore, "create data directory "+s.dir, err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return models.NewScrapeError(models.ErrCodeStore, "marshal dataset", err)
	}
	if err := os.WriteFile(s.datasetPath(), data, 0644); err != nil {
		return models.NewScrapeError(models.ErrCodeStore, "write "+s.datasetPath(), err)
	}

	if err := s.writeCSV(records); err != nil {
		return err
	}

	slog.Info("dataset written",
		"path", s.datasetPath(),
		"records", len(records),
	)
	return nil
}

// WriteSummary writes the run summary next to the dataset.
func (s *FileStore) WriteSummary(ctx context.Context, sum models.RunSummary) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return models.NewScrapeError(models.ErrCodeStore, "create data directory "+s.dir, err)
	}
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return models.NewScrapeError(models.ErrCodeStore, "marshal run summary", err)
	}
	if err := os.WriteFile(s.summaryPath(), data, 0644); err != nil {
		return models.NewScrapeError(models.ErrCodeStore, "write "+s.summaryPath(), err)
	}
	return nil
}

// LastCount reports the previously published record count: the summary
// metadata when readable, the dataset length as fallback, zero when
// neither exists. It never returns an error; an unreadable history is
// an absent history.
func (s *FileStore) LastCount(ctx context.Context) (int, error) {
	if sum, err := s.ReadSummary(ctx); err == nil {
		return sum.TotalItems, nil
	}
	if recs, err := s.ReadDataset(ctx); err == nil {
		return len(recs), nil
	}
	return 0, nil
}

// ReadDataset loads the published record list.
func (s *FileStore) ReadDataset(ctx context.Context) ([]models.Record, error) {
	data, err := os.ReadFile(s.datasetPath())
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeStore, "read "+s.datasetPath(), err)
	}
	var records []models.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeStore, "parse "+s.datasetPath(), err)
	}
	return records, nil
}

// ReadSummary loads the last run summary.
func (s *FileStore) ReadSummary(ctx context.Context) (models.RunSummary, error) {
	var sum models.RunSummary
	data, err := os.ReadFile(s.summaryPath())
	if err != nil {
		return sum, models.NewScrapeError(models.ErrCodeStore, "read "+s.summaryPath(), err)
	}
	if err := json.Unmarshal(data, &sum); err != nil {
		return sum, models.NewScrapeError(models.ErrCodeStore, "parse "+s.summaryPath(), err)
	}
	return sum, nil
}

var csvHeader = []string{
	"source", "query", "name", "brand", "sku",
	"price_sale", "price_regular", "unit_label", "unit_price",
	"url", "image", "category", "description", "scraped_at",
}

func (s *FileStore) writeCSV(records []models.Record) error {
	f, err := os.Create(s.csvPath())
	if err != nil {
		return models.NewScrapeError(models.ErrCodeStore, "create "+s.csvPath(), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return models.NewScrapeError(models.ErrCodeStore, "write csv header", err)
	}
	for _, rec := range records {
		if err := w.Write(csvRow(rec)); err != nil {
			return models.NewScrapeError(models.ErrCodeStore, "write csv row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return models.NewScrapeError(models.ErrCodeStore, "flush "+s.csvPath(), err)
	}
	return nil
}

// csvRow flattens one record; nil prices become empty cells.
func csvRow(r models.Record) []string {
	return []string{
		r.Source,
		r.Query,
		r.Name,
		r.Brand,
		r.SKU,
		floatCell(r.PriceSale),
		floatCell(r.PriceRegular),
		r.UnitLabel,
		floatCell(r.UnitPrice),
		r.URL,
		r.Image,
		r.Category,
		r.Description,
		r.ScrapedAt.Format(time.RFC3339),
	}
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

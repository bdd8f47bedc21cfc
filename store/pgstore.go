package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trawlkit/trawl/models"
)

// insertBatchSize bounds one pgx batch round trip.
const insertBatchSize = 200

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PGStore mirrors the published dataset into Postgres. Product rows
// are idempotent on (source, identity_key); each run adds one summary
// row, giving a history the file store does not keep.
type PGStore struct {
	pool   *pgxpool.Pool
	schema string
}

// NewPGStore connects to dsn and makes sure the schema and tables
// exist. schema must be a plain lowercase identifier; it is splice
// material for DDL and cannot be a bind parameter.
func NewPGStore(ctx context.Context, dsn, schema string) (*PGStore, error) {
	if !identRe.MatchString(schema) {
		return nil, models.NewScrapeError(models.ErrCodeStore, "unsafe postgres schema name "+schema, nil)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeStore, "parse postgres dsn", err)
	}
	cfg.MaxConns = 4
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeStore, "connect postgres", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, models.NewScrapeError(models.ErrCodeStore, "ping postgres", err)
	}

	s := &PGStore{pool: pool, schema: schema}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *PGStore) Close() { s.pool.Close() }

func (s *PGStore) ensureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE SCHEMA IF NOT EXISTS "%[1]s";

CREATE TABLE IF NOT EXISTS "%[1]s".products (
  id            bigserial PRIMARY KEY,
  source        text NOT NULL,
  identity_key  text NOT NULL,
  query         text NOT NULL,
  name          text,
  brand         text,
  sku           text,
  price_sale    double precision,
  price_regular double precision,
  unit_label    text,
  unit_price    double precision,
  url           text NOT NULL,
  image         text,
  category      text,
  description   text,
  scraped_at    timestamptz NOT NULL,
  UNIQUE (source, identity_key)
);

CREATE TABLE IF NOT EXISTS "%[1]s".run_summaries (
  run_id         text PRIMARY KEY,
  source         text NOT NULL,
  created_at     timestamptz NOT NULL,
  total_items    int NOT NULL,
  pages_scraped  int NOT NULL,
  query_used     text,
  stopped_reason text,
  duration_ms    bigint
);`, s.schema)

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return models.NewScrapeError(models.ErrCodeStore, "ensure postgres schema", err)
	}
	return nil
}

// WriteDataset inserts the records in batches, skipping rows already
// present for their (source, identity_key). Records with no derivable
// identity key are file-store only; they have no stable conflict
// target here.
func (s *PGStore) WriteDataset(ctx context.Context, records []models.Record) error {
	table := fmt.Sprintf(`"%s".products`, s.schema)
	inserted, skipped := 0, 0

	for start := 0; start < len(records); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(records) {
			end = len(records)
		}

		b := &pgx.Batch{}
		queued := 0
		for _, rec := range records[start:end] {
			key := rec.IdentityKey()
			if key == "" {
				skipped++
				continue
			}
			b.Queue(`INSERT INTO `+table+`
				(source, identity_key, query, name, brand, sku,
				 price_sale, price_regular, unit_label, unit_price,
				 url, image, category, description, scraped_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
				ON CONFLICT (source, identity_key) DO NOTHING`,
				rec.Source, key, rec.Query, rec.Name, rec.Brand, rec.SKU,
				rec.PriceSale, rec.PriceRegular, rec.UnitLabel, rec.UnitPrice,
				rec.URL, rec.Image, rec.Category, rec.Description, rec.ScrapedAt,
			)
			queued++
		}

		br := s.pool.SendBatch(ctx, b)
		for i := 0; i < queued; i++ {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return models.NewScrapeError(models.ErrCodeStore, "insert product rows", err)
			}
			inserted += int(tag.RowsAffected())
		}
		if err := br.Close(); err != nil {
			return models.NewScrapeError(models.ErrCodeStore, "close insert batch", err)
		}
	}

	slog.Info("postgres dataset write",
		"schema", s.schema,
		"records", len(records),
		"inserted", inserted,
		"skipped_keyless", skipped,
	)
	return nil
}

// WriteSummary appends one run-summary row.
func (s *PGStore) WriteSummary(ctx context.Context, sum models.RunSummary) error {
	table := fmt.Sprintf(`"%s".run_summaries`, s.schema)
	_, err := s.pool.Exec(ctx, `INSERT INTO `+table+`
		(run_id, source, created_at, total_items, pages_scraped,
		 query_used, stopped_reason, duration_ms)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (run_id) DO NOTHING`,
		sum.RunID, sum.Source, sum.Timestamp, sum.TotalItems,
		sum.PagesScraped, sum.QueryUsed, string(sum.StoppedReason), sum.DurationMs,
	)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeStore, "insert run summary", err)
	}
	return nil
}

// LastCount reads the most recent run's published item count. No
// summary rows means no history.
func (s *PGStore) LastCount(ctx context.Context) (int, error) {
	table := fmt.Sprintf(`"%s".run_summaries`, s.schema)
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT total_items FROM `+table+` ORDER BY created_at DESC LIMIT 1`,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, models.NewScrapeError(models.ErrCodeStore, "read last run summary", err)
	}
	return count, nil
}

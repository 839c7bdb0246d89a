package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"collectibles-market/models"
)

// PgxComps stores the comparables behind each pricing lookup in Postgres so
// estimates can be audited later. Rows are keyed by (lookup key, url) and
// inserted with ON CONFLICT DO NOTHING.
type PgxComps struct {
	pool  *pgxpool.Pool
	batch int
}

// NewPgxComps opens a pool against dsn and creates the comps table.
func NewPgxComps(ctx context.Context, dsn string, maxConns int) (*PgxComps, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("comps: parse dsn: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 2
	}
	cfg.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("comps: connect: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS pricing_comps (
			lookup_key  TEXT        NOT NULL,
			url         TEXT        NOT NULL,
			item_ref    TEXT        NOT NULL,
			purpose     TEXT        NOT NULL,
			mode        TEXT        NOT NULL,
			title       TEXT        NOT NULL,
			price       NUMERIC     NOT NULL,
			currency    TEXT        NOT NULL,
			tier        TEXT        NOT NULL,
			variant     TEXT        NOT NULL,
			reason      TEXT        NOT NULL DEFAULT '',
			listed_at   TIMESTAMPTZ,
			computed_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (lookup_key, url)
		)`
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("comps: migrate: %w", err)
	}

	return &PgxComps{pool: pool, batch: 200}, nil
}

// WriteComps inserts every match of result in batches.
func (p *PgxComps) WriteComps(ctx context.Context, result *models.PricingResult) error {
	matches := result.Matches
	for i := 0; i < len(matches); i += p.batch {
		j := i + p.batch
		if j > len(matches) {
			j = len(matches)
		}

		b := &pgx.Batch{}
		for _, m := range matches[i:j] {
			b.Queue(`
				INSERT INTO pricing_comps
				(lookup_key, url, item_ref, purpose, mode, title, price, currency,
				 tier, variant, reason, listed_at, computed_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
				ON CONFLICT (lookup_key, url) DO NOTHING`,
				result.Key, m.URL, result.Item.Ref, string(result.Purpose), string(result.Mode),
				m.Title, m.Price, m.Currency, string(m.Tier), m.VariantLabel, m.Reason,
				m.EndOrStartDate, result.ComputedAt,
			)
		}

		br := p.pool.SendBatch(ctx, b)
		for k := 0; k < b.Len(); k++ {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("comps: insert: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("comps: close batch: %w", err)
		}
	}
	return nil
}

func (p *PgxComps) Close() error {
	p.pool.Close()
	return nil
}

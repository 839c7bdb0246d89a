package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"collectibles-market/models"
)

// sqlRecords implements RecordStore over database/sql for both the Postgres
// and SQLite backends. Timestamps are stored as unix milliseconds so the two
// schemas stay identical.
type sqlRecords struct {
	db          *sql.DB
	placeholder func(n int) string
}

const recordColumns = `id, user_id, item_refs, sku, offer_id, listing_id, url, status, price,
	listing_type, marketplace, policies, end_reason, error_code, error_message, created_at, updated_at`

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func (s *sqlRecords) params(n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = s.placeholder(i + 1)
	}
	return strings.Join(ps, ",")
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *sqlRecords) upsert(ctx context.Context, ex execer, rec *models.ListingRecord) error {
	refs, err := json.Marshal(rec.ItemRefs)
	if err != nil {
		return fmt.Errorf("marshal item refs: %w", err)
	}
	policies, err := json.Marshal(rec.Policies)
	if err != nil {
		return fmt.Errorf("marshal policies: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO listing_records (%s)
		VALUES (%s)
		ON CONFLICT (id) DO UPDATE SET
			offer_id = excluded.offer_id,
			listing_id = excluded.listing_id,
			url = excluded.url,
			status = excluded.status,
			price = excluded.price,
			policies = excluded.policies,
			end_reason = excluded.end_reason,
			error_code = excluded.error_code,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at
	`, recordColumns, s.params(17))

	_, err = ex.ExecContext(ctx, query,
		rec.ID, rec.UserID, string(refs), rec.SKU, rec.OfferID, rec.ListingID, rec.URL,
		string(rec.Status), rec.Price.String(), string(rec.ListingType), rec.Marketplace,
		string(policies), string(rec.EndReason), rec.ErrorCode, rec.ErrorMessage,
		toMillis(rec.CreatedAt), toMillis(rec.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", rec.ID, err)
	}

	for _, ref := range rec.ItemRefs {
		q := fmt.Sprintf(`INSERT INTO record_items (record_id, item_ref) VALUES (%s)
			ON CONFLICT (record_id, item_ref) DO NOTHING`, s.params(2))
		if _, err := ex.ExecContext(ctx, q, rec.ID, ref); err != nil {
			return fmt.Errorf("link item %s: %w", ref, err)
		}
	}
	return nil
}

func (s *sqlRecords) Save(ctx context.Context, rec *models.ListingRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := s.upsert(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqlRecords) Get(ctx context.Context, id string) (*models.ListingRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM listing_records WHERE id = %s`, recordColumns, s.placeholder(1)), id)
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs[0], nil
}

func (s *sqlRecords) ListByItem(ctx context.Context, itemRef string) ([]*models.ListingRecord, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM listing_records
		WHERE id IN (SELECT record_id FROM record_items WHERE item_ref = %s)
		ORDER BY created_at`, recordColumns, s.placeholder(1)), itemRef)
	if err != nil {
		return nil, fmt.Errorf("list records by item: %w", err)
	}
	return scanRecords(rows)
}

func (s *sqlRecords) ListOrphans(ctx context.Context, olderThan time.Time) ([]*models.ListingRecord, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM listing_records
		WHERE status IN (%s, %s) AND updated_at < %s
		ORDER BY created_at`, recordColumns, s.placeholder(1), s.placeholder(2), s.placeholder(3)),
		string(models.StatusInventoryRegistered), string(models.StatusOfferCreated), toMillis(olderThan))
	if err != nil {
		return nil, fmt.Errorf("list orphans: %w", err)
	}
	return scanRecords(rows)
}

func (s *sqlRecords) ActivateLot(ctx context.Context, rec *models.ListingRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for _, ref := range rec.ItemRefs {
		var owner string
		err := tx.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT record_id FROM lot_members WHERE item_ref = %s`, s.placeholder(1)), ref).Scan(&owner)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("check lot member %s: %w", ref, err)
		case owner != rec.ID:
			return fmt.Errorf("%w: %s (lot %s)", ErrLotConflict, ref, owner)
		}
	}
	for _, ref := range rec.ItemRefs {
		q := fmt.Sprintf(`INSERT INTO lot_members (item_ref, record_id) VALUES (%s)
			ON CONFLICT (item_ref) DO NOTHING`, s.params(2))
		if _, err := tx.ExecContext(ctx, q, ref, rec.ID); err != nil {
			return fmt.Errorf("claim lot member %s: %w", ref, err)
		}
	}
	if err := s.upsert(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqlRecords) ReleaseLot(ctx context.Context, rec *models.ListingRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM lot_members WHERE record_id = %s`, s.placeholder(1)), rec.ID); err != nil {
		return fmt.Errorf("release lot %s: %w", rec.ID, err)
	}
	if err := s.upsert(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqlRecords) Close() error {
	return s.db.Close()
}

func scanRecords(rows *sql.Rows) ([]*models.ListingRecord, error) {
	defer rows.Close()

	var out []*models.ListingRecord
	for rows.Next() {
		var (
			rec                         models.ListingRecord
			refs, price, policies       string
			status, listingType, reason string
			created, updated            int64
		)
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &refs, &rec.SKU, &rec.OfferID, &rec.ListingID, &rec.URL,
			&status, &price, &listingType, &rec.Marketplace, &policies, &reason,
			&rec.ErrorCode, &rec.ErrorMessage, &created, &updated,
		); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(refs), &rec.ItemRefs); err != nil {
			return nil, fmt.Errorf("unmarshal item refs: %w", err)
		}
		if err := json.Unmarshal([]byte(policies), &rec.Policies); err != nil {
			return nil, fmt.Errorf("unmarshal policies: %w", err)
		}
		p, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", price, err)
		}
		rec.Price = p
		rec.Status = models.ListingStatus(status)
		rec.ListingType = models.ListingType(listingType)
		rec.EndReason = models.EndReason(reason)
		rec.CreatedAt = fromMillis(created)
		rec.UpdatedAt = fromMillis(updated)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

const recordsSchema = `
	CREATE TABLE IF NOT EXISTS listing_records (
		id            TEXT   PRIMARY KEY,
		user_id       TEXT   NOT NULL DEFAULT '',
		item_refs     TEXT   NOT NULL DEFAULT '[]',
		sku           TEXT   NOT NULL,
		offer_id      TEXT   NOT NULL DEFAULT '',
		listing_id    TEXT   NOT NULL DEFAULT '',
		url           TEXT   NOT NULL DEFAULT '',
		status        TEXT   NOT NULL,
		price         TEXT   NOT NULL DEFAULT '0',
		listing_type  TEXT   NOT NULL,
		marketplace   TEXT   NOT NULL DEFAULT '',
		policies      TEXT   NOT NULL DEFAULT '{}',
		end_reason    TEXT   NOT NULL DEFAULT '',
		error_code    TEXT   NOT NULL DEFAULT '',
		error_message TEXT   NOT NULL DEFAULT '',
		created_at    BIGINT NOT NULL,
		updated_at    BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS record_items (
		record_id TEXT NOT NULL,
		item_ref  TEXT NOT NULL,
		PRIMARY KEY (record_id, item_ref)
	);

	CREATE TABLE IF NOT EXISTS lot_members (
		item_ref  TEXT PRIMARY KEY,
		record_id TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_status  ON listing_records(status, updated_at);
	CREATE INDEX IF NOT EXISTS idx_records_sku     ON listing_records(sku);
	CREATE INDEX IF NOT EXISTS idx_record_items_ref ON record_items(item_ref);
`

package epc

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/travelsearch/internal/model"
)

// periodLayout is fixed-width so text ordering matches time ordering.
const periodLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS epc_records (
	provider          TEXT NOT NULL,
	vertical          TEXT NOT NULL,
	period_start      TEXT NOT NULL,
	period_end        TEXT NOT NULL,
	total_clicks      INTEGER NOT NULL DEFAULT 0,
	total_conversions INTEGER NOT NULL DEFAULT 0,
	total_revenue     REAL NOT NULL DEFAULT 0,
	calculated_epc    REAL NOT NULL DEFAULT 0,
	confidence_score  REAL NOT NULL DEFAULT 0,
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (provider, vertical, period_start, period_end)
);

CREATE INDEX IF NOT EXISTS idx_epc_records_latest ON epc_records(provider, vertical, period_end DESC);
`

// Migrate creates the epc_records table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Lookup implements Reader.
func (s *SQLiteStore) Lookup(ctx context.Context, provider string, vertical model.Vertical) (*model.EPCRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT period_start, period_end, total_clicks, total_conversions, total_revenue, calculated_epc, confidence_score
		FROM epc_records WHERE provider = ? AND vertical = ? ORDER BY period_end DESC, period_start DESC LIMIT 1`,
		provider, string(vertical),
	)

	rec := model.EPCRecord{Provider: provider, Vertical: vertical}
	var start, end string
	err := row.Scan(&start, &end, &rec.TotalClicks, &rec.TotalConversions, &rec.TotalRevenue, &rec.CalculatedEPC, &rec.ConfidenceScore)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: lookup epc %s/%s", provider, vertical)
	}

	if rec.PeriodStart, err = time.Parse(periodLayout, start); err != nil {
		return nil, eris.Wrap(err, "sqlite: parse period_start")
	}
	if rec.PeriodEnd, err = time.Parse(periodLayout, end); err != nil {
		return nil, eris.Wrap(err, "sqlite: parse period_end")
	}
	return &rec, nil
}

const sqliteUpsert = `INSERT INTO epc_records
	(provider, vertical, period_start, period_end, total_clicks, total_conversions, total_revenue, calculated_epc, confidence_score, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
	ON CONFLICT (provider, vertical, period_start, period_end) DO UPDATE SET
		total_clicks = excluded.total_clicks,
		total_conversions = excluded.total_conversions,
		total_revenue = excluded.total_revenue,
		calculated_epc = excluded.calculated_epc,
		confidence_score = excluded.confidence_score,
		updated_at = excluded.updated_at`

// Upsert implements Store.
func (s *SQLiteStore) Upsert(ctx context.Context, rec model.EPCRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, sqliteUpsert, sqliteArgs(rec)...)
	return eris.Wrapf(err, "sqlite: upsert epc %s/%s", rec.Provider, rec.Vertical)
}

// UpsertMany implements Store. The batch is written in one transaction.
func (s *SQLiteStore) UpsertMany(ctx context.Context, recs []model.EPCRecord) (int, error) {
	for _, rec := range recs {
		if err := validate(rec); err != nil {
			return 0, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsert)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx, sqliteArgs(rec)...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert epc %s/%s", rec.Provider, rec.Vertical)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit")
	}
	return len(recs), nil
}

func sqliteArgs(rec model.EPCRecord) []any {
	return []any{
		rec.Provider,
		string(rec.Vertical),
		rec.PeriodStart.UTC().Format(periodLayout),
		rec.PeriodEnd.UTC().Format(periodLayout),
		rec.TotalClicks,
		rec.TotalConversions,
		rec.TotalRevenue,
		rec.CalculatedEPC,
		rec.ConfidenceScore,
	}
}

package epc

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/travelsearch/internal/db"
	"github.com/sells-group/travelsearch/internal/model"
)

const epcTable = "epc_records"

var epcColumns = []string{
	"provider", "vertical", "period_start", "period_end",
	"total_clicks", "total_conversions", "total_revenue",
	"calculated_epc", "confidence_score",
}

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects to connString.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS epc_records (
	provider          TEXT NOT NULL,
	vertical          TEXT NOT NULL,
	period_start      TIMESTAMPTZ NOT NULL,
	period_end        TIMESTAMPTZ NOT NULL,
	total_clicks      BIGINT NOT NULL DEFAULT 0,
	total_conversions BIGINT NOT NULL DEFAULT 0,
	total_revenue     DOUBLE PRECISION NOT NULL DEFAULT 0,
	calculated_epc    DOUBLE PRECISION NOT NULL DEFAULT 0,
	confidence_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (provider, vertical, period_start, period_end)
);

CREATE INDEX IF NOT EXISTS idx_epc_records_latest ON epc_records(provider, vertical, period_end DESC);
`

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// Migrate creates the epc_records table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Lookup implements Reader.
func (s *PostgresStore) Lookup(ctx context.Context, provider string, vertical model.Vertical) (*model.EPCRecord, error) {
	rec := model.EPCRecord{Provider: provider, Vertical: vertical}
	err := s.pool.QueryRow(ctx,
		`SELECT period_start, period_end, total_clicks, total_conversions, total_revenue, calculated_epc, confidence_score
		FROM epc_records WHERE provider = $1 AND vertical = $2 ORDER BY period_end DESC, period_start DESC LIMIT 1`,
		provider, string(vertical),
	).Scan(&rec.PeriodStart, &rec.PeriodEnd, &rec.TotalClicks, &rec.TotalConversions, &rec.TotalRevenue, &rec.CalculatedEPC, &rec.ConfidenceScore)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: lookup epc %s/%s", provider, vertical)
	}
	rec.PeriodStart = rec.PeriodStart.UTC()
	rec.PeriodEnd = rec.PeriodEnd.UTC()
	return &rec, nil
}

// Upsert implements Store.
func (s *PostgresStore) Upsert(ctx context.Context, rec model.EPCRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO epc_records (provider, vertical, period_start, period_end, total_clicks, total_conversions, total_revenue, calculated_epc, confidence_score, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (provider, vertical, period_start, period_end) DO UPDATE SET
			total_clicks = EXCLUDED.total_clicks,
			total_conversions = EXCLUDED.total_conversions,
			total_revenue = EXCLUDED.total_revenue,
			calculated_epc = EXCLUDED.calculated_epc,
			confidence_score = EXCLUDED.confidence_score,
			updated_at = now()`,
		postgresRow(rec)...,
	)
	return eris.Wrapf(err, "postgres: upsert epc %s/%s", rec.Provider, rec.Vertical)
}

// UpsertMany implements Store using a COPY-backed bulk upsert.
func (s *PostgresStore) UpsertMany(ctx context.Context, recs []model.EPCRecord) (int, error) {
	rows := make([][]any, 0, len(recs))
	for _, rec := range recs {
		if err := validate(rec); err != nil {
			return 0, err
		}
		rows = append(rows, postgresRow(rec))
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        epcTable,
		Columns:      epcColumns,
		ConflictKeys: epcColumns[:4],
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import epc records")
	}
	return int(n), nil
}

func postgresRow(rec model.EPCRecord) []any {
	return []any{
		rec.Provider,
		string(rec.Vertical),
		rec.PeriodStart.UTC(),
		rec.PeriodEnd.UTC(),
		rec.TotalClicks,
		rec.TotalConversions,
		rec.TotalRevenue,
		rec.CalculatedEPC,
		rec.ConfidenceScore,
	}
}

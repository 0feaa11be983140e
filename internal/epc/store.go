// Package epc stores learned earnings-per-click records per provider and
// vertical and serves the most recent one to the decision engine.
package epc

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/travelsearch/internal/db"
	"github.com/sells-group/travelsearch/internal/model"
)

// Reader is the read contract used at ranking time.
type Reader interface {
	// Lookup returns the record with the latest period end for provider and
	// vertical, or nil when none exists.
	Lookup(ctx context.Context, provider string, vertical model.Vertical) (*model.EPCRecord, error)
}

// Store persists EPC records produced by the offline learning job.
type Store interface {
	Reader
	// Upsert inserts or replaces the record for its (provider, vertical,
	// period) key.
	Upsert(ctx context.Context, rec model.EPCRecord) error
	// UpsertMany imports a batch of records and returns how many were written.
	UpsertMany(ctx context.Context, recs []model.EPCRecord) (int, error)
	Migrate(ctx context.Context) error
	Close() error
}

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open creates the store for driver and runs its migration. dsn is a file
// path for sqlite and a connection string for postgres.
func Open(ctx context.Context, driver, dsn string, poolCfg *db.PoolConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch strings.ToLower(driver) {
	case "", DriverMemory:
		st = NewMemoryStore()
	case DriverSQLite:
		st, err = NewSQLite(dsn)
	case DriverPostgres:
		st, err = NewPostgres(ctx, dsn, poolCfg)
	default:
		return nil, eris.Errorf("epc: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func validate(rec model.EPCRecord) error {
	if rec.Provider == "" {
		return eris.New("epc: record has no provider")
	}
	if !rec.Vertical.Valid() {
		return eris.Wrapf(model.ErrUnknownVertical, "epc: record for %s", rec.Provider)
	}
	if rec.PeriodEnd.Before(rec.PeriodStart) {
		return eris.Errorf("epc: record for %s/%s ends before it starts", rec.Provider, rec.Vertical)
	}
	return nil
}

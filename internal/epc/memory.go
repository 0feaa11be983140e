package epc

import (
	"context"
	"sync"
	"time"

	"github.com/sells-group/travelsearch/internal/model"
)

type recordKey struct {
	provider string
	vertical model.Vertical
	start    time.Time
	end      time.Time
}

// MemoryStore keeps records in process. It backs tests and the default
// configuration.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[recordKey]model.EPCRecord
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[recordKey]model.EPCRecord)}
}

// Lookup implements Reader.
func (s *MemoryStore) Lookup(_ context.Context, provider string, vertical model.Vertical) (*model.EPCRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *model.EPCRecord
	for k, rec := range s.records {
		if k.provider != provider || k.vertical != vertical {
			continue
		}
		if latest == nil || newerPeriod(rec, *latest) {
			r := rec
			latest = &r
		}
	}
	return latest, nil
}

// newerPeriod orders records by period end, then period start, both
// descending, as the SQL backends do.
func newerPeriod(a, b model.EPCRecord) bool {
	if !a.PeriodEnd.Equal(b.PeriodEnd) {
		return a.PeriodEnd.After(b.PeriodEnd)
	}
	return a.PeriodStart.After(b.PeriodStart)
}

// Upsert implements Store.
func (s *MemoryStore) Upsert(_ context.Context, rec model.EPCRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[keyOf(rec)] = rec
	return nil
}

// UpsertMany implements Store.
func (s *MemoryStore) UpsertMany(ctx context.Context, recs []model.EPCRecord) (int, error) {
	for i, rec := range recs {
		if err := s.Upsert(ctx, rec); err != nil {
			return i, err
		}
	}
	return len(recs), nil
}

// Migrate is a no-op.
func (s *MemoryStore) Migrate(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func keyOf(rec model.EPCRecord) recordKey {
	return recordKey{
		provider: rec.Provider,
		vertical: rec.Vertical,
		start:    rec.PeriodStart.UTC(),
		end:      rec.PeriodEnd.UTC(),
	}
}

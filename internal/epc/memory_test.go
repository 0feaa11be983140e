package epc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/travelsearch/internal/model"
)

func TestMemoryStore_LookupLatest(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Upsert(ctx, septemberKiwi()))
	require.NoError(t, s.Upsert(ctx, augustKiwi()))

	rec, err := s.Lookup(ctx, "kiwi", model.VerticalFlights)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.PeriodEnd.Equal(day(9, 30)))
	assert.InDelta(t, 0.07, rec.CalculatedEPC, 1e-9)
}

func TestMemoryStore_LookupSamePeriodEnd(t *testing.T) {
	ctx := context.Background()

	for range 20 {
		s := NewMemoryStore()
		require.NoError(t, s.Upsert(ctx, septemberKiwi()))
		require.NoError(t, s.Upsert(ctx, septemberKiwiTail()))
		require.NoError(t, s.Upsert(ctx, augustKiwi()))

		rec, err := s.Lookup(ctx, "kiwi", model.VerticalFlights)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.True(t, rec.PeriodStart.Equal(day(9, 15)))
		assert.Equal(t, int64(300), rec.TotalClicks)
	}
}

func TestMemoryStore_LookupMissing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Upsert(ctx, septemberKiwi()))

	rec, err := s.Lookup(ctx, "kiwi", model.VerticalStays)
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = s.Lookup(ctx, "expedia", model.VerticalFlights)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestMemoryStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Upsert(ctx, septemberKiwi()))
	updated := model.NewEPCRecord("kiwi", model.VerticalFlights, day(9, 1), day(9, 30), 2000, 40, 100)
	require.NoError(t, s.Upsert(ctx, updated))

	rec, err := s.Lookup(ctx, "kiwi", model.VerticalFlights)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), rec.TotalClicks)
}

func TestMemoryStore_UpsertValidates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	tests := []struct {
		name string
		rec  model.EPCRecord
	}{
		{"no provider", model.NewEPCRecord("", model.VerticalFlights, day(9, 1), day(9, 30), 1, 0, 0)},
		{"bad vertical", model.NewEPCRecord("kiwi", "trains", day(9, 1), day(9, 30), 1, 0, 0)},
		{"inverted period", model.NewEPCRecord("kiwi", model.VerticalFlights, day(9, 30), day(9, 1), 1, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, s.Upsert(ctx, tt.rec))
		})
	}
}

func TestMemoryStore_UpsertMany(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	n, err := s.UpsertMany(ctx, []model.EPCRecord{augustKiwi(), septemberKiwi()})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, s.Migrate(ctx))
	assert.NoError(t, s.Close())
}

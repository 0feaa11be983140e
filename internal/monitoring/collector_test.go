package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/travelsearch/internal/provider"
	"github.com/sells-group/travelsearch/internal/resilience"
)

func TestCollector_Collect(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(&stubAdapter{name: "kiwi"})
	reg.Register(&stubAdapter{name: "expedia", down: true})

	c := NewCollector(reg, nil)
	fixed := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	snap := c.Collect()
	require.Len(t, snap.Providers, 2)
	assert.Equal(t, "expedia", snap.Providers[0].Name)
	assert.False(t, snap.Providers[0].Available)
	assert.Empty(t, snap.Providers[0].Circuit, "no circuit state without breakers")
	assert.Equal(t, 2, snap.Total)
	assert.Equal(t, 1, snap.Unavailable)
	assert.Zero(t, snap.OpenCircuits)
	assert.Equal(t, fixed, snap.CollectedAt)
}

func TestCollector_CircuitStates(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(&stubAdapter{name: "kiwi"})
	reg.Register(&stubAdapter{name: "expedia"})

	breakers := resilience.NewBreakers(resilience.BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})
	_, _ = resilience.Call(context.Background(), breakers.For("kiwi"), func(context.Context) (int, error) {
		return 0, errors.New("down")
	})

	snap := NewCollector(reg, breakers).Collect()
	assert.Equal(t, "closed", snap.Providers[0].Circuit)
	assert.Equal(t, "open", snap.Providers[1].Circuit)
	assert.Equal(t, 1, snap.OpenCircuits)
}

func TestCollector_EmptyRegistry(t *testing.T) {
	snap := NewCollector(provider.NewRegistry(), nil).Collect()
	assert.NotNil(t, snap.Providers)
	assert.Zero(t, snap.Total)
}

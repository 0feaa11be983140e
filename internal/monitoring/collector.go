// Package monitoring watches provider availability and circuit breaker
// state and raises webhook alerts when providers degrade.
package monitoring

import (
	"time"

	"github.com/sells-group/travelsearch/internal/model"
	"github.com/sells-group/travelsearch/internal/provider"
	"github.com/sells-group/travelsearch/internal/resilience"
)

// ProviderHealth is the point-in-time state of one adapter.
type ProviderHealth struct {
	Name      string           `json:"name"`
	Verticals []model.Vertical `json:"verticals"`
	Available bool             `json:"available"`
	Circuit   string           `json:"circuit,omitempty"`
}

// HealthSnapshot holds a point-in-time view of provider health.
type HealthSnapshot struct {
	Providers    []ProviderHealth `json:"providers"`
	Total        int              `json:"total"`
	Unavailable  int              `json:"unavailable"`
	OpenCircuits int              `json:"open_circuits"`
	CollectedAt  time.Time        `json:"collected_at"`
}

// Collector gathers provider health from the registry and breakers.
type Collector struct {
	registry *provider.Registry
	breakers *resilience.Breakers // nil when breakers are disabled
	now      func() time.Time
}

// NewCollector creates a health collector. breakers may be nil.
func NewCollector(registry *provider.Registry, breakers *resilience.Breakers) *Collector {
	return &Collector{registry: registry, breakers: breakers, now: time.Now}
}

// Collect returns a snapshot of every registered adapter, sorted by name.
func (c *Collector) Collect() *HealthSnapshot {
	snap := &HealthSnapshot{
		Providers:   make([]ProviderHealth, 0),
		CollectedAt: c.now().UTC(),
	}

	var states map[string]resilience.CircuitState
	if c.breakers != nil {
		states = c.breakers.States()
	}

	for _, a := range c.registry.Adapters() {
		ph := ProviderHealth{
			Name:      a.Name(),
			Verticals: a.SupportedVerticals(),
			Available: a.Available(),
		}
		if states != nil {
			state, ok := states[a.Name()]
			if !ok {
				state = resilience.CircuitClosed
			}
			ph.Circuit = state.String()
			if state == resilience.CircuitOpen {
				snap.OpenCircuits++
			}
		}
		if !ph.Available {
			snap.Unavailable++
		}
		snap.Providers = append(snap.Providers, ph)
	}
	snap.Total = len(snap.Providers)
	return snap
}

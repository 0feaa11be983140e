package provider

import (
	"context"
	"maps"
	"os"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/travelsearch/internal/model"
)

// Fixture is a canned set of raw offers keyed by vertical.
type Fixture map[model.Vertical][]model.RawOffer

// LoadFixture reads a YAML fixture file of the form
//
//	flights:
//	  - id: f1
//	    price: 199
//	stays:
//	  - ...
func LoadFixture(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "provider: read fixture %s", path)
	}
	return ParseFixture(data)
}

// ParseFixture decodes YAML fixture bytes. Unknown verticals are rejected.
func ParseFixture(data []byte) (Fixture, error) {
	var raw map[string][]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "provider: parse fixture")
	}

	fx := make(Fixture, len(raw))
	for name, offers := range raw {
		v, err := model.ParseVertical(name)
		if err != nil {
			return nil, eris.Wrap(err, "provider: fixture")
		}
		list := make([]model.RawOffer, 0, len(offers))
		for _, o := range offers {
			list = append(list, model.RawOffer(o))
		}
		fx[v] = list
	}
	return fx, nil
}

// FixtureOption configures a FixtureAdapter.
type FixtureOption func(*FixtureAdapter)

// WithLatency delays every search by d to simulate a remote provider.
func WithLatency(d time.Duration) FixtureOption {
	return func(a *FixtureAdapter) {
		a.latency = d
	}
}

// WithVerticals restricts the verticals the adapter claims to support.
func WithVerticals(vs ...model.Vertical) FixtureOption {
	return func(a *FixtureAdapter) {
		a.verticals = vs
	}
}

// FixtureAdapter serves raw offers from an in-memory fixture. It backs the
// CLI demo providers and tests.
type FixtureAdapter struct {
	name      string
	fixture   Fixture
	verticals []model.Vertical
	latency   time.Duration
}

// NewFixtureAdapter creates an adapter named name serving fx.
func NewFixtureAdapter(name string, fx Fixture, opts ...FixtureOption) *FixtureAdapter {
	a := &FixtureAdapter{name: name, fixture: fx}
	for _, o := range opts {
		o(a)
	}
	if a.verticals == nil {
		for v := range fx {
			a.verticals = append(a.verticals, v)
		}
		sort.Slice(a.verticals, func(i, j int) bool { return a.verticals[i] < a.verticals[j] })
	}
	return a
}

// Name implements Adapter.
func (a *FixtureAdapter) Name() string { return a.name }

// SupportedVerticals implements Adapter.
func (a *FixtureAdapter) SupportedVerticals() []model.Vertical { return a.verticals }

// Available reports whether any fixture data is loaded.
func (a *FixtureAdapter) Available() bool { return len(a.fixture) > 0 }

// Search returns a copy of the fixture offers for vertical after the
// configured latency. It honors ctx while waiting.
func (a *FixtureAdapter) Search(ctx context.Context, vertical model.Vertical, _ model.SearchParams) ([]model.RawOffer, error) {
	if !a.Available() {
		return nil, eris.Wrapf(ErrUnavailable, "provider %s: no fixture loaded", a.name)
	}

	if a.latency > 0 {
		timer := time.NewTimer(a.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, eris.Wrapf(ctx.Err(), "provider %s: search", a.name)
		case <-timer.C:
		}
	}

	src := a.fixture[vertical]
	out := make([]model.RawOffer, 0, len(src))
	for _, o := range src {
		out = append(out, maps.Clone(o))
	}
	return out, nil
}

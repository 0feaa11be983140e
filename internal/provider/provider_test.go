package provider

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/travelsearch/internal/model"
)

// mockAdapter implements Adapter for testing.
type mockAdapter struct {
	name      string
	verticals []model.Vertical
	down      bool
}

func (m *mockAdapter) Name() string                         { return m.name }
func (m *mockAdapter) SupportedVerticals() []model.Vertical { return m.verticals }
func (m *mockAdapter) Available() bool                      { return !m.down }
func (m *mockAdapter) Search(_ context.Context, _ model.Vertical, _ model.SearchParams) ([]model.RawOffer, error) {
	return []model.RawOffer{{"id": m.name + "-1", "price": 100}}, nil
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	assert.NotNil(t, r)
	assert.Empty(t, r.List())
	assert.Empty(t, r.Adapters())
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockAdapter{name: "kiwi", verticals: []model.Vertical{model.VerticalFlights}})

	got := r.Get("kiwi")
	assert.NotNil(t, got)
	assert.Equal(t, "kiwi", got.Name())
}

func TestRegistry_Get_NotFound(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("nonexistent"))
}

func TestRegistry_List_Sorted(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockAdapter{name: "skyscanner"})
	r.Register(&mockAdapter{name: "expedia"})
	r.Register(&mockAdapter{name: "kiwi"})

	assert.Equal(t, []string{"expedia", "kiwi", "skyscanner"}, r.List())

	adapters := r.Adapters()
	assert.Len(t, adapters, 3)
	assert.Equal(t, "expedia", adapters[0].Name())
	assert.Equal(t, "skyscanner", adapters[2].Name())
}

func TestRegistry_Register_Overwrites(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockAdapter{name: "booking", verticals: []model.Vertical{model.VerticalStays}})
	r.Register(&mockAdapter{name: "booking", verticals: []model.Vertical{model.VerticalStays, model.VerticalCars}})

	got := r.Get("booking")
	assert.Len(t, got.SupportedVerticals(), 2)
	assert.Len(t, r.List(), 1)
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockAdapter{name: "viator"})

	assert.True(t, r.Unregister("viator"))
	assert.False(t, r.Unregister("viator"))
	assert.Nil(t, r.Get("viator"))
}

func TestRegistry_Match(t *testing.T) {
	flights := []model.Vertical{model.VerticalFlights}
	r := NewRegistry()
	r.Register(&mockAdapter{name: "skyscanner", verticals: flights})
	r.Register(&mockAdapter{name: "kiwi", verticals: flights})
	r.Register(&mockAdapter{name: "booking", verticals: []model.Vertical{model.VerticalStays}})
	r.Register(&mockAdapter{name: "travelpayouts", verticals: flights, down: true})

	tests := []struct {
		name     string
		vertical model.Vertical
		filter   []string
		want     []string
	}{
		{"by vertical", model.VerticalFlights, nil, []string{"kiwi", "skyscanner"}},
		{"filtered", model.VerticalFlights, []string{"skyscanner", "booking"}, []string{"skyscanner"}},
		{"filter ignores case and spaces", model.VerticalFlights, []string{"KIWI", " Skyscanner "}, []string{"kiwi", "skyscanner"}},
		{"unavailable skipped", model.VerticalFlights, []string{"travelpayouts"}, nil},
		{"no support", model.VerticalCruises, nil, nil},
		{"other vertical", model.VerticalStays, nil, []string{"booking"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var names []string
			for _, a := range r.Match(tt.vertical, tt.filter) {
				names = append(names, a.Name())
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestSupports(t *testing.T) {
	a := &mockAdapter{name: "discovercars", verticals: []model.Vertical{model.VerticalCars}}
	assert.True(t, Supports(a, model.VerticalCars))
	assert.False(t, Supports(a, model.VerticalFlights))
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Register(&mockAdapter{name: "provider", verticals: []model.Vertical{model.VerticalFlights}})
		}()
	}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Get("provider")
			_ = r.List()
			_ = r.Match(model.VerticalFlights, nil)
		}()
	}
	wg.Wait()

	assert.Len(t, r.List(), 1)
}

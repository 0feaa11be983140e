package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/travelsearch/internal/model"
	"github.com/sells-group/travelsearch/internal/resilience"
)

func newTestHTTPAdapter(url, path string) *HTTPAdapter {
	return NewHTTPAdapter(HTTPConfig{
		Name:        "travelpayouts",
		BaseURL:     url,
		APIKey:      "test-key",
		ResultsPath: path,
		Verticals:   []model.Vertical{model.VerticalFlights},
	})
}

func TestHTTPAdapter_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		assert.Equal(t, "flights", r.URL.Query().Get("vertical"))
		assert.Equal(t, "JFK", r.URL.Query().Get("origin"))
		assert.Equal(t, "LAX", r.URL.Query().Get("destination"))
		assert.Equal(t, "2026-11-01", r.URL.Query().Get("start_date"))
		assert.Equal(t, "1", r.URL.Query().Get("travelers"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"offers":[{"id":"a","price":120.5},{"id":"b","price":"99"},"junk"]}}`))
	}))
	defer srv.Close()

	a := newTestHTTPAdapter(srv.URL, "data.offers")
	offers, err := a.Search(context.Background(), model.VerticalFlights, model.SearchParams{
		Origin:      "JFK",
		Destination: "LAX",
		StartDate:   "2026-11-01",
	})
	require.NoError(t, err)
	require.Len(t, offers, 2)
	assert.Equal(t, "a", offers[0]["id"])
	assert.Equal(t, 120.5, offers[0]["price"])
	assert.Equal(t, "99", offers[1]["price"])
}

func TestHTTPAdapter_TopLevelArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"x"}]`))
	}))
	defer srv.Close()

	offers, err := newTestHTTPAdapter(srv.URL, "").Search(context.Background(), model.VerticalFlights, model.SearchParams{})
	require.NoError(t, err)
	assert.Len(t, offers, 1)
}

func TestHTTPAdapter_MissingPath_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"meta":{"count":0}}`))
	}))
	defer srv.Close()

	offers, err := newTestHTTPAdapter(srv.URL, "data.offers").Search(context.Background(), model.VerticalFlights, model.SearchParams{})
	require.NoError(t, err)
	assert.Empty(t, offers)
}

func TestHTTPAdapter_StatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusBadGateway, true},
		{"unauthorized", http.StatusUnauthorized, false},
		{"bad request", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := newTestHTTPAdapter(srv.URL, "").Search(context.Background(), model.VerticalFlights, model.SearchParams{})
			require.Error(t, err)
			assert.Equal(t, tt.transient, resilience.IsTransient(err))

			var te *resilience.TransientError
			if tt.transient {
				require.True(t, errors.As(err, &te))
				assert.Equal(t, tt.status, te.StatusCode)
			}
		})
	}
}

func TestHTTPAdapter_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	_, err := newTestHTTPAdapter(srv.URL, "").Search(context.Background(), model.VerticalFlights, model.SearchParams{})
	assert.Error(t, err)
}

func TestHTTPAdapter_NotArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"offers":{"id":"a"}}}`))
	}))
	defer srv.Close()

	_, err := newTestHTTPAdapter(srv.URL, "data.offers").Search(context.Background(), model.VerticalFlights, model.SearchParams{})
	assert.Error(t, err)
}

func TestHTTPAdapter_Available(t *testing.T) {
	a := NewHTTPAdapter(HTTPConfig{Name: "expedia", BaseURL: "http://example.invalid"})
	assert.False(t, a.Available())

	_, err := a.Search(context.Background(), model.VerticalStays, model.SearchParams{})
	assert.ErrorIs(t, err, ErrUnavailable)

	b := NewHTTPAdapter(HTTPConfig{Name: "expedia", BaseURL: "http://example.invalid", APIKey: "k"})
	assert.True(t, b.Available())
}

func TestHTTPAdapter_CustomHeaderAndClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	a := NewHTTPAdapter(HTTPConfig{
		Name:         "viator",
		BaseURL:      srv.URL,
		APIKey:       "secret",
		APIKeyHeader: "Authorization",
		RatePerSec:   100,
	}, WithHTTPClient(srv.Client()))

	offers, err := a.Search(context.Background(), model.VerticalActivities, model.SearchParams{Travelers: 3})
	require.NoError(t, err)
	assert.Empty(t, offers)
}

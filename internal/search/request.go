package search

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/travelsearch/internal/aggregate"
	"github.com/sells-group/travelsearch/internal/model"
)

const dateLayout = "2006-01-02"

// MaxTravelers caps the party size accepted from callers.
const MaxTravelers = 20

// Request is the caller-facing search input shared by the CLI and the HTTP
// API.
type Request struct {
	Vertical    string   `json:"vertical"`
	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date,omitempty"`
	Travelers   int      `json:"travelers,omitempty"`
	Providers   []string `json:"providers,omitempty"`
	NoCache     bool     `json:"no_cache,omitempty"`
	TimeoutMs   int      `json:"timeout_ms,omitempty"`
}

// Parse validates r and converts it into search inputs. defaults supplies
// the timeout and cache setting when r leaves them unset.
func (r Request) Parse(defaults aggregate.SearchOptions) (model.Vertical, model.SearchParams, aggregate.SearchOptions, error) {
	var (
		params model.SearchParams
		opts   = defaults
	)

	v, err := model.ParseVertical(r.Vertical)
	if err != nil {
		return "", params, opts, err
	}

	start, err := parseDate("start_date", r.StartDate, true)
	if err != nil {
		return "", params, opts, err
	}
	end, err := parseDate("end_date", r.EndDate, false)
	if err != nil {
		return "", params, opts, err
	}
	if !end.IsZero() && end.Before(start) {
		return "", params, opts, eris.Errorf("search: end_date %s is before start_date %s", r.EndDate, r.StartDate)
	}

	if r.Travelers < 0 || r.Travelers > MaxTravelers {
		return "", params, opts, eris.Errorf("search: travelers must be between 1 and %d", MaxTravelers)
	}
	if r.TimeoutMs < 0 {
		return "", params, opts, eris.New("search: timeout_ms must be >= 0")
	}

	params = model.SearchParams{
		Origin:      strings.TrimSpace(r.Origin),
		Destination: strings.TrimSpace(r.Destination),
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Travelers:   r.Travelers,
	}
	if params.Travelers == 0 {
		params.Travelers = 1
	}

	if r.NoCache {
		opts.UseCache = false
	}
	if r.TimeoutMs > 0 {
		opts.Timeout = time.Duration(r.TimeoutMs) * time.Millisecond
	}
	var providers []string
	for _, p := range r.Providers {
		if p = strings.TrimSpace(p); p != "" {
			providers = append(providers, p)
		}
	}
	if len(providers) > 0 {
		opts.Providers = providers
	}
	return v, params, opts, nil
}

func parseDate(field, s string, required bool) (time.Time, error) {
	if s == "" {
		if required {
			return time.Time{}, eris.Errorf("search: %s is required", field)
		}
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "search: invalid %s %q", field, s)
	}
	return t, nil
}

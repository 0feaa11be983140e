package provider

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/sells-group/travelsearch/internal/model"
	"github.com/sells-group/travelsearch/internal/resilience"
)

const (
	defaultAPIKeyHeader = "X-API-Key"
	defaultHTTPTimeout  = 10 * time.Second
	maxResponseBytes    = 10 << 20
)

// HTTPConfig describes a generic affiliate search API.
type HTTPConfig struct {
	Name         string
	BaseURL      string
	APIKey       string
	APIKeyHeader string // default X-API-Key
	// ResultsPath is a gjson path to the offers array in the response body.
	// Empty means the body itself is the array.
	ResultsPath string
	Verticals   []model.Vertical
	// RatePerSec limits outgoing requests. Zero means unlimited.
	RatePerSec float64
	Timeout    time.Duration
}

// HTTPOption configures an HTTPAdapter.
type HTTPOption func(*HTTPAdapter)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(a *HTTPAdapter) {
		a.http = hc
	}
}

// HTTPAdapter queries an affiliate JSON API with a GET request carrying the
// search parameters in the query string.
type HTTPAdapter struct {
	cfg     HTTPConfig
	http    *http.Client
	limiter *rate.Limiter
}

// NewHTTPAdapter creates an HTTP adapter from cfg.
func NewHTTPAdapter(cfg HTTPConfig, opts ...HTTPOption) *HTTPAdapter {
	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = defaultAPIKeyHeader
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}

	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}

	a := &HTTPAdapter{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(limit, 1),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Name implements Adapter.
func (a *HTTPAdapter) Name() string { return a.cfg.Name }

// SupportedVerticals implements Adapter.
func (a *HTTPAdapter) SupportedVerticals() []model.Vertical { return a.cfg.Verticals }

// Available reports whether the adapter has an endpoint and API key.
func (a *HTTPAdapter) Available() bool {
	return a.cfg.BaseURL != "" && a.cfg.APIKey != ""
}

// Search implements Adapter. Rate limiting, 429 and 5xx responses are
// reported as transient errors.
func (a *HTTPAdapter) Search(ctx context.Context, vertical model.Vertical, params model.SearchParams) ([]model.RawOffer, error) {
	if !a.Available() {
		return nil, eris.Wrapf(ErrUnavailable, "provider %s: no api key", a.cfg.Name)
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrapf(err, "provider %s: rate limit wait", a.cfg.Name)
	}

	u, err := url.Parse(a.cfg.BaseURL)
	if err != nil {
		return nil, eris.Wrapf(err, "provider %s: parse base url", a.cfg.Name)
	}
	q := u.Query()
	q.Set("vertical", string(vertical))
	q.Set("origin", params.Origin)
	q.Set("destination", params.Destination)
	q.Set("start_date", params.StartDate)
	if params.EndDate != "" {
		q.Set("end_date", params.EndDate)
	}
	travelers := params.Travelers
	if travelers <= 0 {
		travelers = 1
	}
	q.Set("travelers", strconv.Itoa(travelers))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, eris.Wrapf(err, "provider %s: create request", a.cfg.Name)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(a.cfg.APIKeyHeader, a.cfg.APIKey)

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "provider %s: send request", a.cfg.Name), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "provider %s: read response", a.cfg.Name)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("provider %s: unexpected status %d", a.cfg.Name, resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	return extractOffers(a.cfg.Name, body, a.cfg.ResultsPath)
}

// extractOffers pulls the offers array out of a JSON body. Array elements
// that are not objects are skipped.
func extractOffers(name string, body []byte, path string) ([]model.RawOffer, error) {
	if !gjson.ValidBytes(body) {
		return nil, eris.Errorf("provider %s: invalid json response", name)
	}

	res := gjson.ParseBytes(body)
	if path != "" {
		res = res.Get(path)
	}
	if !res.Exists() {
		return nil, nil
	}
	if !res.IsArray() {
		return nil, eris.Errorf("provider %s: results at %q are not an array", name, path)
	}

	var out []model.RawOffer
	res.ForEach(func(_, value gjson.Result) bool {
		if m, ok := value.Value().(map[string]any); ok {
			out = append(out, model.RawOffer(m))
		}
		return true
	})
	return out, nil
}

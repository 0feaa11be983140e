package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/travelsearch/internal/model"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 8000, cfg.Search.TimeoutMs)
	assert.Equal(t, 2, cfg.Search.Retries)
	assert.Equal(t, 500, cfg.Search.RetryBaseDelayMs)
	assert.True(t, cfg.Search.UseCache)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 300, cfg.Cache.TTLSeconds)
	assert.Equal(t, "localhost:6379", cfg.Cache.Redis.Address)
	assert.Equal(t, "travelsearch:", cfg.Cache.Redis.Prefix)
	assert.InDelta(t, 5.0, cfg.Decision.AbsTieThreshold, 0.001)
	assert.InDelta(t, 1.01, cfg.Decision.PctTieThreshold, 0.001)
	assert.InDelta(t, 0.03, cfg.Decision.GuardrailPct, 0.001)
	assert.InDelta(t, 0.5, cfg.Decision.MinEPCConfidence, 0.001)
	assert.Equal(t, 250, cfg.Decision.EPCLookupTimeoutMs)
	assert.InDelta(t, 0.005, cfg.Decision.Penalties.NonRefundable, 0.0001)
	assert.Equal(t, 240, cfg.Decision.Penalties.LayoverLimitMinutes)
	assert.Equal(t, "memory", cfg.EPC.Driver)
	assert.False(t, cfg.Circuit.Enabled)
	assert.Equal(t, 5, cfg.Circuit.FailureThreshold)
	assert.Equal(t, 30, cfg.Circuit.ResetTimeoutSecs)
	assert.True(t, cfg.Monitoring.Enabled)
	assert.Equal(t, 60, cfg.Monitoring.CheckIntervalSecs)
	assert.Empty(t, cfg.Providers)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
  format: console
server:
  port: 9090
cache:
  backend: redis
decision:
  trust:
    kiwi: 0.7
  default_epc:
    flights: 0.2
providers:
  - name: demo
    kind: fixture
    verticals: [flights, stays]
    fixture_path: fixtures/demo.yaml
    latency_ms: 50
  - name: partner
    kind: http
    verticals: [cars]
    base_url: https://partner.example.com/search
    api_key: secret
    results_path: data.offers
    rate_per_sec: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	// Defaults still apply for unset values
	assert.Equal(t, 8000, cfg.Search.TimeoutMs)

	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, ProviderKindFixture, cfg.Providers[0].Kind)
	assert.Equal(t, []model.Vertical{model.VerticalFlights, model.VerticalStays}, cfg.Providers[0].ParsedVerticals())
	assert.Equal(t, "data.offers", cfg.Providers[1].ResultsPath)
	assert.InDelta(t, 5.0, cfg.Providers[1].RatePerSec, 0.001)

	eng, err := cfg.Decision.Engine()
	require.NoError(t, err)
	assert.InDelta(t, 0.7, eng.TrustFor("kiwi"), 0.001)
	assert.InDelta(t, 0.95, eng.TrustFor("expedia"), 0.001, "unlisted providers keep built-in trust")
	assert.InDelta(t, 0.2, eng.DefaultEPCFor(model.VerticalFlights), 0.001)
	assert.InDelta(t, 0.12, eng.DefaultEPCFor(model.VerticalStays), 0.001)

	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
cache:
  backend: redis
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("TRAVELSEARCH_CACHE_BACKEND", "memory")
	t.Setenv("TRAVELSEARCH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("TRAVELSEARCH_SERVER_PORT", "3000")
	t.Setenv("TRAVELSEARCH_SEARCH_USE_CACHE", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.False(t, cfg.Search.UseCache)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unclosed"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults(t *testing.T) *Config {
	t.Helper()
	chdirTemp(t)
	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"zero timeout", func(c *Config) { c.Search.TimeoutMs = 0 }, "search.timeout_ms"},
		{"negative retries", func(c *Config) { c.Search.Retries = -1 }, "search.retries"},
		{"negative check interval", func(c *Config) { c.Monitoring.CheckIntervalSecs = -1 }, "monitoring.check_interval_secs"},
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"unknown epc driver", func(c *Config) { c.EPC.Driver = "mysql" }, "epc.driver"},
		{"sqlite without path", func(c *Config) { c.EPC.Driver = "sqlite" }, "epc.database_url"},
		{"pct threshold below one", func(c *Config) { c.Decision.PctTieThreshold = 0.9 }, "pct_tie_threshold"},
		{"trust out of range", func(c *Config) { c.Decision.Trust = map[string]float64{"kiwi": 3} }, "trust"},
		{"default epc unknown vertical", func(c *Config) { c.Decision.DefaultEPC = map[string]float64{"trains": 0.1} }, "default_epc"},
		{"provider without name", func(c *Config) {
			c.Providers = []ProviderConfig{{Kind: ProviderKindFixture, FixturePath: "x.yaml"}}
		}, "name is required"},
		{"provider unknown kind", func(c *Config) {
			c.Providers = []ProviderConfig{{Name: "a", Kind: "soap"}}
		}, "unknown kind"},
		{"fixture without path", func(c *Config) {
			c.Providers = []ProviderConfig{{Name: "a", Kind: ProviderKindFixture}}
		}, "fixture_path"},
		{"http without base url", func(c *Config) {
			c.Providers = []ProviderConfig{{Name: "a", Kind: ProviderKindHTTP}}
		}, "base_url"},
		{"provider unknown vertical", func(c *Config) {
			c.Providers = []ProviderConfig{{Name: "a", Kind: ProviderKindFixture, FixturePath: "x", Verticals: []string{"trains"}}}
		}, "unknown vertical"},
		{"duplicate provider", func(c *Config) {
			c.Providers = []ProviderConfig{
				{Name: "a", Kind: ProviderKindFixture, FixturePath: "x"},
				{Name: "A", Kind: ProviderKindFixture, FixturePath: "y"},
			}
		}, "duplicate provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConversions(t *testing.T) {
	s := SearchConfig{TimeoutMs: 1500, Retries: 1, RetryBaseDelayMs: 100, UseCache: true}
	opts := s.Options()
	assert.Equal(t, 1500*time.Millisecond, opts.Timeout)
	assert.True(t, opts.UseCache)

	p := s.RetryPolicy()
	assert.Equal(t, 2, p.Attempts())
	assert.Equal(t, 100*time.Millisecond, p.BaseDelay)

	b := CircuitConfig{FailureThreshold: 3, ResetTimeoutSecs: 10}.BreakerConfig()
	assert.Equal(t, 3, b.FailureThreshold)
	assert.Equal(t, 10*time.Second, b.ResetTimeout)

	assert.Equal(t, 5*time.Minute, CacheConfig{TTLSeconds: 300}.TTL())
}

package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/travelsearch/internal/aggregate"
	"github.com/sells-group/travelsearch/internal/decision"
	"github.com/sells-group/travelsearch/internal/model"
	"github.com/sells-group/travelsearch/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Decision   DecisionConfig   `yaml:"decision" mapstructure:"decision"`
	EPC        EPCConfig        `yaml:"epc" mapstructure:"epc"`
	Circuit    CircuitConfig    `yaml:"circuit" mapstructure:"circuit"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Providers  []ProviderConfig `yaml:"providers" mapstructure:"providers"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// SearchConfig configures provider fan-out.
type SearchConfig struct {
	TimeoutMs        int  `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	Retries          int  `yaml:"retries" mapstructure:"retries"`
	RetryBaseDelayMs int  `yaml:"retry_base_delay_ms" mapstructure:"retry_base_delay_ms"`
	RetryMaxDelayMs  int  `yaml:"retry_max_delay_ms" mapstructure:"retry_max_delay_ms"`
	UseCache         bool `yaml:"use_cache" mapstructure:"use_cache"`
}

// CacheConfig selects and configures the offer cache.
type CacheConfig struct {
	Backend    string      `yaml:"backend" mapstructure:"backend"`
	TTLSeconds int         `yaml:"ttl_seconds" mapstructure:"ttl_seconds"`
	Redis      RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig configures the Redis cache backend.
type RedisConfig struct {
	Address  string `yaml:"address" mapstructure:"address"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
}

// DecisionConfig configures offer ranking.
type DecisionConfig struct {
	AbsTieThreshold    float64            `yaml:"abs_tie_threshold" mapstructure:"abs_tie_threshold"`
	PctTieThreshold    float64            `yaml:"pct_tie_threshold" mapstructure:"pct_tie_threshold"`
	GuardrailPct       float64            `yaml:"guardrail_pct" mapstructure:"guardrail_pct"`
	MinEPCConfidence   float64            `yaml:"min_epc_confidence" mapstructure:"min_epc_confidence"`
	EPCLookupTimeoutMs int                `yaml:"epc_lookup_timeout_ms" mapstructure:"epc_lookup_timeout_ms"`
	Penalties          decision.Penalties `yaml:"penalties" mapstructure:"penalties"`
	Trust              map[string]float64 `yaml:"trust" mapstructure:"trust"`
	DefaultTrust       float64            `yaml:"default_trust" mapstructure:"default_trust"`
	DefaultEPC         map[string]float64 `yaml:"default_epc" mapstructure:"default_epc"`
}

// EPCConfig configures the learned EPC store.
type EPCConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CircuitConfig configures per-provider circuit breakers.
type CircuitConfig struct {
	Enabled          bool `yaml:"enabled" mapstructure:"enabled"`
	FailureThreshold int  `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int  `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// MonitoringConfig configures the background provider health checker.
type MonitoringConfig struct {
	Enabled           bool   `yaml:"enabled" mapstructure:"enabled"`
	CheckIntervalSecs int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	WebhookURL        string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// Provider kinds.
const (
	ProviderKindFixture = "fixture"
	ProviderKindHTTP    = "http"
)

// ProviderConfig declares one provider adapter.
type ProviderConfig struct {
	Name         string   `yaml:"name" mapstructure:"name"`
	Kind         string   `yaml:"kind" mapstructure:"kind"`
	Verticals    []string `yaml:"verticals" mapstructure:"verticals"`
	FixturePath  string   `yaml:"fixture_path" mapstructure:"fixture_path"`
	LatencyMs    int      `yaml:"latency_ms" mapstructure:"latency_ms"`
	BaseURL      string   `yaml:"base_url" mapstructure:"base_url"`
	APIKey       string   `yaml:"api_key" mapstructure:"api_key"`
	APIKeyHeader string   `yaml:"api_key_header" mapstructure:"api_key_header"`
	ResultsPath  string   `yaml:"results_path" mapstructure:"results_path"`
	RatePerSec   float64  `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutMs    int      `yaml:"timeout_ms" mapstructure:"timeout_ms"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TRAVELSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	d := decision.DefaultConfig()
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("search.timeout_ms", 8000)
	v.SetDefault("search.retries", 2)
	v.SetDefault("search.retry_base_delay_ms", 500)
	v.SetDefault("search.retry_max_delay_ms", 10000)
	v.SetDefault("search.use_cache", true)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl_seconds", 300)
	v.SetDefault("cache.redis.address", "localhost:6379")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", "travelsearch:")
	v.SetDefault("decision.abs_tie_threshold", d.AbsTieThreshold)
	v.SetDefault("decision.pct_tie_threshold", d.PctTieThreshold)
	v.SetDefault("decision.guardrail_pct", d.GuardrailPct)
	v.SetDefault("decision.min_epc_confidence", d.MinEPCConfidence)
	v.SetDefault("decision.epc_lookup_timeout_ms", int(d.EPCLookupTimeout/time.Millisecond))
	v.SetDefault("decision.penalties.no_baggage", d.Penalties.NoBaggage)
	v.SetDefault("decision.penalties.no_carry_on", d.Penalties.NoCarryOn)
	v.SetDefault("decision.penalties.long_layover", d.Penalties.LongLayover)
	v.SetDefault("decision.penalties.non_refundable", d.Penalties.NonRefundable)
	v.SetDefault("decision.penalties.layover_limit_minutes", d.Penalties.LayoverLimitMinutes)
	v.SetDefault("decision.default_trust", d.DefaultTrust)
	v.SetDefault("epc.driver", "memory")
	v.SetDefault("circuit.enabled", false)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.check_interval_secs", 60)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks ranking thresholds, backends and provider entries.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Search.TimeoutMs <= 0 {
		errs = append(errs, "search.timeout_ms must be > 0")
	}
	if c.Search.Retries < 0 {
		errs = append(errs, "search.retries must be >= 0")
	}

	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, "cache.backend must be memory or redis")
	}
	switch c.EPC.Driver {
	case "memory", "sqlite", "postgres":
		if c.EPC.Driver != "memory" && c.EPC.DatabaseURL == "" {
			errs = append(errs, "epc.database_url is required for driver "+c.EPC.Driver)
		}
	default:
		errs = append(errs, "epc.driver must be memory, sqlite or postgres")
	}

	if c.Monitoring.CheckIntervalSecs < 0 {
		errs = append(errs, "monitoring.check_interval_secs must be >= 0")
	}

	if _, err := c.Decision.Engine(); err != nil {
		errs = append(errs, err.Error())
	}

	seen := make(map[string]bool)
	for i, p := range c.Providers {
		if err := p.validate(); err != nil {
			errs = append(errs, eris.Wrapf(err, "providers[%d]", i).Error())
			continue
		}
		name := strings.ToLower(p.Name)
		if seen[name] {
			errs = append(errs, "duplicate provider "+p.Name)
		}
		seen[name] = true
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (p ProviderConfig) validate() error {
	if p.Name == "" {
		return eris.New("name is required")
	}
	for _, v := range p.Verticals {
		if _, err := model.ParseVertical(v); err != nil {
			return err
		}
	}
	switch p.Kind {
	case ProviderKindFixture:
		if p.FixturePath == "" {
			return eris.Errorf("%s: fixture_path is required", p.Name)
		}
	case ProviderKindHTTP:
		if p.BaseURL == "" {
			return eris.Errorf("%s: base_url is required", p.Name)
		}
	default:
		return eris.Errorf("%s: unknown kind %q", p.Name, p.Kind)
	}
	if p.RatePerSec < 0 || p.LatencyMs < 0 || p.TimeoutMs < 0 {
		return eris.Errorf("%s: rate_per_sec, latency_ms and timeout_ms must be >= 0", p.Name)
	}
	return nil
}

// ParsedVerticals converts the configured vertical names. Invalid names are
// reported by Validate.
func (p ProviderConfig) ParsedVerticals() []model.Vertical {
	out := make([]model.Vertical, 0, len(p.Verticals))
	for _, s := range p.Verticals {
		if v, err := model.ParseVertical(s); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// Engine merges the configured values over the built-in ranking defaults.
// Trust and default EPC entries override per key.
func (c DecisionConfig) Engine() (decision.Config, error) {
	d := decision.DefaultConfig()
	d.AbsTieThreshold = c.AbsTieThreshold
	d.PctTieThreshold = c.PctTieThreshold
	d.GuardrailPct = c.GuardrailPct
	d.MinEPCConfidence = c.MinEPCConfidence
	d.DefaultTrust = c.DefaultTrust
	d.Penalties = c.Penalties
	if c.EPCLookupTimeoutMs > 0 {
		d.EPCLookupTimeout = time.Duration(c.EPCLookupTimeoutMs) * time.Millisecond
	}
	for name, t := range c.Trust {
		d.Trust[strings.ToLower(name)] = t
	}
	for name, epc := range c.DefaultEPC {
		v, err := model.ParseVertical(name)
		if err != nil {
			return d, eris.Wrap(err, "decision.default_epc")
		}
		d.DefaultEPC[v] = epc
	}
	return d, d.Validate()
}

// Options returns the default per-search options.
func (c SearchConfig) Options() aggregate.SearchOptions {
	return aggregate.SearchOptions{
		Timeout:  time.Duration(c.TimeoutMs) * time.Millisecond,
		UseCache: c.UseCache,
	}
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// RetryPolicy returns the provider retry policy.
func (c SearchConfig) RetryPolicy() resilience.Policy {
	return resilience.PolicyFrom(c.Retries, c.RetryBaseDelayMs, c.RetryMaxDelayMs)
}

// BreakerConfig returns the circuit breaker settings.
func (c CircuitConfig) BreakerConfig() resilience.BreakerConfig {
	return resilience.BreakerConfigFrom(c.FailureThreshold, c.ResetTimeoutSecs)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

package decision

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/travelsearch/internal/model"
)

// Penalties are additive price surcharges applied before ranking so that
// superficially cheap but low-quality offers rank lower.
type Penalties struct {
	NoBaggage           float64 `yaml:"no_baggage" mapstructure:"no_baggage"`
	NoCarryOn           float64 `yaml:"no_carry_on" mapstructure:"no_carry_on"`
	LongLayover         float64 `yaml:"long_layover" mapstructure:"long_layover"`
	NonRefundable       float64 `yaml:"non_refundable" mapstructure:"non_refundable"`
	LayoverLimitMinutes int     `yaml:"layover_limit_minutes" mapstructure:"layover_limit_minutes"`
}

// Config holds ranking thresholds and per-provider constants.
type Config struct {
	// AbsTieThreshold admits offers within this many currency units of the
	// cheapest into the tie set.
	AbsTieThreshold float64
	// PctTieThreshold admits offers whose price ratio to the cheapest is at
	// most this value (1.01 = within 1%).
	PctTieThreshold float64
	// GuardrailPct is the maximum fraction a winner may cost above the
	// cheapest offer.
	GuardrailPct float64
	// MinEPCConfidence gates learned EPC values.
	MinEPCConfidence float64
	// EPCLookupTimeout bounds each learned-EPC lookup.
	EPCLookupTimeout time.Duration

	Penalties Penalties

	// Trust is the payout reliability multiplier per provider, in [0,1].
	Trust map[string]float64
	// DefaultTrust applies to providers missing from Trust.
	DefaultTrust float64
	// DefaultEPC is the EPC assumed for offers whose provider sent none.
	DefaultEPC map[model.Vertical]float64
}

// DefaultConfig returns the production ranking settings.
func DefaultConfig() Config {
	return Config{
		AbsTieThreshold:  5.00,
		PctTieThreshold:  1.01,
		GuardrailPct:     0.03,
		MinEPCConfidence: 0.5,
		EPCLookupTimeout: 250 * time.Millisecond,
		Penalties: Penalties{
			NoBaggage:           0.03,
			NoCarryOn:           0.02,
			LongLayover:         0.01,
			NonRefundable:       0.005,
			LayoverLimitMinutes: 240,
		},
		Trust: map[string]float64{
			"expedia":       0.95,
			"booking":       0.95,
			"skyscanner":    0.90,
			"viator":        0.90,
			"getyourguide":  0.90,
			"travelpayouts": 0.85,
			"discovercars":  0.85,
			"kiwi":          0.80,
			"cruisedirect":  0.80,
		},
		DefaultTrust: 0.5,
		DefaultEPC: map[model.Vertical]float64{
			model.VerticalFlights:    0.05,
			model.VerticalStays:      0.12,
			model.VerticalCars:       0.08,
			model.VerticalPackages:   0.15,
			model.VerticalCruises:    0.10,
			model.VerticalActivities: 0.09,
		},
	}
}

// TrustFor returns the trust multiplier for provider.
func (c Config) TrustFor(provider string) float64 {
	if t, ok := c.Trust[strings.ToLower(provider)]; ok {
		return t
	}
	return c.DefaultTrust
}

// DefaultEPCFor returns the fallback EPC for vertical.
func (c Config) DefaultEPCFor(v model.Vertical) float64 {
	return c.DefaultEPC[v]
}

// Validate checks that thresholds are in range.
func (c Config) Validate() error {
	if c.AbsTieThreshold < 0 {
		return eris.New("decision: abs_tie_threshold must be >= 0")
	}
	if c.PctTieThreshold < 1 {
		return eris.New("decision: pct_tie_threshold must be >= 1")
	}
	if c.GuardrailPct < 0 {
		return eris.New("decision: guardrail_pct must be >= 0")
	}
	if c.MinEPCConfidence < 0 || c.MinEPCConfidence > 1 {
		return eris.New("decision: min_epc_confidence must be in [0,1]")
	}
	if c.DefaultTrust < 0 || c.DefaultTrust > 1 {
		return eris.New("decision: default trust must be in [0,1]")
	}
	for name, t := range c.Trust {
		if t < 0 || t > 1 {
			return eris.Errorf("decision: trust for %s must be in [0,1], got %v", name, t)
		}
	}
	for v, epc := range c.DefaultEPC {
		if epc < 0 || epc > 1 {
			return eris.Errorf("decision: default epc for %s must be in [0,1], got %v", v, epc)
		}
	}
	p := c.Penalties
	if p.NoBaggage < 0 || p.NoCarryOn < 0 || p.LongLayover < 0 || p.NonRefundable < 0 {
		return eris.New("decision: penalties must be >= 0")
	}
	return nil
}

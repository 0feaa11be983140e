package model

import "time"

// RawOffer is a loosely typed offer payload as returned by a provider.
// Nested objects are addressed with dotted paths during normalization.
type RawOffer map[string]any

// Offer is the canonical, provider-independent unit of comparison.
type Offer struct {
	ID       string   `json:"id"`
	Provider string   `json:"provider"`
	Vertical Vertical `json:"vertical"`

	Title    string `json:"title,omitempty"`
	DeepLink string `json:"deep_link,omitempty"`
	ImageURL string `json:"image_url,omitempty"`

	BasePrice  float64 `json:"base_price"`
	TaxesFees  float64 `json:"taxes_fees"`
	TotalPrice float64 `json:"total_price"` // derived; recomputed before every comparison
	Currency   string  `json:"currency"`

	Rating      float64 `json:"rating"` // 0-5
	ReviewCount int     `json:"review_count"`
	Refundable  *bool   `json:"refundable,omitempty"` // nil = unknown

	EPC float64 `json:"epc"` // earnings per click, 0-1

	Flight   *FlightDetails   `json:"flight,omitempty"`
	Stay     *StayDetails     `json:"stay,omitempty"`
	Car      *CarDetails      `json:"car,omitempty"`
	Activity *ActivityDetails `json:"activity,omitempty"`
	Cruise   *CruiseDetails   `json:"cruise,omitempty"`

	IsCheapest  bool `json:"is_cheapest"`
	IsBestValue bool `json:"is_best_value"`
}

// Key identifies an offer across merged provider results.
func (o Offer) Key() string {
	return o.Provider + "/" + o.ID
}

// FlightDetails holds flight-only attributes. Tri-state flags are pointers.
type FlightDetails struct {
	Airline         string `json:"airline,omitempty"`
	Stops           *int   `json:"stops,omitempty"`
	DurationMinutes *int   `json:"duration_minutes,omitempty"`
	LayoverMinutes  *int   `json:"layover_minutes,omitempty"`
	BaggageIncluded *bool  `json:"baggage_included,omitempty"`
	CarryOnIncluded *bool  `json:"carryon_included,omitempty"`
	DepartAt        string `json:"depart_at,omitempty"`
	ArriveAt        string `json:"arrive_at,omitempty"`
}

// StayDetails holds accommodation attributes.
type StayDetails struct {
	StarRating   *float64 `json:"star_rating,omitempty"`
	PropertyType string   `json:"property_type,omitempty"`
	Nights       *int     `json:"nights,omitempty"`
}

// CarDetails holds rental car attributes.
type CarDetails struct {
	CarClass     string `json:"car_class,omitempty"`
	Seats        *int   `json:"seats,omitempty"`
	Transmission string `json:"transmission,omitempty"`
}

// ActivityDetails holds tour and activity attributes.
type ActivityDetails struct {
	DurationMinutes *int   `json:"duration_minutes,omitempty"`
	Category        string `json:"category,omitempty"`
	MeetingPoint    string `json:"meeting_point,omitempty"`
}

// CruiseDetails holds cruise attributes.
type CruiseDetails struct {
	CruiseLine    string `json:"cruise_line,omitempty"`
	Ship          string `json:"ship,omitempty"`
	Nights        *int   `json:"nights,omitempty"`
	DeparturePort string `json:"departure_port,omitempty"`
}

// SearchParams describes one logical search across providers.
type SearchParams struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	StartDate   string `json:"start_date"` // YYYY-MM-DD
	EndDate     string `json:"end_date,omitempty"`
	Travelers   int    `json:"travelers"`
}

// ProviderResponse is the per-provider outcome of an aggregated search.
type ProviderResponse struct {
	Provider     string        `json:"provider"`
	Offers       []Offer       `json:"data"`
	Cached       bool          `json:"cached"`
	Fallback     bool          `json:"fallback,omitempty"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
}

// CacheProvider is the provider name of the synthetic response returned on a
// whole-search cache hit.
const CacheProvider = "cache"

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }

// IntPtr returns a pointer to n.
func IntPtr(n int) *int { return &n }

package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Vertical is a travel product category searched independently.
type Vertical string

const (
	VerticalFlights    Vertical = "flights"
	VerticalStays      Vertical = "stays"
	VerticalCars       Vertical = "cars"
	VerticalPackages   Vertical = "packages"
	VerticalCruises    Vertical = "cruises"
	VerticalActivities Vertical = "activities"
)

// ErrUnknownVertical is returned by ParseVertical for unrecognized names.
var ErrUnknownVertical = eris.New("unknown vertical")

// AllVerticals returns every supported vertical in declaration order.
func AllVerticals() []Vertical {
	return []Vertical{
		VerticalFlights,
		VerticalStays,
		VerticalCars,
		VerticalPackages,
		VerticalCruises,
		VerticalActivities,
	}
}

// ParseVertical converts a user-supplied name into a Vertical.
func ParseVertical(s string) (Vertical, error) {
	v := Vertical(strings.ToLower(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", eris.Wrapf(ErrUnknownVertical, "parse vertical %q", s)
	}
	return v, nil
}

// Valid reports whether v is one of the known verticals.
func (v Vertical) Valid() bool {
	for _, known := range AllVerticals() {
		if v == known {
			return true
		}
	}
	return false
}

func (v Vertical) String() string { return string(v) }

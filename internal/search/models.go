// Package search defines the unified search request and result schema shared
// by every supplier adapter and the aggregation pipeline.
package search

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

// Search errors.
var (
	ErrNoSegments        = errors.New("at least one segment is required")
	ErrInvalidTravelers  = errors.New("at least one adult traveler is required")
	ErrInvalidCategory   = errors.New("unknown search category")
	ErrInvalidDate       = errors.New("invalid segment date")
	ErrUnknownProvider   = errors.New("unknown provider code")
	ErrNoResults         = errors.New("no results from any provider")
	ErrBudgetExhausted   = errors.New("call budget exhausted")
	ErrProviderTimeout   = errors.New("provider call timed out")
	ErrProviderAuth      = errors.New("provider authentication failed")
	ErrMalformedResponse = errors.New("malformed provider response")
)

// Category identifies a travel inventory vertical.
type Category string

const (
	CategoryFlights     Category = "flights"
	CategoryHotels      Category = "hotels"
	CategoryCars        Category = "cars"
	CategoryExperiences Category = "experiences"
	CategoryPackages    Category = "packages"
)

// Categories lists every supported category.
var Categories = []Category{
	CategoryFlights,
	CategoryHotels,
	CategoryCars,
	CategoryExperiences,
	CategoryPackages,
}

// Valid reports whether the category is one of the supported verticals.
func (c Category) Valid() bool {
	switch c {
	case CategoryFlights, CategoryHotels, CategoryCars, CategoryExperiences, CategoryPackages:
		return true
	}
	return false
}

// CabinClass is the requested service class for flight searches.
type CabinClass string

const (
	CabinEconomy  CabinClass = "economy"
	CabinPremium  CabinClass = "premium_economy"
	CabinBusiness CabinClass = "business"
	CabinFirst    CabinClass = "first"
)

// Segment describes one leg of the trip being searched: an origin/destination
// pair for flights and cars, or a destination stay for hotels and experiences.
type Segment struct {
	// Origin is the departure location (IATA code or city) where applicable.
	Origin string `json:"origin,omitempty" validate:"omitempty,min=3,max=64"`

	// Destination is the arrival or stay location (required).
	Destination string `json:"destination" validate:"required,min=3,max=64"`

	// Date is the departure or check-in date.
	Date time.Time `json:"date" validate:"required"`

	// EndDate is the return or check-out date, zero if one-way / single day.
	EndDate time.Time `json:"endDate,omitempty"`

	// Rooms is the room composition for hotel searches (1 if unset).
	Rooms int `json:"rooms,omitempty" validate:"omitempty,min=1,max=8"`
}

// Nights returns the stay length in nights, minimum 1.
func (s Segment) Nights() int {
	if s.EndDate.IsZero() || !s.EndDate.After(s.Date) {
		return 1
	}
	return int(s.EndDate.Sub(s.Date).Hours() / 24)
}

// Travelers describes the traveling party.
type Travelers struct {
	Adults   int `json:"adults" validate:"required,min=1,max=9"`
	Children int `json:"children,omitempty" validate:"omitempty,min=0,max=8"`
	Infants  int `json:"infants,omitempty" validate:"omitempty,min=0,max=4"`
}

// Total returns the total traveler count.
func (t Travelers) Total() int {
	return t.Adults + t.Children + t.Infants
}

// Preferences carries optional user hints that influence provider selection
// and result boosting. All fields are optional.
type Preferences struct {
	// BudgetTier is "budget", "standard" or "luxury".
	BudgetTier string `json:"budgetTier,omitempty" validate:"omitempty,oneof=budget standard luxury"`

	// PreferredProviders boosts the named provider codes during selection.
	PreferredProviders []string `json:"preferredProviders,omitempty"`

	// PreferredCarriers boosts results operated by these airline codes.
	PreferredCarriers []string `json:"preferredCarriers,omitempty"`

	// PreferredChains boosts results from these hotel chains.
	PreferredChains []string `json:"preferredChains,omitempty"`
}

// Constraints are hard filters applied to results after normalization.
type Constraints struct {
	DirectOnly bool    `json:"directOnly,omitempty"`
	MaxStops   *int    `json:"maxStops,omitempty" validate:"omitempty,min=0,max=4"`
	MaxPrice   float64 `json:"maxPrice,omitempty" validate:"omitempty,min=0"`
}

// Request is the unified search request fanned out to supplier adapters.
type Request struct {
	// Category selects the inventory vertical.
	Category Category `json:"category" validate:"required"`

	// Segments is the trip legs, at least one.
	Segments []Segment `json:"segments" validate:"required,min=1,max=6,dive"`

	// Travelers is the traveling party, adults >= 1.
	Travelers Travelers `json:"travelers" validate:"required"`

	// Cabin is the service class for flight searches.
	Cabin CabinClass `json:"cabin,omitempty" validate:"omitempty,oneof=economy premium_economy business first"`

	// Currency is the requested price currency, defaults to USD.
	Currency string `json:"currency,omitempty" validate:"omitempty,len=3"`

	// Limit caps the number of returned results (0 = no cap).
	Limit int `json:"limit,omitempty" validate:"omitempty,min=1,max=200"`

	// Constraints are optional hard filters.
	Constraints Constraints `json:"constraints,omitempty"`

	// Provider forces a single named provider instead of automatic selection.
	// Empty or "auto" means automatic selection.
	Provider string `json:"provider,omitempty"`

	// Comprehensive widens selection from the routine top-3 to top-5.
	Comprehensive bool `json:"comprehensive,omitempty"`

	// SessionID is an optional caller session identifier for correlation.
	SessionID string `json:"sessionId,omitempty"`

	// Preferences are optional user hints.
	Preferences *Preferences `json:"preferences,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the request shape. It returns one of the package sentinel
// errors for the conditions the API maps to specific field errors, or the
// underlying validator error otherwise.
func (r *Request) Validate() error {
	if !r.Category.Valid() {
		return ErrInvalidCategory
	}
	if len(r.Segments) == 0 {
		return ErrNoSegments
	}
	if r.Travelers.Adults < 1 {
		return ErrInvalidTravelers
	}
	for _, seg := range r.Segments {
		if seg.Date.IsZero() {
			return ErrInvalidDate
		}
	}
	return validate.Struct(r)
}

// Normalize fills defaults so two equivalent requests hash identically.
func (r *Request) Normalize() {
	if r.Currency == "" {
		r.Currency = "USD"
	}
	if r.Cabin == "" && r.Category == CategoryFlights {
		r.Cabin = CabinEconomy
	}
	if r.Provider == "auto" {
		r.Provider = ""
	}
	for i := range r.Segments {
		if r.Segments[i].Rooms == 0 && r.Category == CategoryHotels {
			r.Segments[i].Rooms = 1
		}
	}
}

// Region returns the geographic region of the primary destination.
func (r *Request) Region() string {
	if len(r.Segments) == 0 {
		return ""
	}
	return RegionOf(r.Segments[0].Destination)
}

// RoundTrip reports whether the request includes a return segment.
func (r *Request) RoundTrip() bool {
	if len(r.Segments) >= 2 {
		return true
	}
	return len(r.Segments) == 1 && !r.Segments[0].EndDate.IsZero()
}

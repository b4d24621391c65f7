package search

import (
	"fmt"
	"time"
)

// Price is a monetary amount with currency and a preformatted display string.
type Price struct {
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Formatted string  `json:"formatted"`
}

// NewPrice builds a Price with the formatted display string filled in.
func NewPrice(amount float64, currency string) Price {
	return Price{
		Amount:    amount,
		Currency:  currency,
		Formatted: fmt.Sprintf("%s %.2f", currency, amount),
	}
}

// FlightSegment is a single flown segment within a leg.
type FlightSegment struct {
	Carrier          string    `json:"carrier"`
	CarrierName      string    `json:"carrierName,omitempty"`
	FlightNumber     string    `json:"flightNumber"`
	DepartureAirport string    `json:"departureAirport"`
	DepartureTime    time.Time `json:"departureTime"`
	ArrivalAirport   string    `json:"arrivalAirport"`
	ArrivalTime      time.Time `json:"arrivalTime"`
	DurationMinutes  int       `json:"durationMinutes"`
	Cabin            string    `json:"cabin,omitempty"`
}

// FlightLeg is an outbound or inbound journey made of one or more segments.
type FlightLeg struct {
	Segments        []FlightSegment `json:"segments"`
	Stops           int             `json:"stops"`
	DurationMinutes int             `json:"durationMinutes"`
}

// Derive recomputes the stop count and total duration from the segments.
// Stops is segment count minus one; duration is the sum of segment durations.
func (l *FlightLeg) Derive() {
	if len(l.Segments) == 0 {
		l.Stops = 0
		l.DurationMinutes = 0
		return
	}
	l.Stops = len(l.Segments) - 1
	total := 0
	for _, s := range l.Segments {
		total += s.DurationMinutes
	}
	l.DurationMinutes = total
}

// FlightDetails is the flight-specific part of a normalized result.
type FlightDetails struct {
	Outbound FlightLeg  `json:"outbound"`
	Inbound  *FlightLeg `json:"inbound,omitempty"`
}

// TotalDurationMinutes returns the combined duration of both legs.
func (f *FlightDetails) TotalDurationMinutes() int {
	total := f.Outbound.DurationMinutes
	if f.Inbound != nil {
		total += f.Inbound.DurationMinutes
	}
	return total
}

// RoomOffer is a bookable room within a hotel result.
type RoomOffer struct {
	Name               string `json:"name"`
	Price              Price  `json:"price"`
	Occupancy          int    `json:"occupancy"`
	FreeCancellation   bool   `json:"freeCancellation"`
	CancellationPolicy string `json:"cancellationPolicy,omitempty"`
}

// HotelDetails is the hotel-specific part of a normalized result.
type HotelDetails struct {
	Name        string      `json:"name"`
	City        string      `json:"city"`
	Country     string      `json:"country,omitempty"`
	StarRating  int         `json:"starRating,omitempty"`
	GuestRating float64     `json:"guestRating,omitempty"`
	Images      []string    `json:"images,omitempty"`
	Rooms       []RoomOffer `json:"rooms"`
}

// CarDetails is the car-rental-specific part of a normalized result.
type CarDetails struct {
	Vendor       string `json:"vendor"`
	VehicleClass string `json:"vehicleClass"`
	Transmission string `json:"transmission,omitempty"`
	Seats        int    `json:"seats,omitempty"`
	PickupPoint  string `json:"pickupPoint"`
	Unlimited    bool   `json:"unlimitedMileage,omitempty"`
}

// ExperienceDetails is the experience-specific part of a normalized result.
type ExperienceDetails struct {
	Title           string  `json:"title"`
	Location        string  `json:"location"`
	DurationMinutes int     `json:"durationMinutes,omitempty"`
	Rating          float64 `json:"rating,omitempty"`
	Category        string  `json:"category,omitempty"`
}

// Result is the normalized, provider-agnostic search result record. Exactly
// one of the category detail fields is populated, matching Category.
type Result struct {
	// ID is the engine-assigned result identifier.
	ID string `json:"id"`

	// Provider is the code of the supplier that produced the result.
	Provider string `json:"provider"`

	// SupplierRef is the supplier-assigned offer identifier, used for
	// deduplication across retries and detail lookups.
	SupplierRef string `json:"supplierRef"`

	// Category is the inventory vertical of the result.
	Category Category `json:"category"`

	// Price is the total price of the offer.
	Price Price `json:"price"`

	// Demo marks a synthetically generated fallback result. Demo results
	// are never live supplier inventory.
	Demo bool `json:"isDemo,omitempty"`

	Flight     *FlightDetails     `json:"flight,omitempty"`
	Hotel      *HotelDetails      `json:"hotel,omitempty"`
	Car        *CarDetails        `json:"car,omitempty"`
	Experience *ExperienceDetails `json:"experience,omitempty"`
}

// DedupeKey identifies an offer for deduplication: same provider plus same
// supplier-assigned reference collapse into one entry.
func (r *Result) DedupeKey() string {
	return r.Provider + ":" + r.SupplierRef
}

// DurationMinutes returns the category-specific secondary sort duration,
// zero when the category has no duration concept.
func (r *Result) DurationMinutes() int {
	switch {
	case r.Flight != nil:
		return r.Flight.TotalDurationMinutes()
	case r.Experience != nil:
		return r.Experience.DurationMinutes
	}
	return 0
}

// Stops returns the total stop count for flight results, zero otherwise.
func (r *Result) Stops() int {
	if r.Flight == nil {
		return 0
	}
	stops := r.Flight.Outbound.Stops
	if r.Flight.Inbound != nil {
		stops += r.Flight.Inbound.Stops
	}
	return stops
}

// PriceRange summarizes the price distribution of a result list.
type PriceRange struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Avg      float64 `json:"avg"`
	Currency string  `json:"currency"`
}

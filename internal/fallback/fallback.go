// Package fallback generates deterministic synthetic results when no live
// supplier produced anything usable. Synthetic results are always flagged
// demo so callers can distinguish them from live inventory.
package fallback

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/tripweave/tripweave/internal/search"
)

// Reason distinguishes why the fallback generator ran. The two outcomes are
// deliberately kept separate: an operator reacting to "no eligible
// providers" fixes configuration, one reacting to "all providers failed"
// investigates an outage.
type Reason string

const (
	// ReasonNone means the response contains live results.
	ReasonNone Reason = ""

	// ReasonNoEligibleProviders means selection produced an empty plan.
	ReasonNoEligibleProviders Reason = "no_eligible_providers"

	// ReasonAllProvidersFailed means every dispatched provider failed or
	// returned zero results.
	ReasonAllProvidersFailed Reason = "all_providers_failed"
)

const syntheticResultCount = 4

// Generate produces a deterministic, plausible result set from the request
// parameters alone. The same request always yields the same synthetic
// offers.
func Generate(req *search.Request) []search.Result {
	seed := seedFrom(req)
	results := make([]search.Result, 0, syntheticResultCount)

	for i := 0; i < syntheticResultCount; i++ {
		r := search.Result{
			ID:          fmt.Sprintf("demo-%s-%d", req.CacheKey()[len(req.Category)+1:][:8], i+1),
			Provider:    "demo",
			SupplierRef: fmt.Sprintf("demo-%d", i+1),
			Category:    req.Category,
			Demo:        true,
		}

		price := basePrice(req.Category) * (1 + float64((seed+uint64(i)*37)%50)/100.0)
		price *= float64(req.Travelers.Adults)
		r.Price = search.NewPrice(round2(price), req.Currency)

		switch req.Category {
		case search.CategoryFlights, search.CategoryPackages:
			r.Flight = syntheticFlight(req, seed, i)
		case search.CategoryHotels:
			r.Hotel = syntheticHotel(req, seed, i)
		case search.CategoryCars:
			r.Car = syntheticCar(seed, i)
		case search.CategoryExperiences:
			r.Experience = syntheticExperience(req, seed, i)
		}

		results = append(results, r)
	}

	return results
}

func seedFrom(req *search.Request) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(req.CacheKey()))
	return h.Sum64()
}

func basePrice(c search.Category) float64 {
	switch c {
	case search.CategoryFlights:
		return 320
	case search.CategoryHotels:
		return 140
	case search.CategoryCars:
		return 55
	case search.CategoryExperiences:
		return 45
	case search.CategoryPackages:
		return 620
	}
	return 100
}

func syntheticFlight(req *search.Request, seed uint64, i int) *search.FlightDetails {
	seg := req.Segments[0]
	carriers := []string{"DM", "WX", "TV", "AZ"}
	carrier := carriers[(seed+uint64(i))%uint64(len(carriers))]

	departure := seg.Date.Add(time.Duration(6+(seed+uint64(i)*3)%12) * time.Hour)
	duration := 300 + int((seed+uint64(i)*53)%240)

	outbound := search.FlightLeg{
		Segments: []search.FlightSegment{{
			Carrier:          carrier,
			FlightNumber:     fmt.Sprintf("%s%d", carrier, 100+(seed+uint64(i))%800),
			DepartureAirport: seg.Origin,
			DepartureTime:    departure,
			ArrivalAirport:   seg.Destination,
			ArrivalTime:      departure.Add(time.Duration(duration) * time.Minute),
			DurationMinutes:  duration,
		}},
	}
	outbound.Derive()

	flight := &search.FlightDetails{Outbound: outbound}

	if req.RoundTrip() {
		returnDate := seg.EndDate
		if returnDate.IsZero() && len(req.Segments) > 1 {
			returnDate = req.Segments[1].Date
		}
		if !returnDate.IsZero() {
			back := returnDate.Add(time.Duration(8+(seed+uint64(i)*7)%10) * time.Hour)
			inbound := search.FlightLeg{
				Segments: []search.FlightSegment{{
					Carrier:          carrier,
					FlightNumber:     fmt.Sprintf("%s%d", carrier, 101+(seed+uint64(i))%800),
					DepartureAirport: seg.Destination,
					DepartureTime:    back,
					ArrivalAirport:   seg.Origin,
					ArrivalTime:      back.Add(time.Duration(duration) * time.Minute),
					DurationMinutes:  duration,
				}},
			}
			inbound.Derive()
			flight.Inbound = &inbound
		}
	}

	return flight
}

func syntheticHotel(req *search.Request, seed uint64, i int) *search.HotelDetails {
	names := []string{"Central Plaza", "Harbor View", "Garden Court", "Old Town Inn"}
	stars := 3 + int((seed+uint64(i))%3)

	return &search.HotelDetails{
		Name:        fmt.Sprintf("%s %s", req.Segments[0].Destination, names[(seed+uint64(i))%uint64(len(names))]),
		City:        req.Segments[0].Destination,
		StarRating:  stars,
		GuestRating: 7.0 + float64((seed+uint64(i)*11)%25)/10.0,
		Rooms: []search.RoomOffer{{
			Name:             "Standard Double",
			Price:            search.NewPrice(round2(basePrice(search.CategoryHotels)*(1+float64((seed+uint64(i)*37)%50)/100.0)), req.Currency),
			Occupancy:        2,
			FreeCancellation: i%2 == 0,
		}},
	}
}

func syntheticCar(seed uint64, i int) *search.CarDetails {
	classes := []string{"economy", "compact", "intermediate", "suv"}
	return &search.CarDetails{
		Vendor:       "Demo Rentals",
		VehicleClass: classes[(seed+uint64(i))%uint64(len(classes))],
		Transmission: "automatic",
		Seats:        5,
		PickupPoint:  "Airport Terminal",
		Unlimited:    true,
	}
}

func syntheticExperience(req *search.Request, seed uint64, i int) *search.ExperienceDetails {
	titles := []string{"City Walking Tour", "Food & Market Tour", "Museum Skip-the-Line", "Sunset Cruise"}
	return &search.ExperienceDetails{
		Title:           titles[(seed+uint64(i))%uint64(len(titles))],
		Location:        req.Segments[0].Destination,
		DurationMinutes: 90 + int((seed+uint64(i)*17)%120),
		Rating:          4.0 + float64((seed+uint64(i))%10)/10.0,
	}
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

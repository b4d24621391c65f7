// Package aggregate merges per-provider result lists into one ranked list.
package aggregate

import (
	"sort"

	"github.com/tripweave/tripweave/internal/search"
)

// Merge combines the per-provider result lists, drops exact duplicates
// (same provider code plus same supplier-assigned reference), applies the
// request's hard constraints and re-derives a global order. The input lists
// are never mutated; each provider's own ordering is discarded. The full
// merged list is always returned; per-request result limits are applied at
// response assembly so the cached list stays complete.
func Merge(lists [][]search.Result, req *search.Request) []search.Result {
	total := 0
	for _, l := range lists {
		total += len(l)
	}

	seen := make(map[string]struct{}, total)
	merged := make([]search.Result, 0, total)

	for _, list := range lists {
		for _, r := range list {
			key := r.DedupeKey()
			if _, dup := seen[key]; dup {
				continue
			}
			if !passesConstraints(&r, req) {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, r)
		}
	}

	Sort(merged)

	return merged
}

// Sort orders results ascending by total price. Ties break on the
// category-specific secondary key: shorter duration for flights and
// experiences, higher guest rating for hotels.
func Sort(results []search.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Price.Amount != results[j].Price.Amount {
			return results[i].Price.Amount < results[j].Price.Amount
		}
		if results[i].Hotel != nil && results[j].Hotel != nil {
			return results[i].Hotel.GuestRating > results[j].Hotel.GuestRating
		}
		return results[i].DurationMinutes() < results[j].DurationMinutes()
	})
}

// Summarize computes the min/max/avg price range over the final list.
func Summarize(results []search.Result) search.PriceRange {
	if len(results) == 0 {
		return search.PriceRange{}
	}

	pr := search.PriceRange{
		Min:      results[0].Price.Amount,
		Max:      results[0].Price.Amount,
		Currency: results[0].Price.Currency,
	}

	sum := 0.0
	for _, r := range results {
		amount := r.Price.Amount
		if amount < pr.Min {
			pr.Min = amount
		}
		if amount > pr.Max {
			pr.Max = amount
		}
		sum += amount
	}
	pr.Avg = sum / float64(len(results))

	return pr
}

func passesConstraints(r *search.Result, req *search.Request) bool {
	if req.Constraints.MaxPrice > 0 && r.Price.Amount > req.Constraints.MaxPrice {
		return false
	}
	if r.Flight != nil {
		if req.Constraints.DirectOnly && r.Stops() > 0 {
			return false
		}
		if req.Constraints.MaxStops != nil && r.Stops() > *req.Constraints.MaxStops {
			return false
		}
	}
	return true
}

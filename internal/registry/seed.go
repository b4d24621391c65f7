package registry

import "github.com/tripweave/tripweave/internal/search"

// DefaultProviders returns the built-in supplier catalog used to seed an
// empty database on first boot.
func DefaultProviders() []Provider {
	return []Provider{
		{
			Code:            "skylarkair",
			Name:            "Skylark Air",
			Categories:      []search.Category{search.CategoryFlights},
			StrongRegions:   []string{"NA", "EU"},
			CoverageRegions: []string{"APAC", "LATAM"},
			Priority:        8,
			CostPerCall:     2.5,
			Enabled:         true,
		},
		{
			Code:            "globehop",
			Name:            "GlobeHop",
			Categories:      []search.Category{search.CategoryFlights, search.CategoryPackages},
			StrongRegions:   []string{"APAC", "MEA"},
			CoverageRegions: []string{"EU", "NA", "LATAM"},
			Priority:        6,
			CostPerCall:     1.0,
			Enabled:         true,
		},
		{
			Code:            "roomly",
			Name:            "Roomly",
			Categories:      []search.Category{search.CategoryHotels, search.CategoryPackages},
			StrongRegions:   []string{"EU", "NA"},
			CoverageRegions: []string{"APAC", "LATAM", "MEA"},
			Priority:        7,
			CostPerCall:     1.5,
			Enabled:         true,
		},
		{
			Code:            "driveo",
			Name:            "Driveo",
			Categories:      []search.Category{search.CategoryCars},
			StrongRegions:   []string{"NA", "EU"},
			CoverageRegions: []string{"APAC"},
			Priority:        5,
			CostPerCall:     0.8,
			Enabled:         true,
		},
		{
			Code:            "venturex",
			Name:            "VentureX",
			Categories:      []search.Category{search.CategoryExperiences},
			StrongRegions:   []string{"EU", "APAC"},
			CoverageRegions: []string{"NA", "LATAM", "MEA"},
			Priority:        5,
			CostPerCall:     0.5,
			Enabled:         true,
		},
	}
}

// DefaultRules returns the built-in routing rules applied when the database
// holds none.
func DefaultRules() []RoutingRule {
	return []RoutingRule{
		{
			ID:          "boost-globehop-apac-flights",
			Category:    search.CategoryFlights,
			Region:      "APAC",
			Provider:    "globehop",
			Boost:       10,
			Description: "GlobeHop has direct APAC carrier contracts",
		},
		{
			ID:          "boost-roomly-eu-hotels",
			Category:    search.CategoryHotels,
			Region:      "EU",
			Provider:    "roomly",
			Boost:       8,
			Description: "Roomly owns EU boutique inventory",
		},
		{
			ID:          "penalize-skylarkair-latam",
			Category:    search.CategoryFlights,
			Region:      "LATAM",
			Provider:    "skylarkair",
			Boost:       -5,
			Description: "Skylark LATAM fares arrive stale, prefer alternatives",
		},
	}
}

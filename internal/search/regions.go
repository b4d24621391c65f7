package search

import "strings"

// Geographic regions used for provider routing.
const (
	RegionNorthAmerica = "NA"
	RegionEurope       = "EU"
	RegionAsiaPacific  = "APAC"
	RegionLatinAmerica = "LATAM"
	RegionMiddleEast   = "MEA"
)

// airportRegions maps common IATA airport and metro codes to regions. The
// table covers the destinations the mobile app actually sees; unknown codes
// fall back to a city-name heuristic and finally to empty.
var airportRegions = map[string]string{
	// North America
	"JFK": RegionNorthAmerica, "EWR": RegionNorthAmerica, "LGA": RegionNorthAmerica,
	"LAX": RegionNorthAmerica, "SFO": RegionNorthAmerica, "ORD": RegionNorthAmerica,
	"MIA": RegionNorthAmerica, "BOS": RegionNorthAmerica, "SEA": RegionNorthAmerica,
	"YYZ": RegionNorthAmerica, "YVR": RegionNorthAmerica, "ATL": RegionNorthAmerica,
	"DFW": RegionNorthAmerica, "DEN": RegionNorthAmerica, "NYC": RegionNorthAmerica,
	// Europe
	"CDG": RegionEurope, "ORY": RegionEurope, "LHR": RegionEurope, "LGW": RegionEurope,
	"AMS": RegionEurope, "FRA": RegionEurope, "MUC": RegionEurope, "MAD": RegionEurope,
	"BCN": RegionEurope, "FCO": RegionEurope, "MXP": RegionEurope, "LIS": RegionEurope,
	"VIE": RegionEurope, "ZRH": RegionEurope, "CPH": RegionEurope, "ARN": RegionEurope,
	"DUB": RegionEurope, "ATH": RegionEurope, "PRG": RegionEurope, "PAR": RegionEurope,
	"LON": RegionEurope, "ROM": RegionEurope, "BER": RegionEurope, "TXL": RegionEurope,
	// Asia Pacific
	"NRT": RegionAsiaPacific, "HND": RegionAsiaPacific, "ICN": RegionAsiaPacific,
	"PEK": RegionAsiaPacific, "PVG": RegionAsiaPacific, "HKG": RegionAsiaPacific,
	"SIN": RegionAsiaPacific, "BKK": RegionAsiaPacific, "SYD": RegionAsiaPacific,
	"MEL": RegionAsiaPacific, "AKL": RegionAsiaPacific, "DPS": RegionAsiaPacific,
	"TYO": RegionAsiaPacific, "KUL": RegionAsiaPacific, "DEL": RegionAsiaPacific,
	"BOM": RegionAsiaPacific,
	// Latin America
	"GRU": RegionLatinAmerica, "GIG": RegionLatinAmerica, "EZE": RegionLatinAmerica,
	"SCL": RegionLatinAmerica, "BOG": RegionLatinAmerica, "LIM": RegionLatinAmerica,
	"MEX": RegionLatinAmerica, "CUN": RegionLatinAmerica, "SJO": RegionLatinAmerica,
	// Middle East & Africa
	"DXB": RegionMiddleEast, "AUH": RegionMiddleEast, "DOH": RegionMiddleEast,
	"TLV": RegionMiddleEast, "CAI": RegionMiddleEast, "JNB": RegionMiddleEast,
	"CPT": RegionMiddleEast, "RAK": RegionMiddleEast, "NBO": RegionMiddleEast,
}

var cityRegions = map[string]string{
	"new york": RegionNorthAmerica, "los angeles": RegionNorthAmerica,
	"san francisco": RegionNorthAmerica, "chicago": RegionNorthAmerica,
	"miami": RegionNorthAmerica, "toronto": RegionNorthAmerica,
	"vancouver": RegionNorthAmerica, "boston": RegionNorthAmerica,
	"paris": RegionEurope, "london": RegionEurope, "amsterdam": RegionEurope,
	"rome": RegionEurope, "barcelona": RegionEurope, "madrid": RegionEurope,
	"berlin": RegionEurope, "lisbon": RegionEurope, "vienna": RegionEurope,
	"prague": RegionEurope, "athens": RegionEurope, "dublin": RegionEurope,
	"tokyo": RegionAsiaPacific, "seoul": RegionAsiaPacific, "bangkok": RegionAsiaPacific,
	"singapore": RegionAsiaPacific, "sydney": RegionAsiaPacific, "bali": RegionAsiaPacific,
	"hong kong": RegionAsiaPacific, "kyoto": RegionAsiaPacific,
	"mexico city": RegionLatinAmerica, "cancun": RegionLatinAmerica,
	"rio de janeiro": RegionLatinAmerica, "buenos aires": RegionLatinAmerica,
	"lima": RegionLatinAmerica, "bogota": RegionLatinAmerica,
	"dubai": RegionMiddleEast, "doha": RegionMiddleEast, "cape town": RegionMiddleEast,
	"marrakech": RegionMiddleEast, "cairo": RegionMiddleEast, "tel aviv": RegionMiddleEast,
}

// RegionOf resolves a destination (IATA code or city name) to a region.
// Returns an empty string when the destination is unknown.
func RegionOf(destination string) string {
	dest := strings.TrimSpace(destination)
	if dest == "" {
		return ""
	}

	if len(dest) == 3 {
		if region, ok := airportRegions[strings.ToUpper(dest)]; ok {
			return region
		}
	}

	if region, ok := cityRegions[strings.ToLower(dest)]; ok {
		return region
	}

	return ""
}

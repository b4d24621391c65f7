package search

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// CacheKey derives a stable cache key from the normalized request. Two
// requests that differ only in session identifiers or preference hints hash
// to the same key; anything that changes supplier queries changes the key.
func (r *Request) CacheKey() string {
	var b strings.Builder

	b.WriteString(string(r.Category))
	for _, seg := range r.Segments {
		fmt.Fprintf(&b, "|%s>%s@%s", strings.ToUpper(seg.Origin), strings.ToUpper(seg.Destination), seg.Date.Format("2006-01-02"))
		if !seg.EndDate.IsZero() {
			fmt.Fprintf(&b, "-%s", seg.EndDate.Format("2006-01-02"))
		}
		if seg.Rooms > 0 {
			fmt.Fprintf(&b, "r%d", seg.Rooms)
		}
	}
	fmt.Fprintf(&b, "|a%dc%di%d", r.Travelers.Adults, r.Travelers.Children, r.Travelers.Infants)
	fmt.Fprintf(&b, "|%s|%s", r.Cabin, r.Currency)

	if r.Constraints.DirectOnly {
		b.WriteString("|direct")
	}
	if r.Constraints.MaxStops != nil {
		fmt.Fprintf(&b, "|s%d", *r.Constraints.MaxStops)
	}
	if r.Constraints.MaxPrice > 0 {
		fmt.Fprintf(&b, "|p%.2f", r.Constraints.MaxPrice)
	}
	if r.Provider != "" {
		fmt.Fprintf(&b, "|only:%s", r.Provider)
	}
	if r.Comprehensive {
		b.WriteString("|wide")
	}
	if r.Preferences != nil && len(r.Preferences.PreferredCarriers) > 0 {
		carriers := append([]string(nil), r.Preferences.PreferredCarriers...)
		sort.Strings(carriers)
		fmt.Fprintf(&b, "|cx:%s", strings.Join(carriers, ","))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return string(r.Category) + ":" + hex.EncodeToString(sum[:16])
}

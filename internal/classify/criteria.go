package classify

import (
	"strings"

	"github.com/luxkey/listing-ingest/internal/model"
)

// CheckValue applies the minimum-value gate. A zero threshold disables the
// gate entirely; with a threshold set, an absent price is its own reason.
func CheckValue(price *float64, minValue float64) (model.SkipReason, bool) {
	if minValue <= 0 {
		return "", true
	}
	if price == nil {
		return model.SkipMissingValue, false
	}
	if *price < minValue {
		return model.SkipBelowMinValue, false
	}
	return "", true
}

// CheckMinBeds applies the minimum-bedrooms gate. Absent beds fail a set gate.
func CheckMinBeds(beds *int, minBeds int) bool {
	if minBeds <= 0 {
		return true
	}
	return beds != nil && *beds >= minBeds
}

// CheckMinBaths applies the minimum-bathrooms gate.
func CheckMinBaths(baths *float64, minBaths float64) bool {
	if minBaths <= 0 {
		return true
	}
	return baths != nil && *baths >= minBaths
}

// MatchesWhitelist reports whether the record's type string contains any of
// the caller-supplied tokens (case-insensitive substring). An empty token
// list means no whitelist was requested and everything passes. An empty type
// string never matches a non-empty whitelist.
func MatchesWhitelist(propType string, tokens []string) bool {
	if len(tokens) == 0 {
		return true
	}
	t := strings.ToLower(strings.TrimSpace(propType))
	if t == "" {
		return false
	}
	for _, tok := range tokens {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok != "" && strings.Contains(t, tok) {
			return true
		}
	}
	return false
}

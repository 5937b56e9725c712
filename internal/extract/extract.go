// Package extract pulls typed values out of heterogeneous provider JSON.
//
// Provider payloads vary by plan tier and actor version, so each logical
// field is resolved against an ordered list of candidate paths, most
// reliable first. Extractors return nil on absence or wrong type; they
// never error.
package extract

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	// Raw lot values below this are assumed to be acres and converted to
	// square feet. Values at or above it are taken as already-sqft.
	acreThreshold = 200
	sqftPerAcre   = 43560

	sqftToM2 = 0.092903
)

// Number returns the first candidate path that resolves to a finite number.
// Numeric strings ("25.774", "1,250,000") are accepted.
func Number(raw []byte, paths ...string) *float64 {
	for _, path := range paths {
		res := gjson.GetBytes(raw, path)
		if n, ok := numeric(res); ok {
			return &n
		}
	}
	return nil
}

// Int resolves like Number and truncates to an integer.
func Int(raw []byte, paths ...string) *int {
	n := Number(raw, paths...)
	if n == nil {
		return nil
	}
	i := int(*n)
	return &i
}

// String returns the first candidate path holding a non-empty string after
// trimming whitespace.
func String(raw []byte, paths ...string) *string {
	for _, path := range paths {
		res := gjson.GetBytes(raw, path)
		if res.Type != gjson.String {
			continue
		}
		s := strings.TrimSpace(res.String())
		if s != "" {
			return &s
		}
	}
	return nil
}

// ID returns the first candidate path holding a non-empty string or a
// number, rendered as a string. Provider record ids show up as either.
func ID(raw []byte, paths ...string) *string {
	for _, path := range paths {
		res := gjson.GetBytes(raw, path)
		switch res.Type {
		case gjson.String:
			if s := strings.TrimSpace(res.String()); s != "" {
				return &s
			}
		case gjson.Number:
			s := strconv.FormatFloat(res.Float(), 'f', -1, 64)
			return &s
		}
	}
	return nil
}

// Strings collects every non-empty string under the candidate paths,
// preserving order. Array paths (gjson "#" syntax) expand in place.
func Strings(raw []byte, paths ...string) []string {
	var out []string
	for _, path := range paths {
		res := gjson.GetBytes(raw, path)
		if !res.Exists() {
			continue
		}
		if res.IsArray() {
			for _, el := range res.Array() {
				if el.Type != gjson.String {
					continue
				}
				if s := strings.TrimSpace(el.String()); s != "" {
					out = append(out, s)
				}
			}
			continue
		}
		if res.Type == gjson.String {
			if s := strings.TrimSpace(res.String()); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// LotSqft resolves a lot-size field and normalizes it to square feet.
// Providers report lot size in acres or square feet without saying which;
// small values are assumed to be acres. Best effort by construction.
func LotSqft(raw []byte, paths ...string) *float64 {
	v := Number(raw, paths...)
	if v == nil || *v <= 0 {
		return nil
	}
	sqft := *v
	if sqft < acreThreshold {
		sqft = sqft * sqftPerAcre
	}
	return &sqft
}

// SqftToM2 converts square feet to whole square meters. The conversion is
// lossy and not round-trippable.
func SqftToM2(sqft float64) int {
	return int(math.Round(sqft * sqftToM2))
}

// numeric coerces a gjson result to a finite float64. Accepts JSON numbers
// and numeric strings; commas and leading currency markers are stripped.
func numeric(res gjson.Result) (float64, bool) {
	switch res.Type {
	case gjson.Number:
		n := res.Float()
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case gjson.String:
		s := strings.TrimSpace(res.String())
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, ",", "")
		if s == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

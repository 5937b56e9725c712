// Package classify gates raw property records into "in scope" vs "skip".
package classify

import "strings"

// denyKeywords reject a property type outright. A deny hit wins even when an
// allow keyword also appears elsewhere in the string.
var denyKeywords = []string{
	"commercial",
	"office",
	"retail",
	"industrial",
	"warehouse",
	"hotel",
	"motel",
	"land",
	"farm",
	"agricultural",
	"ranch",
	"mobile",
	"manufactured",
	"timeshare",
	"time share",
	"parking",
	"storage",
	"mixed use",
	"mixed-use",
}

// allowKeywords accept a property type once the deny list has been cleared.
var allowKeywords = []string{
	"single family",
	"single-family",
	"sfr",
	"residential",
	"condo",
	"condominium",
	"townhouse",
	"townhome",
	"town house",
	"villa",
	"duplex",
	"triplex",
	"fourplex",
	"multi family",
	"multi-family",
	"multifamily",
	"apartment",
	"house",
	"cabin",
	"bungalow",
	"penthouse",
	"coop",
	"co-op",
}

// Residential decides whether a record is a residential property.
//
// Priority order: an explicit property-class code of "R" or any "RES"-prefixed
// value is residential; otherwise the free-text type is checked against the
// deny list (any hit rejects) and then the allow list (any hit accepts).
//
// acceptUnknown controls the default when the type string is empty or matches
// neither list. The ATTOM path rejects unknowns; the Realtor path accepts
// them ("don't block if missing") — the two providers genuinely differ here.
func Residential(class, propType string, acceptUnknown bool) bool {
	c := strings.ToUpper(strings.TrimSpace(class))
	if c == "R" || strings.HasPrefix(c, "RES") {
		return true
	}

	t := strings.ToLower(strings.TrimSpace(propType))
	if t != "" {
		for _, kw := range denyKeywords {
			if strings.Contains(t, kw) {
				return false
			}
		}
		for _, kw := range allowKeywords {
			if strings.Contains(t, kw) {
				return true
			}
		}
	}

	return acceptUnknown
}

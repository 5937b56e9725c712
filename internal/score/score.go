// Package score derives per-listing quality signals from extracted fields.
package score

// Price-confidence tiers, assigned by which pricing source resolved the
// value. Absence of any price is handled by the value gate before scoring.
const (
	ConfidenceAVM        = 85 // direct automated-valuation hit
	ConfidenceListing    = 70 // scraped listing price
	ConfidenceAssessment = 55 // assessment-market fallback
)

// Checklist records which logical fields were resolved for a candidate.
type Checklist struct {
	Address   bool
	Coords    bool // both lat and lng
	Type      bool
	Beds      bool
	Baths     bool
	BuiltArea bool
	Price     bool
}

// completeness weights sum to exactly 100.
var weights = []struct {
	present func(Checklist) bool
	weight  int
}{
	{func(c Checklist) bool { return c.Address }, 20},
	{func(c Checklist) bool { return c.Coords }, 15},
	{func(c Checklist) bool { return c.Type }, 15},
	{func(c Checklist) bool { return c.Beds }, 10},
	{func(c Checklist) bool { return c.Baths }, 10},
	{func(c Checklist) bool { return c.BuiltArea }, 15},
	{func(c Checklist) bool { return c.Price }, 15},
}

// Completeness returns the 0-100 data-completeness score for the checklist.
func Completeness(c Checklist) int {
	total := 0
	for _, w := range weights {
		if w.present(c) {
			total += w.weight
		}
	}
	if total > 100 {
		total = 100
	}
	return total
}

package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompleteness(t *testing.T) {
	tests := []struct {
		name string
		c    Checklist
		want int
	}{
		{"nothing", Checklist{}, 0},
		{"address only", Checklist{Address: true}, 20},
		{"coords only", Checklist{Coords: true}, 15},
		{"beds and baths", Checklist{Beds: true, Baths: true}, 20},
		{
			"typical attom record",
			Checklist{Address: true, Coords: true, Type: true, Beds: true, BuiltArea: true},
			75,
		},
		{
			"everything",
			Checklist{Address: true, Coords: true, Type: true, Beds: true, Baths: true, BuiltArea: true, Price: true},
			100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Completeness(tt.c))
		})
	}
}

func TestConfidenceTiers(t *testing.T) {
	// Tier ordering is what downstream ranking relies on.
	assert.Greater(t, ConfidenceAVM, ConfidenceListing)
	assert.Greater(t, ConfidenceListing, ConfidenceAssessment)
}

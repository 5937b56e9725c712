package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/luxkey/listing-ingest/internal/model"
)

func TestResidential(t *testing.T) {
	tests := []struct {
		name          string
		class         string
		propType      string
		acceptUnknown bool
		want          bool
	}{
		{"class R wins", "R", "", false, true},
		{"class RES prefix wins", "RESIDENTIAL", "", false, true},
		{"class lowercased", "r", "", false, true},
		{"class R overrides deny type", "R", "Commercial", false, true},

		{"single family allowed", "", "Single Family Residence", false, true},
		{"condo allowed", "", "Condo/Townhome", false, true},
		{"sfr allowed", "", "SFR", false, true},

		{"land denied", "", "LAND", true, false},
		{"commercial denied", "", "Commercial Building", true, false},
		{"mobile home denied", "", "Mobile Home", true, false},
		{"deny beats allow", "", "Residential Land", true, false},

		{"unknown type strict", "", "", false, false},
		{"unknown type lenient", "", "", true, true},
		{"unmatched type strict", "", "Zoning Parcel A7", false, false},
		{"unmatched type lenient", "", "Zoning Parcel A7", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Residential(tt.class, tt.propType, tt.acceptUnknown))
		})
	}
}

func TestCheckValue(t *testing.T) {
	price := func(v float64) *float64 { return &v }

	t.Run("disabled gate passes everything", func(t *testing.T) {
		_, ok := CheckValue(nil, 0)
		assert.True(t, ok)
		_, ok = CheckValue(price(1), 0)
		assert.True(t, ok)
	})

	t.Run("missing price is its own reason", func(t *testing.T) {
		reason, ok := CheckValue(nil, 1000000)
		assert.False(t, ok)
		assert.Equal(t, model.SkipMissingValue, reason)
	})

	t.Run("below threshold", func(t *testing.T) {
		reason, ok := CheckValue(price(999999), 1000000)
		assert.False(t, ok)
		assert.Equal(t, model.SkipBelowMinValue, reason)
	})

	t.Run("at threshold passes", func(t *testing.T) {
		_, ok := CheckValue(price(1000000), 1000000)
		assert.True(t, ok)
	})
}

func TestCheckMinBeds(t *testing.T) {
	beds := func(v int) *int { return &v }

	assert.True(t, CheckMinBeds(nil, 0), "disabled gate")
	assert.True(t, CheckMinBeds(beds(3), 3))
	assert.False(t, CheckMinBeds(beds(2), 3))
	assert.False(t, CheckMinBeds(nil, 1), "absent beds fail a set gate")
}

func TestCheckMinBaths(t *testing.T) {
	baths := func(v float64) *float64 { return &v }

	assert.True(t, CheckMinBaths(nil, 0))
	assert.True(t, CheckMinBaths(baths(2.5), 2))
	assert.False(t, CheckMinBaths(baths(1.5), 2))
	assert.False(t, CheckMinBaths(nil, 1))
}

func TestMatchesWhitelist(t *testing.T) {
	assert.True(t, MatchesWhitelist("Single Family", nil), "no whitelist passes")
	assert.True(t, MatchesWhitelist("", nil))
	assert.True(t, MatchesWhitelist("Single Family Residence", []string{"single family"}))
	assert.True(t, MatchesWhitelist("CONDO", []string{"condo"}), "case-insensitive")
	assert.False(t, MatchesWhitelist("Townhouse", []string{"condo", "villa"}))
	assert.False(t, MatchesWhitelist("", []string{"condo"}), "empty type never matches a set whitelist")
}

package ingest

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// CityPreset anchors a radius search and carries the catalog metadata for
// the city row upserted at the start of a run.
type CityPreset struct {
	Slug   string  `yaml:"slug"`
	Name   string  `yaml:"name"`
	Lat    float64 `yaml:"lat"`
	Lng    float64 `yaml:"lng"`
	Region string  `yaml:"region"`
	Market string  `yaml:"market"`
}

// cityPresets covers the markets the catalog currently targets. Keyed by slug.
var cityPresets = map[string]CityPreset{
	"miami": {
		Slug: "miami", Name: "Miami",
		Lat: 25.7617, Lng: -80.1918,
		Region: "Florida", Market: "South Florida",
	},
	"miami-beach": {
		Slug: "miami-beach", Name: "Miami Beach",
		Lat: 25.7907, Lng: -80.1300,
		Region: "Florida", Market: "South Florida",
	},
	"coral-gables": {
		Slug: "coral-gables", Name: "Coral Gables",
		Lat: 25.7215, Lng: -80.2684,
		Region: "Florida", Market: "South Florida",
	},
	"key-biscayne": {
		Slug: "key-biscayne", Name: "Key Biscayne",
		Lat: 25.6907, Lng: -80.1628,
		Region: "Florida", Market: "South Florida",
	},
	"fort-lauderdale": {
		Slug: "fort-lauderdale", Name: "Fort Lauderdale",
		Lat: 26.1224, Lng: -80.1373,
		Region: "Florida", Market: "South Florida",
	},
	"palm-beach": {
		Slug: "palm-beach", Name: "Palm Beach",
		Lat: 26.7056, Lng: -80.0364,
		Region: "Florida", Market: "South Florida",
	},
}

// LookupCityPreset resolves a preset by slug.
func LookupCityPreset(slug string) (CityPreset, bool) {
	p, ok := cityPresets[slug]
	return p, ok
}

// LoadCityPresets merges presets from a YAML file over the built-in set.
// Entries with the same slug replace the defaults.
func LoadCityPresets(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "ingest: read city presets %s", path)
	}

	var presets []CityPreset
	if err := yaml.Unmarshal(data, &presets); err != nil {
		return eris.Wrapf(err, "ingest: parse city presets %s", path)
	}

	for _, p := range presets {
		if p.Slug == "" {
			return eris.Errorf("ingest: city preset without slug in %s", path)
		}
		cityPresets[p.Slug] = p
	}
	return nil
}

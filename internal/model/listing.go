// Package model defines the core domain types shared across the ingest pipeline.
package model

import "time"

// Source identifies the upstream data provider a record came from.
type Source string

const (
	SourceATTOM   Source = "attom"
	SourceRealtor Source = "realtor"
)

// Listing lifecycle enums. Every ingested listing starts LIVE / PUBLIC /
// SELF_REPORTED; later verification flows may promote it.
const (
	ListingStatusLive             = "LIVE"
	ListingVisibilityPublic       = "PUBLIC"
	ListingVerificationSelfReport = "SELF_REPORTED"
)

// City is the geographic bucket listings attach to. Rows are upserted by slug
// before any listing write in a run.
type City struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Region    string    `json:"region,omitempty"`
	Market    string    `json:"market,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Listing is a normalized property record, the unit persisted per accepted
// raw provider item.
type Listing struct {
	ID           string   `json:"id"`
	Slug         string   `json:"slug"`
	Source       Source   `json:"source"`
	SourceID     *string  `json:"source_id,omitempty"`
	SourceURL    *string  `json:"source_url,omitempty"`
	CityID       string   `json:"city_id"`
	Status       string   `json:"status"`
	Visibility   string   `json:"visibility"`
	Verification string   `json:"verification"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Address      *string  `json:"address,omitempty"`
	Lat          *float64 `json:"lat,omitempty"`
	Lng          *float64 `json:"lng,omitempty"`
	PropertyType *string  `json:"property_type,omitempty"`
	Bedrooms     *int     `json:"bedrooms,omitempty"`
	Bathrooms    *float64 `json:"bathrooms,omitempty"`
	BuiltSqft    *float64 `json:"built_sqft,omitempty"`
	PlotSqft     *float64 `json:"plot_sqft,omitempty"`
	BuiltM2      *int     `json:"built_m2,omitempty"`
	PlotM2       *int     `json:"plot_m2,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	Currency     string   `json:"currency"`
	// PriceConfidence is a coarse tier derived from which pricing source
	// resolved the value, not a continuous score.
	PriceConfidence  int       `json:"price_confidence"`
	DataCompleteness int       `json:"data_completeness"`
	CreatedAt        time.Time `json:"created_at"`
}

// ListingMedia is one media asset attached to a listing. Rows are created in
// the same transaction as their listing.
type ListingMedia struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	URL       string    `json:"url"`
	Alt       string    `json:"alt,omitempty"`
	SortOrder int       `json:"sort_order"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// MediaKindImage is the only media kind the ingest pipeline produces today.
const MediaKindImage = "image"

package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/luxkey/listing-ingest/internal/classify"
	"github.com/luxkey/listing-ingest/internal/config"
	"github.com/luxkey/listing-ingest/internal/extract"
	"github.com/luxkey/listing-ingest/internal/model"
	"github.com/luxkey/listing-ingest/internal/runlog"
	"github.com/luxkey/listing-ingest/internal/score"
	"github.com/luxkey/listing-ingest/internal/store"
)

// ActorAPI is the slice of the Apify client the orchestrator needs.
type ActorAPI interface {
	RunSyncGetDatasetItems(ctx context.Context, actorID string, input map[string]any) ([]json.RawMessage, error)
}

// RealtorParams configures one Realtor (Apify actor) ingestion run.
type RealtorParams struct {
	SearchLocation string
	CitySlug       string
	Limit          int
	DryRun         bool
	PriceMin       float64
	BedsMin        int
	BathsMin       float64
	ListingType    string // actor mode, BUY unless overridden
	PropertyType   []string
}

// RealtorIngestor drives the Apify realtor-scraper pipeline. The actor
// returns full listing records, so there is no detail enrichment step.
type RealtorIngestor struct {
	Store   store.Store
	Client  ActorAPI
	Media   *MediaBuilder
	ActorID string
	Cfg     config.IngestConfig
}

// Run executes one ingestion request end to end.
func (i *RealtorIngestor) Run(ctx context.Context, params RealtorParams) (*model.RunSummary, error) {
	if i.Client == nil {
		return nil, ErrMissingCredentials
	}
	if strings.TrimSpace(params.SearchLocation) == "" {
		return nil, ErrMissingSearchLocation
	}

	if params.Limit <= 0 {
		params.Limit = i.Cfg.DefaultLimit
	}
	if params.Limit > i.Cfg.MaxLimit {
		params.Limit = i.Cfg.MaxLimit
	}
	// Realtor listings skew low-value for this catalog, so the price floor
	// applies even when the caller sends no explicit minimum.
	if params.PriceMin <= 0 {
		params.PriceMin = i.Cfg.RealtorPriceFloor
	}

	citySlug, cityName := resolveRealtorCity(params)

	log := zap.L().With(
		zap.String("component", "ingest.realtor"),
		zap.String("city", citySlug),
	)

	region, market := "", ""
	if preset, ok := LookupCityPreset(citySlug); ok {
		cityName = preset.Name
		region, market = preset.Region, preset.Market
	}

	reporter, err := runlog.Start(ctx, i.Store, model.SourceRealtor, model.ScopeProperties,
		region, market, realtorParamsSnapshot(params))
	if err != nil {
		return nil, err
	}
	acc := &runlog.Accumulator{}

	city, err := i.Store.UpsertCity(ctx, model.City{
		Slug:   citySlug,
		Name:   cityName,
		Region: region,
		Market: market,
	})
	if err != nil {
		acc.RecordError("route", err)
		_ = reporter.Fail(ctx, acc, "city upsert failed")
		return nil, &UpstreamError{Step: "route", RunID: reporter.RunID(), Err: err}
	}

	mode := "BUY"
	if params.ListingType != "" {
		mode = strings.ToUpper(params.ListingType)
	}
	input := map[string]any{
		"search":   params.SearchLocation,
		"mode":     mode,
		"maxItems": params.Limit,
		"priceMin": params.PriceMin,
		"proxy":    map[string]any{"useApifyProxy": true},
	}

	items, err := i.Client.RunSyncGetDatasetItems(ctx, i.ActorID, input)
	if err != nil {
		acc.RecordError("apify:run-sync-get-dataset-items", err)
		_ = reporter.Fail(ctx, acc, "actor run failed")
		return nil, &UpstreamError{Step: "apify:run-sync-get-dataset-items", RunID: reporter.RunID(), Err: err}
	}

	log.Info("actor run complete", zap.Int("items", len(items)))

	for _, raw := range items {
		if params.Limit > 0 && acc.Scanned >= params.Limit {
			break
		}
		acc.Scan()
		if err := i.processItem(ctx, raw, params, city, acc); err != nil {
			acc.RecordError("item", err)
			log.Warn("item processing failed", zap.Error(err))
		}
	}

	if err := reporter.Succeed(ctx, acc); err != nil {
		return nil, err
	}

	log.Info("realtor ingest complete",
		zap.Int("scanned", acc.Scanned),
		zap.Int("created", acc.Created),
		zap.Int("skipped", acc.Skipped),
		zap.Int("errors", acc.Errors),
	)
	return acc.Summary(reporter.RunID(), true), nil
}

func (i *RealtorIngestor) processItem(ctx context.Context, raw json.RawMessage, params RealtorParams, city *model.City, acc *runlog.Accumulator) error {
	f := extractRealtorFields(raw)

	if f.address == nil {
		acc.Skip(model.SkipMissingAddress)
		return nil
	}

	propType := ""
	if f.propType != nil {
		propType = *f.propType
	}
	// The actor has no assessor class codes; type strings carry the whole
	// signal, and unknown types pass.
	if !classify.Residential("", propType, true) {
		acc.Skip(model.SkipNotResidential)
		return nil
	}
	if !classify.MatchesWhitelist(propType, params.PropertyType) {
		acc.Skip(model.SkipTypeWhitelist)
		return nil
	}

	if reason, ok := classify.CheckValue(f.price, params.PriceMin); !ok {
		acc.Skip(reason)
		return nil
	}

	if !classify.CheckMinBeds(f.beds, params.BedsMin) || !classify.CheckMinBaths(f.baths, params.BathsMin) {
		acc.Skip(model.SkipMinBeds)
		return nil
	}

	exists, err := i.Store.ListingExists(ctx, model.SourceRealtor, f.sourceID, f.address, city.ID)
	if err != nil {
		return err
	}
	if exists {
		acc.Skip(model.SkipExisting)
		return nil
	}

	completeness := score.Completeness(score.Checklist{
		Address:   true,
		Coords:    f.lat != nil && f.lng != nil,
		Type:      f.propType != nil,
		Beds:      f.beds != nil,
		Baths:     f.baths != nil,
		BuiltArea: f.builtSqft != nil,
		Price:     f.price != nil,
	})

	sourceID := ""
	if f.sourceID != nil {
		sourceID = *f.sourceID
	}
	typeLabel := "Residence"
	if f.propType != nil {
		typeLabel = *f.propType
	}

	listing := &model.Listing{
		Slug:             Slugify(city.Slug, *f.address, sourceID),
		Source:           model.SourceRealtor,
		SourceID:         f.sourceID,
		SourceURL:        f.sourceURL,
		CityID:           city.ID,
		Status:           model.ListingStatusLive,
		Visibility:       model.ListingVisibilityPublic,
		Verification:     model.ListingVerificationSelfReport,
		Title:            fmt.Sprintf("%s in %s", typeLabel, city.Name),
		Address:          f.address,
		Lat:              f.lat,
		Lng:              f.lng,
		PropertyType:     f.propType,
		Bedrooms:         f.beds,
		Bathrooms:        f.baths,
		BuiltSqft:        f.builtSqft,
		PlotSqft:         f.lotSqft,
		Price:            f.price,
		Currency:         "USD",
		PriceConfidence:  score.ConfidenceListing,
		DataCompleteness: completeness,
	}
	if f.builtSqft != nil {
		m2 := extract.SqftToM2(*f.builtSqft)
		listing.BuiltM2 = &m2
	}
	if f.lotSqft != nil {
		m2 := extract.SqftToM2(*f.lotSqft)
		listing.PlotM2 = &m2
	}

	if params.DryRun {
		acc.Create()
		return nil
	}

	var media []model.ListingMedia
	if i.Media != nil {
		media = i.Media.Build(ctx, f.photos, i.Cfg.MaxPhotos, listing.Title)
	}

	if err := i.Store.CreateListing(ctx, listing, media); err != nil {
		if eris.Is(err, store.ErrDuplicate) {
			acc.Skip(model.SkipExisting)
			return nil
		}
		return err
	}

	acc.Create()
	return nil
}

// realtorFields holds the best-effort extraction of one actor dataset item.
type realtorFields struct {
	sourceID  *string
	sourceURL *string
	address   *string
	lat, lng  *float64
	beds      *int
	baths     *float64
	builtSqft *float64
	lotSqft   *float64
	propType  *string
	price     *float64
	photos    []string
}

// extractRealtorFields resolves each logical field across the aliases the
// actor has emitted over its releases.
func extractRealtorFields(raw []byte) realtorFields {
	photos := extract.Strings(raw, "photos.#.href", "photo_urls", "photos")
	if len(photos) == 0 {
		if p := extract.String(raw, "primary_photo.href", "primaryPhoto.href"); p != nil {
			photos = []string{*p}
		}
	}
	return realtorFields{
		sourceID:  extract.ID(raw, "property_id", "listing_id", "id"),
		sourceURL: extract.String(raw, "property_url", "url", "rdc_web_url"),
		address:   extract.String(raw, "full_address", "address", "location.address.line"),
		lat: extract.Number(raw,
			"coordinates.latitude", "location.address.coordinate.lat", "latitude"),
		lng: extract.Number(raw,
			"coordinates.longitude", "location.address.coordinate.lon", "longitude"),
		beds:  extract.Int(raw, "beds", "bedrooms", "description.beds"),
		baths: extract.Number(raw, "baths", "bathrooms", "baths_consolidated", "description.baths"),
		builtSqft: extract.Number(raw,
			"sqft", "building_size.size", "description.sqft", "livingArea"),
		lotSqft: extract.LotSqft(raw, "lot_sqft", "lot_size", "description.lot_sqft"),
		propType: extract.String(raw,
			"property_type", "prop_type", "type", "description.type"),
		price:  extract.Number(raw, "list_price", "price", "listPrice"),
		photos: photos,
	}
}

// resolveRealtorCity picks the catalog city for a run: an explicit slug wins,
// otherwise the first comma segment of the search location.
func resolveRealtorCity(params RealtorParams) (slug, name string) {
	if params.CitySlug != "" {
		return params.CitySlug, params.CitySlug
	}
	name = strings.TrimSpace(strings.SplitN(params.SearchLocation, ",", 2)[0])
	return Slugify(name), name
}

func realtorParamsSnapshot(p RealtorParams) map[string]any {
	return map[string]any{
		"searchLocation": p.SearchLocation,
		"city":           p.CitySlug,
		"limit":          p.Limit,
		"dryRun":         p.DryRun,
		"priceMin":       p.PriceMin,
		"bedsMin":        p.BedsMin,
		"bathsMin":       p.BathsMin,
		"listingType":    p.ListingType,
		"propertyType":   p.PropertyType,
	}
}

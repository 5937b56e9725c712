package ingest

import (
	"context"
	"encoding/json"
	"fmt"

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

// AttomAPI is the slice of the ATTOM client the orchestrator needs.
type AttomAPI interface {
	SearchSnapshot(ctx context.Context, lat, lng, radiusMiles float64, limit int) ([]json.RawMessage, error)
	Detail(ctx context.Context, attomID string) (json.RawMessage, error)
	AVM(ctx context.Context, address1, address2 string) (json.RawMessage, error)
}

// AttomParams configures one ATTOM ingestion run.
type AttomParams struct {
	City        string
	RadiusMiles float64
	Limit       int
	DryRun      bool
	MinBeds     int
	MinAvm      float64
	Types       []string
	MinValue    float64
}

// AttomIngestor drives the ATTOM snapshot → detail → AVM pipeline.
type AttomIngestor struct {
	Store  store.Store
	Client AttomAPI
	Photos PhotoSource // optional
	Media  *MediaBuilder
	Cfg    config.IngestConfig
}

// Run executes one ingestion request end to end. Each invocation owns its
// own ImportRun row; items are processed strictly sequentially.
func (i *AttomIngestor) Run(ctx context.Context, params AttomParams) (*model.RunSummary, error) {
	if i.Client == nil {
		return nil, ErrMissingCredentials
	}

	preset, ok := LookupCityPreset(params.City)
	if !ok {
		return nil, ErrUnknownCity
	}

	if params.RadiusMiles <= 0 {
		params.RadiusMiles = i.Cfg.DefaultRadiusMiles
	}
	if params.Limit <= 0 {
		params.Limit = i.Cfg.DefaultLimit
	}
	if params.Limit > i.Cfg.MaxLimit {
		params.Limit = i.Cfg.MaxLimit
	}

	log := zap.L().With(
		zap.String("component", "ingest.attom"),
		zap.String("city", preset.Slug),
	)

	reporter, err := runlog.Start(ctx, i.Store, model.SourceATTOM, model.ScopeProperties,
		preset.Region, preset.Market, attomParamsSnapshot(params))
	if err != nil {
		return nil, err
	}
	acc := &runlog.Accumulator{}

	city, err := i.Store.UpsertCity(ctx, model.City{
		Slug:   preset.Slug,
		Name:   preset.Name,
		Region: preset.Region,
		Market: preset.Market,
	})
	if err != nil {
		acc.RecordError("route", err)
		_ = reporter.Fail(ctx, acc, "city upsert failed")
		return nil, &UpstreamError{Step: "route", RunID: reporter.RunID(), Err: err}
	}

	items, err := i.Client.SearchSnapshot(ctx, preset.Lat, preset.Lng, params.RadiusMiles, params.Limit)
	if err != nil {
		acc.RecordError("attom:/property/snapshot", err)
		_ = reporter.Fail(ctx, acc, "snapshot search failed")
		return nil, &UpstreamError{Step: "attom:/property/snapshot", RunID: reporter.RunID(), Err: err}
	}

	log.Info("snapshot search complete", zap.Int("items", len(items)))

	for _, raw := range items {
		acc.Scan()
		if err := i.processItem(ctx, raw, params, city, acc); err != nil {
			acc.RecordError("item", err)
			log.Warn("item processing failed", zap.Error(err))
		}
	}

	if err := reporter.Succeed(ctx, acc); err != nil {
		return nil, err
	}

	log.Info("attom ingest complete",
		zap.Int("scanned", acc.Scanned),
		zap.Int("created", acc.Created),
		zap.Int("skipped", acc.Skipped),
		zap.Int("errors", acc.Errors),
	)
	return acc.Summary(reporter.RunID(), true), nil
}

// processItem runs one raw snapshot item through the gates. It returns an
// error only for unexpected failures; gate rejections are recorded on the
// accumulator and return nil.
func (i *AttomIngestor) processItem(ctx context.Context, raw json.RawMessage, params AttomParams, city *model.City, acc *runlog.Accumulator) error {
	snap := extractAttomFields(raw)

	address := snap.bestAddress()
	if address == nil {
		acc.Skip(model.SkipMissingAddress)
		return nil
	}

	// Cheap gates first, on snapshot fields, before spending detail calls.
	if !classify.CheckMinBeds(snap.beds, params.MinBeds) {
		acc.Skip(model.SkipMinBeds)
		return nil
	}
	snapType := ""
	if snap.propType != nil {
		snapType = *snap.propType
	}
	if !classify.MatchesWhitelist(snapType, params.Types) {
		acc.Skip(model.SkipTypeWhitelist)
		return nil
	}

	exists, err := i.Store.ListingExists(ctx, model.SourceATTOM, snap.attomID, address, city.ID)
	if err != nil {
		return err
	}
	if exists {
		acc.Skip(model.SkipExisting)
		return nil
	}

	// Detail enrichment is load-bearing for the residential/value gates, so
	// its failure skips the item and counts as an error.
	fields := snap
	if snap.attomID != nil {
		detailRaw, err := i.Client.Detail(ctx, *snap.attomID)
		if err != nil {
			acc.Skip(model.SkipDetailError)
			acc.RecordError("attom:/property/detail", err)
			return nil
		}
		fields = mergeAttomFields(extractAttomFields(detailRaw), snap)
	}

	// AVM is a nice-to-have; failures fall back to the assessment value
	// without counting.
	var avmValue *float64
	if fields.line1 != nil && fields.line2 != nil {
		avmRaw, err := i.Client.AVM(ctx, *fields.line1, *fields.line2)
		if err == nil {
			avmValue = extract.Number(avmRaw, "avm.amount.value", "avm.amount.valueMean")
		}
	}

	price := avmValue
	confidence := score.ConfidenceAVM
	if price == nil {
		price = fields.assessment
		confidence = score.ConfidenceAssessment
	}
	if price == nil {
		confidence = 0
	}

	propType := ""
	if fields.propType != nil {
		propType = *fields.propType
	}
	propClass := ""
	if fields.propClass != nil {
		propClass = *fields.propClass
	}
	if !classify.Residential(propClass, propType, false) {
		acc.Skip(model.SkipNotResidential)
		return nil
	}

	if params.MinAvm > 0 && avmValue != nil && *avmValue < params.MinAvm {
		acc.Skip(model.SkipMinAvm)
		return nil
	}
	if reason, ok := classify.CheckValue(price, params.MinValue); !ok {
		acc.Skip(reason)
		return nil
	}

	completeness := score.Completeness(score.Checklist{
		Address:   true,
		Coords:    fields.lat != nil && fields.lng != nil,
		Type:      fields.propType != nil,
		Beds:      fields.beds != nil,
		Baths:     fields.baths != nil,
		BuiltArea: fields.builtSqft != nil,
		Price:     price != nil,
	})

	listing := buildListing(model.SourceATTOM, city, *address, fields, price, confidence, completeness)

	if params.DryRun {
		acc.Create()
		return nil
	}

	var media []model.ListingMedia
	if i.Photos != nil && fields.attomID != nil {
		urls, err := i.Photos.Photos(ctx, *fields.attomID)
		if err != nil {
			zap.L().Warn("photo lookup failed", zap.String("attom_id", *fields.attomID), zap.Error(err))
		} else if i.Media != nil {
			media = i.Media.Build(ctx, urls, i.Cfg.MaxPhotos, listing.Title)
		}
	}

	if err := i.Store.CreateListing(ctx, listing, media); err != nil {
		if eris.Is(err, store.ErrDuplicate) {
			// Lost a race with a concurrent run; same outcome as the dedup check.
			acc.Skip(model.SkipExisting)
			return nil
		}
		return err
	}

	acc.Create()
	return nil
}

// attomFields holds the best-effort extraction of one ATTOM item.
type attomFields struct {
	attomID    *string
	line1      *string
	line2      *string
	oneLine    *string
	lat, lng   *float64
	beds       *int
	baths      *float64
	builtSqft  *float64
	lotSqft    *float64
	propType   *string
	propClass  *string
	assessment *float64
}

// extractAttomFields resolves each logical field across the key paths seen
// on different ATTOM plan tiers.
func extractAttomFields(raw []byte) attomFields {
	return attomFields{
		attomID:   extract.ID(raw, "identifier.attomId", "identifier.Id", "identifier.obPropId"),
		line1:     extract.String(raw, "address.line1"),
		line2:     extract.String(raw, "address.line2"),
		oneLine:   extract.String(raw, "address.oneLine"),
		lat:       extract.Number(raw, "location.latitude", "location.lat"),
		lng:       extract.Number(raw, "location.longitude", "location.lon"),
		beds:      extract.Int(raw, "building.rooms.beds", "building.rooms.bedsnum"),
		baths:     extract.Number(raw, "building.rooms.bathstotal", "building.rooms.bathsfull"),
		builtSqft: extract.Number(raw, "building.size.livingsize", "building.size.universalsize", "building.size.bldgsize"),
		lotSqft:   extract.LotSqft(raw, "lot.lotsize2", "lot.lotSize2", "lot.lotsize1", "lot.lotSize1"),
		propType:  extract.String(raw, "summary.propType", "summary.proptype", "summary.propertyType"),
		propClass: extract.String(raw, "summary.propclass", "summary.propClass"),
		assessment: extract.Number(raw,
			"assessment.market.mktTtlValue", "assessment.market.mktttlvalue",
			"assessment.assessed.assdTtlValue"),
	}
}

// bestAddress prefers the provider's one-line form, falling back to the
// line1/line2 pair.
func (f attomFields) bestAddress() *string {
	if f.oneLine != nil {
		return f.oneLine
	}
	if f.line1 != nil {
		if f.line2 != nil {
			joined := *f.line1 + ", " + *f.line2
			return &joined
		}
		return f.line1
	}
	return nil
}

// mergeAttomFields overlays detail-enriched fields on the snapshot, keeping
// snapshot values where the detail payload came back empty.
func mergeAttomFields(detail, snap attomFields) attomFields {
	out := detail
	if out.attomID == nil {
		out.attomID = snap.attomID
	}
	if out.line1 == nil {
		out.line1 = snap.line1
	}
	if out.line2 == nil {
		out.line2 = snap.line2
	}
	if out.oneLine == nil {
		out.oneLine = snap.oneLine
	}
	if out.lat == nil {
		out.lat = snap.lat
	}
	if out.lng == nil {
		out.lng = snap.lng
	}
	if out.beds == nil {
		out.beds = snap.beds
	}
	if out.baths == nil {
		out.baths = snap.baths
	}
	if out.builtSqft == nil {
		out.builtSqft = snap.builtSqft
	}
	if out.lotSqft == nil {
		out.lotSqft = snap.lotSqft
	}
	if out.propType == nil {
		out.propType = snap.propType
	}
	if out.propClass == nil {
		out.propClass = snap.propClass
	}
	if out.assessment == nil {
		out.assessment = snap.assessment
	}
	return out
}

// buildListing assembles the normalized catalog record for an ATTOM item.
func buildListing(source model.Source, city *model.City, address string, f attomFields, price *float64, confidence, completeness int) *model.Listing {
	sourceID := ""
	if f.attomID != nil {
		sourceID = *f.attomID
	}

	typeLabel := "Residence"
	if f.propType != nil {
		typeLabel = *f.propType
	}

	listing := &model.Listing{
		Slug:             Slugify(city.Slug, address, sourceID),
		Source:           source,
		SourceID:         f.attomID,
		CityID:           city.ID,
		Status:           model.ListingStatusLive,
		Visibility:       model.ListingVisibilityPublic,
		Verification:     model.ListingVerificationSelfReport,
		Title:            fmt.Sprintf("%s in %s", typeLabel, city.Name),
		Address:          &address,
		Lat:              f.lat,
		Lng:              f.lng,
		PropertyType:     f.propType,
		Bedrooms:         f.beds,
		Bathrooms:        f.baths,
		BuiltSqft:        f.builtSqft,
		PlotSqft:         f.lotSqft,
		Price:            price,
		Currency:         "USD",
		PriceConfidence:  confidence,
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
	return listing
}

func attomParamsSnapshot(p AttomParams) map[string]any {
	return map[string]any{
		"city":     p.City,
		"radius":   p.RadiusMiles,
		"limit":    p.Limit,
		"dryRun":   p.DryRun,
		"minBeds":  p.MinBeds,
		"minAvm":   p.MinAvm,
		"types":    p.Types,
		"minValue": p.MinValue,
	}
}

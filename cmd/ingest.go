package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/luxkey/listing-ingest/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run a provider ingestion pass",
	Long:  "Commands for pulling property records from a provider into the catalog.",
}

// -- ingest attom --

var ingestAttomCmd = &cobra.Command{
	Use:   "attom",
	Short: "Ingest properties from the ATTOM API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ing := buildAttomIngestor(st)
		if ing == nil {
			return ingest.ErrMissingCredentials
		}

		city, _ := cmd.Flags().GetString("city")
		radius, _ := cmd.Flags().GetFloat64("radius")
		limit, _ := cmd.Flags().GetInt("limit")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		minBeds, _ := cmd.Flags().GetInt("min-beds")
		minAvm, _ := cmd.Flags().GetFloat64("min-avm")
		types, _ := cmd.Flags().GetStringSlice("types")
		minValue, _ := cmd.Flags().GetFloat64("min-value")

		summary, err := ing.Run(ctx, ingest.AttomParams{
			City:        city,
			RadiusMiles: radius,
			Limit:       limit,
			DryRun:      dryRun,
			MinBeds:     minBeds,
			MinAvm:      minAvm,
			Types:       types,
			MinValue:    minValue,
		})
		if err != nil {
			return eris.Wrap(err, "ingest attom")
		}

		return printSummary(summary)
	},
}

// -- ingest realtor --

var ingestRealtorCmd = &cobra.Command{
	Use:   "realtor",
	Short: "Ingest listings via the Realtor scraper actor",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ing := buildRealtorIngestor(st)
		if ing == nil {
			return ingest.ErrMissingCredentials
		}

		location, _ := cmd.Flags().GetString("search-location")
		city, _ := cmd.Flags().GetString("city")
		limit, _ := cmd.Flags().GetInt("limit")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		priceMin, _ := cmd.Flags().GetFloat64("price-min")
		bedsMin, _ := cmd.Flags().GetInt("beds-min")
		bathsMin, _ := cmd.Flags().GetFloat64("baths-min")
		listingType, _ := cmd.Flags().GetString("listing-type")
		propTypes, _ := cmd.Flags().GetStringSlice("property-type")

		summary, err := ing.Run(ctx, ingest.RealtorParams{
			SearchLocation: location,
			CitySlug:       city,
			Limit:          limit,
			DryRun:         dryRun,
			PriceMin:       priceMin,
			BedsMin:        bedsMin,
			BathsMin:       bathsMin,
			ListingType:    listingType,
			PropertyType:   propTypes,
		})
		if err != nil {
			return eris.Wrap(err, "ingest realtor")
		}

		return printSummary(summary)
	},
}

func printSummary(summary any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func init() {
	ingestAttomCmd.Flags().String("city", "", "city preset slug (miami, miami-beach, ...)")
	ingestAttomCmd.Flags().Float64("radius", 0, "search radius in miles (default from config)")
	ingestAttomCmd.Flags().Int("limit", 0, "max items to scan (default from config)")
	ingestAttomCmd.Flags().Bool("dry-run", false, "count creations without persisting")
	ingestAttomCmd.Flags().Int("min-beds", 0, "minimum bedroom count")
	ingestAttomCmd.Flags().Float64("min-avm", 0, "minimum AVM value")
	ingestAttomCmd.Flags().StringSlice("types", nil, "property type whitelist tokens")
	ingestAttomCmd.Flags().Float64("min-value", 0, "minimum resolved value")

	ingestRealtorCmd.Flags().String("search-location", "", "location query passed to the actor (e.g. \"Miami, FL\")")
	ingestRealtorCmd.Flags().String("city", "", "catalog city slug (default derived from search location)")
	ingestRealtorCmd.Flags().Int("limit", 0, "max items to scan (default from config)")
	ingestRealtorCmd.Flags().Bool("dry-run", false, "count creations without persisting")
	ingestRealtorCmd.Flags().Float64("price-min", 0, "minimum list price (default from config)")
	ingestRealtorCmd.Flags().Int("beds-min", 0, "minimum bedroom count")
	ingestRealtorCmd.Flags().Float64("baths-min", 0, "minimum bathroom count")
	ingestRealtorCmd.Flags().String("listing-type", "", "actor mode (default BUY)")
	ingestRealtorCmd.Flags().StringSlice("property-type", nil, "property type whitelist tokens")

	ingestCmd.AddCommand(ingestAttomCmd)
	ingestCmd.AddCommand(ingestRealtorCmd)
	rootCmd.AddCommand(ingestCmd)
}

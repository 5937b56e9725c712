package main

import (
	"github.com/luxkey/listing-ingest/internal/ingest"
	"github.com/luxkey/listing-ingest/internal/provider/apify"
	"github.com/luxkey/listing-ingest/internal/provider/attom"
	"github.com/luxkey/listing-ingest/internal/store"
)

// buildAttomIngestor wires the ATTOM pipeline from config. Returns nil when
// no API key is configured.
func buildAttomIngestor(st store.Store) *ingest.AttomIngestor {
	if cfg.ATTOM.Key == "" {
		return nil
	}
	return &ingest.AttomIngestor{
		Store:  st,
		Client: attom.NewClient(cfg.ATTOM.BaseURL, cfg.ATTOM.Key),
		Media:  ingest.NewMediaBuilder(cfg.Media.ValidateURLs, cfg.Media.Concurrency),
		Cfg:    cfg.Ingest,
	}
}

// buildRealtorIngestor wires the Apify actor pipeline from config. Returns
// nil when no token is configured.
func buildRealtorIngestor(st store.Store) *ingest.RealtorIngestor {
	if cfg.Apify.Token == "" {
		return nil
	}
	return &ingest.RealtorIngestor{
		Store:   st,
		Client:  apify.NewClient(cfg.Apify.BaseURL, cfg.Apify.Token),
		Media:   ingest.NewMediaBuilder(cfg.Media.ValidateURLs, cfg.Media.Concurrency),
		ActorID: cfg.Apify.ActorID,
		Cfg:     cfg.Ingest,
	}
}

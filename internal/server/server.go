// Package server exposes the ingestion pipeline over HTTP.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/luxkey/listing-ingest/internal/ingest"
	"github.com/luxkey/listing-ingest/internal/model"
	"github.com/luxkey/listing-ingest/internal/store"
)

// Server wires the ingestors and the run store behind an HTTP surface.
// Ingest endpoints run synchronously; the response is the run summary.
type Server struct {
	store   store.Store
	attom   *ingest.AttomIngestor
	realtor *ingest.RealtorIngestor
}

// New creates a Server. Either ingestor may be nil when its provider
// credentials are not configured; its endpoint then reports the missing
// configuration instead of running.
func New(st store.Store, attom *ingest.AttomIngestor, realtor *ingest.RealtorIngestor) *Server {
	return &Server{store: st, attom: attom, realtor: realtor}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ingest/attom/properties", s.handleIngestAttom)
	r.Get("/ingest/realtor/properties", s.handleIngestRealtor)
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{id}", s.handleGetRun)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIngestAttom(w http.ResponseWriter, r *http.Request) {
	if s.attom == nil {
		writeError(w, http.StatusInternalServerError, "", "attom credentials not configured")
		return
	}

	q := r.URL.Query()
	params := ingest.AttomParams{
		City:        q.Get("city"),
		RadiusMiles: queryFloat(q.Get("radius")),
		Limit:       queryInt(q.Get("limit")),
		DryRun:      queryBool(q.Get("dryRun")),
		MinBeds:     queryInt(q.Get("minBeds")),
		MinAvm:      queryFloat(q.Get("minAvm")),
		Types:       queryList(q.Get("types")),
		MinValue:    queryFloat(q.Get("minValue")),
	}

	summary, err := s.attom.Run(r.Context(), params)
	if err != nil {
		s.writeIngestError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleIngestRealtor(w http.ResponseWriter, r *http.Request) {
	if s.realtor == nil {
		writeError(w, http.StatusInternalServerError, "", "apify credentials not configured")
		return
	}

	q := r.URL.Query()
	params := ingest.RealtorParams{
		SearchLocation: q.Get("searchLocation"),
		CitySlug:       q.Get("citySlug"),
		Limit:          queryInt(q.Get("limit")),
		DryRun:         queryBool(q.Get("dryRun")),
		PriceMin:       queryFloat(q.Get("priceMin")),
		BedsMin:        queryInt(q.Get("bedsMin")),
		BathsMin:       queryFloat(q.Get("bathsMin")),
		ListingType:    q.Get("listingType"),
		PropertyType:   queryList(q.Get("propertyType")),
	}

	summary, err := s.realtor.Run(r.Context(), params)
	if err != nil {
		s.writeIngestError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Source: model.Source(q.Get("source")),
		Status: model.RunStatus(q.Get("status")),
		Limit:  queryInt(q.Get("limit")),
		Offset: queryInt(q.Get("offset")),
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	runs, err := s.store.ListImportRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "", "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.store.GetImportRun(r.Context(), id)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "", "run not found")
			return
		}
		zap.L().Error("get run failed", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "", "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// writeIngestError maps orchestrator failures onto HTTP status codes:
// bad request parameters are the caller's problem, missing credentials are
// ours, and a fatal provider call is a bad gateway carrying the run id of
// the FAILED run row.
func (s *Server) writeIngestError(w http.ResponseWriter, err error) {
	var upstream *ingest.UpstreamError
	switch {
	case eris.Is(err, ingest.ErrUnknownCity):
		writeError(w, http.StatusBadRequest, "", "unknown city")
	case eris.Is(err, ingest.ErrMissingSearchLocation):
		writeError(w, http.StatusBadRequest, "", "searchLocation is required")
	case eris.Is(err, ingest.ErrMissingCredentials):
		writeError(w, http.StatusInternalServerError, "", "provider credentials not configured")
	case eris.As(err, &upstream):
		writeError(w, http.StatusBadGateway, upstream.RunID, upstream.Error())
	default:
		zap.L().Error("ingest failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "", "ingest failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, runID, message string) {
	body := map[string]any{"ok": false, "message": message}
	if runID != "" {
		body["runId"] = runID
	}
	writeJSON(w, status, body)
}

func queryInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func queryFloat(s string) float64 {
	n, _ := strconv.ParseFloat(s, 64)
	return n
}

func queryBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}

// queryList splits a comma-separated query value, dropping empty segments.
func queryList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

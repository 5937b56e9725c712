package model

import "time"

// RunStatus tracks the lifecycle of an import run. Status starts at RUNNING
// and transitions exactly once to SUCCEEDED or FAILED.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
)

// RunScope identifies what kind of records a run ingests.
type RunScope string

const (
	ScopeProperties RunScope = "properties"
	ScopeCities     RunScope = "cities"
)

// SkipReason names why a raw item was gated out of a run.
type SkipReason string

const (
	SkipMissingAddress SkipReason = "missingAddress"
	SkipMinBeds        SkipReason = "minBeds"
	SkipTypeWhitelist  SkipReason = "typeWhitelist"
	SkipExisting       SkipReason = "existing"
	SkipDetailError    SkipReason = "detailError"
	SkipMinAvm         SkipReason = "minAvm"
	SkipNotResidential SkipReason = "notResidential"
	SkipMissingValue   SkipReason = "missingValue"
	SkipBelowMinValue  SkipReason = "belowMinValue"
)

// Breakdown counts skipped items per reason, surfaced on the run summary for
// operator visibility. Skips are not errors.
type Breakdown struct {
	SkippedMissingAddress int `json:"skippedMissingAddress,omitempty"`
	SkippedMinBeds        int `json:"skippedMinBeds,omitempty"`
	SkippedTypeWhitelist  int `json:"skippedTypeWhitelist,omitempty"`
	SkippedExisting       int `json:"skippedExisting,omitempty"`
	SkippedDetailError    int `json:"skippedDetailError,omitempty"`
	SkippedMinAvm         int `json:"skippedMinAvm,omitempty"`
	SkippedNotResidential int `json:"skippedNotResidential,omitempty"`
	SkippedMissingValue   int `json:"skippedMissingValue,omitempty"`
	SkippedBelowMinValue  int `json:"skippedBelowMinValue,omitempty"`
}

// Add increments the counter for the given reason.
func (b *Breakdown) Add(reason SkipReason) {
	switch reason {
	case SkipMissingAddress:
		b.SkippedMissingAddress++
	case SkipMinBeds:
		b.SkippedMinBeds++
	case SkipTypeWhitelist:
		b.SkippedTypeWhitelist++
	case SkipExisting:
		b.SkippedExisting++
	case SkipDetailError:
		b.SkippedDetailError++
	case SkipMinAvm:
		b.SkippedMinAvm++
	case SkipNotResidential:
		b.SkippedNotResidential++
	case SkipMissingValue:
		b.SkippedMissingValue++
	case SkipBelowMinValue:
		b.SkippedBelowMinValue++
	}
}

// Total returns the sum of all skip counters.
func (b *Breakdown) Total() int {
	return b.SkippedMissingAddress + b.SkippedMinBeds + b.SkippedTypeWhitelist +
		b.SkippedExisting + b.SkippedDetailError + b.SkippedMinAvm +
		b.SkippedNotResidential + b.SkippedMissingValue + b.SkippedBelowMinValue
}

// ErrorSample is one captured per-item failure. The list on a run is bounded;
// the errors counter is not.
type ErrorSample struct {
	Step    string `json:"step"`
	Message string `json:"message"`
}

// ImportRun is one persisted record per ingestion invocation.
type ImportRun struct {
	ID           string         `json:"id"`
	Source       Source         `json:"source"`
	Scope        RunScope       `json:"scope"`
	Region       string         `json:"region,omitempty"`
	Market       string         `json:"market,omitempty"`
	Params       map[string]any `json:"params,omitempty"`
	Status       RunStatus      `json:"status"`
	Scanned      int            `json:"scanned"`
	Created      int            `json:"created"`
	Skipped      int            `json:"skipped"`
	Errors       int            `json:"errors"`
	ErrorSamples []ErrorSample  `json:"error_samples,omitempty"`
	Message      string         `json:"message,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
}

// RunSummary is the JSON envelope returned to the caller of an ingest request.
type RunSummary struct {
	OK           bool          `json:"ok"`
	RunID        string        `json:"runId"`
	Scanned      int           `json:"scanned"`
	Created      int           `json:"created"`
	Skipped      int           `json:"skipped"`
	Errors       int           `json:"errors"`
	ErrorSamples []ErrorSample `json:"errorSamples,omitempty"`
	Breakdown    Breakdown     `json:"breakdown"`
}

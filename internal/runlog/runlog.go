// Package runlog records import-run lifecycle and per-run telemetry.
//
// Counters accumulate in a run-local Accumulator threaded through the item
// loop, then land on the persisted row in exactly one finalizing update.
// Nothing here is shared across invocations, so concurrent runs never race
// on a row.
package runlog

import (
	"context"
	"fmt"
	"strings"

	"github.com/luxkey/listing-ingest/internal/model"
	"github.com/luxkey/listing-ingest/internal/store"
)

// MaxErrorSamples caps the per-run error sample list. The errors counter
// keeps counting past the cap.
const MaxErrorSamples = 6

// Accumulator collects counters and bounded error samples for one run.
type Accumulator struct {
	Scanned   int
	Created   int
	Skipped   int
	Errors    int
	Breakdown model.Breakdown
	Samples   []model.ErrorSample
}

// Scan counts one raw item entering the loop.
func (a *Accumulator) Scan() { a.Scanned++ }

// Create counts one persisted (or dry-run-counted) listing.
func (a *Accumulator) Create() { a.Created++ }

// Skip counts one gated-out item under its reason.
func (a *Accumulator) Skip(reason model.SkipReason) {
	a.Skipped++
	a.Breakdown.Add(reason)
}

// RecordError counts a per-item failure and keeps a bounded sample of it.
func (a *Accumulator) RecordError(step string, err error) {
	a.Errors++
	if len(a.Samples) < MaxErrorSamples {
		a.Samples = append(a.Samples, model.ErrorSample{Step: step, Message: err.Error()})
	}
}

// Message renders the human-readable run summary with the skip breakdown.
func (a *Accumulator) Message() string {
	msg := fmt.Sprintf("scanned %d, created %d, skipped %d, errors %d",
		a.Scanned, a.Created, a.Skipped, a.Errors)

	parts := breakdownParts(a.Breakdown)
	if len(parts) > 0 {
		msg += " (" + strings.Join(parts, ", ") + ")"
	}
	return msg
}

func breakdownParts(b model.Breakdown) []string {
	var parts []string
	add := func(reason model.SkipReason, n int) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", reason, n))
		}
	}
	add(model.SkipMissingAddress, b.SkippedMissingAddress)
	add(model.SkipMinBeds, b.SkippedMinBeds)
	add(model.SkipTypeWhitelist, b.SkippedTypeWhitelist)
	add(model.SkipExisting, b.SkippedExisting)
	add(model.SkipDetailError, b.SkippedDetailError)
	add(model.SkipMinAvm, b.SkippedMinAvm)
	add(model.SkipNotResidential, b.SkippedNotResidential)
	add(model.SkipMissingValue, b.SkippedMissingValue)
	add(model.SkipBelowMinValue, b.SkippedBelowMinValue)
	return parts
}

// Summary builds the caller-facing envelope from the accumulated counters.
func (a *Accumulator) Summary(runID string, ok bool) *model.RunSummary {
	return &model.RunSummary{
		OK:           ok,
		RunID:        runID,
		Scanned:      a.Scanned,
		Created:      a.Created,
		Skipped:      a.Skipped,
		Errors:       a.Errors,
		ErrorSamples: a.Samples,
		Breakdown:    a.Breakdown,
	}
}

// Reporter owns one ImportRun row for the duration of an ingest invocation.
type Reporter struct {
	store store.Store
	run   *model.ImportRun
}

// Start creates the run row with status RUNNING and a params snapshot.
func Start(ctx context.Context, st store.Store, source model.Source, scope model.RunScope, region, market string, params map[string]any) (*Reporter, error) {
	run := &model.ImportRun{
		Source: source,
		Scope:  scope,
		Region: region,
		Market: market,
		Params: params,
		Status: model.RunStatusRunning,
	}
	if err := st.CreateImportRun(ctx, run); err != nil {
		return nil, err
	}
	return &Reporter{store: st, run: run}, nil
}

// RunID returns the persisted run row's identifier.
func (r *Reporter) RunID() string { return r.run.ID }

// Succeed finalizes the run as SUCCEEDED with the accumulated counters.
func (r *Reporter) Succeed(ctx context.Context, acc *Accumulator) error {
	return r.finalize(ctx, model.RunStatusSucceeded, acc, acc.Message())
}

// Fail finalizes the run as FAILED. The message names what broke.
func (r *Reporter) Fail(ctx context.Context, acc *Accumulator, message string) error {
	return r.finalize(ctx, model.RunStatusFailed, acc, message)
}

func (r *Reporter) finalize(ctx context.Context, status model.RunStatus, acc *Accumulator, message string) error {
	r.run.Status = status
	r.run.Scanned = acc.Scanned
	r.run.Created = acc.Created
	r.run.Skipped = acc.Skipped
	r.run.Errors = acc.Errors
	r.run.ErrorSamples = acc.Samples
	r.run.Message = message
	return r.store.FinalizeImportRun(ctx, r.run)
}

// Package ingest orchestrates provider-specific property ingestion runs.
package ingest

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Fatal configuration errors, surfaced before any run row is touched.
var (
	ErrUnknownCity           = eris.New("ingest: unknown city preset")
	ErrMissingSearchLocation = eris.New("ingest: searchLocation is required")
	ErrMissingCredentials    = eris.New("ingest: provider credentials not configured")
)

// UpstreamError marks a fatal primary-call failure. The run row already
// exists and has been finalized as FAILED; RunID points at it.
type UpstreamError struct {
	Step  string
	RunID string
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream failure at %s: %v", e.Step, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

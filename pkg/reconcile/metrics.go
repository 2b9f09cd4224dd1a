package reconcile

import "time"

// Outcome classifies how a record reconciliation ended.
type Outcome string

const (
	// OutcomeCreated means the user row was inserted by this run
	// (or, in dry-run mode, would have been).
	OutcomeCreated Outcome = "created"

	// OutcomeExisting means a user row with the stable id was already present.
	OutcomeExisting Outcome = "existing"

	// OutcomeRejected means the insert collided with another user on a
	// unique column other than the stable id. Nothing was written.
	OutcomeRejected Outcome = "rejected"
)

// Skip reasons reported to Metrics.RecordSkipped.
const (
	SkipMalformed = "malformed"
	SkipDuplicate = "duplicate"
	SkipPrivacy   = "privacy"
)

// Metrics provides observability for migration runs.
//
// This is optional - a nil Metrics disables collection. Implementations
// must be safe for concurrent use.
type Metrics interface {
	// ObservePage records a directory page and how long it took to fetch.
	ObservePage(records int, fetch time.Duration)

	// RecordSkipped records a directory record dropped before reconciliation.
	RecordSkipped(reason string)

	// RecordOutcome records a reconciled identity.
	RecordOutcome(outcome Outcome)

	// RecordRowsCreated records rows inserted into a table.
	RecordRowsCreated(table string, n int)

	// RecordLookupMiss records an unresolved department or role reference.
	RecordLookupMiss(kind string)

	// RecordUnmatched records an identity with no apply dataset row.
	RecordUnmatched()
}

type noopMetrics struct{}

func (noopMetrics) ObservePage(int, time.Duration) {}
func (noopMetrics) RecordSkipped(string)           {}
func (noopMetrics) RecordOutcome(Outcome)          {}
func (noopMetrics) RecordRowsCreated(string, int)  {}
func (noopMetrics) RecordLookupMiss(string)        {}
func (noopMetrics) RecordUnmatched()               {}

func orNoop(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanRun     = "migration.run"
	SpanPage    = "directory.page"
	SpanApply   = "applyset.load"
	SpanLookups = "reconcile.lookups"
	SpanRecord  = "reconcile.record"
)

// Attribute keys.
const (
	AttrRunID      = "migration.run_id"
	AttrDryRun     = "migration.dry_run"
	AttrPoolID     = "directory.pool_id"
	AttrPage       = "directory.page"
	AttrRecords    = "directory.records"
	AttrStableID   = "identity.stable_id"
	AttrLookupKind = "lookup.kind"
	AttrCandidates = "lookup.candidates"
	AttrCreated    = "lookup.created"
	AttrOutcome    = "reconcile.outcome"
	AttrSource     = "applyset.source"
)

func RunID(id string) attribute.KeyValue     { return attribute.String(AttrRunID, id) }
func DryRun(on bool) attribute.KeyValue      { return attribute.Bool(AttrDryRun, on) }
func PoolID(id string) attribute.KeyValue    { return attribute.String(AttrPoolID, id) }
func Page(n int) attribute.KeyValue          { return attribute.Int(AttrPage, n) }
func Records(n int) attribute.KeyValue       { return attribute.Int(AttrRecords, n) }
func StableID(id string) attribute.KeyValue  { return attribute.String(AttrStableID, id) }
func LookupKind(k string) attribute.KeyValue { return attribute.String(AttrLookupKind, k) }
func Candidates(n int) attribute.KeyValue    { return attribute.Int(AttrCandidates, n) }
func Created(n int) attribute.KeyValue       { return attribute.Int(AttrCreated, n) }
func Outcome(o string) attribute.KeyValue    { return attribute.String(AttrOutcome, o) }
func Source(name string) attribute.KeyValue  { return attribute.String(AttrSource, name) }

// StartPageSpan starts a span for one directory page fetch and its processing.
func StartPageSpan(ctx context.Context, poolID string, page int) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanPage,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(PoolID(poolID), Page(page)))
}

// StartLookupsSpan starts a span for the lookup reconciliation of one kind.
func StartLookupsSpan(ctx context.Context, kind string, candidates int) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanLookups,
		trace.WithAttributes(LookupKind(kind), Candidates(candidates)))
}

// StartRecordSpan starts a span for the reconciliation of one identity.
func StartRecordSpan(ctx context.Context, stableID string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanRecord, trace.WithAttributes(StableID(stableID)))
}

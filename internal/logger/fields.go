package logger

import (
	"log/slog"
	"time"
)

// Standard field keys for structured logging. Use these consistently so
// runs can be queried across log aggregation.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// ========================================================================
	// Run
	// ========================================================================
	KeyRunID      = "run_id"
	KeyDryRun     = "dry_run"
	KeyWorkers    = "workers"
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyStage      = "stage" // parse, protect, join, resolve, insert

	// ========================================================================
	// Directory
	// ========================================================================
	KeyPoolID   = "pool_id"
	KeyPage     = "page"
	KeyRecords  = "records"
	KeyStableID = "stable_id"
	KeyUsername = "username"
	KeyStatus   = "status" // directory account status
	KeyEnabled  = "enabled"
	KeyReason   = "reason"

	// ========================================================================
	// Lookups & Roles
	// ========================================================================
	KeyKind       = "kind" // department, role
	KeyName       = "name"
	KeyCandidates = "candidates"
	KeyCreated    = "created"
	KeyRole       = "role"
	KeyDepartment = "department"

	// ========================================================================
	// Store
	// ========================================================================
	KeyTable   = "table"
	KeySQL     = "sql"
	KeyOutcome = "outcome"
	KeyDBType  = "db_type"

	// ========================================================================
	// Apply dataset
	// ========================================================================
	KeySource = "source" // none, postgres, s3
	KeyRows   = "rows"
	KeyBucket = "bucket"
	KeyKey    = "key"
	KeyRegion = "region"
)

// ============================================================================
// Field constructors
// ============================================================================

// RunID returns a slog.Attr for the migration run identifier
func RunID(id string) slog.Attr {
	return slog.String(KeyRunID, id)
}

// PoolID returns a slog.Attr for the directory user pool
func PoolID(id string) slog.Attr {
	return slog.String(KeyPoolID, id)
}

// Page returns a slog.Attr for a directory page number
func Page(n int) slog.Attr {
	return slog.Int(KeyPage, n)
}

// StableID returns a slog.Attr for a directory stable identifier
func StableID(id string) slog.Attr {
	return slog.String(KeyStableID, id)
}

func Table(name string) slog.Attr {
	return slog.String(KeyTable, name)
}

func Stage(s string) slog.Attr {
	return slog.String(KeyStage, s)
}

// Err returns a slog.Attr for an error (nil-safe)
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// DurationMs returns a slog.Attr with the elapsed time since start in milliseconds
func DurationMs(start time.Time) slog.Attr {
	return slog.Float64(KeyDurationMs, Duration(start))
}

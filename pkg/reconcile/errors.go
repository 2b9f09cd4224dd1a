package reconcile

import (
	"errors"
	"fmt"
)

// Run-level failures. Either one aborts a migration run.
var (
	ErrStoreUnavailable     = errors.New("user service store unavailable")
	ErrDirectoryUnavailable = errors.New("directory unavailable")
)

// ErrLookupMiss reports a department or role name with no lookup row when
// resolving foreign keys. It is diagnostic only: the reference is left
// unset and the record proceeds.
var ErrLookupMiss = errors.New("lookup row not found")

// Stage names the step a per-record failure happened in.
type Stage string

const (
	StageParse   Stage = "parse"
	StageProtect Stage = "protect"
	StageJoin    Stage = "join"
	StageResolve Stage = "resolve"
	StageInsert  Stage = "insert"
)

// RecordError is a failure confined to one identity.
type RecordError struct {
	StableID string
	Stage    Stage
	Err      error
}

func (e *RecordError) Error() string {
	if e.StableID == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("record %s: %s: %v", e.StableID, e.Stage, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// Package applyset holds the legacy "apply" dataset joined against directory
// identities to recover their legacy foreign key.
//
// The dataset is read in full once per run and indexed by stable id.
// Loaders exist for a PostgreSQL relation (postgres), a CSV export in S3
// (s3), and in-memory rows (Static, Empty).
package applyset

import (
	"context"
)

// Row is one entry of the apply dataset.
type Row struct {
	LegacyForeignKey string
	StableID         string
}

// Dataset is an immutable index of rows by stable id.
type Dataset struct {
	byStableID map[string]Row
	rows       int
	skipped    int
	duplicates int
}

// NewDataset indexes rows. Rows without a stable id are skipped; when a
// stable id repeats, the first row wins.
func NewDataset(rows []Row) *Dataset {
	d := &Dataset{byStableID: make(map[string]Row, len(rows)), rows: len(rows)}
	for _, r := range rows {
		if r.StableID == "" {
			d.skipped++
			continue
		}
		if _, dup := d.byStableID[r.StableID]; dup {
			d.duplicates++
			continue
		}
		d.byStableID[r.StableID] = r
	}
	return d
}

// Lookup returns the row for stableID.
func (d *Dataset) Lookup(stableID string) (Row, bool) {
	if d == nil {
		return Row{}, false
	}
	r, ok := d.byStableID[stableID]
	return r, ok
}

// Len returns the number of indexed stable ids.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.byStableID)
}

// Stats reports rows read, rows skipped for a missing stable id, and rows
// dropped as duplicates.
func (d *Dataset) Stats() (rows, skipped, duplicates int) {
	if d == nil {
		return 0, 0, 0
	}
	return d.rows, d.skipped, d.duplicates
}

// Loader reads the full apply dataset.
type Loader interface {
	Load(ctx context.Context) (*Dataset, error)

	// Name identifies the loader in logs.
	Name() string
}

// Static serves fixed rows.
type Static []Row

// Load implements Loader.
func (s Static) Load(ctx context.Context) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewDataset(s), nil
}

// Name implements Loader.
func (Static) Name() string { return "static" }

// Empty is the loader used when no apply dataset is configured; every
// identity is unmatched.
type Empty struct{}

// Load implements Loader.
func (Empty) Load(context.Context) (*Dataset, error) {
	return NewDataset(nil), nil
}

// Name implements Loader.
func (Empty) Name() string { return "none" }

var (
	_ Loader = Static(nil)
	_ Loader = Empty{}
)

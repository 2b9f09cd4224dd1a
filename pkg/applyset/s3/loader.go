// Package s3 loads the apply dataset from a CSV export stored in S3.
//
// The object must start with a header naming at least the
// legacy_foreign_key and stable_id columns; other columns are ignored.
package s3

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marmos91/dirmigrate/internal/awsutil"
	"github.com/marmos91/dirmigrate/internal/logger"
	"github.com/marmos91/dirmigrate/pkg/applyset"
)

// CSV header names.
const (
	ColumnLegacyForeignKey = "legacy_foreign_key"
	ColumnStableID         = "stable_id"
)

// GetObjectAPI is the subset of the S3 client used by Loader.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Config locates the export object.
type Config struct {
	awsutil.Config

	Bucket         string
	Key            string
	ForcePathStyle bool
}

// Loader reads the export object.
type Loader struct {
	client GetObjectAPI
	bucket string
	key    string
}

// New creates a loader around an existing client.
func New(client GetObjectAPI, bucket, key string) *Loader {
	return &Loader{client: client, bucket: bucket, key: key}
}

// NewFromConfig creates a loader by building an S3 client from config.
func NewFromConfig(ctx context.Context, config Config) (*Loader, error) {
	if config.Bucket == "" || config.Key == "" {
		return nil, fmt.Errorf("apply s3 bucket and key are required")
	}

	awsCfg, err := awsutil.Load(ctx, config.Config)
	if err != nil {
		return nil, err
	}

	var opts []func(*s3.Options)
	if config.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
		})
	}
	if config.ForcePathStyle {
		opts = append(opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return New(s3.NewFromConfig(awsCfg, opts...), config.Bucket, config.Key), nil
}

// Name implements applyset.Loader.
func (l *Loader) Name() string { return "s3" }

// Load implements applyset.Loader.
func (l *Loader) Load(ctx context.Context) (*applyset.Dataset, error) {
	out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(l.key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", l.bucket, l.key, err)
	}
	defer out.Body.Close()

	rows, err := ReadCSV(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", l.bucket, l.key, err)
	}

	ds := applyset.NewDataset(rows)
	logger.DebugCtx(ctx, "apply dataset read",
		logger.KeySource, "s3",
		logger.KeyBucket, l.bucket,
		logger.KeyKey, l.key,
		logger.KeyRows, len(rows))
	return ds, nil
}

// ReadCSV parses an export. Header names are matched case-insensitively.
func ReadCSV(r io.Reader) ([]applyset.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty export: missing header")
	}
	if err != nil {
		return nil, err
	}

	legacyIdx, stableIdx := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case ColumnLegacyForeignKey:
			legacyIdx = i
		case ColumnStableID:
			stableIdx = i
		}
	}
	if legacyIdx < 0 || stableIdx < 0 {
		return nil, fmt.Errorf("header must contain %s and %s", ColumnLegacyForeignKey, ColumnStableID)
	}

	var rows []applyset.Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		var row applyset.Row
		if stableIdx < len(rec) {
			row.StableID = rec[stableIdx]
		}
		if legacyIdx < len(rec) {
			row.LegacyForeignKey = rec[legacyIdx]
		}
		rows = append(rows, row)
	}
}

var _ applyset.Loader = (*Loader)(nil)

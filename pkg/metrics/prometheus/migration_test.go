package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dirmigrate/pkg/metrics"
	"github.com/marmos91/dirmigrate/pkg/reconcile"
)

func TestNewMigrationMetricsDisabled(t *testing.T) {
	metrics.Reset()
	assert.Nil(t, NewMigrationMetrics())
	assert.Nil(t, metrics.NewMigrationMetrics())
}

func TestMigrationMetrics(t *testing.T) {
	t.Cleanup(metrics.Reset)
	metrics.InitRegistry()

	m, ok := metrics.NewMigrationMetrics().(*migrationMetrics)
	require.True(t, ok, "constructor registered by init")

	m.ObservePage(60, 120*time.Millisecond)
	m.ObservePage(12, 80*time.Millisecond)
	m.RecordSkipped(reconcile.SkipMalformed)
	m.RecordOutcome(reconcile.OutcomeCreated)
	m.RecordOutcome(reconcile.OutcomeCreated)
	m.RecordOutcome(reconcile.OutcomeExisting)
	m.RecordRowsCreated("roles", 3)
	m.RecordRowsCreated("roles", 0)
	m.RecordLookupMiss("department")
	m.RecordUnmatched()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.pages))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.skipped.WithLabelValues(reconcile.SkipMalformed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.records.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.records.WithLabelValues("existing")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.rowsCreated.WithLabelValues("roles")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lookupMisses.WithLabelValues("department")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.unmatched))
	assert.Equal(t, 1, testutil.CollectAndCount(m.pageDuration))
}

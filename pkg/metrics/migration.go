package metrics

import "github.com/marmos91/dirmigrate/pkg/reconcile"

// NewMigrationMetrics creates a new Prometheus-backed reconcile.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called) or if
// no implementation has been registered. Callers pass the result straight
// to reconcile.Migration, which treats nil as disabled.
//
// Example usage:
//
//	import _ "github.com/marmos91/dirmigrate/pkg/metrics/prometheus"
//
//	metrics.InitRegistry()
//	m := &reconcile.Migration{Metrics: metrics.NewMigrationMetrics(), ...}
func NewMigrationMetrics() reconcile.Metrics {
	if !IsEnabled() || newPrometheusMigrationMetrics == nil {
		return nil
	}
	return newPrometheusMigrationMetrics()
}

// newPrometheusMigrationMetrics is set by pkg/metrics/prometheus.
// The indirection keeps this package free of the implementation import.
var newPrometheusMigrationMetrics func() reconcile.Metrics

// RegisterMigrationMetricsConstructor registers the Prometheus migration
// metrics constructor. Called by pkg/metrics/prometheus during package
// initialization.
func RegisterMigrationMetricsConstructor(constructor func() reconcile.Metrics) {
	newPrometheusMigrationMetrics = constructor
}

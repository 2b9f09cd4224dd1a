// Package metrics exposes the Prometheus registry used by a migration run.
//
// Metrics are opt-in. Until InitRegistry is called every constructor in
// this package returns nil, and components treat a nil metrics value as
// "collection disabled".
//
// A batch run has no scrape window, so the registry is pushed to a
// Pushgateway once the run ends (see Push).
package metrics

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry creates the registry and enables metrics collection.
// Go runtime and process collectors are registered alongside.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()

	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// Reset disables metrics collection and drops the registry.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	registry = nil
}

// Push sends every metric in the registry to the Pushgateway at url under
// the given job, replacing previous pushes with the same grouping.
// It is a no-op when metrics are disabled.
func Push(ctx context.Context, url, job string, grouping map[string]string) error {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}

	pusher := push.New(url, job).Gatherer(reg)
	for k, v := range grouping {
		pusher = pusher.Grouping(k, v)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

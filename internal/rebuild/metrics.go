package rebuild

import (
	"sync"

	"github.com/VictoriaMetrics/metrics"
)

// rebuildMetrics is a lazily-initialized *metrics.Set behind a
// sync.Once, with one struct field per counter/histogram so a typo in
// a metric name is a compile error instead of a silent miss.
type rebuildMetrics struct {
	set *metrics.Set

	rebuilds_total struct {
		clean_slate *metrics.Counter
		filter_only *metrics.Counter
	}
	rebuild_errors_total  *metrics.Counter
	entries_deleted_total *metrics.Counter
	entries_kept_total    *metrics.Counter
}

var (
	metricsOnce sync.Once
	metricsObj  rebuildMetrics
)

func m() *rebuildMetrics {
	metricsOnce.Do(func() {
		mo := &metricsObj
		mo.set = metrics.NewSet()
		mo.rebuilds_total.clean_slate = mo.set.NewCounter(`envguard_rebuilds_total{branch="clean_slate"}`)
		mo.rebuilds_total.filter_only = mo.set.NewCounter(`envguard_rebuilds_total{branch="filter_only"}`)
		mo.rebuild_errors_total = mo.set.NewCounter(`envguard_rebuild_errors_total`)
		mo.entries_deleted_total = mo.set.NewCounter(`envguard_rebuild_entries_deleted_total`)
		mo.entries_kept_total = mo.set.NewCounter(`envguard_rebuild_entries_kept_total`)
	})
	return &metricsObj
}

// MetricsSet exposes the rebuild package's metrics.Set so callers
// (the cmd/envguard metrics endpoint) can register it alongside the
// rest of the process's metrics.
func MetricsSet() *metrics.Set {
	return m().set
}

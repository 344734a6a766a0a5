// Package metrics holds the prometheus collectors for spatial index builds and queries.
package metrics

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const (
	indexLabel = "index"
	kindLabel  = "kind"
)

// Index names used as label values.
const (
	Octree   = "octree"
	KdTree   = "kdtree"
	AabbTree = "aabb_tree"
)

// Registry holds every collector of this package. It is separate from the default registry so the
// CLI can dump only index metrics.
var Registry = prometheus.NewRegistry()

var (
	factory = promauto.With(Registry)

	buildLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cogs_index_build_seconds",
		Help:    "The time to build a spatial index.",
		Buckets: prometheus.ExponentialBuckets(1e-5, 4, 12),
	}, []string{
		indexLabel,
	})

	nodeCount = factory.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cogs_index_nodes",
		Help: "The number of nodes of the last built index.",
	}, []string{
		indexLabel,
	})

	itemCount = factory.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cogs_index_items",
		Help: "The number of points or triangles in the last built index.",
	}, []string{
		indexLabel,
	})

	queries = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "cogs_index_queries",
		Help: "The number of queries answered by an index.",
	}, []string{
		indexLabel,
		kindLabel,
	})

	queryHits = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "cogs_index_query_hits",
		Help: "The number of points or intersections returned by queries.",
	}, []string{
		indexLabel,
		kindLabel,
	})
)

// InstrumentBuild records a finished index build that started at start.
func InstrumentBuild(index string, start time.Time, nodes, items int) {
	labels := prometheus.Labels{indexLabel: index}
	buildLatency.With(labels).Observe(time.Since(start).Seconds())
	nodeCount.With(labels).Set(float64(nodes))
	itemCount.With(labels).Set(float64(items))
}

// InstrumentQuery records a query of the given kind that returned hits results.
func InstrumentQuery(index, kind string, hits int) {
	labels := prometheus.Labels{indexLabel: index, kindLabel: kind}
	queries.With(labels).Inc()
	if hits > 0 {
		queryHits.With(labels).Add(float64(hits))
	}
}

// QueryCount returns how many queries of the kind the index answered.
func QueryCount(index, kind string) float64 {
	return counterValue(queries.With(prometheus.Labels{indexLabel: index, kindLabel: kind}))
}

// NodeCount returns the node count recorded for the last build of the index.
func NodeCount(index string) float64 {
	var m dto.Metric
	if err := nodeCount.With(prometheus.Labels{indexLabel: index}).Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// WriteText writes every collector of Registry in the prometheus text format.
func WriteText(w io.Writer) error {
	families, err := Registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

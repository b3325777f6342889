package culling

import (
	"time"

	"github.com/aukilabs/kenaz/octree"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	frameLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "culling_frame_latency_seconds",
		Help:    "The time spent updating the partition and culling every viewer.",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14),
	})

	visibleGroups = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "culling_visible_groups",
		Help:    "The number of visible groups per viewer and frame.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	visibleElements = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "culling_visible_elements",
		Help:    "The number of visible elements per viewer and frame.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 16),
	})

	nodesTested = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "culling_nodes_tested",
		Help:    "The number of frustum tests per viewer and frame.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	lodChangesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "culling_lod_changes_total",
		Help: "The total number of group level of detail changes.",
	})

	rejectedEntities = promauto.NewCounter(prometheus.CounterOpts{
		Name: "culling_rejected_entities_total",
		Help: "The total number of entities the partition refused to index.",
	})

	partitionNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "culling_partition_nodes",
		Help: "The number of nodes of the last updated partition.",
	})

	partitionDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "culling_partition_depth",
		Help: "The depth of the last updated partition.",
	})
)

func instrumentFrame(latency time.Duration, stats octree.Stats) {
	frameLatency.Observe(latency.Seconds())
	partitionNodes.Set(float64(stats.Nodes))
	partitionDepth.Set(float64(stats.Depth))
}

func instrumentVisibleSet(groups, elements, tested int) {
	visibleGroups.Observe(float64(groups))
	visibleElements.Observe(float64(elements))
	nodesTested.Observe(float64(tested))
}

func instrumentLODChanges(n int) {
	lodChangesTotal.Add(float64(n))
}

func instrumentRejectedEntity() {
	rejectedEntities.Inc()
}

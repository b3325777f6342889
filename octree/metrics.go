package octree

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultLabel = "result"
	reasonLabel = "reason"
	pathLabel   = "path"

	resultInserted = "inserted"
	resultRejected = "rejected"
	resultInvalid  = "invalid"
	resultFailed   = "failed"

	reasonRadius    = "radius"
	reasonMagnitude = "magnitude"

	removalFast    = "fast"
	removalSearch  = "search"
	removalAddress = "address"
)

var (
	octreeInserts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "octree_inserts",
		Help: "The number of element insertions by result.",
	}, []string{resultLabel})

	octreeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "octree_rejections",
		Help: "The number of elements refused by a root because they are out of range.",
	}, []string{reasonLabel})

	octreeRemovals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "octree_removals",
		Help: "The number of element removals by lookup path.",
	}, []string{pathLabel})

	octreeGrowths = promauto.NewCounter(prometheus.CounterOpts{
		Name: "octree_root_growths",
		Help: "The number of times a root doubled its size.",
	})

	octreeOverflows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "octree_overflows",
		Help: "The number of elements stored one level down because their node was full.",
	})

	octreeCollapses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "octree_root_collapses",
		Help: "The number of single child chains collapsed into a root.",
	})
)

func instrumentInsert(result string) {
	octreeInserts.
		With(prometheus.Labels{resultLabel: result}).
		Inc()
}

func instrumentRejection(reason string) {
	octreeRejections.
		With(prometheus.Labels{reasonLabel: reason}).
		Inc()
	instrumentInsert(resultRejected)
}

func instrumentRemoval(path string) {
	octreeRemovals.
		With(prometheus.Labels{pathLabel: path}).
		Inc()
}

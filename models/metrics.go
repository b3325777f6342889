package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sceneCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scene_count",
		Help: "The number of scenes.",
	})

	sceneCountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scene_count_total",
		Help: "The total number of scenes.",
	})

	entityCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "entity_count",
		Help: "The number of entities across scenes.",
	})

	viewerCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "viewer_count",
		Help: "The number of viewers across scenes.",
	})
)

func instrumentSceneGauge(delta float64) {
	sceneCount.Add(delta)
}

func instrumentCountScene() {
	sceneCountTotal.Inc()
}

func instrumentEntityGauge(delta float64) {
	entityCount.Add(delta)
}

func instrumentViewerGauge(delta float64) {
	viewerCount.Add(delta)
}

package realtime

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/models"
	"github.com/aukilabs/kenaz/modules"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel   = "error_type"
	eventTypeLabel = "event_type"
	moduleLabel    = "module"
)

var (
	scenesRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_scenes_running",
		Help: "The number of scenes dispatching frames.",
	})

	entityEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_entity_events",
		Help: "The number of entity events forwarded to modules.",
	}, []string{
		moduleLabel,
		eventTypeLabel,
	})

	moduleErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_module_errors",
		Help: "The errors returned by modules.",
	}, []string{
		moduleLabel,
		errTypeLabel,
	})

	moduleFrameLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "realtime_module_frame_latency",
		Help:    "The time for a module to process a frame.",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14),
	}, []string{
		moduleLabel,
	})
)

// HandlerWithMetrics instruments the module calls of a handler.
func HandlerWithMetrics(h Handler) Handler {
	return &handlerWithMetrics{
		Handler: h,
	}
}

type handlerWithMetrics struct {
	Handler
}

func (h *handlerWithMetrics) Init() error {
	if err := h.Handler.Init(); err != nil {
		return err
	}

	scenesRunning.Inc()
	return nil
}

func (h *handlerWithMetrics) HandleEntityEvent(ctx context.Context, m modules.Module, ev models.EntityEvent) error {
	entityEvents.With(prometheus.Labels{
		moduleLabel:    m.Name(),
		eventTypeLabel: ev.Type.String(),
	}).Inc()

	err := h.Handler.HandleEntityEvent(ctx, m, ev)
	h.countError(m, err)
	return err
}

func (h *handlerWithMetrics) HandleFrame(ctx context.Context, m modules.Module, frame uint64) error {
	start := time.Now()

	err := h.Handler.HandleFrame(ctx, m, frame)
	moduleFrameLatency.
		With(prometheus.Labels{moduleLabel: m.Name()}).
		Observe(time.Since(start).Seconds())

	h.countError(m, err)
	return err
}

func (h *handlerWithMetrics) Close() {
	h.Handler.Close()
	scenesRunning.Dec()
}

func (h *handlerWithMetrics) countError(m modules.Module, err error) {
	if err == nil {
		return
	}

	moduleErrors.With(prometheus.Labels{
		moduleLabel:  m.Name(),
		errTypeLabel: errors.Type(err),
	}).Inc()
}

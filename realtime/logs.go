package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/kenaz/models"
	"github.com/aukilabs/kenaz/modules"
)

// HandlerWithLogs logs the handler lifecycle and a periodic summary of the
// processed events and frames.
func HandlerWithLogs(h Handler, summaryInterval time.Duration) Handler {
	ctx, cancel := context.WithCancel(context.Background())

	handler := &handlerWithLogs{
		Handler:            h,
		summaryInterval:    summaryInterval,
		closeSummaryWorker: cancel,
		counter:            make(map[string]int),
	}

	go handler.startSummaryWorker(ctx)
	return handler
}

type handlerWithLogs struct {
	Handler

	summaryInterval    time.Duration
	closeSummaryWorker func()
	counterMutex       sync.Mutex
	counter            map[string]int
}

func (h *handlerWithLogs) entry() logs.Entry {
	scene := h.Scene()

	return logs.WithTag("scene_id", scene.ID).
		WithTag("scene_uuid", scene.SceneUUID).
		WithTag("scene_name", scene.Name)
}

func (h *handlerWithLogs) Init() error {
	if err := h.Handler.Init(); err != nil {
		h.entry().Error(err)
		return err
	}

	names := make([]string, 0, len(h.Modules()))
	for _, m := range h.Modules() {
		names = append(names, m.Name())
	}

	h.entry().
		WithTag("modules", names).
		Info("scene handler started")
	return nil
}

func (h *handlerWithLogs) HandleEntityEvent(ctx context.Context, m modules.Module, ev models.EntityEvent) error {
	err := h.Handler.HandleEntityEvent(ctx, m, ev)
	if err == nil {
		h.incCounter(m.Name() + "_entity_" + ev.Type.String())
	} else {
		h.incCounter(m.Name() + "_errors")
	}
	return err
}

func (h *handlerWithLogs) HandleFrame(ctx context.Context, m modules.Module, frame uint64) error {
	err := h.Handler.HandleFrame(ctx, m, frame)
	if err == nil {
		h.incCounter(m.Name() + "_frames")
	} else {
		h.incCounter(m.Name() + "_errors")
	}
	return err
}

func (h *handlerWithLogs) Close() {
	h.Handler.Close()
	h.closeSummaryWorker()
	h.logSummary()

	h.entry().Info("scene handler closed")
}

func (h *handlerWithLogs) startSummaryWorker(ctx context.Context) {
	ticker := time.NewTicker(h.summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			h.logSummary()
		}
	}
}

func (h *handlerWithLogs) incCounter(key string) {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	h.counter[key]++
}

func (h *handlerWithLogs) logSummary() {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	if len(h.counter) == 0 {
		return
	}

	scene := h.Scene()
	entry := h.entry().
		WithTag("time_interval", h.summaryInterval).
		WithTag("entities", scene.EntityCount()).
		WithTag("viewers", scene.ViewerCount())

	for k, v := range h.counter {
		entry = entry.WithTag(k, v)
		delete(h.counter, k)
	}

	entry.Info("scene summary")
}

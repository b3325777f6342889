package realtime

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/kenaz/models"
	"github.com/stretchr/testify/require"
)

func newTestHandlerWithLogs(t *testing.T, interval time.Duration) (*handlerWithLogs, *recordingModule) {
	scene := models.NewScene(42, time.Hour)
	scene.Name = "test-scene"
	t.Cleanup(scene.Close)

	m := &recordingModule{name: "test"}
	h := HandlerWithLogs(NewSceneHandler(scene, m), interval).(*handlerWithLogs)
	return h, m
}

func TestHandlerWithLogsIncCounter(t *testing.T) {
	h, _ := newTestHandlerWithLogs(t, time.Second)
	defer h.Close()

	h.incCounter("test")
	require.Equal(t, 1, h.counter["test"])
}

func TestHandlerWithLogsCountsModuleCalls(t *testing.T) {
	h, m := newTestHandlerWithLogs(t, time.Hour)
	defer h.Close()

	ctx := context.Background()
	ev := models.EntityEvent{Type: models.EntityMoved, Entity: &models.Entity{ID: 1}}
	require.NoError(t, h.HandleEntityEvent(ctx, m, ev))
	require.NoError(t, h.HandleFrame(ctx, m, 1))
	require.NoError(t, h.HandleFrame(ctx, m, 2))

	m.frameErr = errTestModule
	require.Error(t, h.HandleFrame(ctx, m, 3))

	require.Equal(t, 1, h.counter["test_entity_moved"])
	require.Equal(t, 2, h.counter["test_frames"])
	require.Equal(t, 1, h.counter["test_errors"])
}

func TestHandlerWithLogsLogSummary(t *testing.T) {
	h, _ := newTestHandlerWithLogs(t, time.Second)
	defer h.Close()

	h.incCounter("test-1")
	h.incCounter("test-1")
	h.incCounter("test-2")

	var b strings.Builder
	logs.SetInlineEncoder()
	logs.SetLogger(func(e logs.Entry) {
		fmt.Fprint(&b, e)
	})

	h.logSummary()
	require.Empty(t, h.counter)

	logString := b.String()
	require.Contains(t, logString, `"test-1":2`)
	require.Contains(t, logString, `"test-2":1`)
	require.Contains(t, logString, `"scene_id":42`)
	require.Contains(t, logString, `"scene_name":"test-scene"`)
	t.Log(b.String())
}

func TestHandlerWithLogsStartSummaryWorker(t *testing.T) {
	var wg sync.WaitGroup
	var once sync.Once

	var b strings.Builder
	var mutex sync.Mutex
	logs.SetInlineEncoder()
	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		fmt.Fprint(&b, e)
		once.Do(wg.Done)
	})

	wg.Add(1)
	h, _ := newTestHandlerWithLogs(t, time.Millisecond)
	defer h.Close()

	// No summary is logged until a counter is incremented.
	h.incCounter("test-1")

	wg.Wait()

	mutex.Lock()
	out := b.String()
	mutex.Unlock()
	require.NotEmpty(t, out)
	t.Log(out)
}

package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/kenaz/models"
	"github.com/aukilabs/kenaz/modules"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func TestSceneHandlerInit(t *testing.T) {
	t.Run("modules are initialized", func(t *testing.T) {
		scene := models.NewScene(1, time.Hour)
		defer scene.Close()

		a := &recordingModule{name: "a"}
		b := &recordingModule{name: "b"}
		h := NewSceneHandler(scene, a, b)

		require.NoError(t, h.Init())
		require.Equal(t, 1, a.initCalls)
		require.Equal(t, 1, b.initCalls)
		require.Equal(t, scene, h.Scene())
		require.Equal(t, []modules.Module{a, b}, h.Modules())
	})

	t.Run("initialized modules are closed on failure", func(t *testing.T) {
		scene := models.NewScene(1, time.Hour)
		defer scene.Close()

		a := &recordingModule{name: "a"}
		b := &recordingModule{name: "b", initErr: errTestModule}
		c := &recordingModule{name: "c"}
		h := NewSceneHandler(scene, a, b, c)

		require.Error(t, h.Init())
		require.True(t, a.closed)
		require.False(t, b.closed)
		require.Zero(t, c.initCalls)
	})
}

func TestDispatchFrame(t *testing.T) {
	scene := models.NewScene(1, time.Hour)
	defer scene.Close()

	a := &recordingModule{name: "a", eventErr: errTestModule}
	b := &recordingModule{name: "b", frameErr: errTestModule}
	h := NewSceneHandler(scene, a, b)
	require.NoError(t, h.Init())

	e := models.NewEntity(scene.NewEntityID(), models.PoseAt(mgl64.Vec3{}), 1)
	require.NoError(t, scene.AddEntity(e))
	require.NoError(t, scene.MoveEntity(e.ID, models.PoseAt(mgl64.Vec3{1, 0, 0})))

	ctx := context.Background()
	DispatchFrame(ctx, h, 1)
	DispatchFrame(ctx, h, 2)

	expected := []models.EntityEvent{
		{Type: models.EntityAdded, Entity: e},
		{Type: models.EntityMoved, Entity: e},
	}
	require.Equal(t, expected, a.events)
	require.Equal(t, expected, b.events)
	require.Equal(t, []uint64{1, 2}, a.frames)
	require.Equal(t, []uint64{1, 2}, b.frames)

	h.Close()
	require.True(t, a.closed)
	require.True(t, b.closed)
}

func TestRun(t *testing.T) {
	t.Run("frames are dispatched until the context is done", func(t *testing.T) {
		scene := models.NewScene(1, time.Millisecond)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var once sync.Once
		m := &recordingModule{name: "a"}
		m.onFrame = func(frame uint64) {
			if frame == 3 {
				once.Do(cancel)
			}
		}

		require.NoError(t, Run(ctx, NewSceneHandler(scene, m)))
		require.GreaterOrEqual(t, m.frameCount(), 3)
		require.Equal(t, []uint64{1, 2, 3}, m.frames[:3])
		require.True(t, m.closed)
		<-scene.Done()
	})

	t.Run("closing the scene stops the handler", func(t *testing.T) {
		scene := models.NewScene(1, time.Millisecond)

		m := &recordingModule{name: "a"}
		m.onFrame = func(frame uint64) {
			if frame == 1 {
				go scene.Close()
			}
		}

		require.NoError(t, Run(context.Background(), NewSceneHandler(scene, m)))
		require.True(t, m.closed)
	})

	t.Run("init failure is returned", func(t *testing.T) {
		scene := models.NewScene(1, time.Millisecond)
		defer scene.Close()

		m := &recordingModule{name: "a", initErr: errTestModule}
		require.Error(t, Run(context.Background(), NewSceneHandler(scene, m)))
		require.Zero(t, m.frameCount())
	})
}

func TestHandlerWithMetrics(t *testing.T) {
	scene := models.NewScene(1, time.Hour)
	defer scene.Close()

	m := &recordingModule{name: "metrics", eventErr: errTestModule}
	h := HandlerWithMetrics(NewSceneHandler(scene, m))
	require.NoError(t, h.Init())
	defer h.Close()

	ev := models.EntityEvent{Type: models.EntityAdded, Entity: &models.Entity{ID: 1}}
	require.Equal(t, errTestModule, h.HandleEntityEvent(context.Background(), m, ev))
	require.NoError(t, h.HandleFrame(context.Background(), m, 1))
	require.Len(t, m.events, 1)
	require.Equal(t, []uint64{1}, m.frames)
}

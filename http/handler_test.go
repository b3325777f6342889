package http

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/hagall-common/messages/hagallpb"
	"github.com/aukilabs/kenaz/camera"
	"github.com/aukilabs/kenaz/models"
	"github.com/aukilabs/kenaz/modules/culling"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
)

func TestHandleHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	HandleHealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandleReadyCheck(t *testing.T) {
	ready := false
	h := HandleReadyCheck(func() bool { return ready })

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	ready = true
	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandleVersion(t *testing.T) {
	w := httptest.NewRecorder()
	HandleVersion("v1.2.3")(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "v1.2.3", w.Body.String())
}

func TestHandleWithCORS(t *testing.T) {
	h := HandleWithCORS(http.HandlerFunc(HandleHealthCheck))

	t.Run("preflight request", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/health", nil))
		require.Equal(t, http.StatusNoContent, w.Code)
		require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("request", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestMetricsPathFormatter(t *testing.T) {
	require.Empty(t, MetricsPathFormatter(http.StatusNotFound, "/unknown"))
	require.Equal(t, "/scenes", MetricsPathFormatter(http.StatusOK, "/scenes"))
	require.Equal(t, "/health", MetricsPathFormatter(http.StatusOK, "/health"))
	require.Equal(t, "/scenes/{id}", MetricsPathFormatter(http.StatusOK, "/scenes/kenazx1"))
	require.Equal(t, "/scenes/{id}/state", MetricsPathFormatter(http.StatusOK, "/scenes/kenazx1/state"))
	require.Equal(t, "/scenes/{id}/viewers", MetricsPathFormatter(http.StatusOK, "/scenes/kenazx2/viewers"))
}

func TestListenAndServe(t *testing.T) {
	var b strings.Builder
	var mutex sync.Mutex
	logs.SetInlineEncoder()
	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()
		fmt.Fprint(&b, e)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ListenAndServe(ctx,
			Server{Role: "service", Server: &http.Server{Addr: "127.0.0.1:0"}},
			Server{Role: "admin", Server: &http.Server{Addr: "127.0.0.1:0"}},
		)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(ShutdownTimeout * 2):
		t.Fatal("servers did not stop")
	}

	mutex.Lock()
	defer mutex.Unlock()
	require.Contains(t, b.String(), `"role":"service"`)
	require.Contains(t, b.String(), `"role":"admin"`)
	require.Contains(t, b.String(), "stopping server")
}

func newTestStore(t *testing.T) (*models.SceneStore, *models.Scene) {
	ctx := context.Background()
	store := &models.SceneStore{ServerID: "test"}

	scene := models.NewScene(store.NewID(), time.Hour)
	scene.Name = "debug"
	store.Add(ctx, scene)
	t.Cleanup(func() { store.Remove(ctx, scene) })

	for _, pos := range []mgl64.Vec3{{5, 0, 0}, {-5, 0, 0}} {
		e := models.NewEntity(scene.NewEntityID(), models.PoseAt(pos), 1)
		require.NoError(t, scene.AddEntity(e))
	}

	v := models.NewViewer(scene.NewViewerID(), "viewer")
	scene.AddViewer(v)

	m := &culling.Module{}
	require.NoError(t, m.Init(scene))
	scene.DrainEvents()
	require.NoError(t, m.HandleFrame(ctx, 1))
	return store, scene
}

func TestDebugHandler(t *testing.T) {
	store, scene := newTestStore(t)
	h := NewDebugHandler(store)

	t.Run("scenes", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scenes", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var res []SceneSummary
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		require.Len(t, res, 1)
		require.Equal(t, "testx1", res[0].ID)
		require.Equal(t, scene.SceneUUID, res[0].UUID)
		require.Equal(t, 2, res[0].Entities)
		require.Equal(t, 1, res[0].Viewers)
		require.NotNil(t, res[0].Culling)
		require.Equal(t, 2, res[0].Culling.Tree.Elements)
	})

	t.Run("scene", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scenes/testx1", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var res SceneSummary
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		require.Equal(t, "debug", res.Name)
		require.Equal(t, uint64(1), res.Culling.Frame)
	})

	t.Run("unknown scene", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scenes/testx42", nil))
		require.Equal(t, http.StatusNotFound, w.Code)
		require.Contains(t, w.Body.String(), models.ErrTypeSceneNotFound)
	})

	t.Run("scene state", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scenes/testx1/state", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var state hagallpb.SessionState
		require.NoError(t, protojson.Unmarshal(w.Body.Bytes(), &state))
		require.Len(t, state.Entities, 2)
		require.Len(t, state.Participants, 1)
	})

	t.Run("viewers", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scenes/testx1/viewers", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var res []ViewerSummary
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		require.Len(t, res, 1)
		require.Len(t, res[0].View, camera.ViewSize)

		// The default camera looks down +X from the origin.
		entity, ok := scene.EntityByID(res[0].Visible[0])
		require.True(t, ok)
		require.Equal(t, []uint32{entity.ID}, res[0].Visible)
		require.Equal(t, mgl64.Vec3{5, 0, 0}, entity.BinPosition())
	})
}

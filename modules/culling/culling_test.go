package culling

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/camera"
	"github.com/aukilabs/kenaz/featureflag"
	"github.com/aukilabs/kenaz/models"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func newTestScene(t *testing.T, count int, seed int64) *models.Scene {
	scene := models.NewScene(1, time.Hour)
	t.Cleanup(scene.Close)

	rnd := rand.New(rand.NewSource(seed))
	for i := 0; i < count; i++ {
		pos := mgl64.Vec3{
			rnd.Float64()*200 - 100,
			rnd.Float64()*200 - 100,
			rnd.Float64()*200 - 100,
		}
		e := models.NewEntity(scene.NewEntityID(), models.PoseAt(pos), 0.1+rnd.Float64()*3)
		require.NoError(t, scene.AddEntity(e))
	}
	return scene
}

func addTestViewer(scene *models.Scene, origin, target mgl64.Vec3) *models.Viewer {
	v := models.NewViewer(scene.NewViewerID(), "test")
	v.WithCamera(func(c *camera.Camera) {
		c.SetView(math.Pi/3, 1.5, 0.1, 80)
		c.LookAt(origin, target, mgl64.Vec3{0, 0, 1})
	})
	scene.AddViewer(v)
	return v
}

func runFrame(t *testing.T, m *Module, scene *models.Scene, frame uint64) {
	ctx := context.Background()
	for _, ev := range scene.DrainEvents() {
		require.NoError(t, m.HandleEntityEvent(ctx, ev))
	}
	require.NoError(t, m.HandleFrame(ctx, frame))
}

func bruteForceVisible(scene *models.Scene, v *models.Viewer) []uint32 {
	var ids []uint32
	v.WithCamera(func(c *camera.Camera) {
		for _, e := range scene.Entities() {
			if c.SphereInFrustum(e.BinPosition(), e.BinRadius()) != camera.Outside {
				ids = append(ids, e.ID)
			}
		}
	})
	return ids
}

func sorted(ids []uint32) []uint32 {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})
	return ids
}

func TestModuleInit(t *testing.T) {
	t.Run("existing entities are indexed", func(t *testing.T) {
		scene := newTestScene(t, 100, 1)

		m := &Module{}
		require.NoError(t, m.Init(scene))
		require.Equal(t, ModuleName, m.Name())

		state, ok := StateOf(scene)
		require.True(t, ok)
		require.Equal(t, 100, state.Partition.Stats().Elements)

		// Added events of already indexed entities are ignored.
		runFrame(t, m, scene, 1)
		require.Equal(t, 100, state.Partition.Stats().Elements)
	})

	t.Run("state is shared by modules of the same scene", func(t *testing.T) {
		scene := newTestScene(t, 10, 2)

		a := &Module{}
		require.NoError(t, a.Init(scene))
		b := &Module{FeatureFlags: featureflag.New([]string{string(featureflag.FlagDisableOctreeBalance)})}
		require.NoError(t, b.Init(scene))

		require.Equal(t, a.state, b.state)
		require.False(t, b.state.Partition.Options().Balance)
	})

	t.Run("feature flags set partition options", func(t *testing.T) {
		scene := newTestScene(t, 0, 3)

		m := &Module{FeatureFlags: featureflag.New([]string{
			string(featureflag.FlagDisableOcclusionCulling),
			string(featureflag.FlagDisableSpherePrefilter),
			string(featureflag.FlagDisableFarClip),
			string(featureflag.FlagCullWithRegionPlanes),
			string(featureflag.FlagSortVisibleSet),
			string(featureflag.FlagDisableLOD),
		})}
		require.NoError(t, m.Init(scene))

		opts := m.state.Partition.Options()
		require.False(t, opts.OcclusionCulling)
		require.False(t, opts.SpherePrefilter)
		require.False(t, opts.FarClip)
		require.True(t, opts.RegionPlanes)
		require.True(t, opts.Balance)
		require.True(t, m.sort)
		require.False(t, m.lod)
	})

	t.Run("invalid half-size fails", func(t *testing.T) {
		scene := newTestScene(t, 0, 4)

		m := &Module{HalfSize: -1}
		require.Error(t, m.Init(scene))
	})
}

func TestModuleHandleFrame(t *testing.T) {
	scene := newTestScene(t, 0, 5)
	m := &Module{}
	require.NoError(t, m.Init(scene))

	rnd := rand.New(rand.NewSource(5))
	for i := 0; i < 1000; i++ {
		pos := mgl64.Vec3{
			rnd.Float64()*200 - 100,
			rnd.Float64()*200 - 100,
			rnd.Float64()*200 - 100,
		}
		e := models.NewEntity(scene.NewEntityID(), models.PoseAt(pos), 0.1+rnd.Float64()*3)
		require.NoError(t, scene.AddEntity(e))
	}

	a := addTestViewer(scene, mgl64.Vec3{-60, 0, 0}, mgl64.Vec3{})
	b := addTestViewer(scene, mgl64.Vec3{40, 40, 40}, mgl64.Vec3{})

	runFrame(t, m, scene, 1)

	for _, v := range []*models.Viewer{a, b} {
		require.Equal(t, sorted(bruteForceVisible(scene, v)), sorted(v.Visible()))

		stats := v.VisibleStats()
		require.Equal(t, uint64(1), stats.Frame)
		require.Equal(t, len(v.Visible()), stats.Elements)
		require.Positive(t, stats.NodesTested)
	}

	snapshot := m.state.Snapshot()
	require.Equal(t, uint64(1), snapshot.Frame)
	require.Equal(t, 1000, snapshot.Tree.Elements)
	require.Positive(t, snapshot.LODChanges)
}

func TestModuleEntityEvents(t *testing.T) {
	scene := newTestScene(t, 0, 6)
	m := &Module{}
	require.NoError(t, m.Init(scene))

	v := addTestViewer(scene, mgl64.Vec3{-20, 0, 0}, mgl64.Vec3{})

	e := models.NewEntity(scene.NewEntityID(), models.PoseAt(mgl64.Vec3{0, 0, 0}), 1)
	require.NoError(t, scene.AddEntity(e))
	runFrame(t, m, scene, 1)
	require.Equal(t, []uint32{e.ID}, v.Visible())

	require.NoError(t, scene.MoveEntity(e.ID, models.PoseAt(mgl64.Vec3{-40, 0, 0})))
	runFrame(t, m, scene, 2)
	require.Empty(t, v.Visible())
	require.True(t, e.BinIndex().Tracked())

	require.NoError(t, scene.MoveEntity(e.ID, models.PoseAt(mgl64.Vec3{10, 1, 1})))
	runFrame(t, m, scene, 3)
	require.Equal(t, []uint32{e.ID}, v.Visible())

	require.NoError(t, scene.RemoveEntity(e.ID))
	runFrame(t, m, scene, 4)
	require.Empty(t, v.Visible())
	require.False(t, e.BinIndex().Tracked())
	require.Zero(t, m.state.Snapshot().Tree.Elements)
}

func TestModuleRejectedEntity(t *testing.T) {
	scene := newTestScene(t, 0, 7)
	m := &Module{}
	require.NoError(t, m.Init(scene))

	e := models.NewEntity(scene.NewEntityID(), models.PoseAt(mgl64.Vec3{}), 1e6)
	require.NoError(t, scene.AddEntity(e))

	events := scene.DrainEvents()
	require.Len(t, events, 1)

	err := m.HandleEntityEvent(context.Background(), events[0])
	require.Error(t, err)
	require.Equal(t, ErrTypeEntityNotIndexed, errors.Type(err))
	require.False(t, e.BinIndex().Tracked())

	// Shrinking the entity lets the next move index it.
	e.SetRadius(1)
	require.NoError(t, scene.MoveEntity(e.ID, e.Pose()))
	runFrame(t, m, scene, 1)
	require.True(t, e.BinIndex().Tracked())
	require.Equal(t, 1, m.state.Snapshot().Rejected)
}

func TestModuleSortedVisibleSet(t *testing.T) {
	scene := newTestScene(t, 0, 8)
	m := &Module{FeatureFlags: featureflag.New([]string{string(featureflag.FlagSortVisibleSet)})}
	require.NoError(t, m.Init(scene))

	v := addTestViewer(scene, mgl64.Vec3{-20, 0, 0}, mgl64.Vec3{})

	var ids []uint32
	for _, x := range []float64{30, 10, 20, 0} {
		e := models.NewEntity(scene.NewEntityID(), models.PoseAt(mgl64.Vec3{x, 0, 0}), 0.5)
		require.NoError(t, scene.AddEntity(e))
		ids = append(ids, e.ID)
	}

	runFrame(t, m, scene, 1)
	require.Equal(t, []uint32{ids[3], ids[1], ids[2], ids[0]}, v.Visible())
}

func TestModuleClose(t *testing.T) {
	scene := newTestScene(t, 50, 9)
	m := &Module{}
	require.NoError(t, m.Init(scene))

	entities := scene.Entities()
	m.Close()

	for _, e := range entities {
		require.False(t, e.BinIndex().Tracked())
	}
	require.Zero(t, m.state.Partition.Stats().Elements)

	(&Module{}).Close()
}

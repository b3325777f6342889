package culling

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/kenaz/camera"
	"github.com/aukilabs/kenaz/featureflag"
	"github.com/aukilabs/kenaz/models"
	"github.com/aukilabs/kenaz/octree"
	"github.com/aukilabs/kenaz/spatial"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	ModuleName = "culling"

	// DefaultHalfSize is the initial half-size of a scene partition.
	DefaultHalfSize = 64

	ErrTypeEntityNotIndexed = "entity_not_indexed"
)

// Module keeps a spatial partition in sync with the scene entities and
// computes what each viewer sees every frame.
type Module struct {
	// The octree configuration. Defaults are used when nil.
	Config *octree.Config

	// The initial half-size of the partition. DefaultHalfSize when zero.
	HalfSize float64

	FeatureFlags featureflag.FeatureFlag

	scene    *models.Scene
	state    *State
	sort     bool
	lod      bool
	rejected int
	visible  spatial.VisibleSet
	ids      []uint32
}

func (m *Module) Name() string {
	return ModuleName
}

func (m *Module) Init(s *models.Scene) error {
	m.scene = s

	opts := spatial.DefaultOptions()
	m.lod = true
	m.FeatureFlags.IfSet(featureflag.FlagDisableOctreeBalance, func() {
		opts.Balance = false
	})
	m.FeatureFlags.IfSet(featureflag.FlagDisableOcclusionCulling, func() {
		opts.OcclusionCulling = false
	})
	m.FeatureFlags.IfSet(featureflag.FlagDisableSpherePrefilter, func() {
		opts.SpherePrefilter = false
	})
	m.FeatureFlags.IfSet(featureflag.FlagDisableFarClip, func() {
		opts.FarClip = false
	})
	m.FeatureFlags.IfSet(featureflag.FlagCullWithRegionPlanes, func() {
		opts.RegionPlanes = true
	})
	m.FeatureFlags.IfSet(featureflag.FlagDisableLOD, func() {
		m.lod = false
	})
	m.sort = m.FeatureFlags.IsSet(featureflag.FlagSortVisibleSet)

	if v, ok := StateOf(s); ok {
		m.state = v
		m.state.Partition.SetOptions(opts)
		return nil
	}

	halfSize := m.HalfSize
	if halfSize == 0 {
		halfSize = DefaultHalfSize
	}

	partition, err := spatial.NewPartition(m.Config, mgl64.Vec3{}, halfSize, opts)
	if err != nil {
		return errors.New("initializing culling module failed").
			WithTag("scene_id", s.ID).
			Wrap(err)
	}

	m.state = &State{Partition: partition}
	s.SetModuleState(ModuleName, m.state)

	for _, e := range s.Entities() {
		m.put(e)
	}
	return nil
}

func (m *Module) HandleEntityEvent(ctx context.Context, ev models.EntityEvent) error {
	e := ev.Entity
	partition := m.state.Partition

	switch ev.Type {
	case models.EntityAdded:
		if e.BinIndex().Tracked() {
			return nil
		}
		if !m.put(e) {
			return errors.New("entity not indexed").
				WithType(ErrTypeEntityNotIndexed).
				WithTag("scene_id", m.scene.ID).
				WithTag("entity_id", e.ID).
				WithTag("entity_position", e.BinPosition()).
				WithTag("entity_radius", e.BinRadius())
		}

	case models.EntityMoved:
		if _, ok := m.scene.EntityByID(e.ID); !ok {
			return nil
		}

		var ok bool
		if e.BinIndex().Tracked() {
			ok = partition.Move(e)
		} else {
			ok = m.put(e)
		}
		if !ok {
			return errors.New("moved entity not indexed").
				WithType(ErrTypeEntityNotIndexed).
				WithTag("scene_id", m.scene.ID).
				WithTag("entity_id", e.ID).
				WithTag("entity_position", e.BinPosition())
		}

	case models.EntityRemoved:
		if !e.BinIndex().Tracked() {
			return nil
		}
		partition.Remove(e)
	}

	return nil
}

func (m *Module) put(e *models.Entity) bool {
	if m.state.Partition.Put(e) {
		return true
	}
	m.rejected++
	instrumentRejectedEntity()
	return false
}

func (m *Module) HandleFrame(ctx context.Context, frame uint64) error {
	start := time.Now()
	partition := m.state.Partition
	partition.Update()

	lodChanges := 0
	for i, v := range m.scene.Viewers() {
		v.WithCamera(func(c *camera.Camera) {
			m.visible.Reset()
			partition.Cull(c, &m.visible)
			if m.sort {
				m.visible.SortByDistance(c.Origin())
			}

			// Levels of detail are shared by the scene and follow its first
			// viewer.
			if i == 0 && m.lod {
				lodChanges = partition.UpdateLOD(c)
			}
		})

		m.ids = m.ids[:0]
		for _, e := range m.visible.Elements {
			if entity, ok := e.(*models.Entity); ok {
				m.ids = append(m.ids, entity.ID)
			}
		}

		v.SetVisible(m.ids, models.VisibleStats{
			Frame:       frame,
			Groups:      len(m.visible.Groups),
			Elements:    len(m.visible.Elements),
			Occluded:    m.visible.Occluded,
			NodesTested: m.visible.NodesTested,
		})
		instrumentVisibleSet(len(m.visible.Groups), len(m.visible.Elements), m.visible.NodesTested)
	}

	stats := partition.Stats()
	m.state.setSnapshot(Snapshot{
		Frame:      frame,
		Tree:       stats,
		LODChanges: lodChanges,
		Rejected:   m.rejected,
	})

	instrumentLODChanges(lodChanges)
	instrumentFrame(time.Since(start), stats)

	if frame%600 == 0 {
		logs.WithTag("scene_id", m.scene.ID).
			WithTag("frame", frame).
			WithTag("nodes", stats.Nodes).
			WithTag("elements", stats.Elements).
			WithTag("depth", stats.Depth).
			Debug("culling partition")
	}
	return nil
}

func (m *Module) Close() {
	if m.state == nil {
		return
	}
	m.state.Partition.Destroy()
	m.visible.Reset()
}

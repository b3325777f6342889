package drift

import (
	"context"
	"math"
	"math/rand"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/camera"
	"github.com/aukilabs/kenaz/models"
	"github.com/go-gl/mathgl/mgl64"
)

const ModuleName = "drift"

// Module moves a share of the scene entities in straight lines, bouncing on
// the walls of a cube, and orbits the viewer cameras around the scene
// center. It drives demo scenes.
type Module struct {
	// The half-size of the cube entities bounce in.
	Extent float64

	// The distance covered by a moving entity every frame.
	Speed float64

	// The share of entities that move, between 0 and 1.
	MovingRatio float64

	// The radius of the viewer orbits. Viewers are left alone when zero.
	OrbitRadius float64

	// The angle covered by a viewer every frame, in radians.
	OrbitSpeed float64

	Seed int64

	scene      *models.Scene
	rnd        *rand.Rand
	velocities map[uint32]mgl64.Vec3
}

func (m *Module) Name() string {
	return ModuleName
}

func (m *Module) Init(s *models.Scene) error {
	if m.Extent <= 0 {
		return errors.New("drift extent must be positive").
			WithTag("extent", m.Extent)
	}

	m.scene = s
	m.rnd = rand.New(rand.NewSource(m.Seed))
	m.velocities = make(map[uint32]mgl64.Vec3)

	for _, e := range s.Entities() {
		m.track(e)
	}
	return nil
}

func (m *Module) HandleEntityEvent(ctx context.Context, ev models.EntityEvent) error {
	switch ev.Type {
	case models.EntityAdded:
		m.track(ev.Entity)

	case models.EntityRemoved:
		delete(m.velocities, ev.Entity.ID)
	}
	return nil
}

func (m *Module) track(e *models.Entity) {
	if m.rnd.Float64() >= m.MovingRatio {
		return
	}

	dir := mgl64.Vec3{
		m.rnd.NormFloat64(),
		m.rnd.NormFloat64(),
		m.rnd.NormFloat64(),
	}
	if dir.Len() == 0 {
		dir = mgl64.Vec3{1, 0, 0}
	}
	m.velocities[e.ID] = dir.Normalize().Mul(m.Speed)
}

func (m *Module) HandleFrame(ctx context.Context, frame uint64) error {
	for id, vel := range m.velocities {
		e, ok := m.scene.EntityByID(id)
		if !ok {
			delete(m.velocities, id)
			continue
		}

		pose := e.Pose()
		pos, vel := bounce(pose.Position().Add(vel), vel, m.Extent)
		m.velocities[id] = vel

		if err := m.scene.MoveEntity(id, pose.WithPosition(pos)); err != nil {
			return errors.New("moving entity failed").Wrap(err)
		}
	}

	if m.OrbitRadius > 0 {
		m.orbitViewers(frame)
	}
	return nil
}

// bounce reflects pos and vel on the walls of the cube of half-size extent.
func bounce(pos, vel mgl64.Vec3, extent float64) (mgl64.Vec3, mgl64.Vec3) {
	for i := 0; i < 3; i++ {
		switch {
		case pos[i] > extent:
			pos[i] = 2*extent - pos[i]
			vel[i] = -math.Abs(vel[i])
		case pos[i] < -extent:
			pos[i] = -2*extent - pos[i]
			vel[i] = math.Abs(vel[i])
		}
		pos[i] = math.Max(-extent, math.Min(extent, pos[i]))
	}
	return pos, vel
}

func (m *Module) orbitViewers(frame uint64) {
	viewers := m.scene.Viewers()
	for i, v := range viewers {
		angle := float64(frame)*m.OrbitSpeed + 2*math.Pi*float64(i)/float64(len(viewers))
		origin := mgl64.Vec3{
			m.OrbitRadius * math.Cos(angle),
			m.OrbitRadius * math.Sin(angle),
			m.OrbitRadius / 4,
		}

		v.WithCamera(func(c *camera.Camera) {
			c.LookAt(origin, mgl64.Vec3{}, mgl64.Vec3{0, 0, 1})
		})
	}
}

func (m *Module) Close() {
	m.velocities = nil
}

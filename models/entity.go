package models

import (
	"math"
	"sync"

	"github.com/aukilabs/hagall-common/messages/hagallpb"
	"github.com/aukilabs/kenaz/octree"
	"github.com/go-gl/mathgl/mgl64"
)

// Entity is an object placed in a scene. It is indexed by the culling octree
// through the embedded bin.
type Entity struct {
	octree.Bin

	ID       uint32
	ViewerID uint32
	Flag     hagallpb.EntityFlag

	mutex  sync.RWMutex
	pose   Pose
	radius float64
}

// NewEntity returns an entity with the given pose and bounding radius.
func NewEntity(id uint32, p Pose, radius float64) *Entity {
	return &Entity{
		ID:     id,
		pose:   p,
		radius: radius,
	}
}

func (e *Entity) SetPose(v Pose) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.pose = v
}

func (e *Entity) Pose() Pose {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.pose
}

func (e *Entity) SetRadius(v float64) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.radius = v
}

func (e *Entity) Radius() float64 {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.radius
}

func (e *Entity) BinPosition() mgl64.Vec3 {
	return e.Pose().Position()
}

func (e *Entity) BinRadius() float64 {
	return e.Radius()
}

func (e *Entity) ToProtobuf() *hagallpb.Entity {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return &hagallpb.Entity{
		Id:            e.ID,
		ParticipantId: e.ViewerID,
		Pose:          e.pose.ToProtobuf(),
		Flag:          e.Flag,
	}
}

func EntitiesToProtobuf(entities []*Entity) []*hagallpb.Entity {
	pEntities := make([]*hagallpb.Entity, len(entities))
	for i, e := range entities {
		pEntities[i] = e.ToProtobuf()
	}
	return pEntities
}

// Pose is a position and a rotation quaternion, stored with the precision of
// the wire model.
type Pose struct {
	PX float32
	PY float32
	PZ float32
	RX float32
	RY float32
	RZ float32
	RW float32
}

// PoseAt returns an unrotated pose at the given position.
func PoseAt(pos mgl64.Vec3) Pose {
	return Pose{
		PX: float32(pos.X()),
		PY: float32(pos.Y()),
		PZ: float32(pos.Z()),
		RW: 1,
	}
}

func (p Pose) Position() mgl64.Vec3 {
	return mgl64.Vec3{float64(p.PX), float64(p.PY), float64(p.PZ)}
}

// Rotation returns the pose rotation. A zero quaternion is read as the
// identity.
func (p Pose) Rotation() mgl64.Quat {
	q := mgl64.Quat{
		W: float64(p.RW),
		V: mgl64.Vec3{float64(p.RX), float64(p.RY), float64(p.RZ)},
	}
	if q.Len() == 0 || math.IsNaN(q.Len()) {
		return mgl64.QuatIdent()
	}
	return q.Normalize()
}

// WithPosition returns a copy of the pose moved to the given position.
func (p Pose) WithPosition(pos mgl64.Vec3) Pose {
	p.PX = float32(pos.X())
	p.PY = float32(pos.Y())
	p.PZ = float32(pos.Z())
	return p
}

func (p Pose) ToProtobuf() *hagallpb.Pose {
	return &hagallpb.Pose{
		Px: p.PX,
		Py: p.PY,
		Pz: p.PZ,
		Rx: p.RX,
		Ry: p.RY,
		Rz: p.RZ,
		Rw: p.RW,
	}
}

func PoseFromProtobuf(p *hagallpb.Pose) Pose {
	return Pose{
		PX: p.GetPx(),
		PY: p.GetPy(),
		PZ: p.GetPz(),
		RX: p.GetRx(),
		RY: p.GetRy(),
		RZ: p.GetRz(),
		RW: p.GetRw(),
	}
}

package camera

import "github.com/go-gl/mathgl/mgl64"

// CoordFrame is an origin with an orthonormal basis. The at axis points
// forward, the left axis to the left and the up axis upward.
type CoordFrame struct {
	origin mgl64.Vec3
	at     mgl64.Vec3
	left   mgl64.Vec3
	up     mgl64.Vec3
}

// NewCoordFrame returns a frame at the world origin looking down +X with +Z
// up.
func NewCoordFrame() CoordFrame {
	return CoordFrame{
		at:   mgl64.Vec3{1, 0, 0},
		left: mgl64.Vec3{0, 1, 0},
		up:   mgl64.Vec3{0, 0, 1},
	}
}

func (f CoordFrame) Origin() mgl64.Vec3 {
	return f.origin
}

func (f CoordFrame) AtAxis() mgl64.Vec3 {
	return f.at
}

func (f CoordFrame) LeftAxis() mgl64.Vec3 {
	return f.left
}

func (f CoordFrame) UpAxis() mgl64.Vec3 {
	return f.up
}

// ToLocal expresses p in frame coordinates: X along at, Y along left and Z
// along up.
func (f CoordFrame) ToLocal(p mgl64.Vec3) mgl64.Vec3 {
	d := p.Sub(f.origin)
	return mgl64.Vec3{d.Dot(f.at), d.Dot(f.left), d.Dot(f.up)}
}

// ToWorld is the inverse of ToLocal.
func (f CoordFrame) ToWorld(p mgl64.Vec3) mgl64.Vec3 {
	return f.origin.
		Add(f.at.Mul(p[0])).
		Add(f.left.Mul(p[1])).
		Add(f.up.Mul(p[2]))
}

func (f *CoordFrame) setOrigin(origin mgl64.Vec3) {
	f.origin = origin
}

// setAxes builds an orthonormal basis from a forward and an approximate up
// direction. It returns false and leaves the frame untouched when the
// directions are degenerate.
func (f *CoordFrame) setAxes(at, up mgl64.Vec3) bool {
	if at.Len() == 0 {
		return false
	}
	at = at.Normalize()

	left := up.Cross(at)
	if left.Len() < 1e-9 {
		return false
	}
	left = left.Normalize()

	f.at = at
	f.left = left
	f.up = at.Cross(left)
	return true
}

func (f *CoordFrame) lookAt(origin, target, up mgl64.Vec3) bool {
	g := *f
	g.origin = origin
	if !g.setAxes(target.Sub(origin), up) {
		return false
	}
	*f = g
	return true
}

func (f *CoordFrame) rotate(q mgl64.Quat) {
	q = q.Normalize()
	f.at = q.Rotate(f.at).Normalize()
	f.left = q.Rotate(f.left).Normalize()
	f.up = f.at.Cross(f.left)
}

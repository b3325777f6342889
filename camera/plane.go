package camera

import "github.com/go-gl/mathgl/mgl64"

// PlaneMaskNone marks a plane that is skipped by the box tests.
const PlaneMaskNone uint8 = 0xff

// Plane indices, in the order the tests evaluate them.
const (
	PlaneLeft = iota
	PlaneRight
	PlaneNear
	PlaneBottom
	PlaneTop
	PlaneFar
	PlaneUserClip

	MaxPlanes
)

// Plane is the half-space n·p + d <= 0. The normal points out of the
// half-space, which means a positive distance is outside.
type Plane struct {
	Normal mgl64.Vec3
	D      float64

	mask uint8
}

// NewPlane returns a plane with a normalized normal and its mask computed.
func NewPlane(normal mgl64.Vec3, d float64) Plane {
	l := normal.Len()
	if l != 0 {
		normal = normal.Mul(1 / l)
		d /= l
	}

	p := Plane{Normal: normal, D: d}
	p.calcMask()
	return p
}

// PlaneFromPoints returns the plane going through a, b and c, with its normal
// following the right hand rule.
func PlaneFromPoints(a, b, c mgl64.Vec3) Plane {
	n := b.Sub(a).Cross(c.Sub(a))
	if l := n.Len(); l != 0 {
		n = n.Mul(1 / l)
	}
	return NewPlane(n, -n.Dot(a))
}

// Dist returns the signed distance from the plane to p.
func (p Plane) Dist(v mgl64.Vec3) float64 {
	return p.Normal.Dot(v) + p.D
}

// Mask returns the cached sign pattern of the normal: bit i is set when
// component i is positive or zero.
func (p Plane) Mask() uint8 {
	return p.mask
}

// Flip returns the plane with the opposite orientation.
func (p Plane) Flip() Plane {
	return NewPlane(p.Normal.Mul(-1), -p.D)
}

// Translate returns the plane expressed relative to origin.
func (p Plane) Translate(origin mgl64.Vec3) Plane {
	q := p
	q.D = p.D + p.Normal.Dot(origin)
	return q
}

func (p *Plane) calcMask() {
	var mask uint8
	for i := 0; i < 3; i++ {
		if p.Normal[i] >= 0 {
			mask |= 1 << i
		}
	}
	p.mask = mask
}

// scalers maps a plane mask to the per axis sign of the box corner that is
// farthest along the plane normal.
var scalers = [8]mgl64.Vec3{
	{-1, -1, -1},
	{1, -1, -1},
	{-1, 1, -1},
	{1, 1, -1},
	{-1, -1, 1},
	{1, -1, 1},
	{-1, 1, 1},
	{1, 1, 1},
}

// classifyBox tests a box against a single plane. The box is outside when
// even its nearest corner is past the plane, and straddles it when its
// farthest corner is.
func (p Plane) classifyBox(center, extents mgl64.Vec3) Intersection {
	s := scalers[p.mask]
	off := mgl64.Vec3{extents[0] * s[0], extents[1] * s[1], extents[2] * s[2]}

	if p.Dist(center.Sub(off)) > 0 {
		return Outside
	}
	if p.Dist(center.Add(off)) > 0 {
		return Partial
	}
	return Inside
}

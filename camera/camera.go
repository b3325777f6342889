package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	DefaultFOV        = math.Pi / 3
	DefaultAspect     = 640.0 / 480.0
	DefaultNear       = 0.25
	DefaultFar        = 64.0
	DefaultViewHeight = 480

	MinFOV    = 5 * math.Pi / 180
	MaxFOV    = 175 * math.Pi / 180
	MinAspect = 0.02
	MaxAspect = 50.0
	MinNear   = 0.1
	MaxNear   = 1023.9
	MinFar    = 0.2
	MaxFar    = 100000.0
)

// Intersection is the result of a frustum test.
type Intersection int

const (
	Outside Intersection = iota
	Partial
	Inside
)

func (i Intersection) String() string {
	switch i {
	case Outside:
		return "outside"
	case Partial:
		return "partial"
	case Inside:
		return "inside"
	default:
		return "unknown"
	}
}

// Camera is a perspective view frustum placed in the world by a coordinate
// frame. Its planes are recomputed every time a view parameter or the frame
// changes.
type Camera struct {
	frame CoordFrame

	fov        float64
	aspect     float64
	near       float64
	far        float64
	viewHeight int

	fixedDistance float64

	planes     [MaxPlanes]Plane
	planeCount int
	userClip   Plane
	hasClip    bool

	regionOrigin mgl64.Vec3
	regionPlanes [MaxPlanes]Plane

	corners    [8]mgl64.Vec3
	cornerDist float64
}

// New returns a camera at the world origin looking down +X with the default
// view parameters.
func New() *Camera {
	c := &Camera{
		frame:      NewCoordFrame(),
		fov:        DefaultFOV,
		aspect:     DefaultAspect,
		near:       DefaultNear,
		far:        DefaultFar,
		viewHeight: DefaultViewHeight,
	}
	c.calculatePlanes()
	return c
}

func (c *Camera) FOV() float64 {
	return c.fov
}

func (c *Camera) Aspect() float64 {
	return c.aspect
}

func (c *Camera) Near() float64 {
	return c.near
}

func (c *Camera) Far() float64 {
	return c.far
}

func (c *Camera) Frame() CoordFrame {
	return c.frame
}

func (c *Camera) Origin() mgl64.Vec3 {
	return c.frame.origin
}

// SetFOV sets the vertical field of view in radians.
func (c *Camera) SetFOV(fov float64) {
	c.fov = clamp(fov, MinFOV, MaxFOV)
	c.calculatePlanes()
}

// SetAspect sets the width over height ratio of the view.
func (c *Camera) SetAspect(aspect float64) {
	c.aspect = clamp(aspect, MinAspect, MaxAspect)
	c.calculatePlanes()
}

func (c *Camera) SetNear(near float64) {
	c.near = clamp(near, MinNear, MaxNear)
	c.calculatePlanes()
}

func (c *Camera) SetFar(far float64) {
	c.far = clamp(far, MinFar, MaxFar)
	c.calculatePlanes()
}

// SetView sets every view parameter at once.
func (c *Camera) SetView(fov, aspect, near, far float64) {
	c.fov = clamp(fov, MinFOV, MaxFOV)
	c.aspect = clamp(aspect, MinAspect, MaxAspect)
	c.near = clamp(near, MinNear, MaxNear)
	c.far = clamp(far, MinFar, MaxFar)
	c.calculatePlanes()
}

func (c *Camera) SetFrame(f CoordFrame) {
	c.frame = f
	c.calculatePlanes()
}

func (c *Camera) SetOrigin(origin mgl64.Vec3) {
	c.frame.setOrigin(origin)
	c.calculatePlanes()
}

// SetAxes orients the camera toward at, with up as the approximate up
// direction. It returns false when the directions are degenerate.
func (c *Camera) SetAxes(at, up mgl64.Vec3) bool {
	if !c.frame.setAxes(at, up) {
		return false
	}
	c.calculatePlanes()
	return true
}

// LookAt places the camera at origin looking at target.
func (c *Camera) LookAt(origin, target, up mgl64.Vec3) bool {
	if !c.frame.lookAt(origin, target, up) {
		return false
	}
	c.calculatePlanes()
	return true
}

// Rotate rotates the camera axes by q.
func (c *Camera) Rotate(q mgl64.Quat) {
	c.frame.rotate(q)
	c.calculatePlanes()
}

// SetFixedDistance makes VisibleDistance return d whenever d is positive.
func (c *Camera) SetFixedDistance(d float64) {
	c.fixedDistance = d
}

func (c *Camera) FixedDistance() float64 {
	return c.fixedDistance
}

// SetUserClipPlane enables an extra clipping plane, given in world space.
func (c *Camera) SetUserClipPlane(p Plane) {
	c.userClip = NewPlane(p.Normal, p.D)
	c.hasClip = true
	c.planes[PlaneUserClip] = c.userClip
	c.planeCount = MaxPlanes
	c.calculateRegionPlanes()
}

func (c *Camera) DisableUserClipPlane() {
	c.hasClip = false
	c.planeCount = PlaneUserClip
}

func (c *Camera) HasUserClipPlane() bool {
	return c.hasClip
}

// IgnorePlane disables plane i in every frustum test until the planes are
// next recalculated.
func (c *Camera) IgnorePlane(i int) {
	if i < 0 || i >= MaxPlanes {
		return
	}
	c.planes[i].mask = PlaneMaskNone
	c.regionPlanes[i].mask = PlaneMaskNone
}

// PlaneCount returns 6, or 7 when a user clip plane is enabled.
func (c *Camera) PlaneCount() int {
	return c.planeCount
}

func (c *Camera) Plane(i int) Plane {
	return c.planes[i]
}

// SetRegionOrigin sets the origin the region plane set is expressed
// relative to.
func (c *Camera) SetRegionOrigin(origin mgl64.Vec3) {
	c.regionOrigin = origin
	c.calculateRegionPlanes()
}

func (c *Camera) RegionOrigin() mgl64.Vec3 {
	return c.regionOrigin
}

func (c *Camera) RegionPlane(i int) Plane {
	return c.regionPlanes[i]
}

// Corners returns the frustum corners: the near bottom-left, bottom-right,
// top-right and top-left corners followed by the far ones in the same order.
func (c *Camera) Corners() [8]mgl64.Vec3 {
	return c.corners
}

// FarCornerDistance returns the distance from the camera origin to a far
// corner.
func (c *Camera) FarCornerDistance() float64 {
	return c.cornerDist
}

// SetFromCorners derives the frustum planes from 8 world space corners given
// in the order returned by Corners. The view parameters are left untouched.
func (c *Camera) SetFromCorners(corners [8]mgl64.Vec3) {
	var centroid mgl64.Vec3
	for _, p := range corners {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Mul(1.0 / 8)

	faces := [6][3]int{
		PlaneNear:   {0, 1, 2},
		PlaneFar:    {5, 4, 6},
		PlaneLeft:   {4, 0, 7},
		PlaneRight:  {1, 5, 6},
		PlaneTop:    {3, 2, 6},
		PlaneBottom: {1, 0, 4},
	}

	for i, f := range faces {
		p := PlaneFromPoints(corners[f[0]], corners[f[1]], corners[f[2]])
		if p.Dist(centroid) > 0 {
			p = p.Flip()
		}
		c.planes[i] = p
	}

	c.corners = corners
	c.cornerDist = corners[5].Sub(c.frame.origin).Len()
	c.resetPlaneCount()
	c.calculateRegionPlanes()
}

func (c *Camera) calculatePlanes() {
	tv := math.Tan(c.fov / 2)
	th := tv * c.aspect

	local := [6]Plane{
		PlaneLeft:   NewPlane(mgl64.Vec3{-th, 1, 0}, 0),
		PlaneRight:  NewPlane(mgl64.Vec3{-th, -1, 0}, 0),
		PlaneNear:   NewPlane(mgl64.Vec3{-1, 0, 0}, c.near),
		PlaneBottom: NewPlane(mgl64.Vec3{-tv, 0, -1}, 0),
		PlaneTop:    NewPlane(mgl64.Vec3{-tv, 0, 1}, 0),
		PlaneFar:    NewPlane(mgl64.Vec3{1, 0, 0}, -c.far),
	}

	f := c.frame
	for i, p := range local {
		n := f.at.Mul(p.Normal[0]).
			Add(f.left.Mul(p.Normal[1])).
			Add(f.up.Mul(p.Normal[2]))
		c.planes[i] = NewPlane(n, p.D-n.Dot(f.origin))
	}

	for i, dist := range [2]float64{c.near, c.far} {
		h := dist * tv
		w := dist * th
		c.corners[i*4+0] = f.ToWorld(mgl64.Vec3{dist, w, -h})
		c.corners[i*4+1] = f.ToWorld(mgl64.Vec3{dist, -w, -h})
		c.corners[i*4+2] = f.ToWorld(mgl64.Vec3{dist, -w, h})
		c.corners[i*4+3] = f.ToWorld(mgl64.Vec3{dist, w, h})
	}
	c.cornerDist = c.corners[5].Sub(f.origin).Len()

	c.resetPlaneCount()
	c.calculateRegionPlanes()
}

func (c *Camera) resetPlaneCount() {
	c.planeCount = PlaneUserClip
	if c.hasClip {
		c.planes[PlaneUserClip] = c.userClip
		c.planeCount = MaxPlanes
	}
}

func (c *Camera) calculateRegionPlanes() {
	for i := 0; i < c.planeCount; i++ {
		c.regionPlanes[i] = c.planes[i].Translate(c.regionOrigin)
	}
}

// ViewMatrix returns the right handed view matrix of the camera.
func (c *Camera) ViewMatrix() mgl64.Mat4 {
	f := c.frame
	return mgl64.LookAtV(f.origin, f.origin.Add(f.at), f.up)
}

// ProjectionMatrix returns the perspective projection matrix of the camera.
func (c *Camera) ProjectionMatrix() mgl64.Mat4 {
	return mgl64.Perspective(c.fov, c.aspect, c.near, c.far)
}

func clamp(v, min, max float64) float64 {
	if math.IsNaN(v) {
		return min
	}
	return math.Max(min, math.Min(max, v))
}

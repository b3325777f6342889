package camera

import (
	"math"
	"math/rand"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func newScenarioCamera() *Camera {
	c := New()
	c.SetView(mgl64.DegToRad(60), 1.33, 0.25, 64)
	return c
}

func TestNewCamera(t *testing.T) {
	c := New()
	require.Equal(t, DefaultFOV, c.FOV())
	require.Equal(t, DefaultAspect, c.Aspect())
	require.Equal(t, DefaultNear, c.Near())
	require.Equal(t, DefaultFar, c.Far())
	require.Equal(t, 6, c.PlaneCount())
	require.Equal(t, mgl64.Vec3{}, c.Origin())
	require.Equal(t, mgl64.Vec3{1, 0, 0}, c.Frame().AtAxis())

	for i := 0; i < c.PlaneCount(); i++ {
		require.InDelta(t, 1, c.Plane(i).Normal.Len(), 1e-12)
		require.NotEqual(t, PlaneMaskNone, c.Plane(i).Mask())
	}
}

func TestCameraClamping(t *testing.T) {
	c := New()

	c.SetFOV(0)
	require.Equal(t, MinFOV, c.FOV())
	c.SetFOV(4)
	require.Equal(t, MaxFOV, c.FOV())
	c.SetFOV(math.NaN())
	require.Equal(t, MinFOV, c.FOV())

	c.SetAspect(100)
	require.Equal(t, MaxAspect, c.Aspect())
	c.SetAspect(0)
	require.Equal(t, MinAspect, c.Aspect())

	c.SetNear(0)
	require.Equal(t, MinNear, c.Near())
	c.SetNear(2000)
	require.Equal(t, MaxNear, c.Near())

	c.SetFar(1e9)
	require.Equal(t, MaxFar, c.Far())
	c.SetFar(-1)
	require.Equal(t, MinFar, c.Far())
}

func TestSphereInFrustumScenario(t *testing.T) {
	c := newScenarioCamera()

	require.Equal(t, Outside, c.SphereInFrustum(mgl64.Vec3{100, 0, 0}, 1))
	require.Equal(t, Inside, c.SphereInFrustum(mgl64.Vec3{10, 0, 0}, 1))
	require.Equal(t, Partial, c.SphereInFrustum(mgl64.Vec3{64, 0, 0}, 1))
	require.Equal(t, Outside, c.SphereInFrustum(mgl64.Vec3{-10, 0, 0}, 1))
	require.Equal(t, Outside, c.SphereInFrustum(mgl64.Vec3{10, 0, 50}, 1))
}

func TestAABBInFrustum(t *testing.T) {
	c := newScenarioCamera()

	tests := []struct {
		name     string
		center   mgl64.Vec3
		extents  mgl64.Vec3
		expected Intersection
	}{
		{
			name:     "box behind the near plane",
			center:   mgl64.Vec3{-5, 0, 0},
			extents:  mgl64.Vec3{1, 1, 1},
			expected: Outside,
		},
		{
			name:     "box between the camera and the near plane",
			center:   mgl64.Vec3{0.1, 0, 0},
			extents:  mgl64.Vec3{0.05, 0.01, 0.01},
			expected: Outside,
		},
		{
			name:     "box enclosed by all planes",
			center:   mgl64.Vec3{10, 0, 0},
			extents:  mgl64.Vec3{0.5, 0.5, 0.5},
			expected: Inside,
		},
		{
			name:     "box straddling the near plane",
			center:   mgl64.Vec3{0.25, 0, 0},
			extents:  mgl64.Vec3{0.1, 0.01, 0.01},
			expected: Partial,
		},
		{
			name:     "box straddling the far plane",
			center:   mgl64.Vec3{64, 0, 0},
			extents:  mgl64.Vec3{1, 1, 1},
			expected: Partial,
		},
		{
			name:     "box straddling the left plane",
			center:   mgl64.Vec3{10, 10 * math.Tan(mgl64.DegToRad(30)) * 1.33, 0},
			extents:  mgl64.Vec3{0.5, 0.5, 0.5},
			expected: Partial,
		},
		{
			name:     "box past the far plane",
			center:   mgl64.Vec3{100, 0, 0},
			extents:  mgl64.Vec3{1, 1, 1},
			expected: Outside,
		},
		{
			name:     "box enclosing the frustum",
			center:   mgl64.Vec3{0, 0, 0},
			extents:  mgl64.Vec3{1000, 1000, 1000},
			expected: Partial,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, c.AABBInFrustum(test.center, test.extents))
		})
	}
}

func TestAABBInFrustumNoFarClip(t *testing.T) {
	c := newScenarioCamera()
	center := mgl64.Vec3{100, 0, 0}
	extents := mgl64.Vec3{1, 1, 1}

	require.Equal(t, Outside, c.AABBInFrustum(center, extents))
	require.Equal(t, Inside, c.AABBInFrustumNoFarClip(center, extents))
	require.Equal(t, Outside, c.SphereInFrustum(center, 1))
	require.Equal(t, Inside, c.SphereInFrustumNoFarClip(center, 1))
}

func TestPlaneMaskMatchesBruteForce(t *testing.T) {
	rnd := rand.New(rand.NewSource(8))

	for signs := 0; signs < 8; signs++ {
		for i := 0; i < 500; i++ {
			var n mgl64.Vec3
			for axis := 0; axis < 3; axis++ {
				n[axis] = 0.05 + rnd.Float64()
				if signs&(1<<axis) == 0 {
					n[axis] = -n[axis]
				}
			}
			p := NewPlane(n, (rnd.Float64()*2-1)*10)
			require.Equal(t, uint8(signs), p.Mask())

			center := mgl64.Vec3{
				(rnd.Float64()*2 - 1) * 10,
				(rnd.Float64()*2 - 1) * 10,
				(rnd.Float64()*2 - 1) * 10,
			}
			extents := mgl64.Vec3{rnd.Float64() * 5, rnd.Float64() * 5, rnd.Float64() * 5}

			require.Equal(t, bruteForceClassify(p, center, extents), p.classifyBox(center, extents))
		}
	}
}

func TestPlaneMaskWithZeroComponents(t *testing.T) {
	p := NewPlane(mgl64.Vec3{0, -1, 0}, 2)
	require.Equal(t, uint8(5), p.Mask())

	center := mgl64.Vec3{3, 2.5, -1}
	extents := mgl64.Vec3{1, 1, 1}
	require.Equal(t, bruteForceClassify(p, center, extents), p.classifyBox(center, extents))
}

func bruteForceClassify(p Plane, center, extents mgl64.Vec3) Intersection {
	min := math.Inf(1)
	max := math.Inf(-1)

	for corner := 0; corner < 8; corner++ {
		v := center
		for axis := 0; axis < 3; axis++ {
			if corner&(1<<axis) != 0 {
				v[axis] += extents[axis]
			} else {
				v[axis] -= extents[axis]
			}
		}

		d := p.Dist(v)
		min = math.Min(min, d)
		max = math.Max(max, d)
	}

	switch {
	case min > 0:
		return Outside
	case max > 0:
		return Partial
	default:
		return Inside
	}
}

func TestSetFromCorners(t *testing.T) {
	c := New()
	require.True(t, c.LookAt(mgl64.Vec3{3, 4, 5}, mgl64.Vec3{10, -2, 8}, mgl64.Vec3{0, 0, 1}))

	var expected [6]Plane
	for i := range expected {
		expected[i] = c.Plane(i)
	}
	farDist := c.FarCornerDistance()

	c.SetFromCorners(c.Corners())
	for i, p := range expected {
		require.Truef(t, p.Normal.ApproxEqualThreshold(c.Plane(i).Normal, 1e-9),
			"plane %d: expected %v, got %v", i, p.Normal, c.Plane(i).Normal)
		require.InDelta(t, p.D, c.Plane(i).D, 1e-9)
		require.Equal(t, p.Mask(), c.Plane(i).Mask())
	}
	require.InDelta(t, farDist, c.FarCornerDistance(), 1e-9)

	tv := math.Tan(DefaultFOV / 2)
	th := tv * DefaultAspect
	require.InDelta(t, DefaultFar*math.Sqrt(1+tv*tv+th*th), farDist, 1e-9)
}

func TestSetFromCornersOrientation(t *testing.T) {
	c := New()
	corners := c.Corners()

	// Swapping the winding of the input must not flip the planes inside out.
	reversed := corners
	reversed[1], reversed[3] = corners[3], corners[1]
	reversed[5], reversed[7] = corners[7], corners[5]

	c.SetFromCorners(reversed)
	require.Equal(t, Inside, c.SphereInFrustum(mgl64.Vec3{10, 0, 0}, 1))
	require.Equal(t, Outside, c.SphereInFrustum(mgl64.Vec3{-10, 0, 0}, 1))
}

func TestVisibleDistance(t *testing.T) {
	c := newScenarioCamera()

	require.InDelta(t, 10, c.VisibleDistance(mgl64.Vec3{10, 0, 0}, 1, 1, AllPlanes), 1e-12)
	require.InDelta(t, -10, c.VisibleDistance(mgl64.Vec3{-10, 0, 0}, 1, 1, AllPlanes), 1e-12)
	require.InDelta(t, 10, c.VisibleDistance(mgl64.Vec3{-10, 0, 0}, 1, 1, 1<<PlaneFar), 1e-12)
	require.InDelta(t, -70, c.VisibleDistance(mgl64.Vec3{70, 0, 0}, 1, 1, AllPlanes), 1e-12)
	require.InDelta(t, 70, c.VisibleDistance(mgl64.Vec3{70, 0, 0}, 1, 10, AllPlanes), 1e-12)

	c.SetFixedDistance(42)
	require.Equal(t, 42.0, c.VisibleDistance(mgl64.Vec3{-10, 0, 0}, 1, 1, AllPlanes))
	require.Equal(t, 42.0, c.FixedDistance())
}

func TestPointInFrustum(t *testing.T) {
	c := newScenarioCamera()
	require.True(t, c.PointInFrustum(mgl64.Vec3{10, 0, 0}))
	require.False(t, c.PointInFrustum(mgl64.Vec3{0.1, 0, 0}))
	require.False(t, c.PointInFrustum(mgl64.Vec3{65, 0, 0}))
}

func TestUserClipPlane(t *testing.T) {
	c := newScenarioCamera()
	c.SetUserClipPlane(NewPlane(mgl64.Vec3{0, 2, 0}, 0))
	require.True(t, c.HasUserClipPlane())
	require.Equal(t, 7, c.PlaneCount())
	require.Equal(t, Outside, c.SphereInFrustum(mgl64.Vec3{10, 2, 0}, 0.5))
	require.Equal(t, Inside, c.SphereInFrustum(mgl64.Vec3{10, -2, 0}, 0.5))

	c.SetFOV(mgl64.DegToRad(90))
	require.Equal(t, 7, c.PlaneCount())
	require.Equal(t, Outside, c.AABBInFrustum(mgl64.Vec3{10, 2, 0}, mgl64.Vec3{0.5, 0.5, 0.5}))

	c.DisableUserClipPlane()
	require.Equal(t, 6, c.PlaneCount())
	require.Equal(t, Inside, c.SphereInFrustum(mgl64.Vec3{10, 2, 0}, 0.5))
}

func TestIgnorePlane(t *testing.T) {
	c := newScenarioCamera()
	center := mgl64.Vec3{100, 0, 0}
	extents := mgl64.Vec3{1, 1, 1}

	require.Equal(t, Outside, c.SphereInFrustum(center, 1))
	require.False(t, c.PointInFrustum(center))
	require.Less(t, c.VisibleDistance(center, 1, 1, AllPlanes), 0.0)

	c.IgnorePlane(PlaneFar)
	require.Equal(t, PlaneMaskNone, c.Plane(PlaneFar).Mask())
	require.Equal(t, Inside, c.AABBInFrustum(center, extents))
	require.Equal(t, Inside, c.SphereInFrustum(center, 1))
	require.Equal(t, Inside, c.SphereInRegionFrustum(center.Sub(c.RegionOrigin()), 1))
	require.True(t, c.PointInFrustum(center))
	require.Equal(t, 100.0, c.VisibleDistance(center, 1, 1, AllPlanes))

	c.SetFar(64)
	require.Equal(t, Outside, c.AABBInFrustum(center, extents))
	require.Equal(t, Outside, c.SphereInFrustum(center, 1))
	require.False(t, c.PointInFrustum(center))
}

func TestRegionPlanes(t *testing.T) {
	rnd := rand.New(rand.NewSource(4))
	c := newScenarioCamera()
	require.True(t, c.LookAt(mgl64.Vec3{1000, 40, -3}, mgl64.Vec3{1010, 45, -2}, mgl64.Vec3{0, 0, 1}))

	origin := mgl64.Vec3{1024, 0, 0}
	c.SetRegionOrigin(origin)
	require.Equal(t, origin, c.RegionOrigin())

	for i := 0; i < 1000; i++ {
		center := c.Origin().Add(mgl64.Vec3{
			(rnd.Float64()*2 - 1) * 80,
			(rnd.Float64()*2 - 1) * 80,
			(rnd.Float64()*2 - 1) * 80,
		})
		extents := mgl64.Vec3{rnd.Float64() * 4, rnd.Float64() * 4, rnd.Float64() * 4}
		local := center.Sub(origin)

		require.Equal(t, c.AABBInFrustum(center, extents), c.AABBInRegionFrustum(local, extents))
		require.Equal(t, c.AABBInFrustumNoFarClip(center, extents), c.AABBInRegionFrustumNoFarClip(local, extents))
		require.Equal(t, c.SphereInFrustum(center, extents[0]), c.SphereInRegionFrustum(local, extents[0]))
		require.Equal(t, c.SphereInFrustumNoFarClip(center, extents[0]), c.SphereInRegionFrustumNoFarClip(local, extents[0]))
	}
}

func TestCameraOrientation(t *testing.T) {
	t.Run("look at", func(t *testing.T) {
		c := newScenarioCamera()
		require.True(t, c.LookAt(mgl64.Vec3{}, mgl64.Vec3{0, 10, 0}, mgl64.Vec3{0, 0, 1}))

		f := c.Frame()
		require.True(t, f.AtAxis().ApproxEqual(mgl64.Vec3{0, 1, 0}))
		require.True(t, f.LeftAxis().ApproxEqual(mgl64.Vec3{-1, 0, 0}))
		require.True(t, f.UpAxis().ApproxEqual(mgl64.Vec3{0, 0, 1}))
		require.Equal(t, Inside, c.SphereInFrustum(mgl64.Vec3{0, 10, 0}, 1))
		require.Equal(t, Outside, c.SphereInFrustum(mgl64.Vec3{10, 0, 0}, 1))
	})

	t.Run("degenerate look at", func(t *testing.T) {
		c := New()
		require.False(t, c.LookAt(mgl64.Vec3{1, 1, 1}, mgl64.Vec3{1, 1, 1}, mgl64.Vec3{0, 0, 1}))
		require.False(t, c.SetAxes(mgl64.Vec3{0, 0, 1}, mgl64.Vec3{0, 0, 1}))
		require.Equal(t, mgl64.Vec3{}, c.Origin())
		require.Equal(t, mgl64.Vec3{1, 0, 0}, c.Frame().AtAxis())
	})

	t.Run("rotate", func(t *testing.T) {
		c := newScenarioCamera()
		c.Rotate(mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1}))

		require.True(t, c.Frame().AtAxis().ApproxEqualThreshold(mgl64.Vec3{0, 1, 0}, 1e-9))
		require.Equal(t, Inside, c.SphereInFrustum(mgl64.Vec3{0, 10, 0}, 1))
	})

	t.Run("origin", func(t *testing.T) {
		c := newScenarioCamera()
		c.SetOrigin(mgl64.Vec3{-100, 0, 0})

		require.Equal(t, Inside, c.SphereInFrustum(mgl64.Vec3{-90, 0, 0}, 1))
		require.Equal(t, Outside, c.SphereInFrustum(mgl64.Vec3{10, 0, 0}, 1))
	})

	t.Run("frame conversions", func(t *testing.T) {
		c := New()
		require.True(t, c.LookAt(mgl64.Vec3{1, 2, 3}, mgl64.Vec3{4, -2, 7}, mgl64.Vec3{0, 0, 1}))

		f := c.Frame()
		p := mgl64.Vec3{5, 6, 7}
		require.True(t, f.ToWorld(f.ToLocal(p)).ApproxEqualThreshold(p, 1e-9))
	})
}

func TestViewMatrix(t *testing.T) {
	c := newScenarioCamera()

	v := c.ViewMatrix().Mul4x1(mgl64.Vec4{10, 0, 0, 1})
	require.True(t, v.Vec3().ApproxEqualThreshold(mgl64.Vec3{0, 0, -10}, 1e-9))

	p := c.ProjectionMatrix().Mul4x1(v)
	ndc := p.Vec3().Mul(1 / p.W())
	require.InDelta(t, 0, ndc.X(), 1e-9)
	require.InDelta(t, 0, ndc.Y(), 1e-9)
	require.Greater(t, ndc.Z(), -1.0)
	require.Less(t, ndc.Z(), 1.0)
}

func TestViewSerialization(t *testing.T) {
	c := New()
	c.SetView(1, 1.5, 0.5, 200)

	b, err := c.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, ViewSize)

	other := New()
	require.NoError(t, other.UnmarshalBinary(b))
	require.InDelta(t, 1, other.FOV(), 1e-6)
	require.InDelta(t, 1.5, other.Aspect(), 1e-6)
	require.InDelta(t, 0.5, other.Near(), 1e-6)
	require.InDelta(t, 200, other.Far(), 1e-6)

	t.Run("short buffer", func(t *testing.T) {
		err := other.UnmarshalBinary(b[:ViewSize-1])
		require.Error(t, err)
		require.Equal(t, ErrTypeShortBuffer, errors.Type(err))
		require.InDelta(t, 1, other.FOV(), 1e-6)
	})

	t.Run("out of range values are clamped", func(t *testing.T) {
		require.NoError(t, other.UnmarshalBinary(make([]byte, ViewSize)))
		require.Equal(t, MinFOV, other.FOV())
		require.Equal(t, MinAspect, other.Aspect())
		require.Equal(t, MinNear, other.Near())
		require.Equal(t, MinFar, other.Far())
	})
}

func TestPixelArea(t *testing.T) {
	c := New()
	c.SetViewHeightInPixels(1080)
	require.Equal(t, 1080, c.ViewHeightInPixels())
	require.InDelta(t, 1080/DefaultFOV, c.PixelAngle(), 1e-9)

	extents := mgl64.Vec3{1, 1, 1}
	near := c.CalcPixelArea(mgl64.Vec3{10, 0, 0}, extents)
	far := c.CalcPixelArea(mgl64.Vec3{100, 0, 0}, extents)
	require.Greater(t, near, far)

	angle := math.Atan(math.Sqrt(3) / 100)
	r := angle * c.PixelAngle()
	require.InDelta(t, r*r*math.Pi, far, 1e-9)
}

func TestRampDistance(t *testing.T) {
	require.Equal(t, 100.0, RampDistance(100))
	require.Equal(t, 16.0, RampDistance(16))
	require.Equal(t, 4.0, RampDistance(8))
	require.Equal(t, 0.0, RampDistance(0))
}

package camera

import "github.com/go-gl/mathgl/mgl64"

// AABBInFrustum classifies the box of the given center and half extents
// against the world planes.
func (c *Camera) AABBInFrustum(center, extents mgl64.Vec3) Intersection {
	return aabbInPlanes(c.planes[:c.planeCount], center, extents, -1)
}

// AABBInFrustumNoFarClip is AABBInFrustum without the far plane.
func (c *Camera) AABBInFrustumNoFarClip(center, extents mgl64.Vec3) Intersection {
	return aabbInPlanes(c.planes[:c.planeCount], center, extents, PlaneFar)
}

// AABBInRegionFrustum classifies a box expressed relative to the region
// origin against the region planes.
func (c *Camera) AABBInRegionFrustum(center, extents mgl64.Vec3) Intersection {
	return aabbInPlanes(c.regionPlanes[:c.planeCount], center, extents, -1)
}

func (c *Camera) AABBInRegionFrustumNoFarClip(center, extents mgl64.Vec3) Intersection {
	return aabbInPlanes(c.regionPlanes[:c.planeCount], center, extents, PlaneFar)
}

func aabbInPlanes(planes []Plane, center, extents mgl64.Vec3, skip int) Intersection {
	result := Inside

	for i := range planes {
		p := &planes[i]
		if i == skip || p.mask == PlaneMaskNone {
			continue
		}

		switch p.classifyBox(center, extents) {
		case Outside:
			return Outside
		case Partial:
			result = Partial
		}
	}
	return result
}

// SphereInFrustum classifies a sphere against the world planes.
func (c *Camera) SphereInFrustum(center mgl64.Vec3, radius float64) Intersection {
	return sphereInPlanes(c.planes[:c.planeCount], center, radius, -1)
}

// SphereInFrustumNoFarClip is SphereInFrustum without the far plane.
func (c *Camera) SphereInFrustumNoFarClip(center mgl64.Vec3, radius float64) Intersection {
	return sphereInPlanes(c.planes[:c.planeCount], center, radius, PlaneFar)
}

// SphereInRegionFrustum classifies a sphere expressed relative to the region
// origin against the region planes.
func (c *Camera) SphereInRegionFrustum(center mgl64.Vec3, radius float64) Intersection {
	return sphereInPlanes(c.regionPlanes[:c.planeCount], center, radius, -1)
}

func (c *Camera) SphereInRegionFrustumNoFarClip(center mgl64.Vec3, radius float64) Intersection {
	return sphereInPlanes(c.regionPlanes[:c.planeCount], center, radius, PlaneFar)
}

func sphereInPlanes(planes []Plane, center mgl64.Vec3, radius float64, skip int) Intersection {
	result := Inside

	for i := range planes {
		p := &planes[i]
		if i == skip || p.mask == PlaneMaskNone {
			continue
		}

		d := p.Dist(center)
		if d > radius {
			return Outside
		}
		if d > -radius {
			result = Partial
		}
	}
	return result
}

// PointInFrustum reports whether p is inside every enabled world plane.
func (c *Camera) PointInFrustum(p mgl64.Vec3) bool {
	for _, plane := range c.planes[:c.planeCount] {
		if plane.mask != PlaneMaskNone && plane.Dist(p) > 0 {
			return false
		}
	}
	return true
}

// VisibleDistance returns the distance from the camera origin to p, negated
// when the sphere of radius radius*fudge around p is outside one of the
// planes selected by planeMask, bit i selecting plane i. Ignored planes are
// skipped. A fixed distance
// set on the camera is returned as is.
func (c *Camera) VisibleDistance(p mgl64.Vec3, radius, fudge float64, planeMask uint32) float64 {
	if c.fixedDistance > 0 {
		return c.fixedDistance
	}

	dist := p.Sub(c.frame.origin).Len()
	pad := radius * fudge

	for i, plane := range c.planes[:c.planeCount] {
		if planeMask&(1<<uint(i)) == 0 || plane.mask == PlaneMaskNone {
			continue
		}
		if plane.Dist(p) > pad {
			return -dist
		}
	}
	return dist
}

// AllPlanes selects every plane in VisibleDistance.
const AllPlanes uint32 = 1<<MaxPlanes - 1

package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// NearRampDistance is the distance under which RampDistance shrinks
// distances quadratically.
const NearRampDistance = 16.0

// RampDistance shrinks distances under NearRampDistance so objects close to
// the camera rank as even closer.
func RampDistance(d float64) float64 {
	if d < NearRampDistance {
		d /= NearRampDistance
		d *= d
		d *= NearRampDistance
	}
	return d
}

func (c *Camera) SetViewHeightInPixels(h int) {
	if h > 0 {
		c.viewHeight = h
	}
}

func (c *Camera) ViewHeightInPixels() int {
	return c.viewHeight
}

// PixelAngle returns the number of pixels per radian of vertical field of
// view.
func (c *Camera) PixelAngle() float64 {
	return float64(c.viewHeight) / c.fov
}

// CalcPixelArea estimates the screen area, in pixels, covered by an object
// at center whose bounding box has the given half extents.
func (c *Camera) CalcPixelArea(center, extents mgl64.Vec3) float64 {
	dist := RampDistance(center.Sub(c.frame.origin).Len())
	if dist <= 0 {
		return math.Pi * float64(c.viewHeight*c.viewHeight)
	}

	angle := math.Atan(extents.Len() / dist)
	r := angle * c.PixelAngle()
	return r * r * math.Pi
}

package spatial

import (
	"sort"

	"github.com/aukilabs/kenaz/octree"
	"github.com/go-gl/mathgl/mgl64"
)

// VisibleSet is what a camera sees during a frame.
type VisibleSet struct {
	Groups      []*Group
	Elements    []octree.Element
	Occluded    int
	NodesTested int
}

// Reset empties the set and keeps its storage.
func (vs *VisibleSet) Reset() {
	for i := range vs.Groups {
		vs.Groups[i] = nil
	}
	for i := range vs.Elements {
		vs.Elements[i] = nil
	}

	vs.Groups = vs.Groups[:0]
	vs.Elements = vs.Elements[:0]
	vs.Occluded = 0
	vs.NodesTested = 0
}

// SortByDistance orders the groups and elements from the nearest to the
// farthest from origin.
func (vs *VisibleSet) SortByDistance(origin mgl64.Vec3) {
	sort.SliceStable(vs.Elements, func(i, j int) bool {
		return distanceSqr(vs.Elements[i].BinPosition(), origin) <
			distanceSqr(vs.Elements[j].BinPosition(), origin)
	})

	sort.SliceStable(vs.Groups, func(i, j int) bool {
		return groupDistance(vs.Groups[i], origin) < groupDistance(vs.Groups[j], origin)
	})
}

func groupDistance(g *Group, origin mgl64.Vec3) float64 {
	center, _, _ := g.Bounds()
	return distanceSqr(center, origin)
}

func distanceSqr(a, b mgl64.Vec3) float64 {
	d := a.Sub(b)
	return d.Dot(d)
}

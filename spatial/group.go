package spatial

import (
	"math"

	"github.com/aukilabs/kenaz/camera"
	"github.com/aukilabs/kenaz/octree"
	"github.com/go-gl/mathgl/mgl64"
)

// State is a set of group flags.
type State uint32

const (
	// StateBoundsDirty marks a group whose aggregate bounds must be
	// recomputed. A dirty group always has dirty ancestors.
	StateBoundsDirty State = 1 << iota

	// StateObjectDirty marks a group whose element bounds changed.
	StateObjectDirty

	// StateRebuild marks a group whose render data must be rebuilt.
	StateRebuild

	// StateOccluded marks a group hidden behind other geometry.
	StateOccluded

	// StateNewEntry marks a group created since the last time the flag was
	// cleared.
	StateNewEntry

	// StateSkipFrustumCheck marks a group with the same bounds as its parent,
	// which makes the parent frustum test result valid for it.
	StateSkipFrustumCheck
)

// Group is an octree listener that keeps the tight bounds of what a node and
// its subtree actually contain, with flags driving culling and rebuilds.
type Group struct {
	node  *octree.Node
	state State

	min    mgl64.Vec3
	max    mgl64.Vec3
	bounds bool

	objectMin    mgl64.Vec3
	objectMax    mgl64.Vec3
	objectBounds bool

	distance      float64
	lastDistance  float64
	viewAngle     float64
	lastViewAngle float64
}

// NewGroup attaches a new group to n.
func NewGroup(n *octree.Node) *Group {
	g := &Group{
		node:  n,
		state: StateBoundsDirty | StateObjectDirty | StateNewEntry,
	}
	n.AddListener(g)
	g.unbound()
	return g
}

// GroupOf returns the group attached to n, or nil.
func GroupOf(n *octree.Node) *Group {
	if n == nil {
		return nil
	}
	for i := 0; i < n.ListenerCount(); i++ {
		if g, ok := n.Listener(i).(*Group); ok {
			return g
		}
	}
	return nil
}

// Node returns the node the group is attached to, nil once the node is
// destroyed.
func (g *Group) Node() *octree.Node {
	return g.node
}

func (g *Group) State() State {
	return g.state
}

// HasState reports whether every flag of s is set.
func (g *Group) HasState(s State) bool {
	return g.state&s == s
}

func (g *Group) IsDirty() bool {
	return g.state&StateBoundsDirty != 0
}

// Bounds returns the center and half extents of the group aggregate bounds.
// ok is false when the subtree contains nothing.
func (g *Group) Bounds() (center, extents mgl64.Vec3, ok bool) {
	if !g.bounds {
		return mgl64.Vec3{}, mgl64.Vec3{}, false
	}
	return g.min.Add(g.max).Mul(0.5), g.max.Sub(g.min).Mul(0.5), true
}

// Extents returns the min and max corners of the group aggregate bounds.
func (g *Group) Extents() (min, max mgl64.Vec3, ok bool) {
	return g.min, g.max, g.bounds
}

// ObjectExtents returns the min and max corners of the elements stored
// directly in the node.
func (g *Group) ObjectExtents() (min, max mgl64.Vec3, ok bool) {
	return g.objectMin, g.objectMax, g.objectBounds
}

func (g *Group) Distance() float64 {
	return g.distance
}

func (g *Group) ViewAngle() float64 {
	return g.viewAngle
}

func (g *Group) parent() *Group {
	if g.node == nil {
		return nil
	}
	return GroupOf(g.node.Parent())
}

// unbound marks the group and its ancestors as having dirty bounds.
func (g *Group) unbound() {
	for cur := g; cur != nil; cur = cur.parent() {
		if cur.state&StateBoundsDirty != 0 && cur != g {
			return
		}
		cur.state |= StateBoundsDirty
	}
}

// objectMoved flags the group after one of its elements moved without
// leaving the node.
func (g *Group) objectMoved() {
	g.state |= StateObjectDirty
	g.unbound()
}

func (g *Group) HandleInsertion(n *octree.Node, e octree.Element) {
	g.state |= StateObjectDirty | StateRebuild
	g.unbound()
}

func (g *Group) HandleRemoval(n *octree.Node, e octree.Element) {
	g.state |= StateObjectDirty | StateRebuild
	g.unbound()
}

func (g *Group) HandleDestruction(n *octree.Node) {
	g.node = nil
}

func (g *Group) HandleStateChange(n *octree.Node) {
	g.state |= StateObjectDirty | StateRebuild
	g.unbound()
}

func (g *Group) HandleChildAddition(parent, child *octree.Node) {
	if GroupOf(child) == nil {
		NewGroup(child)
	}
	g.unbound()
}

func (g *Group) HandleChildRemoval(parent, child *octree.Node) {
	g.unbound()
}

// Rebound recomputes the bounds of every dirty group in the subtree, children
// first.
func (g *Group) Rebound() {
	if g.node == nil || !g.IsDirty() {
		return
	}
	(&rebounder{}).Traverse(g.node)
}

type rebounder struct{}

func (r *rebounder) Traverse(n *octree.Node) {
	if g := GroupOf(n); g == nil || !g.IsDirty() {
		return
	}
	octree.PostOrder(r, n)
}

func (r *rebounder) Visit(n *octree.Node) {
	if g := GroupOf(n); g != nil {
		g.rebuildBounds()
	}
}

func (g *Group) rebuildBounds() {
	n := g.node

	if g.state&StateObjectDirty != 0 {
		g.rebuildObjectBounds()
		g.state &^= StateObjectDirty
	}

	switch {
	case n.IsEmpty() && n.ChildCount() == 1:
		g.bounds = false
		if cg := GroupOf(n.Child(0)); cg != nil {
			g.min, g.max, g.bounds = cg.min, cg.max, cg.bounds
			cg.state |= StateSkipFrustumCheck
		}

	case n.IsLeaf():
		g.min, g.max, g.bounds = g.objectMin, g.objectMax, g.objectBounds

	default:
		g.min, g.max, g.bounds = g.objectMin, g.objectMax, g.objectBounds
		for i := 0; i < n.ChildCount(); i++ {
			cg := GroupOf(n.Child(i))
			if cg == nil {
				continue
			}
			cg.state &^= StateSkipFrustumCheck
			if !cg.bounds {
				continue
			}

			if !g.bounds {
				g.min, g.max, g.bounds = cg.min, cg.max, true
				continue
			}
			g.min = minVec(g.min, cg.min)
			g.max = maxVec(g.max, cg.max)
		}
	}

	g.state &^= StateBoundsDirty
}

func (g *Group) rebuildObjectBounds() {
	g.objectBounds = false

	for _, e := range g.node.Elements() {
		pos := e.BinPosition()
		r := e.BinRadius()
		ext := mgl64.Vec3{r, r, r}
		min := pos.Sub(ext)
		max := pos.Add(ext)

		if !g.objectBounds {
			g.objectMin, g.objectMax, g.objectBounds = min, max, true
			continue
		}
		g.objectMin = minVec(g.objectMin, min)
		g.objectMax = maxVec(g.objectMax, max)
	}
}

// UpdateDistances computes the distance and view angle of the group as seen
// from c.
func (g *Group) UpdateDistances(c *camera.Camera) {
	center, extents, ok := g.Bounds()
	if !ok {
		return
	}

	radius := extents.Len()
	dist := center.Sub(c.Origin()).Len() - radius
	if dist < 0 {
		dist = 0
	}

	g.distance = camera.RampDistance(dist)
	if g.distance > 0 {
		g.viewAngle = math.Atan(radius / g.distance)
	} else {
		g.viewAngle = math.Pi / 2
	}
}

// ChangeLOD reports whether the distance or the view angle moved by more
// than slop times their value at the last level of detail change, in which
// case the current values become the new reference. New groups always
// change and lose their StateNewEntry flag.
func (g *Group) ChangeLOD(slop float64) bool {
	if g.state&StateNewEntry == 0 &&
		math.Abs(g.distance-g.lastDistance) <= slop*g.lastDistance &&
		math.Abs(g.viewAngle-g.lastViewAngle) <= slop*g.lastViewAngle {
		return false
	}

	g.lastDistance = g.distance
	g.lastViewAngle = g.viewAngle
	g.state |= StateRebuild
	g.state &^= StateNewEntry
	return true
}

func minVec(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{math.Min(a[0], b[0]), math.Min(a[1], b[1]), math.Min(a[2], b[2])}
}

func maxVec(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{math.Max(a[0], b[0]), math.Max(a[1], b[1]), math.Max(a[2], b[2])}
}

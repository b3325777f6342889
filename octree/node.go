package octree

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/go-gl/mathgl/mgl64"
)

// ErrTypeInvalidElement is the type of the errors logged when a nil or an
// already tracked element is inserted.
const ErrTypeInvalidElement = "octree_invalid_element"

const noChild = 0xff

// Node is an axis-aligned cubic cell of an octree. It stores the elements
// whose size best fits its scale and up to 8 children, one per octant.
type Node struct {
	root   *Root
	handle NodeHandle
	parent *Node

	center mgl64.Vec3
	size   mgl64.Vec3
	min    mgl64.Vec3
	max    mgl64.Vec3

	octant   uint8
	children []*Node
	childMap [8]uint8

	elements []Element

	// overflowed flags, per element, the elements that belong to the parent
	// level and were pushed down because the parent was full.
	overflowed []bool
	overflows  int

	listeners []Listener
}

func newNode(root *Root, center, size mgl64.Vec3, parent *Node) *Node {
	n := &Node{
		root:   root,
		parent: parent,
		center: center,
		size:   size,
	}
	n.resetChildMap()
	n.updateMinMax()

	if parent != nil {
		n.octant = parent.Octant(center)
	}
	n.handle = root.arena.alloc(n)
	return n
}

// Handle returns the stable handle of the node.
func (n *Node) Handle() NodeHandle {
	return n.handle
}

// Root returns the tree root.
func (n *Node) Root() *Root {
	return n.root
}

// Parent returns the parent node, nil for the root.
func (n *Node) Parent() *Node {
	return n.parent
}

func (n *Node) Center() mgl64.Vec3 {
	return n.center
}

// Size returns the half-size of the node cell.
func (n *Node) Size() mgl64.Vec3 {
	return n.size
}

func (n *Node) Min() mgl64.Vec3 {
	return n.min
}

func (n *Node) Max() mgl64.Vec3 {
	return n.max
}

// OctantInParent returns the octant the node occupies in its parent.
func (n *Node) OctantInParent() uint8 {
	return n.octant
}

func (n *Node) ChildCount() int {
	return len(n.children)
}

func (n *Node) Child(i int) *Node {
	return n.children[i]
}

// ChildAt returns the child occupying the given octant, or nil.
func (n *Node) ChildAt(octant uint8) *Node {
	i := n.childMap[octant&7]
	if i == noChild {
		return nil
	}
	return n.children[i]
}

func (n *Node) ElementCount() int {
	return len(n.elements)
}

// Elements returns the elements stored directly in the node. The returned
// slice must not be modified.
func (n *Node) Elements() []Element {
	return n.elements
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return len(n.children) == 0
}

// IsEmpty reports whether the node stores no element.
func (n *Node) IsEmpty() bool {
	return len(n.elements) == 0
}

// Depth returns the number of ancestors of the node.
func (n *Node) Depth() int {
	depth := 0
	for p := n.parent; p != nil; p = p.parent {
		depth++
	}
	return depth
}

func (n *Node) AddListener(l Listener) {
	n.listeners = append(n.listeners, l)
	n.validate()
}

// RemoveListener detaches l from the node and reports whether it was
// attached.
func (n *Node) RemoveListener(l Listener) bool {
	for i, nl := range n.listeners {
		if nl == l {
			n.listeners = append(n.listeners[:i], n.listeners[i+1:]...)
			return true
		}
	}
	return false
}

func (n *Node) ListenerCount() int {
	return len(n.listeners)
}

func (n *Node) Listener(i int) Listener {
	return n.listeners[i]
}

// Octant returns the octant of pos relative to the node center: bit 0 is
// set when pos is past the center on X, bit 1 on Y and bit 2 on Z.
func (n *Node) Octant(pos mgl64.Vec3) uint8 {
	var octant uint8
	if pos[0] > n.center[0] {
		octant |= 1
	}
	if pos[1] > n.center[1] {
		octant |= 2
	}
	if pos[2] > n.center[2] {
		octant |= 4
	}
	return octant
}

// IsInside reports whether pos lies in the node cell, bounds included.
func (n *Node) IsInside(pos mgl64.Vec3) bool {
	return pos[0] <= n.max[0] && pos[1] <= n.max[1] && pos[2] <= n.max[2] &&
		pos[0] >= n.min[0] && pos[1] >= n.min[1] && pos[2] >= n.min[2]
}

func (n *Node) isInsideWithRadius(pos mgl64.Vec3, radius float64) bool {
	return radius <= n.size[0]*2 && n.IsInside(pos)
}

// Contains reports whether an element with the given radius belongs to the
// node level: the radius is in ]size, 2*size], or both the radius and the
// node size are at or under the configured minimum size.
func (n *Node) Contains(radius float64) bool {
	size := n.size[0]
	minSize := n.root.conf.MinSize

	return (radius <= size*2 && radius > size) ||
		(radius <= minSize && size <= minSize)
}

// Insert stores e in the smallest suitable node of the subtree, creating
// children on demand. It returns false when e cannot be tracked.
func (n *Node) Insert(e Element) bool {
	if e == nil || e.BinIndex().Tracked() {
		logInvalidElement(e, n)
		instrumentInsert(resultInvalid)
		return false
	}

	conf := n.root.conf
	pos := e.BinPosition()
	radius := e.BinRadius()

	if n.IsInside(pos) {
		if n.Contains(radius) {
			if child := n.ChildAt(n.Octant(pos)); child != nil && child.overflows != 0 {
				child.push(e, true)
				return true
			}

			if len(n.elements)-n.overflows < conf.MaxCapacity || n.size[0] <= conf.MinSize {
				n.push(e, false)
				return true
			}
			return n.overflow(e)
		}

		if p := n.parent; p != nil && (p.Contains(radius) || radius > p.size[0]*2) {
			if p.Contains(radius) && n.overflows != 0 && p.ChildAt(p.Octant(pos)) == n {
				n.push(e, true)
				return true
			}
			return p.Insert(e)
		}

		if radius <= n.size[0] {
			if child := n.ChildAt(n.Octant(pos)); child != nil {
				return child.Insert(e)
			}

			child := n.newChild(pos)
			if child == nil {
				n.push(e, false)
				return true
			}
			n.AddChild(child, false)
			return child.Insert(e)
		}
	} else if n.parent != nil && n.Contains(radius) {
		return n.parent.Insert(e)
	}

	logs.WithTag("element_position", pos).
		WithTag("element_radius", radius).
		WithTag("node_center", n.center).
		WithTag("node_size", n.size[0]).
		Warn(errors.New("octree insertion failed").
			WithType(ErrTypeInvalidElement))
	instrumentInsert(resultFailed)
	return false
}

// newChild returns a node for the octant of pos, or nil when its center would
// be numerically indistinguishable from the node center.
func (n *Node) newChild(pos mgl64.Vec3) *Node {
	minSize := n.root.conf.MinSize
	size := n.size.Mul(0.5)
	center := pushCenter(n.center, size, pos)

	if math.Abs(center[0]-n.center[0]) < minSize &&
		math.Abs(center[1]-n.center[1]) < minSize &&
		math.Abs(center[2]-n.center[2]) < minSize {
		return nil
	}
	return newNode(n.root, center, size, n)
}

// overflow stores e, which belongs to the full node, one level down: the
// elements of the node level lying in the octant of e move with it into the
// child of that octant, so the elements of a level are found by position.
func (n *Node) overflow(e Element) bool {
	pos := e.BinPosition()
	octant := n.Octant(pos)

	child := n.ChildAt(octant)
	if child == nil {
		if child = n.newChild(pos); child == nil {
			n.push(e, false)
			return true
		}
		n.AddChild(child, false)
	}

	for i := len(n.elements) - 1; i >= 0; i-- {
		if !n.overflowed[i] && n.Octant(n.elements[i].BinPosition()) == octant {
			child.push(n.detach(i), true)
		}
	}
	child.push(e, true)
	octreeOverflows.Inc()
	return true
}

func (n *Node) push(e Element, overflowed bool) {
	e.SetBinIndex(BinIndex{Node: n.handle, Slot: len(n.elements)})
	n.elements = append(n.elements, e)
	n.overflowed = append(n.overflowed, overflowed)
	if overflowed {
		n.overflows++
	}

	for _, l := range n.listeners {
		l.HandleInsertion(n, e)
	}
	n.validate()
	instrumentInsert(resultInserted)
}

// Remove untracks e. It first uses the element bin index, then searches
// the node and the subtree at the element position, and finally scans the
// whole tree. The bin index of e is always cleared, even when e is not found.
func (n *Node) Remove(e Element) bool {
	if e == nil {
		logInvalidElement(e, n)
		return false
	}

	if owner, slot, ok := n.root.lookup(e); ok {
		owner.removeAt(slot)
		instrumentRemoval(removalFast)
		return true
	}

	for i, v := range n.elements {
		if v == e {
			n.removeAt(i)
			instrumentRemoval(removalSearch)
			return true
		}
	}

	pos := e.BinPosition()
	if n.IsInside(pos) {
		if dest := n.NodeAt(pos, e.BinRadius()); dest != n {
			return dest.Remove(e)
		}
	}

	logs.WithTag("element_position", pos).
		WithTag("element_radius", e.BinRadius()).
		WithTag("bin_index", e.BinIndex().Index()).
		Warn(errors.New("removing octree element by address"))

	found := n.root.removeByAddress(e)
	e.SetBinIndex(BinIndex{})
	if found {
		instrumentRemoval(removalAddress)
	}
	return found
}

func (n *Node) removeAt(i int) {
	n.detach(i)
	n.checkAlive()
}

// detach untracks the element at index i and returns it. The last element
// takes the freed slot.
func (n *Node) detach(i int) Element {
	e := n.elements[i]
	last := len(n.elements) - 1

	if n.overflowed[i] {
		n.overflows--
	}

	if i != last {
		moved := n.elements[last]
		n.elements[i] = moved
		n.overflowed[i] = n.overflowed[last]
		moved.SetBinIndex(BinIndex{Node: n.handle, Slot: i})
	}
	n.elements[last] = nil
	n.elements = n.elements[:last]
	n.overflowed = n.overflowed[:last]
	e.SetBinIndex(BinIndex{})

	for _, l := range n.listeners {
		l.HandleRemoval(n, e)
	}
	n.validate()
	return e
}

// NodeAt returns the smallest node of the tree that should hold an element
// of the given radius at pos. When the level of the element overflowed at pos,
// it returns the child holding the overflow.
func (n *Node) NodeAt(pos mgl64.Vec3, radius float64) *Node {
	node := n

	if node.isInsideWithRadius(pos, radius) {
		next := node.childMap[node.Octant(pos)]
		for next != noChild && node.size[0] >= radius {
			node = node.children[next]
			next = node.childMap[node.Octant(pos)]
		}

		if next != noChild && node.Contains(radius) && node.children[next].overflows != 0 {
			return node.children[next]
		}
		return node
	}

	if !node.Contains(radius) && node.parent != nil {
		return node.parent.NodeAt(pos, radius)
	}
	return node
}

// AddChild attaches child to the node. Listeners are notified unless silent
// is set.
func (n *Node) AddChild(child *Node, silent bool) {
	child.parent = n
	child.octant = n.Octant(child.center)
	n.childMap[child.octant] = uint8(len(n.children))
	n.children = append(n.children, child)

	if !silent {
		for _, l := range n.listeners {
			l.HandleChildAddition(n, child)
		}
	}
	n.validate()
}

// RemoveChild detaches the child at index i, destroying its subtree when
// destroy is set. The last child takes the freed slot.
func (n *Node) RemoveChild(i int, destroy bool) {
	child := n.children[i]

	for _, l := range n.listeners {
		l.HandleChildRemoval(n, child)
	}

	if destroy {
		child.destroy()
	}

	last := len(n.children) - 1
	n.children[i] = n.children[last]
	n.children[last] = nil
	n.children = n.children[:last]
	n.rebuildChildMap()

	n.validate()
	n.checkAlive()
}

func (n *Node) deleteChild(child *Node) {
	for i, c := range n.children {
		if c == child {
			n.RemoveChild(i, true)
			return
		}
	}

	logs.WithTag("node_center", n.center).
		WithTag("child_center", child.center).
		Warn(errors.New("deleting a node that is not a child"))
}

func (n *Node) checkAlive() {
	if n.parent != nil && len(n.children) == 0 && len(n.elements) == 0 {
		n.parent.deleteChild(n)
	}
}

func (n *Node) clearChildren() {
	for i := range n.children {
		n.children[i] = nil
	}
	n.children = n.children[:0]
	n.resetChildMap()
}

func (n *Node) resetChildMap() {
	for i := range n.childMap {
		n.childMap[i] = noChild
	}
}

func (n *Node) rebuildChildMap() {
	n.resetChildMap()
	for i, c := range n.children {
		n.childMap[c.octant] = uint8(i)
	}
}

// destroy tears down the subtree rooted at the node. Elements are untracked
// and listeners notified, then released.
func (n *Node) destroy() {
	for _, c := range n.children {
		c.destroy()
	}
	n.clearChildren()

	for i, e := range n.elements {
		e.SetBinIndex(BinIndex{})
		n.elements[i] = nil
	}
	n.elements = nil
	n.overflowed = nil
	n.overflows = 0

	listeners := n.listeners
	n.listeners = nil
	for _, l := range listeners {
		l.HandleDestruction(n)
	}

	n.root.arena.release(n.handle)
	n.parent = nil
}

func (n *Node) setCell(center, size mgl64.Vec3) {
	n.center = center
	n.size = size
	n.updateMinMax()
}

func (n *Node) updateMinMax() {
	n.min = n.center.Sub(n.size)
	n.max = n.center.Add(n.size)
}

// pushCenter moves center by size toward pos on every axis.
func pushCenter(center, size, pos mgl64.Vec3) mgl64.Vec3 {
	for i := 0; i < 3; i++ {
		if pos[i] > center[i] {
			center[i] += size[i]
		} else {
			center[i] -= size[i]
		}
	}
	return center
}

func logInvalidElement(e Element, n *Node) {
	entry := logs.WithTag("node_center", n.center)
	if e != nil {
		entry = entry.
			WithTag("element_position", e.BinPosition()).
			WithTag("bin_index", e.BinIndex().Index())
	}

	entry.Warn(errors.New("invalid element given to octree node").
		WithType(ErrTypeInvalidElement))
}

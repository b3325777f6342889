package octree

import "github.com/go-gl/mathgl/mgl64"

// Element is an entity indexed by an octree. Elements are owned by the
// caller: the tree only references them and keeps their bin index up to date.
//
// Implementations must be comparable, pointer types are the usual choice.
type Element interface {
	// Returns the point used to place the element in the tree.
	BinPosition() mgl64.Vec3

	// Returns the bounding radius used to select the tree level.
	BinRadius() float64

	// Returns the location of the element inside the tree.
	BinIndex() BinIndex

	// Sets the location of the element inside the tree.
	SetBinIndex(BinIndex)
}

// BinIndex locates an element inside the node that tracks it. The zero value
// means the element is not tracked by any node.
type BinIndex struct {
	Node NodeHandle
	Slot int
}

// Tracked reports whether the index points to a node.
func (b BinIndex) Tracked() bool {
	return !b.Node.IsZero()
}

// Index returns the slot of the element in its node, or -1 when the element
// is not tracked.
func (b BinIndex) Index() int {
	if !b.Tracked() {
		return -1
	}
	return b.Slot
}

// Bin is meant to be embedded by element implementations to store their bin
// index.
type Bin struct {
	index BinIndex
}

func (b *Bin) BinIndex() BinIndex {
	return b.index
}

func (b *Bin) SetBinIndex(v BinIndex) {
	b.index = v
}

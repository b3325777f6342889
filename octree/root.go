package octree

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/go-gl/mathgl/mgl64"
)

// ErrTypeOutOfRange is the type of the errors logged when a root refuses an
// element whose radius or position exceeds the configured ceilings.
const ErrTypeOutOfRange = "octree_out_of_range"

// Root is the top node of an octree. It grows to absorb elements inserted
// outside of its cell and can collapse single child chains.
type Root struct {
	*Node

	conf    *Config
	arena   arena
	walking int
	logged  map[string]bool
}

// NewRoot creates a tree centered on center with the given half-size, rounded
// up to the nearest power of two multiple of the config min size. A nil config
// means DefaultConfig.
func NewRoot(conf *Config, center mgl64.Vec3, halfSize float64) (*Root, error) {
	if conf == nil {
		conf = DefaultConfig()
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.New("creating octree root failed").
			WithType(ErrTypeInvalidConfig).
			Wrap(err)
	}

	if !(halfSize > 0) || math.IsInf(halfSize, 0) {
		return nil, errors.New("root half-size must be a positive number").
			WithType(ErrTypeInvalidConfig).
			WithTag("half_size", halfSize)
	}

	r := &Root{
		conf:   conf,
		logged: make(map[string]bool),
	}
	size := alignSize(halfSize, conf.MinSize)
	r.Node = newNode(r, center, mgl64.Vec3{size, size, size}, nil)
	return r, nil
}

// alignSize returns the smallest minSize * 2^k that is not under size. Halving
// such a size down the tree always lands on minSize.
func alignSize(size, minSize float64) float64 {
	aligned := minSize
	for aligned < size {
		aligned *= 2
	}
	return aligned
}

func (r *Root) Config() *Config {
	return r.conf
}

// Walking returns the number of walks in progress on the tree.
func (r *Root) Walking() int {
	return r.walking
}

// NodeByHandle returns the node referenced by h, or nil when the node has
// been destroyed.
func (r *Root) NodeByHandle(h NodeHandle) *Node {
	return r.arena.get(h)
}

// Owner returns the node currently tracking e, or nil.
func (r *Root) Owner(e Element) *Node {
	if n, _, ok := r.lookup(e); ok {
		return n
	}
	return nil
}

// Insert stores e in the tree, growing the root when e lies outside of it.
// Elements with a radius over the configured maximum, or farther than the
// configured magnitude from the root center on any axis, are refused.
func (r *Root) Insert(e Element) bool {
	if e == nil || e.BinIndex().Tracked() {
		logInvalidElement(e, r.Node)
		instrumentInsert(resultInvalid)
		return false
	}

	radius := e.BinRadius()
	if math.IsNaN(radius) || radius < 0 || radius > r.conf.MaxRadius {
		r.reject(reasonRadius, e)
		return false
	}

	pos := e.BinPosition()
	for i := 0; i < 3; i++ {
		if !(math.Abs(pos[i]-r.center[i]) < r.conf.MaxMagnitude) {
			r.reject(reasonMagnitude, e)
			return false
		}
	}

	r.grow(pos, radius)
	return r.NodeAt(pos, radius).Insert(e)
}

func (r *Root) reject(reason string, e Element) {
	instrumentRejection(reason)
	if r.logged[reason] {
		return
	}
	r.logged[reason] = true

	logs.WithTag("reason", reason).
		WithTag("element_position", e.BinPosition()).
		WithTag("element_radius", e.BinRadius()).
		WithTag("root_center", r.center).
		WithTag("max_radius", r.conf.MaxRadius).
		WithTag("max_magnitude", r.conf.MaxMagnitude).
		Warn(errors.New("octree element out of range").
			WithType(ErrTypeOutOfRange))
}

// grow doubles the root until it holds pos with a size greater than radius.
// The current content is moved into an intermediate node matching the old
// root cell. It returns the number of doublings.
func (r *Root) grow(pos mgl64.Vec3, radius float64) int {
	steps := 0

	for !(r.size[0] > radius && r.IsInside(pos)) {
		var wrapper *Node
		if len(r.children) != 0 || len(r.elements) != 0 {
			wrapper = newNode(r, r.center, r.size, nil)

			for _, c := range r.children {
				wrapper.AddChild(c, true)
			}
			r.clearChildren()

			for i, e := range r.elements {
				e.SetBinIndex(BinIndex{Node: wrapper.handle, Slot: i})
				wrapper.elements = append(wrapper.elements, e)
				wrapper.overflowed = append(wrapper.overflowed, false)
				r.elements[i] = nil
			}
			r.elements = r.elements[:0]
			r.overflowed = r.overflowed[:0]
		}

		size := r.size
		r.setCell(pushCenter(r.center, size, pos), size.Mul(2))

		if wrapper != nil {
			r.AddChild(wrapper, false)
		}

		steps++
		octreeGrowths.Inc()
	}

	if steps != 0 {
		for _, l := range r.listeners {
			l.HandleStateChange(r.Node)
		}

		logs.WithTag("steps", steps).
			WithTag("root_center", r.center).
			WithTag("root_size", r.size[0]).
			Debug("octree root grown")
	}
	return steps
}

// Balance collapses the chain of empty single child nodes under an empty
// root: the root takes the cell of the last node of the chain and adopts its
// children. It reports whether the tree changed.
func (r *Root) Balance() bool {
	changed := false

	for len(r.elements) == 0 && len(r.children) == 1 {
		child := r.children[0]
		if child.IsLeaf() || !child.IsEmpty() {
			break
		}

		grandChildren := make([]*Node, len(child.children))
		copy(grandChildren, child.children)
		child.clearChildren()

		r.clearChildren()
		child.destroy()

		r.setCell(child.center, child.size)
		for _, c := range grandChildren {
			r.AddChild(c, true)
		}

		changed = true
		octreeCollapses.Inc()
	}

	if changed {
		for _, l := range r.listeners {
			l.HandleStateChange(r.Node)
		}
	}
	return changed
}

// Destroy untracks every element and tears down every node of the tree. The
// root stays usable as an empty tree.
func (r *Root) Destroy() {
	r.Node.destroy()
	r.handle = r.arena.alloc(r.Node)
}

func (r *Root) lookup(e Element) (*Node, int, bool) {
	idx := e.BinIndex()
	n := r.arena.get(idx.Node)
	if n == nil || idx.Slot < 0 || idx.Slot >= len(n.elements) || n.elements[idx.Slot] != e {
		return nil, -1, false
	}
	return n, idx.Slot, true
}

func (r *Root) removeByAddress(e Element) bool {
	var owner *Node
	slot := -1

	Walk(r.Node, func(n *Node) {
		if owner != nil {
			return
		}
		for i, v := range n.elements {
			if v == e {
				owner = n
				slot = i
				return
			}
		}
	})

	if owner == nil {
		return false
	}
	owner.removeAt(slot)
	return true
}

// Stats describes the shape of a tree.
type Stats struct {
	Nodes    int     `json:"nodes"`
	Elements int     `json:"elements"`
	Depth    int     `json:"depth"`
	HalfSize float64 `json:"half_size"`
}

// Stats walks the tree and returns its shape.
func (r *Root) Stats() Stats {
	s := Stats{HalfSize: r.size[0]}
	Walk(r.Node, func(n *Node) {
		s.Nodes++
		s.Elements += len(n.elements)
		if d := n.Depth(); d > s.Depth {
			s.Depth = d
		}
	})
	return s
}

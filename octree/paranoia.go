package octree

import (
	"fmt"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const ErrTypeCorruptedTree = "octree_corrupted"

// validate panics when the node structure is inconsistent. It only runs in
// builds tagged with octree_paranoia.
func (n *Node) validate() {
	if !paranoid {
		return
	}

	if n.root.walking > 0 {
		panic(fmt.Sprintf("octree: node %v mutated while walking", n.center))
	}

	if err := n.check(); err != nil {
		panic(fmt.Sprintf("octree: %v", err))
	}
}

// Check walks the tree and returns the first structural inconsistency found.
func (r *Root) Check() error {
	var err error
	Walk(r.Node, func(n *Node) {
		if err == nil {
			err = n.check()
		}
	})
	return err
}

func (n *Node) check() error {
	for i, l := range n.listeners {
		if l == nil {
			return errors.Newf("nil listener %d", i).
				WithType(ErrTypeCorruptedTree).
				WithTag("node_center", n.center)
		}
	}

	if len(n.overflowed) != len(n.elements) {
		return errors.Newf("%d overflow flags for %d elements", len(n.overflowed), len(n.elements)).
			WithType(ErrTypeCorruptedTree).
			WithTag("node_center", n.center)
	}

	overflows := 0
	for _, o := range n.overflowed {
		if o {
			overflows++
		}
	}
	if overflows != n.overflows || (overflows != 0 && n.parent == nil) {
		return errors.Newf("node counts %d overflowed elements, found %d", n.overflows, overflows).
			WithType(ErrTypeCorruptedTree).
			WithTag("node_center", n.center)
	}

	for i, e := range n.elements {
		if idx := e.BinIndex(); idx.Node != n.handle || idx.Slot != i {
			return errors.Newf("element %d has a stale bin index", i).
				WithType(ErrTypeCorruptedTree).
				WithTag("node_center", n.center).
				WithTag("bin_index", idx.Index())
		}
	}

	var seen [8]bool
	for i, c := range n.children {
		octant := n.Octant(c.center)
		if c.octant != octant {
			return errors.Newf("child cached octant %d, actual %d", c.octant, octant).
				WithType(ErrTypeCorruptedTree).
				WithTag("node_center", n.center).
				WithTag("child_center", c.center)
		}
		if seen[octant] {
			return errors.Newf("two children in octant %d", octant).
				WithType(ErrTypeCorruptedTree).
				WithTag("node_center", n.center)
		}
		seen[octant] = true

		if int(n.childMap[octant]) != i {
			return errors.Newf("child map points octant %d to %d instead of %d", octant, n.childMap[octant], i).
				WithType(ErrTypeCorruptedTree).
				WithTag("node_center", n.center)
		}
		if c.parent != n {
			return errors.New("child has a foreign parent").
				WithType(ErrTypeCorruptedTree).
				WithTag("node_center", n.center).
				WithTag("child_center", c.center)
		}
	}
	return nil
}

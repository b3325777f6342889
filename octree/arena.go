package octree

// NodeHandle is a stable reference to a node. A handle to a destroyed node
// never resolves, even when its slot is reused by a newer node.
type NodeHandle struct {
	slot uint32
	gen  uint32
}

// IsZero reports whether the handle references nothing.
func (h NodeHandle) IsZero() bool {
	return h.gen == 0
}

type arena struct {
	nodes []*Node
	gens  []uint32
	free  []uint32
}

func (a *arena) alloc(n *Node) NodeHandle {
	var slot uint32
	if l := len(a.free); l > 0 {
		slot = a.free[l-1]
		a.free = a.free[:l-1]
		a.nodes[slot] = n
	} else {
		slot = uint32(len(a.nodes))
		a.nodes = append(a.nodes, n)
		a.gens = append(a.gens, 0)
	}

	a.gens[slot]++
	if a.gens[slot] == 0 {
		a.gens[slot] = 1
	}
	return NodeHandle{slot: slot, gen: a.gens[slot]}
}

func (a *arena) get(h NodeHandle) *Node {
	if h.IsZero() || int(h.slot) >= len(a.nodes) || a.gens[h.slot] != h.gen {
		return nil
	}
	return a.nodes[h.slot]
}

func (a *arena) release(h NodeHandle) {
	if a.get(h) == nil {
		return
	}
	a.nodes[h.slot] = nil
	a.free = append(a.free, h.slot)
}

func (a *arena) len() int {
	return len(a.nodes) - len(a.free)
}

package spatial

import "github.com/aukilabs/kenaz/octree"

// Mode selects the groups a state change applies to.
type Mode int

const (
	// ModeSingle changes the group only.
	ModeSingle Mode = iota

	// ModeBranch changes the group and every group of its subtree.
	ModeBranch

	// ModeDiff changes the group and its subtree, skipping the subtrees whose
	// top group already is in the requested state.
	ModeDiff
)

// SetState sets the flags of s on the group, and on its subtree depending on
// mode.
func (g *Group) SetState(s State, mode Mode) {
	g.changeState(s, true, mode)
}

// ClearState clears the flags of s on the group, and on its subtree
// depending on mode.
func (g *Group) ClearState(s State, mode Mode) {
	g.changeState(s, false, mode)
}

func (g *Group) changeState(s State, set bool, mode Mode) {
	if mode == ModeSingle || g.node == nil {
		g.applyState(s, set)
		return
	}

	t := &stateTraveler{
		state: s,
		set:   set,
		diff:  mode == ModeDiff,
	}
	t.Traverse(g.node)
}

func (g *Group) applyState(s State, set bool) {
	if set {
		g.state |= s
		return
	}
	g.state &^= s
}

func (g *Group) inState(s State, set bool) bool {
	if set {
		return g.state&s == s
	}
	return g.state&s == 0
}

type stateTraveler struct {
	state State
	set   bool
	diff  bool
}

func (t *stateTraveler) Traverse(n *octree.Node) {
	g := GroupOf(n)
	if g == nil {
		return
	}
	if t.diff && g.inState(t.state, t.set) {
		return
	}
	octree.PreOrder(t, n)
}

func (t *stateTraveler) Visit(n *octree.Node) {
	if g := GroupOf(n); g != nil {
		g.applyState(t.state, t.set)
	}
}

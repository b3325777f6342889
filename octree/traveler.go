package octree

// Traveler walks a tree. Traverse decides whether and how a subtree is
// walked, Visit handles a single node. Travelers must not change the tree
// topology while walking.
type Traveler interface {
	Traverse(n *Node)
	Visit(n *Node)
}

// PreOrder visits n and then traverses its children with t.
func PreOrder(t Traveler, n *Node) {
	n.root.walking++
	defer func() { n.root.walking-- }()

	t.Visit(n)
	for _, c := range n.children {
		t.Traverse(c)
	}
}

// PostOrder traverses the children of n with t and then visits n.
func PostOrder(t Traveler, n *Node) {
	n.root.walking++
	defer func() { n.root.walking-- }()

	for _, c := range n.children {
		t.Traverse(c)
	}
	t.Visit(n)
}

// Walk calls fn on every node of the subtree rooted at n, parents first.
func Walk(n *Node, fn func(*Node)) {
	walker{fn: fn}.Traverse(n)
}

// WalkPostOrder calls fn on every node of the subtree rooted at n, children
// first.
func WalkPostOrder(n *Node, fn func(*Node)) {
	walker{fn: fn, postOrder: true}.Traverse(n)
}

type walker struct {
	fn        func(*Node)
	postOrder bool
}

func (w walker) Traverse(n *Node) {
	if w.postOrder {
		PostOrder(w, n)
		return
	}
	PreOrder(w, n)
}

func (w walker) Visit(n *Node) {
	w.fn(n)
}

package octree

// Listener is an observer attached to a node. A listener can be shared by
// several nodes, a node never owns it: destroying a node notifies its
// listeners with HandleDestruction and then drops its references to them.
type Listener interface {
	// Handles an element being stored in the node.
	HandleInsertion(n *Node, e Element)

	// Handles an element leaving the node.
	HandleRemoval(n *Node, e Element)

	// Handles the destruction of the node. The node must not be used by the
	// listener afterwards.
	HandleDestruction(n *Node)

	// Handles a change of the node cell (center or size).
	HandleStateChange(n *Node)

	// Handles a child being attached to the node.
	HandleChildAddition(parent, child *Node)

	// Handles a child being detached from the node.
	HandleChildRemoval(parent, child *Node)
}

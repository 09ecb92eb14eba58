package ptree

// SetRoot makes newRoot the evaluation root by reorienting the parent
// pointers along the path between the old and the new root, and
// returns the previous root. No cached message is touched: messages
// are keyed by directed node pair and under a time-reversible model
// the total cost does not depend on the root choice.
func (t *Tree) SetRoot(newRoot *Node) *Node {
	oldRoot := t.root
	if newRoot == oldRoot {
		return oldRoot
	}
	path := []*Node{newRoot}
	for n := newRoot; n.Parent != nil; n = n.Parent {
		path = append(path, n.Parent)
	}
	for i := len(path) - 1; i > 0; i-- {
		path[i].Parent = path[i-1]
	}
	newRoot.Parent = nil
	t.root = newRoot
	return oldRoot
}

// Package ptree implements an unrooted phylogenetic tree with an
// evaluation root, a per-directed-edge cost cache populated by
// Felsenstein pruning, branch-length optimization and sequence
// placement.
package ptree

import (
	"bitbucket.org/egrice/phyloplace/bio"
)

// Node is a tree node. Leaves carry an aligned digital sequence;
// internal nodes carry no sequence of their own. Parent is nil for the
// current evaluation root.
type Node struct {
	ID       int
	Name     string
	Seq      bio.Seq
	Anno     string
	AnnoDist float64
	Parent   *Node

	neighbors []*Node
}

// IsLeaf returns true if the node has exactly one neighbor.
func (node *Node) IsLeaf() bool {
	return len(node.neighbors) == 1
}

// IsInternal returns true if the node has more than one neighbor.
func (node *Node) IsInternal() bool {
	return len(node.neighbors) > 1
}

// IsRoot returns true if the node is the current evaluation root.
func (node *Node) IsRoot() bool {
	return node.Parent == nil
}

// IsTip returns true for an internal node whose children are all
// leaves.
func (node *Node) IsTip() bool {
	if !node.IsInternal() {
		return false
	}
	for _, c := range node.Children() {
		if !c.IsLeaf() {
			return false
		}
	}
	return true
}

// Neighbors returns the node's neighbors in insertion order.
func (node *Node) Neighbors() []*Node {
	return node.neighbors
}

// Children returns the neighbors other than the parent, in insertion
// order.
func (node *Node) Children() []*Node {
	children := make([]*Node, 0, len(node.neighbors))
	for _, n := range node.neighbors {
		if n != node.Parent {
			children = append(children, n)
		}
	}
	return children
}

// FirstChild returns the first child or nil for a childless node.
func (node *Node) FirstChild() *Node {
	for _, n := range node.neighbors {
		if n != node.Parent {
			return n
		}
	}
	return nil
}

// LastChild returns the last child or nil for a childless node.
func (node *Node) LastChild() *Node {
	for i := len(node.neighbors) - 1; i >= 0; i-- {
		if node.neighbors[i] != node.Parent {
			return node.neighbors[i]
		}
	}
	return nil
}

// FirstLeaf descends via first children until a leaf is reached.
func (node *Node) FirstLeaf() *Node {
	for !node.IsLeaf() {
		node = node.FirstChild()
	}
	return node
}

// LastLeaf descends via last children until a leaf is reached.
func (node *Node) LastLeaf() *Node {
	for !node.IsLeaf() {
		node = node.LastChild()
	}
	return node
}

// RandomLeaf descends choosing among children with the supplied
// selector until a leaf is reached. choose(n) must return a value in
// [0, n).
func (node *Node) RandomLeaf(choose func(n int) int) *Node {
	for !node.IsLeaf() {
		children := node.Children()
		node = children[choose(len(children))]
	}
	return node
}

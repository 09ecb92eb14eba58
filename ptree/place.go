package ptree

import (
	"fmt"

	"bitbucket.org/egrice/phyloplace/bio"
)

// PlaceSeq grafts a new aligned sequence onto the branch between the
// adjacent nodes u and v: a new internal node r splits the branch
// (half the original length on each side), a new leaf n carrying seq
// hangs off r with initial pendant length d0, the tree is re-rooted at
// r and the pendant branch is optimized over the inclusive column
// range [start, end]. Both new nodes get fresh ids appended after all
// existing ones; the new leaf is returned.
func (t *Tree) PlaceSeq(name string, seq bio.Seq, u, v *Node, d0 float64, start, end int) (*Node, error) {
	if len(seq) != t.csLen {
		return nil, fmt.Errorf("sequence <%s> has length %d, tree has %d columns",
			name, len(seq), t.csLen)
	}
	if !t.adjacent(u, v) {
		return nil, fmt.Errorf("nodes %d and %d do not share a branch", u.ID, v.ID)
	}
	if d0 < 0 {
		return nil, fmt.Errorf("negative pendant length %g", d0)
	}

	// The target edge must be evaluated in both directions: its two
	// messages exclude the branch itself and survive the split.
	for j := start; j <= end; j++ {
		t.msgColumn(u, v, j)
		t.msgColumn(v, u, j)
	}

	p, c := u, v
	if u.Parent == v {
		p, c = v, u
	}

	r := &Node{ID: len(t.nodes)}
	t.nodes = append(t.nodes, r)
	n := &Node{ID: len(t.nodes), Name: name, Seq: seq}
	t.nodes = append(t.nodes, n)

	for i, nb := range u.neighbors {
		if nb == v {
			u.neighbors[i] = r
		}
	}
	for i, nb := range v.neighbors {
		if nb == u {
			v.neighbors[i] = r
		}
	}
	r.neighbors = []*Node{u, v, n}
	n.neighbors = []*Node{r}
	c.Parent = r
	r.Parent = p
	n.Parent = r

	key := newEdgeKey(u.ID, v.ID)
	w0 := t.brLen[key]
	delete(t.brLen, key)
	delete(t.prMat, key)
	t.brLen[newEdgeKey(u.ID, r.ID)] = w0 / 2
	t.brLen[newEdgeKey(v.ID, r.ID)] = w0 / 2
	t.brLen[newEdgeKey(n.ID, r.ID)] = d0

	// Re-key the target edge's messages onto the two half-edges.
	if m, ok := t.cost[dirKey{u.ID, v.ID}]; ok {
		t.cost[dirKey{u.ID, r.ID}] = m
		delete(t.cost, dirKey{u.ID, v.ID})
	}
	if m, ok := t.cost[dirKey{v.ID, u.ID}]; ok {
		t.cost[dirKey{v.ID, r.ID}] = m
		delete(t.cost, dirKey{v.ID, u.ID})
	}

	// Everything that looks at the split point from outside now also
	// sees the new leaf.
	t.resetSpanning(n, r)

	t.SetRoot(r)
	length := t.OptimizeBranchLength(n, r, start, end)
	log.Infof("placed <%s> on branch %d--%d, pendant length %g", name, u.ID, v.ID, length)
	return n, nil
}

package ptree

import (
	"fmt"
	"sort"

	"github.com/gonum/matrix/mat64"

	"bitbucket.org/egrice/phyloplace/optimize"
)

// Copy returns a deep copy of the tree: nodes, orientation, branch
// lengths, cached costs and a cloned model.
func (t *Tree) Copy() *Tree {
	nt := &Tree{
		nodes:    make([]*Node, len(t.nodes)),
		csLen:    t.csLen,
		brLen:    make(map[edgeKey]float64, len(t.brLen)),
		cost:     make(map[dirKey][]float64, len(t.cost)),
		prMat:    make(map[edgeKey]*mat64.Dense),
		leafCost: t.leafCost,
	}
	for id, node := range t.nodes {
		nt.nodes[id] = &Node{
			ID:       node.ID,
			Name:     node.Name,
			Seq:      node.Seq,
			Anno:     node.Anno,
			AnnoDist: node.AnnoDist,
		}
	}
	for id, node := range t.nodes {
		nn := nt.nodes[id]
		nn.neighbors = make([]*Node, len(node.neighbors))
		for i, nb := range node.neighbors {
			nn.neighbors[i] = nt.nodes[nb.ID]
		}
		if node.Parent != nil {
			nn.Parent = nt.nodes[node.Parent.ID]
		}
	}
	nt.root = nt.nodes[t.root.ID]
	for key, length := range t.brLen {
		nt.brLen[key] = length
	}
	for key, m := range t.cost {
		nt.cost[key] = append([]float64(nil), m...)
	}
	if t.model != nil {
		nt.model = t.model.Clone()
	}
	return nt
}

// BranchModel adapts a tree to the optimize package so every branch
// length can be refined jointly: one bounded parameter per undirected
// edge, likelihood = -TreeCost.
type BranchModel struct {
	tree       *Tree
	edges      []edgeKey
	lengths    []float64
	parameters optimize.FloatParameters
}

// NewBranchModel creates a branch-length optimization model over the
// given tree. The tree is mutated in place as parameters change.
func NewBranchModel(t *Tree) *BranchModel {
	bm := &BranchModel{tree: t}
	for key := range t.brLen {
		bm.edges = append(bm.edges, key)
	}
	sort.Slice(bm.edges, func(i, j int) bool {
		if bm.edges[i].a != bm.edges[j].a {
			return bm.edges[i].a < bm.edges[j].a
		}
		return bm.edges[i].b < bm.edges[j].b
	})
	bm.lengths = make([]float64, len(bm.edges))
	for i, key := range bm.edges {
		bm.lengths[i] = t.brLen[key]
		par := optimize.NewBasicFloatParameter(&bm.lengths[i],
			fmt.Sprintf("br%d-%d", key.a, key.b))
		par.SetMin(BranchEps)
		par.SetMax(MaxBranchLength)
		i := i
		par.SetOnChange(func() {
			key := bm.edges[i]
			bm.tree.SetBranchLength(bm.tree.nodes[key.a], bm.tree.nodes[key.b],
				bm.lengths[i])
		})
		bm.parameters.Append(par)
	}
	return bm
}

// GetFloatParameters returns the branch-length parameters.
func (bm *BranchModel) GetFloatParameters() optimize.FloatParameters {
	return bm.parameters
}

// Likelihood returns the tree log likelihood for the current branch
// lengths.
func (bm *BranchModel) Likelihood() float64 {
	return -bm.tree.TreeCost()
}

// Copy returns an independent branch model over a copied tree.
func (bm *BranchModel) Copy() optimize.Optimizable {
	return NewBranchModel(bm.tree.Copy())
}

// OptimizeAllBranchLengths refines every branch length jointly with
// LBFGSB and leaves the tree at the best lengths found. Returns the
// final tree cost.
func (t *Tree) OptimizeAllBranchLengths() float64 {
	bm := NewBranchModel(t)
	opt := optimize.NewLBFGSB()
	opt.Quiet = true
	opt.SetOptimizable(bm)
	opt.Run(MaxBranchIter)
	if best := opt.GetMaxLParameters(); best != nil {
		bm.parameters.SetValues(best)
	}
	return t.TreeCost()
}

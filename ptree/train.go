package ptree

import (
	"fmt"

	"github.com/gonum/matrix/mat64"

	"bitbucket.org/egrice/phyloplace/bio"
)

// ModelFreqEst returns observed base counts (A, C, G, T) over every
// leaf sequence; gaps are skipped.
func (t *Tree) ModelFreqEst() []float64 {
	freq := make([]float64, NBase)
	for _, node := range t.nodes {
		if !node.IsLeaf() {
			continue
		}
		for _, b := range node.Seq {
			if b < NBase {
				freq[b]++
			}
		}
	}
	return freq
}

// ModelTransitionSet extracts observed pairwise transition count
// matrices from the tree with a named strategy: "gojobori" compares
// sibling leaves pairwise under their shared parent, "goldman"
// compares reconstructed ancestral states along every branch. An
// unknown strategy name is a hard error.
func (t *Tree) ModelTransitionSet(method string) ([]*mat64.Dense, error) {
	switch method {
	case "gojobori":
		return t.gojoboriSet(), nil
	case "goldman":
		return t.goldmanSet(), nil
	}
	return nil, fmt.Errorf("unknown training method '%s'", method)
}

// gojoboriSet builds one count matrix per sibling leaf pair, counting
// columns where both leaves show a base.
func (t *Tree) gojoboriSet() []*mat64.Dense {
	var ps []*mat64.Dense
	for _, node := range t.nodes {
		if !node.IsInternal() {
			continue
		}
		var leaves []*Node
		for _, c := range node.Children() {
			if c.IsLeaf() {
				leaves = append(leaves, c)
			}
		}
		for i := 0; i < len(leaves); i++ {
			for k := i + 1; k < len(leaves); k++ {
				p := pairCounts(leaves[i].Seq, leaves[k].Seq)
				if p != nil {
					ps = append(ps, p)
				}
			}
		}
	}
	return ps
}

// pairCounts counts per-column base transitions between two aligned
// sequences, skipping columns where either shows a gap. Returns nil
// when no column is comparable.
func pairCounts(a, b bio.Seq) *mat64.Dense {
	p := mat64.NewDense(NBase, NBase, nil)
	seen := false
	for j := range a {
		if a[j] >= NBase || b[j] >= NBase {
			continue
		}
		p.Set(int(a[j]), int(b[j]), p.At(int(a[j]), int(b[j]))+1)
		seen = true
	}
	if !seen {
		return nil
	}
	return p
}

// goldmanSet reconstructs ancestral states by per-column majority vote
// over each node's children and builds one count matrix per branch.
func (t *Tree) goldmanSet() []*mat64.Dense {
	states := t.ancestralStates()
	var ps []*mat64.Dense
	for _, node := range t.nodes {
		if node.Parent == nil {
			continue
		}
		p := pairCounts(states[node.Parent.ID], states[node.ID])
		if p != nil {
			ps = append(ps, p)
		}
	}
	return ps
}

// ancestralStates assigns every node a per-column state: the observed
// sequence for leaves and the most frequent non-gap child state for
// internal nodes (ties resolved toward the smaller code, all-gap stays
// a gap).
func (t *Tree) ancestralStates() []bio.Seq {
	states := make([]bio.Seq, len(t.nodes))
	var fill func(node *Node)
	fill = func(node *Node) {
		children := node.Children()
		for _, c := range children {
			fill(c)
		}
		if node.IsLeaf() {
			states[node.ID] = node.Seq
			return
		}
		seq := make(bio.Seq, t.csLen)
		for j := 0; j < t.csLen; j++ {
			var counts [NBase]int
			for _, c := range children {
				if b := states[c.ID][j]; b < NBase {
					counts[b]++
				}
			}
			best, bestCount := byte(bio.GapCode), 0
			for s := 0; s < NBase; s++ {
				if counts[s] > bestCount {
					best, bestCount = byte(s), counts[s]
				}
			}
			seq[j] = best
		}
		states[node.ID] = seq
	}
	fill(t.root)
	return states
}

// TrainModel trains the attached model from the tree's observed data
// using the named extraction strategy and drops every cached cost.
func (t *Tree) TrainModel(method string) error {
	ps, err := t.ModelTransitionSet(method)
	if err != nil {
		return err
	}
	if err = t.model.Train(ps, t.ModelFreqEst()); err != nil {
		return err
	}
	t.ResetAllCost()
	log.Noticef("trained %s model with method %s on %d transition matrices",
		t.model.Type(), method, len(ps))
	return nil
}

package ptree

import (
	"math"
	"testing"

	"bitbucket.org/egrice/phyloplace/bio"
	"bitbucket.org/egrice/phyloplace/dna"
)

const smallDiff = 1e-6

func appreq(a, b float64) bool {
	return math.Abs(a-b) <= smallDiff
}

// testModel returns a GTR model with deliberately uneven frequencies
// and rates.
func testModel(tst *testing.T) dna.Model {
	g := dna.NewGTR()
	err := g.SetParameters([]float64{0.1, 0.2, 0.3, 0.4}, []float64{1, 2, 3, 4, 5, 6})
	if err != nil {
		tst.Fatal("Error setting model parameters:", err)
	}
	return g
}

// smallTree builds a four-leaf tree with an eight-column alignment,
// one gap included.
func smallTree(tst *testing.T) *Tree {
	topo := &Topology{
		Names: []string{"a", "b", "c", "d", "", ""},
		Edges: []TopoEdge{
			{0, 4, 0.1},
			{1, 4, 0.2},
			{2, 5, 0.3},
			{3, 5, 0.15},
			{4, 5, 0.25},
		},
		Root: 4,
	}
	t, err := New(topo)
	if err != nil {
		tst.Fatal("Error building tree:", err)
	}
	msa := bio.NewMSA()
	for name, seq := range map[string]string{
		"a": "ACGTACGT",
		"b": "ACGTACGA",
		"c": "ACGTAC-T",
		"d": "ACCTACGT",
	} {
		if err = msa.Add(name, bio.EncodeSeq(seq)); err != nil {
			tst.Fatal("Error building alignment:", err)
		}
	}
	if err = t.LoadMSA(msa); err != nil {
		tst.Fatal("Error loading alignment:", err)
	}
	t.SetModel(testModel(tst))
	return t
}

func TestTwoLeafClosedForm(tst *testing.T) {
	topo := &Topology{
		Names: []string{"a", "b"},
		Edges: []TopoEdge{{0, 1, 0.5}},
		Root:  0,
	}
	t, err := New(topo)
	if err != nil {
		tst.Fatal("Error building tree:", err)
	}
	msa := bio.NewMSA()
	msa.Add("a", bio.EncodeSeq("ACGT-"))
	msa.Add("b", bio.EncodeSeq("AGGTC"))
	if err = t.LoadMSA(msa); err != nil {
		tst.Fatal("Error loading alignment:", err)
	}
	model := testModel(tst)
	t.SetModel(model)

	// the total cost of a two-leaf tree is the closed-form pair
	// probability under the single connecting branch
	pi := model.Pi()
	p := model.Pr(0.5)
	sa, _ := t.GetNode(0)
	sb, _ := t.GetNode(1)
	for j := 0; j < 5; j++ {
		sum := 0.0
		for s := 0; s < NBase; s++ {
			if int(sa.Seq[j]) != s && sa.Seq[j] != bio.GapCode {
				continue
			}
			inner := 0.0
			for x := 0; x < NBase; x++ {
				if int(sb.Seq[j]) != x && sb.Seq[j] != bio.GapCode {
					continue
				}
				inner += p.At(s, x)
			}
			sum += pi[s] * inner
		}
		want := -math.Log(sum)
		got := t.TreeCostSite(j)
		if !appreq(got, want) {
			tst.Errorf("Column %d: cost %v, want %v", j, got, want)
		}
	}
}

func TestRootInvariance(tst *testing.T) {
	t := smallTree(tst)
	want := t.TreeCost()
	if math.IsInf(want, 0) || math.IsNaN(want) {
		tst.Fatal("Tree cost is not finite:", want)
	}
	for id := 0; id < t.NumNodes(); id++ {
		node, _ := t.GetNode(id)
		t.SetRoot(node)
		got := t.TreeCost()
		if !appreq(got, want) {
			tst.Errorf("Tree cost at root %d: %v, want %v", id, got, want)
		}
	}
}

func TestEvaluateAll(tst *testing.T) {
	t := smallTree(tst)
	t.EvaluateAll()
	root := t.Root()
	for _, c := range root.Children() {
		if !t.IsEvaluated(c, root) {
			tst.Errorf("Message %d->%d not evaluated", c.ID, root.ID)
		}
	}
	parallel := t.TreeCost()

	lazy := smallTree(tst).TreeCost()
	if !appreq(parallel, lazy) {
		tst.Errorf("Parallel cost %v differs from lazy cost %v", parallel, lazy)
	}
}

func TestTreeCostRange(tst *testing.T) {
	t := smallTree(tst)
	total := 0.0
	for j := 0; j < t.NumAlignSites(); j++ {
		total += t.TreeCostSite(j)
	}
	if !appreq(total, t.TreeCost()) {
		tst.Error("Per-column costs do not sum to the total")
	}
	if !appreq(t.TreeCostRange(2, 4),
		t.TreeCostSite(2)+t.TreeCostSite(3)+t.TreeCostSite(4)) {
		tst.Error("Incorrect range cost")
	}
}

func TestResetRecompute(tst *testing.T) {
	t := smallTree(tst)
	want := t.TreeCost()
	t.ResetAllCost()
	if !appreq(t.TreeCost(), want) {
		tst.Error("Cost changed after a full cache reset")
	}
	u, _ := t.GetNode(4)
	v, _ := t.GetNode(5)
	t.ResetCost(u, v)
	t.ResetCost(v, u)
	if !appreq(t.TreeCost(), want) {
		tst.Error("Cost changed after a per-edge cache reset")
	}
}

func TestContradictoryColumns(tst *testing.T) {
	// conflicting leaves over zero-length branches make every column
	// infinitely costly; such columns look uncomputed in the cache and
	// must come back stable over repeated queries and EvaluateAll
	topo := &Topology{
		Names: []string{"a", "b", "c", "d", "", ""},
		Edges: []TopoEdge{
			{0, 4, 0},
			{1, 4, 0},
			{2, 5, 0.3},
			{3, 5, 0.15},
			{4, 5, 0.25},
		},
		Root: 5,
	}
	t, err := New(topo)
	if err != nil {
		tst.Fatal("Error building tree:", err)
	}
	msa := bio.NewMSA()
	msa.Add("a", bio.EncodeSeq("AAAA"))
	msa.Add("b", bio.EncodeSeq("CCCC"))
	msa.Add("c", bio.EncodeSeq("ACGT"))
	msa.Add("d", bio.EncodeSeq("ACGT"))
	if err = t.LoadMSA(msa); err != nil {
		tst.Fatal("Error loading alignment:", err)
	}
	t.SetModel(testModel(tst))

	first := t.TreeCost()
	if !math.IsInf(first, +1) {
		tst.Fatal("Contradictory tree cost should be infinite:", first)
	}
	if !math.IsInf(t.TreeCost(), +1) {
		tst.Error("Recomputed contradictory cost changed")
	}

	// the all-infinite message reads back as uncomputed
	t.EvaluateAll()
	u, _ := t.GetNode(4)
	v, _ := t.GetNode(5)
	if t.IsEvaluated(u, v) {
		tst.Error("An all-infinite message should read as uncomputed")
	}
	if !math.IsInf(t.TreeCost(), +1) {
		tst.Error("Cost changed after EvaluateAll")
	}
}

func TestBranchLengthInvalidation(tst *testing.T) {
	t := smallTree(tst)
	t.EvaluateAll()
	before := t.TreeCost()

	u, _ := t.GetNode(2)
	v, _ := t.GetNode(5)
	t.SetBranchLength(u, v, 0.9)
	after := t.TreeCost()
	if math.IsInf(after, 0) || math.IsNaN(after) {
		tst.Fatal("Cost after a branch length change is not finite")
	}
	if appreq(before, after) {
		tst.Error("Cost did not react to a branch length change")
	}

	// an independently built tree with the same length must agree
	fresh := smallTree(tst)
	fu, _ := fresh.GetNode(2)
	fv, _ := fresh.GetNode(5)
	fresh.SetBranchLength(fu, fv, 0.9)
	if !appreq(fresh.TreeCost(), after) {
		tst.Errorf("Stale cache: incremental cost %v, fresh cost %v",
			after, fresh.TreeCost())
	}
}

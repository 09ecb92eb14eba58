package main

import (
	"strings"
	"testing"

	"bitbucket.org/egrice/phyloplace/bio"
	"bitbucket.org/egrice/phyloplace/dna"
	"bitbucket.org/egrice/phyloplace/ptree"
)

const topo1 = `# three leaves around one internal node
name 0 a
name 1 b
name 2 c
edge 0 3 0.1
edge 1 3 0.2
edge 2 3 0.3
root 3
`

func TestParseTopology(tst *testing.T) {
	topo, err := parseTopology(strings.NewReader(topo1))
	if err != nil {
		tst.Fatal("Error parsing topology:", err)
	}
	if len(topo.Names) != 4 || topo.Names[0] != "a" || topo.Names[3] != "" {
		tst.Error("Incorrect names:", topo.Names)
	}
	if len(topo.Edges) != 3 || topo.Edges[2].Length != 0.3 {
		tst.Error("Incorrect edges:", topo.Edges)
	}
	if topo.Root != 3 {
		tst.Error("Incorrect root:", topo.Root)
	}
}

func placementTree(tst *testing.T) *ptree.Tree {
	topo := &ptree.Topology{
		Names: []string{"a", "b", "c", "d", "", ""},
		Edges: []ptree.TopoEdge{
			{U: 0, V: 4, Length: 0.1},
			{U: 1, V: 4, Length: 0.2},
			{U: 2, V: 5, Length: 0.3},
			{U: 3, V: 5, Length: 0.15},
			{U: 4, V: 5, Length: 0.25},
		},
		Root: 4,
	}
	t, err := ptree.New(topo)
	if err != nil {
		tst.Fatal("Error building tree:", err)
	}
	msa := bio.NewMSA()
	for name, seq := range map[string]string{
		"a": "ACGTACGT",
		"b": "ACGTACGA",
		"c": "ACGTACCT",
		"d": "ACCTACGT",
	} {
		if err = msa.Add(name, bio.EncodeSeq(seq)); err != nil {
			tst.Fatal("Error building alignment:", err)
		}
	}
	if err = t.LoadMSA(msa); err != nil {
		tst.Fatal("Error loading alignment:", err)
	}
	t.SetModel(dna.NewJC69())
	t.EvaluateAll()
	return t
}

func TestBestPlacementIndependent(tst *testing.T) {
	*placePendant = 0.1
	t := placementTree(tst)
	nodes := t.NumNodes()

	query := bio.EncodeSeq("ACGTACGG")
	placed, cost1, pendant1, err := bestPlacement(t, "q1", query)
	if err != nil {
		tst.Fatal("Error placing query:", err)
	}
	if placed.NumNodes() != nodes+2 {
		tst.Error("Placed tree has wrong size:", placed.NumNodes())
	}
	if t.NumNodes() != nodes {
		tst.Fatal("Placement modified the stored tree")
	}

	// an identical query placed afterwards must see the same tree
	_, cost2, pendant2, err := bestPlacement(t, "q2", query)
	if err != nil {
		tst.Fatal("Error placing query:", err)
	}
	if cost1 != cost2 || pendant1 != pendant2 {
		tst.Errorf("Placements are not independent: cost %v vs %v, pendant %v vs %v",
			cost1, cost2, pendant1, pendant2)
	}
}

func TestParseTopologyErrors(tst *testing.T) {
	if _, err := parseTopology(strings.NewReader("edge 0 1 0.1\n")); err == nil {
		tst.Error("Expected error for a table without a root")
	}
	if _, err := parseTopology(strings.NewReader("edge 0 one 0.1\nroot 0\n")); err == nil {
		tst.Error("Expected error for a malformed edge line")
	}
	if _, err := parseTopology(strings.NewReader("vertex 0\nroot 0\n")); err == nil {
		tst.Error("Expected error for an unknown line type")
	}
}

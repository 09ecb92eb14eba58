package ptree

import (
	"bytes"
	"testing"

	"bitbucket.org/egrice/phyloplace/bio"
)

func TestTopologyValidation(tst *testing.T) {
	if _, err := New(&Topology{}); err == nil {
		tst.Error("Expected error for an empty topology")
	}
	_, err := New(&Topology{
		Names: []string{"a", "b", "c"},
		Edges: []TopoEdge{{0, 1, 1}},
		Root:  0,
	})
	if err == nil {
		tst.Error("Expected error for a wrong edge count")
	}
	_, err = New(&Topology{
		Names: []string{"a", "b"},
		Edges: []TopoEdge{{0, 1, -1}},
		Root:  0,
	})
	if err == nil {
		tst.Error("Expected error for a negative branch length")
	}
	_, err = New(&Topology{
		Names: []string{"a", "b", "c", "d"},
		Edges: []TopoEdge{{0, 1, 1}, {0, 1, 1}, {2, 3, 1}},
		Root:  0,
	})
	if err == nil {
		tst.Error("Expected error for a disconnected topology")
	}
}

func TestStructureQueries(tst *testing.T) {
	t := smallTree(tst)
	a, _ := t.GetNode(0)
	in4, _ := t.GetNode(4)
	in5, _ := t.GetNode(5)

	if !a.IsLeaf() || a.IsInternal() || a.IsTip() {
		tst.Error("Incorrect leaf classification")
	}
	if !in4.IsInternal() || in4.IsLeaf() {
		tst.Error("Incorrect internal classification")
	}
	// node 5's children (c and d) are all leaves
	if !in5.IsTip() {
		tst.Error("Node 5 should be a tip")
	}
	if in4.IsTip() {
		tst.Error("Node 4 has an internal child and is no tip")
	}
	if !in4.IsRoot() || a.IsRoot() {
		tst.Error("Incorrect root classification")
	}
	if len(in4.Children()) != 3 || len(in5.Children()) != 2 {
		tst.Error("Incorrect children counts")
	}
	if in4.FirstLeaf().Name != "a" || in4.LastLeaf().Name != "d" {
		tst.Error("Incorrect first/last leaf")
	}
	first := in4.RandomLeaf(func(n int) int { return 0 })
	if first != in4.FirstLeaf() {
		tst.Error("RandomLeaf with a first-child selector should match FirstLeaf")
	}
	last := in4.RandomLeaf(func(n int) int { return n - 1 })
	if last != in4.LastLeaf() {
		tst.Error("RandomLeaf with a last-child selector should match LastLeaf")
	}
}

func TestSetRoot(tst *testing.T) {
	t := smallTree(tst)
	c, _ := t.GetNode(2)
	in4, _ := t.GetNode(4)
	in5, _ := t.GetNode(5)

	old := t.SetRoot(c)
	if old != in4 {
		tst.Error("SetRoot should return the previous root")
	}
	if !c.IsRoot() || c.Parent != nil {
		tst.Error("New root should have no parent")
	}
	if in5.Parent != c || in4.Parent != in5 {
		tst.Error("Parent pointers along the path were not reoriented")
	}
	a, _ := t.GetNode(0)
	if a.Parent != in4 {
		tst.Error("Parent pointers off the path should not change")
	}
	if t.SetRoot(c) != c {
		tst.Error("Re-rooting at the root should be a no-op")
	}
}

func TestLoadMSAErrors(tst *testing.T) {
	topo := &Topology{
		Names: []string{"a", "b"},
		Edges: []TopoEdge{{0, 1, 1}},
		Root:  0,
	}
	t, _ := New(topo)
	msa := bio.NewMSA()
	msa.Add("a", bio.EncodeSeq("ACGT"))
	if err := t.LoadMSA(msa); err == nil {
		tst.Error("Expected error for a leaf without an aligned row")
	}
	if err := t.LoadMSA(bio.NewMSA()); err == nil {
		tst.Error("Expected error for an empty alignment")
	}
}

func TestWriteTree(tst *testing.T) {
	topo := &Topology{
		Names: []string{"a", "b", "c", ""},
		Edges: []TopoEdge{{0, 3, 1}, {1, 3, 2}, {2, 3, 4}},
		Root:  3,
	}
	t, err := New(topo)
	if err != nil {
		tst.Fatal("Error building tree:", err)
	}
	var buf bytes.Buffer
	if err = t.WriteTree(&buf, "newick"); err != nil {
		tst.Fatal("Error writing tree:", err)
	}
	if buf.String() != "(a:1,b:2,c:4);\n" {
		tst.Error("Incorrect newick output:", buf.String())
	}

	buf.Reset()
	if err = t.WriteTree(&buf, ""); err != nil {
		tst.Error("Empty format should default to newick:", err)
	}
	if buf.Len() == 0 {
		tst.Error("Default format wrote nothing")
	}

	buf.Reset()
	if err = t.WriteTree(&buf, "nexus"); err == nil {
		tst.Error("Expected error for an unknown format")
	}
	if buf.Len() != 0 {
		tst.Error("Failed format request should not write")
	}
}

func TestCopy(tst *testing.T) {
	t := smallTree(tst)
	want := t.TreeCost()
	c := t.Copy()
	if !appreq(c.TreeCost(), want) {
		tst.Error("Copy cost differs from the original")
	}
	// mutating the copy must not affect the original
	u, _ := c.GetNode(4)
	v, _ := c.GetNode(5)
	c.SetBranchLength(u, v, 2.5)
	if !appreq(t.TreeCost(), want) {
		tst.Error("Mutating a copy changed the original")
	}
	if appreq(c.TreeCost(), want) {
		tst.Error("Copy did not react to a branch length change")
	}
}

package store

import (
	"path/filepath"
	"testing"

	"bitbucket.org/egrice/phyloplace/bio"
	"bitbucket.org/egrice/phyloplace/dna"
	"bitbucket.org/egrice/phyloplace/ptree"
)

func testTree(tst *testing.T) *ptree.Tree {
	topo := &ptree.Topology{
		Names: []string{"a", "b", "c", ""},
		Edges: []ptree.TopoEdge{{U: 0, V: 3, Length: 0.1}, {U: 1, V: 3, Length: 0.2}, {U: 2, V: 3, Length: 0.3}},
		Root:  3,
	}
	t, err := ptree.New(topo)
	if err != nil {
		tst.Fatal("Error building tree:", err)
	}
	msa := bio.NewMSA()
	msa.Add("a", bio.EncodeSeq("ACGT"))
	msa.Add("b", bio.EncodeSeq("ACGA"))
	msa.Add("c", bio.EncodeSeq("ACCT"))
	if err = t.LoadMSA(msa); err != nil {
		tst.Fatal("Error loading alignment:", err)
	}
	t.SetModel(dna.NewJC69())
	return t
}

func TestStoreRoundTrip(tst *testing.T) {
	path := filepath.Join(tst.TempDir(), "trees.db")
	s, err := Open(path)
	if err != nil {
		tst.Fatal("Error opening store:", err)
	}
	defer s.Close()

	t := testTree(tst)
	t.EvaluateAll()
	want := t.TreeCost()
	if err = s.SaveTree("default", t); err != nil {
		tst.Fatal("Error storing tree:", err)
	}

	names, err := s.Names()
	if err != nil || len(names) != 1 || names[0] != "default" {
		tst.Error("Incorrect record names:", names, err)
	}
	meta, err := s.Meta("default")
	if err != nil {
		tst.Fatal("Error reading metadata:", err)
	}
	if meta.Model != "JC69" || meta.Leaves != 3 || meta.Sites != 4 {
		tst.Error("Incorrect metadata:", meta)
	}

	t2, err := s.LoadTree("default")
	if err != nil {
		tst.Fatal("Error loading tree:", err)
	}
	got := t2.TreeCost()
	if got < want-1e-6 || got > want+1e-6 {
		tst.Errorf("Cost changed by the store round trip: %v vs %v", got, want)
	}

	if _, err = s.LoadTree("missing"); err == nil {
		tst.Error("Expected error for a missing record")
	}
	if _, err = s.Meta("missing"); err == nil {
		tst.Error("Expected error for missing metadata")
	}
}

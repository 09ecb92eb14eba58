package ptree

import (
	"bytes"
	"testing"
)

func TestSaveLoadRoundTrip(tst *testing.T) {
	t := smallTree(tst)
	t.EvaluateAll()
	wantCosts := make([]float64, t.NumAlignSites())
	for j := range wantCosts {
		wantCosts[j] = t.TreeCostSite(j)
	}

	var buf bytes.Buffer
	if err := t.Save(&buf); err != nil {
		tst.Fatal("Error saving tree:", err)
	}
	t2, err := Load(&buf)
	if err != nil {
		tst.Fatal("Error loading tree:", err)
	}

	if t2.NumNodes() != t.NumNodes() || t2.NumEdges() != t.NumEdges() ||
		t2.NumAlignSites() != t.NumAlignSites() {
		tst.Fatal("Loaded tree has different dimensions")
	}
	if t2.Root().ID != t.Root().ID {
		tst.Error("Loaded tree has a different root")
	}
	if t2.Model().Type() != t.Model().Type() {
		tst.Error("Loaded tree has a different model")
	}
	for _, e := range t.EdgeList() {
		u, _ := t2.GetNode(e.U)
		v, _ := t2.GetNode(e.V)
		if t2.GetBranchLength(u, v) != e.Length {
			tst.Errorf("Branch %d--%d length changed by the round trip", e.U, e.V)
		}
	}
	for j, want := range wantCosts {
		if !appreq(t2.TreeCostSite(j), want) {
			tst.Errorf("Column %d cost changed by the round trip: %v vs %v",
				j, t2.TreeCostSite(j), want)
		}
	}

	// leaf sequences and names survive
	for id := 0; id < t.NumNodes(); id++ {
		a, _ := t.GetNode(id)
		b, _ := t2.GetNode(id)
		if a.Name != b.Name || a.Seq.String() != b.Seq.String() {
			tst.Errorf("Node %d record changed by the round trip", id)
		}
	}
}

func TestLoadMalformed(tst *testing.T) {
	t := smallTree(tst)
	t.EvaluateAll()
	var buf bytes.Buffer
	if err := t.Save(&buf); err != nil {
		tst.Fatal("Error saving tree:", err)
	}
	blob := buf.Bytes()

	if _, err := Load(bytes.NewReader(blob[:len(blob)/2])); err == nil {
		tst.Error("Expected error loading a truncated stream")
	}
	if _, err := Load(bytes.NewReader(nil)); err == nil {
		tst.Error("Expected error loading an empty stream")
	}
	bad := append([]byte("XXXX"), blob[4:]...)
	if _, err := Load(bytes.NewReader(bad)); err == nil {
		tst.Error("Expected error loading a stream with a bad magic")
	}
}

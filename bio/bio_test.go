package bio

import (
	"strings"
	"testing"
)

const fasta1 = `>a
ACGT
ACG-
>b
acgu
NNNN
`

func TestEncodeBase(tst *testing.T) {
	letters := "ACGTacgtUu-N?"
	codes := []byte{0, 1, 2, 3, 0, 1, 2, 3, 3, 3, GapCode, GapCode, GapCode}
	for i := 0; i < len(letters); i++ {
		if c := EncodeBase(letters[i]); c != codes[i] {
			tst.Errorf("EncodeBase(%c)=%d, want %d", letters[i], c, codes[i])
		}
	}
}

func TestSeqRoundTrip(tst *testing.T) {
	seq := EncodeSeq("ACGT-")
	if seq.String() != "ACGT-" {
		tst.Error("Incorrect sequence round trip, got:", seq.String())
	}
	if EncodeSeq("acgun").String() != "ACGT-" {
		tst.Error("Lowercase and ambiguity handling broken")
	}
}

func TestParseFasta(tst *testing.T) {
	seqs, err := ParseFasta(strings.NewReader(fasta1))
	if err != nil {
		tst.Error("Error parsing fasta:", err)
	}
	if len(seqs) != 2 {
		tst.Fatal("Expected 2 sequences, got", len(seqs))
	}
	if seqs[0].Name != "a" || seqs[0].Sequence != "ACGTACG-" {
		tst.Error("Incorrect first sequence:", seqs[0])
	}
	if seqs[1].Sequence != "ACGUNNNN" {
		tst.Error("Incorrect second sequence:", seqs[1])
	}
	if _, err = ParseFasta(strings.NewReader("ACGT\n")); err == nil {
		tst.Error("Expected error for sequence without a header")
	}
}

func TestMSA(tst *testing.T) {
	msa := NewMSA()
	if err := msa.Add("a", EncodeSeq("ACGT")); err != nil {
		tst.Error("Error adding row:", err)
	}
	if err := msa.Add("b", EncodeSeq("AC-T")); err != nil {
		tst.Error("Error adding row:", err)
	}
	if msa.Len() != 4 || msa.NSeq() != 2 {
		tst.Error("Incorrect dimensions:", msa.Len(), msa.NSeq())
	}
	if err := msa.Add("a", EncodeSeq("ACGT")); err == nil {
		tst.Error("Expected duplicate name error")
	}
	if err := msa.Add("c", EncodeSeq("ACG")); err == nil {
		tst.Error("Expected length mismatch error")
	}
	if err := msa.Add("", EncodeSeq("ACGT")); err == nil {
		tst.Error("Expected empty name error")
	}
	seq, ok := msa.Get("b")
	if !ok || seq.String() != "AC-T" {
		tst.Error("Incorrect row lookup:", seq)
	}
	names := msa.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		tst.Error("Incorrect name order:", names)
	}
}

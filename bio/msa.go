package bio

import (
	"errors"
	"fmt"
)

// MSA is a multiple sequence alignment: a table of equal-length digital
// sequences addressed by name. All rows share one column count.
type MSA struct {
	names []string
	rows  map[string]Seq
	csLen int
}

// NewMSA creates an empty alignment.
func NewMSA() *MSA {
	return &MSA{rows: make(map[string]Seq)}
}

// MSAFromSequences builds an alignment from parsed FASTA sequences.
func MSAFromSequences(seqs Sequences) (*MSA, error) {
	msa := NewMSA()
	for _, s := range seqs {
		if err := msa.Add(s.Name, EncodeSeq(s.Sequence)); err != nil {
			return nil, err
		}
	}
	return msa, nil
}

// Add inserts a named row. The first row fixes the column count; rows
// of any other length or with a duplicate name are rejected.
func (msa *MSA) Add(name string, seq Seq) error {
	if name == "" {
		return errors.New("empty sequence name")
	}
	if _, ok := msa.rows[name]; ok {
		return fmt.Errorf("duplicate sequence name <%s>", name)
	}
	if len(msa.names) == 0 {
		msa.csLen = len(seq)
	} else if len(seq) != msa.csLen {
		return fmt.Errorf("sequence <%s> has length %d, alignment has %d columns",
			name, len(seq), msa.csLen)
	}
	msa.names = append(msa.names, name)
	msa.rows[name] = seq
	return nil
}

// Len returns the number of aligned columns.
func (msa *MSA) Len() int {
	return msa.csLen
}

// NSeq returns the number of rows.
func (msa *MSA) NSeq() int {
	return len(msa.names)
}

// Get returns the row for a name.
func (msa *MSA) Get(name string) (Seq, bool) {
	seq, ok := msa.rows[name]
	return seq, ok
}

// Names returns row names in insertion order.
func (msa *MSA) Names() []string {
	return msa.names
}

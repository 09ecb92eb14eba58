// Package bio provides nucleotide alphabet handling and FASTA parsing.
package bio

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

const (
	// NBase is the number of nucleotide states.
	NBase = 4
	// GapCode is the digital code of a gap or of any ambiguous base.
	GapCode = 4
)

// BaseLetters maps digital codes back to letters, gap included.
var BaseLetters = [NBase + 1]byte{'A', 'C', 'G', 'T', '-'}

// EncodeBase returns the digital code of a nucleotide letter. Lowercase
// letters and U are accepted; everything unknown or ambiguous encodes
// as a gap.
func EncodeBase(c byte) byte {
	switch c {
	case 'A', 'a':
		return 0
	case 'C', 'c':
		return 1
	case 'G', 'g':
		return 2
	case 'T', 't', 'U', 'u':
		return 3
	}
	return GapCode
}

// DecodeBase returns the letter for a digital code.
func DecodeBase(b byte) byte {
	if b > GapCode {
		return '-'
	}
	return BaseLetters[b]
}

// Seq is a digitally encoded nucleotide sequence.
type Seq []byte

// EncodeSeq converts a letter string into a digital sequence.
func EncodeSeq(s string) Seq {
	seq := make(Seq, len(s))
	for i := 0; i < len(s); i++ {
		seq[i] = EncodeBase(s[i])
	}
	return seq
}

// String returns the sequence as letters.
func (seq Seq) String() string {
	b := make([]byte, len(seq))
	for i, c := range seq {
		b[i] = DecodeBase(c)
	}
	return string(b)
}

// Sequence is a type which is intended for storing a nucleotide
// sequence with it's name.
type Sequence struct {
	Name     string
	Sequence string
}

// Sequences stores multiple sequences. E.g. a sequence alignment.
type Sequences []Sequence

// ParseFasta parses FASTA sequences from a reader.
func ParseFasta(rd io.Reader) (seqs Sequences, err error) {
	seqs = make(Sequences, 0, 10)
	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line[0] == '>' {
			seq := Sequence{Name: line[1:]}
			seqs = append(seqs, seq)
		} else {
			if len(seqs) == 0 {
				return nil, errors.New("sequence w/o prefix")
			}
			line = strings.ToUpper(strings.Replace(line, " ", "", -1))
			seqs[len(seqs)-1].Sequence += line
		}
	}
	return seqs, scanner.Err()
}

// Wrap inputs a string and wraps it so string length is n characters
// or less.
func Wrap(seq string, n int) (s string) {
	for i := 0; i < len(seq); i += n {
		end := i + n
		if end > len(seq) {
			end = len(seq)
		}
		s += seq[i:end] + "\n"
	}
	return
}

// String returns a sequence in FASTA format.
func (seq Sequence) String() (s string) {
	s = ">" + seq.Name + "\n" + Wrap(seq.Sequence, 80)
	return
}

// String returns sequences in FASTA format.
func (seqs Sequences) String() (s string) {
	for _, seq := range seqs {
		s += seq.String()
	}
	return s[:len(s)-1]
}

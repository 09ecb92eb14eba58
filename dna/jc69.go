package dna

import (
	"io"
	"math"

	"github.com/gonum/matrix/mat64"
)

func init() {
	register("JC69", func() Model { return NewJC69() })
}

// JC69 is the single-rate symmetric substitution model with equal base
// frequencies (Jukes & Cantor 1969).
type JC69 struct{}

// NewJC69 creates a JC69 model.
func NewJC69() *JC69 {
	return &JC69{}
}

// Type returns the model type tag.
func (m *JC69) Type() string {
	return "JC69"
}

// Pi returns the stationary distribution (uniform for JC69).
func (m *JC69) Pi() []float64 {
	return []float64{0.25, 0.25, 0.25, 0.25}
}

// Pr returns the transition probability matrix for branch length v.
func (m *JC69) Pr(v float64) *mat64.Dense {
	if v <= 0 {
		return identityP()
	}
	e := math.Exp(-4 * v / 3)
	off := (1 - e) / 4
	diag := (1 + 3*e) / 4
	p := mat64.NewDense(NBase, NBase, nil)
	for i := 0; i < NBase; i++ {
		for j := 0; j < NBase; j++ {
			if i == j {
				p.Set(i, j, diag)
			} else {
				p.Set(i, j, off)
			}
		}
	}
	return p
}

// SubDist estimates the substitution distance from an observed pairwise
// count matrix d over n comparable sites. The estimate is 0 for n=0 and
// NaN beyond the p=3/4 saturation bound.
func (m *JC69) SubDist(d *mat64.Dense, n float64) float64 {
	if n == 0 {
		return 0
	}
	sum, diag := 0.0, 0.0
	for i := 0; i < NBase; i++ {
		diag += d.At(i, i)
		for j := 0; j < NBase; j++ {
			sum += d.At(i, j)
		}
	}
	p := (sum - diag) / n
	if p == 0 {
		return 0
	}
	arg := 1 - 4.0/3.0*p
	if arg <= 0 {
		return math.NaN()
	}
	return -3.0 / 4.0 * math.Log(arg)
}

// Train is a no-op: JC69 has no free parameters.
func (m *JC69) Train(ps []*mat64.Dense, freq []float64) error {
	return nil
}

// Read reads the model record written by Write.
func (m *JC69) Read(r io.Reader) error {
	lines, err := readRecord(r)
	if err != nil {
		return err
	}
	_, err = parseRecord(lines, m.Type())
	return err
}

// Write writes the model as a text record.
func (m *JC69) Write(w io.Writer) error {
	_, err := io.WriteString(w, "model JC69\n\n")
	return err
}

// Clone returns an independent copy of the model.
func (m *JC69) Clone() Model {
	return &JC69{}
}

package dna

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/gonum/matrix/mat64"
)

func init() {
	register("GTR", func() Model { return NewGTR() })
}

// rateIndex maps an unordered base pair to its exchangeability index
// (AC, AG, AT, CG, CT, GT).
func rateIndex(i, j int) int {
	if i > j {
		i, j = j, i
	}
	switch {
	case i == 0:
		return j - 1
	case i == 1:
		return j + 1
	}
	return 5
}

// GTR is the general time-reversible model with unequal base
// frequencies and six exchangeability parameters.
type GTR struct {
	pi    []float64
	rates []float64
	em    *EMatrix
}

// NewGTR creates a GTR model with uniform frequencies and equal rates
// (equivalent to JC69 until trained).
func NewGTR() *GTR {
	m := &GTR{
		pi:    []float64{0.25, 0.25, 0.25, 0.25},
		rates: []float64{1, 1, 1, 1, 1, 1},
	}
	m.setQ()
	return m
}

// SetParameters sets the stationary frequencies and exchangeability
// rates directly.
func (m *GTR) SetParameters(pi, rates []float64) error {
	if len(pi) != NBase || len(rates) != 6 {
		return errors.New("GTR needs 4 frequencies and 6 rates")
	}
	m.pi = normalize(pi)
	m.rates = append([]float64(nil), rates...)
	m.setQ()
	return nil
}

// setQ rebuilds the rate matrix, normalized to one expected
// substitution per unit branch length, and drops the cached
// decomposition.
func (m *GTR) setQ() {
	q := mat64.NewDense(NBase, NBase, nil)
	for i := 0; i < NBase; i++ {
		rowSum := 0.0
		for j := 0; j < NBase; j++ {
			if i == j {
				continue
			}
			v := m.rates[rateIndex(i, j)] * m.pi[j]
			q.Set(i, j, v)
			rowSum += v
		}
		q.Set(i, i, -rowSum)
	}
	scale := 0.0
	for i := 0; i < NBase; i++ {
		scale += -m.pi[i] * q.At(i, i)
	}
	if scale > 0 {
		q.Scale(1/scale, q)
	}
	if m.em == nil {
		m.em = NewEMatrix(q)
	}
	m.em.SetReversible(q, m.pi)
}

// Type returns the model type tag.
func (m *GTR) Type() string {
	return "GTR"
}

// Pi returns the stationary base frequencies.
func (m *GTR) Pi() []float64 {
	return m.pi
}

// Pr returns the transition probability matrix for branch length v.
func (m *GTR) Pr(v float64) *mat64.Dense {
	if v <= 0 {
		return identityP()
	}
	p, err := m.em.Exp(v)
	if err != nil {
		log.Panicf("error exponentiating GTR rate matrix: %v", err)
	}
	return p
}

// SubDist estimates the substitution distance with the general
// time-reversible (log-det style) estimator of Rodriguez et al. 1990:
// d = -sum_i pi_i log(Pi^-1 F)_ii where F is the symmetrized observed
// divergence matrix. The estimate is 0 for n=0 and NaN when the
// divergence matrix has lost full rank (saturation).
func (m *GTR) SubDist(d *mat64.Dense, n float64) float64 {
	if n == 0 {
		return 0
	}
	// S = Pi^-1/2 F Pi^-1/2 is symmetric with the eigenvalues of
	// Pi^-1 F, and shares its diagonal of the matrix logarithm.
	s := mat64.NewDense(NBase, NBase, nil)
	for i := 0; i < NBase; i++ {
		for j := 0; j < NBase; j++ {
			if m.pi[i] <= 0 || m.pi[j] <= 0 {
				return math.NaN()
			}
			f := (d.At(i, j) + d.At(j, i)) / (2 * n)
			s.Set(i, j, f/math.Sqrt(m.pi[i]*m.pi[j]))
		}
	}
	em := NewEMatrix(s)
	if err := em.Eigen(); err != nil {
		return math.NaN()
	}
	res := 0.0
	for i := 0; i < NBase; i++ {
		// diagonal of log S in the eigenbasis
		li := 0.0
		for k := 0; k < NBase; k++ {
			ev := em.d.At(k, k)
			if ev <= 0 {
				return math.NaN()
			}
			li += em.v.At(i, k) * math.Log(ev) * em.iv.At(k, i)
		}
		res += m.pi[i] * li
	}
	if res > 0 {
		res = 0
	}
	return -res
}

// Train estimates frequencies and exchangeabilities from observed
// pairwise transition count matrices.
func (m *GTR) Train(ps []*mat64.Dense, freq []float64) error {
	if len(freq) != NBase {
		return errors.New("GTR training needs 4 base frequencies")
	}
	m.pi = normalize(freq)

	sym := make([]float64, 6)
	for _, p := range ps {
		for i := 0; i < NBase; i++ {
			for j := i + 1; j < NBase; j++ {
				sym[rateIndex(i, j)] += p.At(i, j) + p.At(j, i)
			}
		}
	}
	rates := make([]float64, 6)
	for k, s := range sym {
		i, j := ratePair(k)
		rates[k] = s / (m.pi[i] * m.pi[j])
	}
	// normalize on the G<->T rate, the conventional reference
	if rates[5] > 0 {
		for k := range rates {
			rates[k] /= rates[5]
		}
	} else {
		log.Warning("no G<->T substitutions observed, keeping raw rates")
	}
	m.rates = rates
	m.setQ()
	log.Debugf("trained GTR: pi=%v rates=%v", m.pi, m.rates)
	return nil
}

// ratePair is the inverse of rateIndex.
func ratePair(k int) (int, int) {
	switch k {
	case 0:
		return 0, 1
	case 1:
		return 0, 2
	case 2:
		return 0, 3
	case 3:
		return 1, 2
	case 4:
		return 1, 3
	}
	return 2, 3
}

// Read reads the model record written by Write.
func (m *GTR) Read(r io.Reader) error {
	lines, err := readRecord(r)
	if err != nil {
		return err
	}
	rec, err := parseRecord(lines, m.Type())
	if err != nil {
		return err
	}
	pi, err := recordValues(rec, "pi", NBase)
	if err != nil {
		return err
	}
	rates, err := recordValues(rec, "rates", 6)
	if err != nil {
		return err
	}
	return m.SetParameters(pi, rates)
}

// Write writes the model as a text record.
func (m *GTR) Write(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "model %s\n", m.Type()); err != nil {
		return err
	}
	if err := writeVector(w, "pi", m.pi); err != nil {
		return err
	}
	if err := writeVector(w, "rates", m.rates); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Clone returns an independent copy of the model.
func (m *GTR) Clone() Model {
	newM := NewGTR()
	newM.SetParameters(m.pi, m.rates)
	return newM
}

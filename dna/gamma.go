package dna

import (
	"errors"
	"fmt"
	"io"

	"github.com/gonum/matrix/mat64"

	"bitbucket.org/egrice/phyloplace/dist"
)

func init() {
	register("GTR+G", func() Model { return NewGTRGamma(defaultAlpha, defaultNCat) })
}

const (
	defaultAlpha = 0.5
	defaultNCat  = 4
)

// GTRGamma is a GTR model with discrete gamma rate variation across
// sites: the transition matrix is averaged over K equal-proportion rate
// categories with mean rates from a Gamma(alpha, alpha) distribution.
type GTRGamma struct {
	*GTR
	alpha float64
	ncat  int
	cats  []float64
}

// NewGTRGamma creates a GTR+Gamma model with ncat rate categories.
func NewGTRGamma(alpha float64, ncat int) *GTRGamma {
	m := &GTRGamma{GTR: NewGTR()}
	m.SetGamma(alpha, ncat)
	return m
}

// SetGamma sets the gamma shape parameter and the number of rate
// categories.
func (m *GTRGamma) SetGamma(alpha float64, ncat int) {
	if ncat < 1 {
		ncat = 1
	}
	m.alpha = alpha
	m.ncat = ncat
	m.cats = dist.DiscreteGamma(alpha, alpha, ncat, nil)
}

// Type returns the model type tag.
func (m *GTRGamma) Type() string {
	return "GTR+G"
}

// Pr returns the category-averaged transition probability matrix for
// branch length v.
func (m *GTRGamma) Pr(v float64) *mat64.Dense {
	if v <= 0 {
		return identityP()
	}
	res := mat64.NewDense(NBase, NBase, nil)
	tmp := mat64.NewDense(NBase, NBase, nil)
	for _, rate := range m.cats {
		tmp.Scale(1/float64(m.ncat), m.GTR.Pr(v*rate))
		res.Add(res, tmp)
	}
	return res
}

// Train estimates the GTR parameters; the gamma shape is kept.
func (m *GTRGamma) Train(ps []*mat64.Dense, freq []float64) error {
	return m.GTR.Train(ps, freq)
}

// Read reads the model record written by Write.
func (m *GTRGamma) Read(r io.Reader) error {
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
	alpha, err := recordValues(rec, "alpha", 1)
	if err != nil {
		return err
	}
	ncat, err := recordValues(rec, "ncat", 1)
	if err != nil {
		return err
	}
	if ncat[0] < 1 {
		return errors.New("GTR+G needs at least one rate category")
	}
	if err = m.GTR.SetParameters(pi, rates); err != nil {
		return err
	}
	m.SetGamma(alpha[0], int(ncat[0]))
	return nil
}

// Write writes the model as a text record.
func (m *GTRGamma) Write(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "model %s\n", m.Type()); err != nil {
		return err
	}
	if err := writeVector(w, "pi", m.pi); err != nil {
		return err
	}
	if err := writeVector(w, "rates", m.rates); err != nil {
		return err
	}
	if err := writeVector(w, "alpha", []float64{m.alpha}); err != nil {
		return err
	}
	if err := writeVector(w, "ncat", []float64{float64(m.ncat)}); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Clone returns an independent copy of the model.
func (m *GTRGamma) Clone() Model {
	newM := NewGTRGamma(m.alpha, m.ncat)
	newM.GTR.SetParameters(m.pi, m.rates)
	return newM
}

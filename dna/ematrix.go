package dna

import (
	"errors"
	"math"

	"github.com/gonum/matrix/mat64"
)

// EMatrix stores a Q-matrix and it's eigendecomposition to quickly
// compute e^Qt.
type EMatrix struct {
	Q  *mat64.Dense
	pi []float64
	v  *mat64.Dense
	d  *mat64.Dense
	iv *mat64.Dense
}

// NewEMatrix creates a new EMatrix.
func NewEMatrix(Q *mat64.Dense) *EMatrix {
	return &EMatrix{Q: Q}
}

// Set sets the Q-matrix and drops the decomposition.
func (m *EMatrix) Set(Q *mat64.Dense) {
	m.Q = Q
	m.pi = nil
	m.v = nil
}

// SetReversible sets a time-reversible Q-matrix together with its
// stationary distribution and drops the decomposition. The
// distribution enables the symmetric decomposition path in Eigen.
func (m *EMatrix) SetReversible(Q *mat64.Dense, pi []float64) {
	m.Q = Q
	m.pi = pi
	m.v = nil
}

// Eigen performs eigendecomposition if it is not cached yet. For a
// reversible Q with a positive stationary distribution the
// decomposition goes through the symmetric similarity
// B = D^1/2 Q D^-1/2 with D = diag(pi): the eigenvector inverse is
// then available in closed form, so reducible rate matrices (zero
// exchangeabilities after training on sparse data) cannot fail the
// inversion step.
func (m *EMatrix) Eigen() (err error) {
	if m.v != nil {
		return nil
	}
	rows, cols := m.Q.Dims()
	if m.iv == nil {
		m.iv = mat64.NewDense(cols, rows, nil)
	}

	if m.pi != nil && m.eigenReversible(rows) {
		return nil
	}

	var decomp mat64.Eigen
	if ok := decomp.Factorize(m.Q, false, true); !ok {
		return errors.New("eigendecomposition of the rate matrix failed")
	}
	m.v = decomp.Vectors()
	values := decomp.Values(nil)
	m.d = mat64.NewDense(rows, cols, nil)
	for i, ev := range values {
		m.d.Set(i, i, real(ev))
	}
	err = m.iv.Inverse(m.v)
	if err != nil {
		return err
	}
	return nil
}

// eigenReversible decomposes Q = V diag(d) V^-1 through the symmetric
// matrix B. Reports false when the distribution has non-positive
// entries or the symmetric solver fails, leaving the general path to
// run.
func (m *EMatrix) eigenReversible(n int) bool {
	for _, p := range m.pi {
		if p <= 0 {
			return false
		}
	}
	b := mat64.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			b.SetSym(i, j, m.Q.At(i, j)*math.Sqrt(m.pi[i]/m.pi[j]))
		}
	}
	var decomp mat64.EigenSym
	if !decomp.Factorize(b, true) {
		return false
	}
	var u mat64.Dense
	u.EigenvectorsSym(&decomp)
	values := decomp.Values(nil)
	m.d = mat64.NewDense(n, n, nil)
	for i, ev := range values {
		m.d.Set(i, i, ev)
	}
	// V = D^-1/2 U, V^-1 = U^T D^1/2 since U is orthogonal
	m.v = mat64.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		si := math.Sqrt(m.pi[i])
		for j := 0; j < n; j++ {
			m.v.Set(i, j, u.At(i, j)/si)
			m.iv.Set(j, i, u.At(i, j)*si)
		}
	}
	return true
}

// Exp computes P=e^Qt.
func (m *EMatrix) Exp(t float64) (*mat64.Dense, error) {
	rows, cols := m.Q.Dims()
	if cols != rows {
		return nil, errors.New("Q isn't a square matrix")
	}
	if err := m.Eigen(); err != nil {
		return nil, err
	}
	if math.IsInf(t, 1) {
		t = math.MaxFloat64
	}

	cD := mat64.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		cD.Set(i, i, math.Exp(m.d.At(i, i)*t))
	}
	res := mat64.NewDense(rows, cols, nil)
	res.Mul(m.v, cD)
	res.Mul(res, m.iv)
	// Remove slightly negative values introduced by roundoff.
	res.Apply(func(r, c int, v float64) float64 {
		return math.Max(0, v)
	}, res)
	return res, nil
}

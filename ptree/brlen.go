package ptree

const (
	// BranchEps is the smallest branch length the optimizer considers.
	BranchEps = 1e-6
	// MaxBranchLength is the largest branch length the optimizer
	// considers.
	MaxBranchLength = 100
	// BranchTol terminates the search when the bracket is narrower.
	BranchTol = 1e-6
	// MaxBranchIter bounds the number of refinement steps.
	MaxBranchIter = 100
)

// goldenSection minimizes f on [a, b] by golden-section refinement and
// returns the best point and its value.
func goldenSection(f func(float64) float64, a, b, tol float64, maxIter int) (float64, float64) {
	const phi = 0.6180339887498949
	x1 := b - phi*(b-a)
	x2 := a + phi*(b-a)
	f1, f2 := f(x1), f(x2)
	for i := 0; i < maxIter && b-a > tol; i++ {
		if f1 < f2 {
			b, x2, f2 = x2, x1, f1
			x1 = b - phi*(b-a)
			f1 = f(x1)
		} else {
			a, x1, f1 = x1, x2, f2
			x2 = a + phi*(b-a)
			f2 = f(x2)
		}
	}
	if f1 < f2 {
		return x1, f1
	}
	return x2, f2
}

// OptimizeBranchLength adjusts the length of the branch between the
// adjacent nodes u and v to minimize the tree cost over the inclusive
// column range [start, end], holding the rest of the tree fixed. The
// tree is re-rooted at v; messages exclude their own branch, so every
// trial length re-folds only the branch transition matrix against
// precomputed messages. The best length is written back (or the
// initial length, when no trial improves on it) and the affected
// cache entries are recomputed before returning.
func (t *Tree) OptimizeBranchLength(u, v *Node, start, end int) float64 {
	if !t.adjacent(u, v) {
		log.Panicf("optimizing a branch between non-adjacent nodes %d and %d", u.ID, v.ID)
	}
	t.SetRoot(v)
	t0 := t.GetBranchLength(u, v)
	pi := t.model.Pi()
	ncols := end - start + 1

	// The root cost splits into the folded message from u plus a part
	// independent of the optimized branch; precompute the latter.
	msgU := make([][]float64, ncols)
	rest := make([]float64, ncols*NBase)
	for j := start; j <= end; j++ {
		k := (j - start) * NBase
		msgU[j-start] = t.msgColumn(u, v, j)
		out := rest[k : k+NBase]
		for _, c := range v.neighbors {
			if c == u {
				continue
			}
			cm := t.msgColumn(c, v, j)
			p := t.pr(v, c)
			for s := 0; s < NBase; s++ {
				out[s] += dotScaled(p.RawRowView(s), cm)
			}
		}
		if v.IsLeaf() {
			lc := t.leafColumn(v, j)
			for s := 0; s < NBase; s++ {
				out[s] += lc[s]
			}
		}
	}

	col := make([]float64, NBase)
	obj := func(length float64) float64 {
		p := t.model.Pr(length)
		total := 0.0
		for i := 0; i < ncols; i++ {
			k := i * NBase
			for s := 0; s < NBase; s++ {
				col[s] = rest[k+s] + dotScaled(p.RawRowView(s), msgU[i])
			}
			total += dotScaled(pi, col)
		}
		return total
	}

	f0 := obj(t0)
	best, fBest := goldenSection(obj, BranchEps, MaxBranchLength, BranchTol, MaxBranchIter)
	if fBest >= f0 {
		best = t0
	}
	log.Debugf("branch %d--%d: length %g -> %g, cost %g -> %g",
		u.ID, v.ID, t0, best, f0, fBest)
	t.SetBranchLength(u, v, best)
	t.TreeCostRange(start, end)
	return best
}

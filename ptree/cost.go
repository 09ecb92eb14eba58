package ptree

import (
	"math"
	"runtime"
	"sync"

	"github.com/gonum/matrix/mat64"
)

// newCostMatrix allocates an uncomputed 4 x csLen message matrix
// stored column-major (column j occupies entries j*NBase..j*NBase+3).
func newCostMatrix(csLen int) []float64 {
	m := make([]float64, NBase*csLen)
	for i := range m {
		m[i] = invalidCost
	}
	return m
}

// columnValid reports whether a message column has been computed. A
// computed column normally holds at least one finite entry. The one
// exception is a column whose subtree is contradictory across
// zero-length branches: it computes to all-infinite costs,
// indistinguishable from an uncomputed column, and is recomputed on
// every query. The recomputation returns the same infinite costs, so
// only work is repeated, never results changed.
func columnValid(col []float64) bool {
	for _, v := range col {
		if !math.IsInf(v, +1) {
			return true
		}
	}
	return false
}

// dotScaled computes -log(sum_s w[s]*exp(-c[s])) with a shared-scale
// shift: the column minimum is subtracted before exponentiating and
// added back after the logarithm, so a column dominated by large costs
// does not underflow.
func dotScaled(w, c []float64) float64 {
	scale := math.Inf(+1)
	for _, v := range c {
		if v < scale {
			scale = v
		}
	}
	if math.IsInf(scale, +1) {
		return invalidCost
	}
	sum := 0.0
	for s := 0; s < NBase; s++ {
		e := c[s] - scale
		if e > MaxCostExp {
			continue
		}
		sum += w[s] * math.Exp(-e)
	}
	if sum <= 0 {
		return invalidCost
	}
	return scale - math.Log(sum)
}

// leafColumn returns the 4-entry cost column of a leaf's observed
// symbol at column j as a read-only view into the shared leaf table.
func (t *Tree) leafColumn(node *Node, j int) []float64 {
	obs := int(node.Seq[j])
	return t.leafCost[obs*NBase : (obs+1)*NBase]
}

// msgColumn returns the message column for (u toward v) at column j:
// the cost of the subtree hanging off u away from v, given each state
// of u, with the u-v branch itself excluded. Internal-node messages
// are memoized per directed pair; leaf messages are table lookups.
func (t *Tree) msgColumn(u, v *Node, j int) []float64 {
	if u.IsLeaf() {
		return t.leafColumn(u, j)
	}
	key := dirKey{u.ID, v.ID}
	m, ok := t.cost[key]
	if !ok {
		m = newCostMatrix(t.csLen)
		t.cost[key] = m
	}
	col := m[j*NBase : (j+1)*NBase]
	if !columnValid(col) {
		t.computeColumn(u, v, j, col)
	}
	return col
}

// computeColumn fills one message column by folding every neighbor
// subtree except v through its branch transition matrix.
func (t *Tree) computeColumn(u, v *Node, j int, out []float64) {
	for s := range out {
		out[s] = 0
	}
	for _, c := range u.neighbors {
		if c == v {
			continue
		}
		cm := t.msgColumn(c, u, j)
		p := t.pr(u, c)
		for s := 0; s < NBase; s++ {
			out[s] += dotScaled(p.RawRowView(s), cm)
		}
	}
}

// Evaluate computes the messages of every child subtree of node at
// column j, but not node's own aggregate.
func (t *Tree) Evaluate(node *Node, j int) {
	for _, c := range node.neighbors {
		if c == node.Parent {
			continue
		}
		t.msgColumn(c, node, j)
	}
}

// Cost aggregates the children's messages into node's own per-state
// cost vector at column j, evaluating missing messages on demand. For
// a leaf the node's own observed symbol contributes as well.
func (t *Tree) Cost(node *Node, j int) []float64 {
	out := make([]float64, NBase)
	for _, c := range node.neighbors {
		if c == node.Parent {
			continue
		}
		cm := t.msgColumn(c, node, j)
		p := t.pr(node, c)
		for s := 0; s < NBase; s++ {
			out[s] += dotScaled(p.RawRowView(s), cm)
		}
	}
	if node.IsLeaf() {
		lc := t.leafColumn(node, j)
		for s := 0; s < NBase; s++ {
			out[s] += lc[s]
		}
	}
	return out
}

// TreeCostSite returns the total tree cost of column j: the
// stationary-distribution-weighted combination of the root's cost
// vector.
func (t *Tree) TreeCostSite(j int) float64 {
	return dotScaled(t.model.Pi(), t.Cost(t.root, j))
}

// TreeCostRange sums per-column tree costs over the inclusive column
// range [start, end].
func (t *Tree) TreeCostRange(start, end int) float64 {
	cost := 0.0
	for j := start; j <= end; j++ {
		cost += t.TreeCostSite(j)
	}
	return cost
}

// TreeCost returns the total tree cost over all columns.
func (t *Tree) TreeCost() float64 {
	return t.TreeCostRange(0, t.csLen-1)
}

// prepare preallocates every root-ward cache entry and every branch
// transition matrix, so column evaluation can run without mutating
// shared maps.
func (t *Tree) prepare() {
	for _, node := range t.nodes {
		if node.IsRoot() || node.IsLeaf() {
			continue
		}
		key := dirKey{node.ID, node.Parent.ID}
		if _, ok := t.cost[key]; !ok {
			t.cost[key] = newCostMatrix(t.csLen)
		}
	}
	for key := range t.brLen {
		t.pr(t.nodes[key.a], t.nodes[key.b])
	}
}

// EvaluateAll populates the cost cache for every column, spreading
// columns over a worker pool. Per-column work is independent: no
// column reads another column's cache entries.
func (t *Tree) EvaluateAll() {
	t.prepare()

	nWorkers := runtime.GOMAXPROCS(0)
	tasks := make(chan int, t.csLen)
	var wg sync.WaitGroup
	for i := 0; i < nWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range tasks {
				t.Evaluate(t.root, j)
			}
		}()
	}
	for j := 0; j < t.csLen; j++ {
		tasks <- j
	}
	close(tasks)
	wg.Wait()
}

// IsEvaluated reports whether the (u toward v) message is cached and
// fully computed. Leaf messages need no cache and are always ready.
func (t *Tree) IsEvaluated(u, v *Node) bool {
	if u.IsLeaf() {
		return true
	}
	m, ok := t.cost[dirKey{u.ID, v.ID}]
	if !ok {
		return false
	}
	for j := 0; j < t.csLen; j++ {
		if !columnValid(m[j*NBase : (j+1)*NBase]) {
			return false
		}
	}
	return true
}

// ResetCost drops the cached (u toward v) message.
func (t *Tree) ResetCost(u, v *Node) {
	delete(t.cost, dirKey{u.ID, v.ID})
}

// ResetAllCost drops every cached message and transition matrix.
func (t *Tree) ResetAllCost() {
	t.cost = make(map[dirKey][]float64)
	t.prMat = make(map[edgeKey]*mat64.Dense)
}

// resetSpanning drops every cached message whose subtree spans the
// edge between u and v. Messages exclude their own branch, so the two
// entries on the edge itself stay valid; everything looking at the
// edge from outside is dropped.
func (t *Tree) resetSpanning(u, v *Node) {
	upper, lower := u, v
	if u.Parent == v {
		upper, lower = v, u
	}
	anc := make(map[int]bool)
	for n := upper; n != nil; n = n.Parent {
		anc[n.ID] = true
	}
	for key := range t.cost {
		from := t.nodes[key.from]
		to := t.nodes[key.to]
		if from.Parent == to {
			// root-ward message: spans the edge when its source
			// subtree contains it
			if anc[key.from] {
				delete(t.cost, key)
			}
		} else {
			// leaf-ward message: spans the edge unless it points
			// into the edge's root-side path or into the edge
			// itself
			if !anc[key.to] && key.to != lower.ID {
				delete(t.cost, key)
			}
		}
	}
}

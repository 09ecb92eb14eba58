package ptree

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/gonum/matrix/mat64"
	"github.com/op/go-logging"

	"bitbucket.org/egrice/phyloplace/bio"
	"bitbucket.org/egrice/phyloplace/dna"
)

// log is the global logging variable.
var log = logging.MustGetLogger("ptree")

const (
	// NBase is the number of nucleotide states.
	NBase = dna.NBase
	// MaxCostExp bounds the exponent in the scaled log-sum; larger
	// shifted costs underflow to zero probability.
	MaxCostExp = 300
)

// invalidCost marks a cost column which has not been computed. Computed
// internal-node columns always hold at least one finite entry, so a
// fully infinite column is unambiguous.
var invalidCost = math.Inf(+1)

// edgeKey addresses an undirected edge by the sorted node id pair.
type edgeKey struct {
	a, b int
}

func newEdgeKey(u, v int) edgeKey {
	if u > v {
		u, v = v, u
	}
	return edgeKey{u, v}
}

// dirKey addresses a directed cost message: the cost of the subtree
// hanging off from, looking toward to.
type dirKey struct {
	from, to int
}

// TopoEdge is one undirected edge of an input topology with its
// initial branch length.
type TopoEdge struct {
	U, V   int
	Length float64
}

// Topology is a parsed tree topology: node names addressed by id
// (empty for unnamed internal nodes), undirected edges with initial
// lengths, and the id of the initial evaluation root.
type Topology struct {
	Names []string
	Edges []TopoEdge
	Root  int
}

// Tree is an unrooted phylogenetic tree with a designated evaluation
// root, a directed per-edge cost cache and an owned substitution
// model. A Tree is not safe for concurrent mutation.
type Tree struct {
	nodes []*Node
	root  *Node
	csLen int
	model dna.Model

	brLen map[edgeKey]float64
	cost  map[dirKey][]float64
	prMat map[edgeKey]*mat64.Dense

	// leafCost[obs*NBase+s] is the cost of a leaf showing symbol obs
	// (gap included) given state s; shared across leaves.
	leafCost [(bio.NBase + 1) * NBase]float64
}

// New builds a tree from a parsed topology. The neighbor graph must be
// connected and acyclic, every length non-negative.
func New(topo *Topology) (*Tree, error) {
	n := len(topo.Names)
	if n == 0 {
		return nil, errors.New("empty topology")
	}
	if len(topo.Edges) != n-1 {
		return nil, fmt.Errorf("topology with %d nodes needs %d edges, got %d",
			n, n-1, len(topo.Edges))
	}
	if topo.Root < 0 || topo.Root >= n {
		return nil, fmt.Errorf("root id %d out of range", topo.Root)
	}
	t := &Tree{
		nodes: make([]*Node, n),
		brLen: make(map[edgeKey]float64, n-1),
		cost:  make(map[dirKey][]float64),
		prMat: make(map[edgeKey]*mat64.Dense),
	}
	t.initLeafCost()
	for id, name := range topo.Names {
		t.nodes[id] = &Node{ID: id, Name: name}
	}
	for _, e := range topo.Edges {
		if e.U < 0 || e.U >= n || e.V < 0 || e.V >= n || e.U == e.V {
			return nil, fmt.Errorf("bad edge %d--%d", e.U, e.V)
		}
		if e.Length < 0 {
			return nil, fmt.Errorf("negative length on edge %d--%d", e.U, e.V)
		}
		key := newEdgeKey(e.U, e.V)
		if _, ok := t.brLen[key]; ok {
			return nil, fmt.Errorf("duplicate edge %d--%d", e.U, e.V)
		}
		t.brLen[key] = e.Length
		u, v := t.nodes[e.U], t.nodes[e.V]
		u.neighbors = append(u.neighbors, v)
		v.neighbors = append(v.neighbors, u)
	}
	t.root = t.nodes[topo.Root]
	if !t.orient() {
		return nil, errors.New("topology is not connected")
	}
	return t, nil
}

// orient sets parent pointers by traversal from the root and reports
// whether every node was reached.
func (t *Tree) orient() bool {
	seen := 1
	t.root.Parent = nil
	stack := []*Node{t.root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, n := range node.neighbors {
			if n == node.Parent {
				continue
			}
			n.Parent = node
			stack = append(stack, n)
			seen++
		}
	}
	return seen == len(t.nodes)
}

// initLeafCost fills the shared leaf cost table: zero cost for a match
// or a gap (missing data), effectively infinite cost for a mismatch.
func (t *Tree) initLeafCost() {
	for obs := 0; obs < bio.NBase+1; obs++ {
		for s := 0; s < NBase; s++ {
			switch {
			case obs == bio.GapCode:
				t.leafCost[obs*NBase+s] = 0
			case obs == s:
				t.leafCost[obs*NBase+s] = 0
			default:
				t.leafCost[obs*NBase+s] = math.Inf(+1)
			}
		}
	}
}

// LoadMSA assigns aligned sequences to the named leaves and fixes the
// tree's column count. Every leaf must have a row in the alignment.
func (t *Tree) LoadMSA(msa *bio.MSA) error {
	if msa.Len() == 0 {
		return errors.New("empty alignment")
	}
	for _, node := range t.nodes {
		if !node.IsLeaf() {
			continue
		}
		seq, ok := msa.Get(node.Name)
		if !ok {
			return fmt.Errorf("no aligned sequence for leaf <%s>", node.Name)
		}
		node.Seq = seq
	}
	t.csLen = msa.Len()
	t.ResetAllCost()
	log.Infof("loaded alignment: %d leaves, %d columns", t.NumLeaves(), t.csLen)
	return nil
}

// SetModel attaches a substitution model; the model is cloned so the
// tree never aliases caller state. All cached costs are dropped.
func (t *Tree) SetModel(m dna.Model) {
	t.model = m.Clone()
	t.ResetAllCost()
}

// Model returns the attached substitution model.
func (t *Tree) Model() dna.Model {
	return t.model
}

// Root returns the current evaluation root.
func (t *Tree) Root() *Node {
	return t.root
}

// GetNode returns the node with the given id.
func (t *Tree) GetNode(id int) (*Node, error) {
	if id < 0 || id >= len(t.nodes) {
		return nil, fmt.Errorf("node id %d out of range", id)
	}
	return t.nodes[id], nil
}

// NumNodes returns the number of nodes.
func (t *Tree) NumNodes() int {
	return len(t.nodes)
}

// NumEdges returns the number of undirected edges.
func (t *Tree) NumEdges() int {
	return len(t.brLen)
}

// NumLeaves returns the number of leaves.
func (t *Tree) NumLeaves() (n int) {
	for _, node := range t.nodes {
		if node.IsLeaf() {
			n++
		}
	}
	return
}

// NumAlignSites returns the number of aligned columns.
func (t *Tree) NumAlignSites() int {
	return t.csLen
}

// EdgeList returns every undirected edge with its current length,
// sorted by node id pair.
func (t *Tree) EdgeList() []TopoEdge {
	edges := make([]TopoEdge, 0, len(t.brLen))
	for key, length := range t.brLen {
		edges = append(edges, TopoEdge{U: key.a, V: key.b, Length: length})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].U != edges[j].U {
			return edges[i].U < edges[j].U
		}
		return edges[i].V < edges[j].V
	})
	return edges
}

// GetBranchLength returns the length of the edge between two adjacent
// nodes.
func (t *Tree) GetBranchLength(u, v *Node) float64 {
	return t.brLen[newEdgeKey(u.ID, v.ID)]
}

// SetBranchLength writes a new length for the edge between two
// adjacent nodes and invalidates every cached message that spans it.
func (t *Tree) SetBranchLength(u, v *Node, length float64) {
	key := newEdgeKey(u.ID, v.ID)
	if t.brLen[key] == length {
		return
	}
	t.brLen[key] = length
	delete(t.prMat, key)
	t.resetSpanning(u, v)
}

// adjacent reports whether two nodes share an edge.
func (t *Tree) adjacent(u, v *Node) bool {
	_, ok := t.brLen[newEdgeKey(u.ID, v.ID)]
	return ok
}

// pr returns the transition matrix for the edge between two adjacent
// nodes, cached per undirected edge.
func (t *Tree) pr(u, v *Node) *mat64.Dense {
	key := newEdgeKey(u.ID, v.ID)
	p, ok := t.prMat[key]
	if !ok {
		p = t.model.Pr(t.brLen[key])
		t.prMat[key] = p
	}
	return p
}

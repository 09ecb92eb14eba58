package ptree

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/gonum/matrix/mat64"

	"bitbucket.org/egrice/phyloplace/bio"
	"bitbucket.org/egrice/phyloplace/dna"
)

var binMagic = [4]byte{'P', 'T', 'R', 'E'}

const (
	binVersion = 1
	// maxRecordLen bounds variable-length records during load so a
	// corrupt length field cannot exhaust memory.
	maxRecordLen = 1 << 28
)

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if n > maxRecordLen {
		return "", fmt.Errorf("record length %d too large", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// Save writes the complete tree state: node records, edge records,
// the fully evaluated cost cache entries, the leaf cost table, the
// root identity and the model record. The caller must not mutate the
// tree for the duration.
func (t *Tree) Save(w io.Writer) error {
	if t.model == nil {
		return fmt.Errorf("tree has no model attached")
	}
	bw := bufio.NewWriter(w)
	le := binary.LittleEndian
	if err := binary.Write(bw, le, binMagic); err != nil {
		return fmt.Errorf("writing header: %v", err)
	}
	if err := binary.Write(bw, le, uint32(binVersion)); err != nil {
		return fmt.Errorf("writing header: %v", err)
	}
	if err := binary.Write(bw, le, uint32(t.csLen)); err != nil {
		return fmt.Errorf("writing header: %v", err)
	}

	if err := binary.Write(bw, le, uint32(len(t.nodes))); err != nil {
		return fmt.Errorf("writing nodes: %v", err)
	}
	for _, node := range t.nodes {
		if err := writeString(bw, node.Name); err != nil {
			return fmt.Errorf("writing node %d: %v", node.ID, err)
		}
		if err := writeString(bw, string(node.Seq)); err != nil {
			return fmt.Errorf("writing node %d: %v", node.ID, err)
		}
		if err := writeString(bw, node.Anno); err != nil {
			return fmt.Errorf("writing node %d: %v", node.ID, err)
		}
		if err := binary.Write(bw, le, node.AnnoDist); err != nil {
			return fmt.Errorf("writing node %d: %v", node.ID, err)
		}
	}

	edges := make([]edgeKey, 0, len(t.brLen))
	for key := range t.brLen {
		edges = append(edges, key)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].a != edges[j].a {
			return edges[i].a < edges[j].a
		}
		return edges[i].b < edges[j].b
	})
	if err := binary.Write(bw, le, uint32(len(edges))); err != nil {
		return fmt.Errorf("writing edges: %v", err)
	}
	for _, key := range edges {
		if err := binary.Write(bw, le, [2]uint32{uint32(key.a), uint32(key.b)}); err != nil {
			return fmt.Errorf("writing edge %d--%d: %v", key.a, key.b, err)
		}
		if err := binary.Write(bw, le, t.brLen[key]); err != nil {
			return fmt.Errorf("writing edge %d--%d: %v", key.a, key.b, err)
		}
	}

	cached := make([]dirKey, 0, len(t.cost))
	for key := range t.cost {
		u, v := t.nodes[key.from], t.nodes[key.to]
		if t.IsEvaluated(u, v) {
			cached = append(cached, key)
		}
	}
	sort.Slice(cached, func(i, j int) bool {
		if cached[i].from != cached[j].from {
			return cached[i].from < cached[j].from
		}
		return cached[i].to < cached[j].to
	})
	if err := binary.Write(bw, le, uint32(len(cached))); err != nil {
		return fmt.Errorf("writing cost cache: %v", err)
	}
	for _, key := range cached {
		if err := binary.Write(bw, le, [2]uint32{uint32(key.from), uint32(key.to)}); err != nil {
			return fmt.Errorf("writing cost %d->%d: %v", key.from, key.to, err)
		}
		if err := binary.Write(bw, le, t.cost[key]); err != nil {
			return fmt.Errorf("writing cost %d->%d: %v", key.from, key.to, err)
		}
	}

	if err := binary.Write(bw, le, t.leafCost[:]); err != nil {
		return fmt.Errorf("writing leaf cost table: %v", err)
	}
	if err := binary.Write(bw, le, uint32(t.root.ID)); err != nil {
		return fmt.Errorf("writing root: %v", err)
	}
	if err := t.model.Write(bw); err != nil {
		return fmt.Errorf("writing model: %v", err)
	}
	return bw.Flush()
}

// Load reads a tree saved by Save. Truncated or inconsistent input
// yields an error naming the offending section.
func Load(r io.Reader) (*Tree, error) {
	br := bufio.NewReader(r)
	le := binary.LittleEndian

	var magic [4]byte
	if err := binary.Read(br, le, &magic); err != nil {
		return nil, fmt.Errorf("reading header: %v", err)
	}
	if magic != binMagic {
		return nil, fmt.Errorf("unrecognized tree database magic %q", magic)
	}
	var version, csLen, nNodes uint32
	if err := binary.Read(br, le, &version); err != nil {
		return nil, fmt.Errorf("reading header: %v", err)
	}
	if version != binVersion {
		return nil, fmt.Errorf("unsupported tree database version %d", version)
	}
	if err := binary.Read(br, le, &csLen); err != nil {
		return nil, fmt.Errorf("reading header: %v", err)
	}
	if err := binary.Read(br, le, &nNodes); err != nil {
		return nil, fmt.Errorf("reading header: %v", err)
	}
	if nNodes == 0 || nNodes > maxRecordLen {
		return nil, fmt.Errorf("implausible node count %d", nNodes)
	}

	t := &Tree{
		nodes: make([]*Node, nNodes),
		csLen: int(csLen),
		brLen: make(map[edgeKey]float64, nNodes-1),
		cost:  make(map[dirKey][]float64),
		prMat: make(map[edgeKey]*mat64.Dense),
	}
	for id := range t.nodes {
		node := &Node{ID: id}
		var err error
		if node.Name, err = readString(br); err != nil {
			return nil, fmt.Errorf("reading node %d: %v", id, err)
		}
		var seq string
		if seq, err = readString(br); err != nil {
			return nil, fmt.Errorf("reading node %d: %v", id, err)
		}
		if seq != "" {
			if len(seq) != int(csLen) {
				return nil, fmt.Errorf("node %d sequence has length %d, want %d",
					id, len(seq), csLen)
			}
			node.Seq = bio.Seq(seq)
		}
		if node.Anno, err = readString(br); err != nil {
			return nil, fmt.Errorf("reading node %d: %v", id, err)
		}
		if err = binary.Read(br, le, &node.AnnoDist); err != nil {
			return nil, fmt.Errorf("reading node %d: %v", id, err)
		}
		t.nodes[id] = node
	}

	var nEdges uint32
	if err := binary.Read(br, le, &nEdges); err != nil {
		return nil, fmt.Errorf("reading edges: %v", err)
	}
	if nEdges != nNodes-1 {
		return nil, fmt.Errorf("%d nodes with %d edges is not a tree", nNodes, nEdges)
	}
	for i := uint32(0); i < nEdges; i++ {
		var pair [2]uint32
		var length float64
		if err := binary.Read(br, le, &pair); err != nil {
			return nil, fmt.Errorf("reading edge %d: %v", i, err)
		}
		if err := binary.Read(br, le, &length); err != nil {
			return nil, fmt.Errorf("reading edge %d: %v", i, err)
		}
		if pair[0] >= nNodes || pair[1] >= nNodes || pair[0] == pair[1] || length < 0 {
			return nil, fmt.Errorf("bad edge record %d--%d", pair[0], pair[1])
		}
		u, v := t.nodes[pair[0]], t.nodes[pair[1]]
		key := newEdgeKey(u.ID, v.ID)
		if _, ok := t.brLen[key]; ok {
			return nil, fmt.Errorf("duplicate edge record %d--%d", pair[0], pair[1])
		}
		t.brLen[key] = length
		u.neighbors = append(u.neighbors, v)
		v.neighbors = append(v.neighbors, u)
	}

	var nCached uint32
	if err := binary.Read(br, le, &nCached); err != nil {
		return nil, fmt.Errorf("reading cost cache: %v", err)
	}
	for i := uint32(0); i < nCached; i++ {
		var pair [2]uint32
		if err := binary.Read(br, le, &pair); err != nil {
			return nil, fmt.Errorf("reading cost entry %d: %v", i, err)
		}
		if pair[0] >= nNodes || pair[1] >= nNodes {
			return nil, fmt.Errorf("bad cost entry %d->%d", pair[0], pair[1])
		}
		m := make([]float64, NBase*int(csLen))
		if err := binary.Read(br, le, m); err != nil {
			return nil, fmt.Errorf("reading cost entry %d: %v", i, err)
		}
		t.cost[dirKey{int(pair[0]), int(pair[1])}] = m
	}

	if err := binary.Read(br, le, t.leafCost[:]); err != nil {
		return nil, fmt.Errorf("reading leaf cost table: %v", err)
	}
	var rootID uint32
	if err := binary.Read(br, le, &rootID); err != nil {
		return nil, fmt.Errorf("reading root: %v", err)
	}
	if rootID >= nNodes {
		return nil, fmt.Errorf("root id %d out of range", rootID)
	}
	t.root = t.nodes[rootID]
	if !t.orient() {
		return nil, fmt.Errorf("edge records do not form a connected tree")
	}

	model, err := dna.ReadModel(br)
	if err != nil {
		return nil, fmt.Errorf("reading model: %v", err)
	}
	t.model = model
	return t, nil
}

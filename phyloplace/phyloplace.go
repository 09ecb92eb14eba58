// phyloplace builds likelihood-ready phylogenetic tree databases and
// places query sequences onto them.
package main

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/op/go-logging"
	"gopkg.in/alecthomas/kingpin.v2"

	"bitbucket.org/egrice/phyloplace/bio"
	"bitbucket.org/egrice/phyloplace/dna"
	"bitbucket.org/egrice/phyloplace/ptree"
	"bitbucket.org/egrice/phyloplace/store"
)

var version = "phyloplace unreleased"

// log is the global logging variable.
var log = logging.MustGetLogger("phyloplace")
var formatter = logging.MustStringFormatter(`%{message}`)

// command-line options
var (
	app = kingpin.New("phyloplace", "phylogenetic placement engine").Version(version)

	// technical
	nThreads = app.Flag("nt", "number of threads to use").Int()
	seed     = app.Flag("seed", "random generator seed, default time based").Default("-1").Int64()
	outLogF  = app.Flag("log", "write log to a file").String()
	logLevel = app.Flag("loglevel", "set loglevel "+
		"('critical', 'error', 'warning', 'notice', 'info', 'debug')").
		Default("notice").
		Enum("critical", "error", "warning", "notice", "info", "debug")

	// build
	buildCmd      = app.Command("build", "build a tree database from a topology table and an alignment")
	buildTopoF    = buildCmd.Arg("topology", "topology table (name/edge/root lines)").Required().ExistingFile()
	buildAliF     = buildCmd.Arg("alignment", "FASTA alignment of the leaf sequences").Required().ExistingFile()
	buildDBF      = buildCmd.Flag("db", "tree database file").Default("ptree.db").String()
	buildName     = buildCmd.Flag("name", "tree record name").Default("default").String()
	buildModel    = buildCmd.Flag("model", "substitution model (JC69, GTR or GTR+G)").Default("GTR").String()
	buildTrain    = buildCmd.Flag("train", "training method (gojobori or goldman)").Default("gojobori").String()
	buildNoTrain  = buildCmd.Flag("notrain", "keep default model parameters").Bool()
	buildOptBr    = buildCmd.Flag("brlen", "refine all branch lengths jointly").Bool()
	buildOutTreeF = buildCmd.Flag("tree", "write the tree in newick format to a file").String()

	// place
	placeCmd      = app.Command("place", "place query sequences onto a stored tree")
	placeSeqF     = placeCmd.Arg("queries", "FASTA file with aligned query sequences").Required().ExistingFile()
	placeDBF      = placeCmd.Flag("db", "tree database file").Default("ptree.db").String()
	placeName     = placeCmd.Flag("name", "tree record name").Default("default").String()
	placePendant  = placeCmd.Flag("pendant", "initial pendant branch length").Default("0.1").Float64()
	placeOutTreeF = placeCmd.Flag("tree", "write a tree with all placements applied in input order, in newick format").String()
)

// parseTopology reads a topology table: "name <id> <label>" lines for
// named nodes, "edge <u> <v> <length>" lines for branches and one
// "root <id>" line.
func parseTopology(r io.Reader) (*ptree.Topology, error) {
	topo := &ptree.Topology{Root: -1}
	names := make(map[int]string)
	maxID := -1
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		bad := func() (*ptree.Topology, error) {
			return nil, fmt.Errorf("malformed topology line %d: '%s'", lineNo, line)
		}
		switch fields[0] {
		case "name":
			if len(fields) != 3 {
				return bad()
			}
			id, err := strconv.Atoi(fields[1])
			if err != nil {
				return bad()
			}
			names[id] = fields[2]
			if id > maxID {
				maxID = id
			}
		case "edge":
			if len(fields) != 4 {
				return bad()
			}
			u, err1 := strconv.Atoi(fields[1])
			v, err2 := strconv.Atoi(fields[2])
			length, err3 := strconv.ParseFloat(fields[3], 64)
			if err1 != nil || err2 != nil || err3 != nil {
				return bad()
			}
			topo.Edges = append(topo.Edges, ptree.TopoEdge{U: u, V: v, Length: length})
			if u > maxID {
				maxID = u
			}
			if v > maxID {
				maxID = v
			}
		case "root":
			if len(fields) != 2 {
				return bad()
			}
			id, err := strconv.Atoi(fields[1])
			if err != nil {
				return bad()
			}
			topo.Root = id
		default:
			return bad()
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if topo.Root < 0 {
		return nil, fmt.Errorf("topology table has no root line")
	}
	topo.Names = make([]string, maxID+1)
	for id, name := range names {
		topo.Names[id] = name
	}
	return topo, nil
}

func readMSA(fileName string) *bio.MSA {
	f, err := os.Open(fileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	seqs, err := bio.ParseFasta(f)
	if err != nil {
		log.Fatal(err)
	}
	msa, err := bio.MSAFromSequences(seqs)
	if err != nil {
		log.Fatal(err)
	}
	return msa
}

func writeTreeFile(t *ptree.Tree, fileName string) {
	if fileName == "" {
		return
	}
	f, err := os.Create(fileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if err := t.WriteTree(f, "newick"); err != nil {
		log.Fatal(err)
	}
}

func build() {
	topoFile, err := os.Open(*buildTopoF)
	if err != nil {
		log.Fatal(err)
	}
	topo, err := parseTopology(topoFile)
	topoFile.Close()
	if err != nil {
		log.Fatal(err)
	}
	t, err := ptree.New(topo)
	if err != nil {
		log.Fatal(err)
	}
	if err = t.LoadMSA(readMSA(*buildAliF)); err != nil {
		log.Fatal(err)
	}

	model, err := dna.NewModel(*buildModel)
	if err != nil {
		log.Fatal(err)
	}
	t.SetModel(model)
	if !*buildNoTrain {
		if err = t.TrainModel(*buildTrain); err != nil {
			log.Fatal(err)
		}
	}

	if *buildOptBr {
		cost := t.OptimizeAllBranchLengths()
		log.Noticef("Refined branch lengths, tree cost: %f", cost)
	}

	start := time.Now()
	t.EvaluateAll()
	log.Infof("Evaluated %d columns in %v", t.NumAlignSites(), time.Since(start))
	log.Noticef("Tree cost: %f", t.TreeCost())

	db, err := store.Open(*buildDBF)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	if err = db.SaveTree(*buildName, t); err != nil {
		log.Fatal(err)
	}
	writeTreeFile(t, *buildOutTreeF)
}

// bestPlacement tries every branch for one query and returns the tree
// with the lowest-cost placement applied, its cost and its pendant
// branch length. The input tree is left untouched.
func bestPlacement(t *ptree.Tree, name string, seq bio.Seq) (*ptree.Tree, float64, float64, error) {
	end := t.NumAlignSites() - 1
	bestCost := math.Inf(+1)
	var bestTree *ptree.Tree
	var bestLen float64
	for _, edge := range t.EdgeList() {
		trial := t.Copy()
		u, err := trial.GetNode(edge.U)
		if err != nil {
			return nil, 0, 0, err
		}
		v, err := trial.GetNode(edge.V)
		if err != nil {
			return nil, 0, 0, err
		}
		leaf, err := trial.PlaceSeq(name, seq, u, v, *placePendant, 0, end)
		if err != nil {
			return nil, 0, 0, err
		}
		cost := trial.TreeCost()
		if cost < bestCost {
			bestCost = cost
			bestTree = trial
			bestLen = trial.GetBranchLength(leaf, leaf.Parent)
		}
	}
	return bestTree, bestCost, bestLen, nil
}

func place() {
	db, err := store.Open(*placeDBF)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	t, err := db.LoadTree(*placeName)
	if err != nil {
		log.Fatal(err)
	}
	meta, err := db.Meta(*placeName)
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("Loaded tree <%s>: %s model, %d leaves, %d sites, saved %v",
		meta.Name, meta.Model, meta.Leaves, meta.Sites, meta.Saved)

	f, err := os.Open(*placeSeqF)
	if err != nil {
		log.Fatal(err)
	}
	queries, err := bio.ParseFasta(f)
	f.Close()
	if err != nil {
		log.Fatal(err)
	}

	t.EvaluateAll()
	// every query is placed independently on the stored tree; the
	// optional output tree collects the placements in input order
	out := t
	for _, q := range queries {
		seq := bio.EncodeSeq(q.Sequence)
		_, cost, pendant, err := bestPlacement(t, q.Name, seq)
		if err != nil {
			log.Fatal(err)
		}
		log.Noticef("%s\tcost=%f\tpendant=%g", q.Name, cost, pendant)
		if *placeOutTreeF != "" {
			if out, _, _, err = bestPlacement(out, q.Name, seq); err != nil {
				log.Fatal(err)
			}
		}
	}
	writeTreeFile(out, *placeOutTreeF)
}

func main() {
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	// logging
	logging.SetFormatter(formatter)

	var backend *logging.LogBackend
	if *outLogF != "" {
		f, err := os.OpenFile(*outLogF, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("Error creating log file:", err)
		}
		defer f.Close()
		backend = logging.NewLogBackend(f, "", 0)
	} else {
		backend = logging.NewLogBackend(os.Stderr, "", 0)
	}
	logging.SetBackend(backend)

	level, err := logging.LogLevel(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	logging.SetLevel(level, "phyloplace")
	logging.SetLevel(level, "ptree")
	logging.SetLevel(level, "dna")
	logging.SetLevel(level, "optimize")
	logging.SetLevel(level, "store")

	log.Info(version)
	log.Info("Command line:", os.Args)

	if *seed == -1 {
		*seed = time.Now().UnixNano()
		log.Debug("Random seed from time")
	}
	log.Infof("Random seed=%v", *seed)
	rand.Seed(*seed)

	if *nThreads > 0 {
		runtime.GOMAXPROCS(*nThreads)
	}
	log.Infof("Using threads: %d.", runtime.GOMAXPROCS(0))

	switch cmd {
	case buildCmd.FullCommand():
		build()
	case placeCmd.FullCommand():
		place()
	}
}

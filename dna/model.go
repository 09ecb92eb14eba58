// Package dna provides time-reversible nucleotide substitution models.
package dna

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gonum/matrix/mat64"
	"github.com/op/go-logging"
)

// log is the global logging variable.
var log = logging.MustGetLogger("dna")

// NBase is the number of nucleotide states.
const NBase = 4

// Model is a time-reversible nucleotide substitution model.
type Model interface {
	// Type returns the model type tag used for (de)serialization.
	Type() string
	// Pi returns the stationary base frequencies (A, C, G, T).
	Pi() []float64
	// Pr returns the 4x4 row-stochastic transition probability
	// matrix for branch length v. Pr(0) is the identity and for
	// large v every row converges to Pi.
	Pr(v float64) *mat64.Dense
	// SubDist estimates the substitution distance from an observed
	// 4x4 pairwise count matrix d over n comparable sites. Returns
	// 0 when n is 0 and NaN when the observed divergence reaches
	// the model's saturation bound; callers must guard the NaN.
	SubDist(d *mat64.Dense, n float64) float64
	// Train estimates model parameters from a set of observed
	// pairwise transition count matrices and an observed base
	// frequency vector.
	Train(ps []*mat64.Dense, freq []float64) error
	// Read reads the model record written by Write.
	Read(r io.Reader) error
	// Write writes the model as a text record.
	Write(w io.Writer) error
	// Clone returns an independent copy of the model.
	Clone() Model
}

// constructors maps model type tags to constructors of models with
// default parameters.
var constructors = map[string]func() Model{}

// register adds a model constructor for a type tag.
func register(tag string, f func() Model) {
	constructors[tag] = f
}

// NewModel creates a model with default parameters from a type tag.
// An unknown tag is a hard error.
func NewModel(tag string) (Model, error) {
	f, ok := constructors[strings.ToUpper(tag)]
	if ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown substitution model type '%s'", tag)
}

// ReadModel reads a model record and creates the matching model.
func ReadModel(r io.Reader) (Model, error) {
	lines, err := readRecord(r)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("empty model record")
	}
	fields := strings.Fields(lines[0])
	if len(fields) != 2 || fields[0] != "model" {
		return nil, fmt.Errorf("malformed model header '%s'", lines[0])
	}
	m, err := NewModel(fields[1])
	if err != nil {
		return nil, err
	}
	err = m.Read(strings.NewReader(strings.Join(lines, "\n")))
	return m, err
}

// readRecord reads text lines until a blank line or EOF.
func readRecord(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

// parseRecord turns record lines into a key -> values table and checks
// the header tag.
func parseRecord(lines []string, tag string) (map[string][]float64, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("empty model record")
	}
	if lines[0] != "model "+tag {
		return nil, fmt.Errorf("model record is not %s: '%s'", tag, lines[0])
	}
	res := make(map[string][]float64)
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("malformed model record line '%s'", line)
		}
		vs := make([]float64, 0, len(fields)-1)
		for _, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("malformed model record line '%s': %v", line, err)
			}
			vs = append(vs, v)
		}
		res[fields[0]] = vs
	}
	return res, nil
}

// recordValues fetches a key from a parsed record and checks arity.
func recordValues(rec map[string][]float64, key string, n int) ([]float64, error) {
	vs, ok := rec[key]
	if !ok {
		return nil, fmt.Errorf("model record is missing '%s'", key)
	}
	if len(vs) != n {
		return nil, fmt.Errorf("model record '%s' has %d values, want %d", key, len(vs), n)
	}
	return vs, nil
}

// writeVector writes one record line with a key and float values.
func writeVector(w io.Writer, key string, vs []float64) error {
	if _, err := io.WriteString(w, key); err != nil {
		return err
	}
	for _, v := range vs {
		if _, err := fmt.Fprintf(w, " %v", v); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// identityP is the transition matrix for a zero-length branch.
func identityP() *mat64.Dense {
	p := mat64.NewDense(NBase, NBase, nil)
	for i := 0; i < NBase; i++ {
		p.Set(i, i, 1)
	}
	return p
}

// normalize scales a non-negative vector so it sums to one.
func normalize(vs []float64) []float64 {
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	res := make([]float64, len(vs))
	if sum <= 0 {
		for i := range res {
			res[i] = 1 / float64(len(vs))
		}
		return res
	}
	for i, v := range vs {
		res[i] = v / sum
	}
	return res
}

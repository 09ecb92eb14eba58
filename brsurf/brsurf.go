// brsurf plots the tree cost surface over one branch's length.
package main

import (
	"flag"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"bitbucket.org/egrice/phyloplace/ptree"
	"bitbucket.org/egrice/phyloplace/store"
)

// gridLengths returns n branch lengths evenly spread over
// [BranchEps, BranchEps+max].
func gridLengths(n int, max float64) []float64 {
	if n < 2 {
		panic("need at least 2 grid points")
	}
	res := make([]float64, n)
	for i := range res {
		res[i] = ptree.BranchEps + float64(i)*max/float64(n-1)
	}
	return res
}

func main() {
	dbF := flag.String("db", "ptree.db", "tree database file")
	name := flag.String("name", "default", "tree record name")
	u := flag.Int("u", 0, "first node of the branch")
	v := flag.Int("v", 1, "second node of the branch")
	n := flag.Int("n", 50, "number of grid points")
	maxLen := flag.Float64("max", 2, "largest branch length to plot")
	out := flag.String("o", "brsurf.png", "output file")
	flag.Parse()

	db, err := store.Open(*dbF)
	if err != nil {
		panic(err)
	}
	defer db.Close()
	t, err := db.LoadTree(*name)
	if err != nil {
		panic(err)
	}
	nu, err := t.GetNode(*u)
	if err != nil {
		panic(err)
	}
	nv, err := t.GetNode(*v)
	if err != nil {
		panic(err)
	}

	grid := gridLengths(*n, *maxLen)
	pts := make(plotter.XYs, len(grid))
	for i, length := range grid {
		t.SetBranchLength(nu, nv, length)
		pts[i].X = length
		pts[i].Y = t.TreeCost()
	}

	p, err := plot.New()
	if err != nil {
		panic(err)
	}
	p.X.Label.Text = "branch length"
	p.Y.Label.Text = "tree cost"

	err = plotutil.AddLinePoints(p,
		fmt.Sprintf("%d--%d", *u, *v), pts)
	if err != nil {
		panic(err)
	}

	if err := p.Save(4*vg.Inch, 4*vg.Inch, *out); err != nil {
		panic(err)
	}
}

// Package optimize provides bounded likelihood optimization over a set
// of float parameters.
package optimize

import (
	"fmt"
	"io"

	"github.com/op/go-logging"
)

// log is the global logging variable.
var log = logging.MustGetLogger("optimize")

// Optimizable is something which has a likelihood and float parameters
// to maximize the likelihood over.
type Optimizable interface {
	// GetFloatParameters returns the optimization parameters.
	GetFloatParameters() FloatParameters
	// Likelihood returns the log likelihood for the current
	// parameter values.
	Likelihood() float64
	// Copy returns an independent copy (used for numerical
	// gradients).
	Copy() Optimizable
}

// Optimizer is a likelihood maximizer.
type Optimizer interface {
	SetOptimizable(Optimizable)
	SetOutput(io.Writer)
	SetReportPeriod(period int)
	Run(iterations int)
	GetMaxL() float64
	GetMaxLParameters() []float64
}

// BaseOptimizer contains basic data for an optimizer.
type BaseOptimizer struct {
	Optimizable
	parameters FloatParameters
	i          int
	l          float64
	maxL       float64
	maxLPar    []float64
	repPeriod  int
	output     io.Writer
	Quiet      bool
}

// SetOptimizable sets the optimization subject.
func (o *BaseOptimizer) SetOptimizable(opt Optimizable) {
	o.Optimizable = opt
	o.parameters = opt.GetFloatParameters()
}

// SetOutput sets the trajectory output writer.
func (o *BaseOptimizer) SetOutput(w io.Writer) {
	o.output = w
}

// SetReportPeriod sets the number of iterations between trajectory
// lines.
func (o *BaseOptimizer) SetReportPeriod(period int) {
	o.repPeriod = period
}

// PrintHeader prints the trajectory header.
func (o *BaseOptimizer) PrintHeader() {
	if o.Quiet || o.output == nil {
		return
	}
	fmt.Fprintf(o.output, "iteration\tlikelihood\t%s\n", o.parameters.NamesString())
}

// PrintLine prints one trajectory line.
func (o *BaseOptimizer) PrintLine() {
	if o.Quiet || o.output == nil {
		return
	}
	if o.repPeriod > 0 && o.i%o.repPeriod != 0 {
		return
	}
	fmt.Fprintf(o.output, "%d\t%f\t%s\n", o.i, o.l, o.parameters.ValuesString())
}

// PrintFinal logs the final parameter values.
func (o *BaseOptimizer) PrintFinal() {
	if o.Quiet {
		return
	}
	for _, par := range o.parameters {
		log.Noticef("%s=%v", par.Name(), par.Get())
	}
}

// GetMaxL returns the maximum likelihood found.
func (o *BaseOptimizer) GetMaxL() float64 {
	return o.maxL
}

// GetMaxLParameters returns parameter values at the maximum.
func (o *BaseOptimizer) GetMaxLParameters() []float64 {
	return o.maxLPar
}

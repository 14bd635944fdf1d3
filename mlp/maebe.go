package mlp

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

type maebe struct {
	err error
}

// generic monad... may be useful
func (m *maebe) do(f func() (*G.Node, error)) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = f(); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

func (m *maebe) sigmoid(input *G.Node) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = G.Sigmoid(input); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

func (m *maebe) softmax(input *G.Node) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = G.SoftMax(input); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

// xent is the categorical cross entropy of the predicted distribution
// against a one-hot target, averaged over the batch.
func (m *maebe) xent(output, target *G.Node) (retVal *G.Node) {
	eps := G.NewConstant(float32(1e-8))
	stable := m.do(func() (*G.Node, error) { return G.Add(output, eps) })
	logOut := m.do(func() (*G.Node, error) { return G.Log(stable) })
	prod := m.do(func() (*G.Node, error) { return G.HadamardProd(target, logOut) })
	perRow := m.do(func() (*G.Node, error) { return G.Sum(prod, 1) })
	mean := m.do(func() (*G.Node, error) { return G.Mean(perRow) })
	return m.do(func() (*G.Node, error) { return G.Neg(mean) })
}

type slicer struct {
	v   tensor.View
	err error
}

func (s *slicer) Slice(a *tensor.Dense, slices ...tensor.Slice) *tensor.Dense {
	if s.err != nil {
		return nil
	}
	if s.v, s.err = a.Slice(slices...); s.err != nil {
		s.err = errors.Wrapf(s.err, "Slicer failed") // get a stack trace
		return nil
	}
	return s.v.(*tensor.Dense)
}

type rs struct {
	start, end, step int
}

func (s rs) Start() int { return s.start }
func (s rs) End() int   { return s.end }
func (s rs) Step() int  { return s.step }

// sli creates a ranged slice. It takes an optional step param.
func sli(start, end int, opts ...int) rs {
	step := 1
	if len(opts) > 0 {
		step = opts[0]
	}
	return rs{
		start: start,
		end:   end,
		step:  step,
	}
}

type manyErr []error

func (err manyErr) Error() string {
	var buf bytes.Buffer
	for _, e := range err {
		fmt.Fprintln(&buf, e.Error())
	}
	return buf.String()
}

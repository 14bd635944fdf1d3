// Package mlp implements the supervised fine-tuning network of a DBN:
// a feed-forward stack of sigmoid layers topped by a softmax
// classifier, expressed as a gorgonia expression graph. The weights of
// the stack are typically seeded from pretrained RBM layers before
// training.
package mlp

import (
	"fmt"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

var Float = G.Float32

// Config configures the fine-tuning network.
type Config struct {
	// Sizes are the layer widths, input first, class count last.
	Sizes []int

	BatchSize int
	LearnRate float64

	FwdOnly bool // is this a fwd only graph?
}

func (conf Config) IsValid() bool {
	if len(conf.Sizes) < 2 || conf.BatchSize < 1 {
		return false
	}
	for _, s := range conf.Sizes {
		if s < 1 {
			return false
		}
	}
	return conf.FwdOnly || conf.LearnRate > 0
}

// MLP is the fine-tuning network.
type MLP struct {
	Config

	g    *G.ExprGraph
	x, y *G.Node
	ws   []*G.Node
	bs   []*G.Node
	out  *G.Node

	probs G.Value // predicted distribution
	cost  G.Value // cost, for training recording
}

// New returns a new, uninitialized *MLP.
func New(conf Config) *MLP {
	return &MLP{Config: conf}
}

// Init builds the expression graph.
func (m *MLP) Init() error {
	if !m.Config.IsValid() {
		return errors.Errorf("invalid MLP config %+v", m.Config)
	}
	m.reset()
	m.g = G.NewGraph()

	m.x = G.NewMatrix(m.g, Float, G.WithShape(m.BatchSize, m.Sizes[0]), G.WithName("X"))

	var mb maebe
	cur := m.x
	last := len(m.Sizes) - 1
	for i := 1; i <= last; i++ {
		w := G.NewMatrix(m.g, Float, G.WithShape(m.Sizes[i-1], m.Sizes[i]), G.WithName(fmt.Sprintf("W%d", i)), G.WithInit(G.GlorotN(1.0)))
		xw := mb.do(func() (*G.Node, error) { return G.Mul(cur, w) })
		b := G.NewMatrix(m.g, Float, G.WithShape(m.BatchSize, m.Sizes[i]), G.WithName(fmt.Sprintf("B%d", i)), G.WithInit(G.Zeroes()))
		pre := mb.do(func() (*G.Node, error) { return G.Add(xw, b) })

		if i < last {
			cur = mb.sigmoid(pre)
		} else {
			cur = mb.softmax(pre)
		}
		m.ws = append(m.ws, w)
		m.bs = append(m.bs, b)
	}
	m.out = cur
	G.Read(m.out, &m.probs)

	if m.FwdOnly {
		return mb.err
	}

	m.y = G.NewMatrix(m.g, Float, G.WithShape(m.BatchSize, m.Sizes[last]), G.WithName("Y"))
	cost := mb.xent(m.out, m.y)
	if mb.err != nil {
		return mb.err
	}
	G.Read(cost, &m.cost)

	if _, err := G.Grad(cost, m.Model()...); err != nil {
		return err
	}
	return nil
}

// Layers returns the number of weight layers.
func (m *MLP) Layers() int { return len(m.ws) }

// Model returns the learnable nodes.
func (m *MLP) Model() G.Nodes {
	retVal := make(G.Nodes, 0, len(m.ws)+len(m.bs))
	retVal = append(retVal, m.ws...)
	retVal = append(retVal, m.bs...)
	return retVal
}

// SetLayer seeds weight layer i from a pretrained RBM: w is the RBM's
// hidden×visible weight matrix (transposed into the graph's in×out
// orientation) and bias its hidden biases (tiled across the batch
// dimension).
func (m *MLP) SetLayer(i int, w [][]float32, bias []float32) error {
	if i < 0 || i >= len(m.ws) {
		return errors.Errorf("no layer %d in a %d layer network", i, len(m.ws))
	}
	in, out := m.ws[i].Shape()[0], m.ws[i].Shape()[1]
	if len(w) != out || len(bias) != out {
		return errors.Errorf("layer %d geometry mismatch: got %d×? weights for %d×%d", i, len(w), in, out)
	}

	backing := make([]float32, in*out)
	for j, row := range w {
		if len(row) != in {
			return errors.Errorf("layer %d geometry mismatch: row %d has %d weights, want %d", i, j, len(row), in)
		}
		for k, v := range row {
			backing[k*out+j] = v
		}
	}
	wt := tensor.New(tensor.WithShape(in, out), tensor.WithBacking(backing))
	if err := G.Let(m.ws[i], wt); err != nil {
		return errors.Wrapf(err, "setting W%d", i+1)
	}

	bBacking := make([]float32, m.BatchSize*out)
	for r := 0; r < m.BatchSize; r++ {
		copy(bBacking[r*out:(r+1)*out], bias)
	}
	bt := tensor.New(tensor.WithShape(m.BatchSize, out), tensor.WithBacking(bBacking))
	return errors.Wrapf(G.Let(m.bs[i], bt), "setting B%d", i+1)
}

func (m *MLP) reset() {
	m.g = nil
	m.x = nil
	m.y = nil
	m.ws = nil
	m.bs = nil
	m.out = nil
}

package rbm

import (
	"runtime"
	"sync"
	"time"

	"github.com/XDimage/dll/trainer"
	rng "github.com/leesper/go_rng"
	"gorgonia.org/vecf32"
)

// ConvCDTrainer performs contrastive divergence updates for a
// convolutional RBM. Like CDTrainer, it is allocated once per run,
// holds all scratch, and parallelizes the Gibbs chains across workers
// within a batch, joining them before the parameters are touched.
type ConvCDTrainer struct {
	rbm     *ConvRBM
	workers int

	grads []*convScratch

	wInc  []float32
	bvInc []float32
	bhInc []float32

	decay []float32
}

type convScratch struct {
	wGrad  []float32
	bvGrad []float32
	bhGrad []float32

	h0 []float32
	hk []float32
	hs []float32
	vk []float32

	err      float32
	sparsity float32

	unif *rng.UniformGenerator
}

// NewConvCDTrainer allocates a CD trainer bound to c.
func NewConvCDTrainer(c *ConvRBM) *ConvCDTrainer {
	workers := runtime.NumCPU()
	if workers > c.conf.BatchSize {
		workers = c.conf.BatchSize
	}
	if workers < 1 {
		workers = 1
	}

	nw := len(c.wd)
	nh := c.conf.Filters * c.oh * c.ow

	t := &ConvCDTrainer{
		rbm:     c,
		workers: workers,
		wInc:    make([]float32, nw),
		bvInc:   make([]float32, c.conf.Channels),
		bhInc:   make([]float32, c.conf.Filters),
		decay:   make([]float32, nw),
	}
	for w := 0; w < workers; w++ {
		t.grads = append(t.grads, &convScratch{
			wGrad:  make([]float32, nw),
			bvGrad: make([]float32, c.conf.Channels),
			bhGrad: make([]float32, c.conf.Filters),
			h0:     make([]float32, nh),
			hk:     make([]float32, nh),
			hs:     make([]float32, nh),
			vk:     make([]float32, c.InputSize()),
			unif:   rng.NewUniformGenerator(time.Now().UnixNano() + int64(w)),
		})
	}
	return t
}

// TrainBatch implements trainer.BatchTrainer.
func (t *ConvCDTrainer) TrainBatch(input, expected [][]float32, ctx *trainer.Context) {
	n := len(input)

	var wg sync.WaitGroup
	for w := 0; w < t.workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			s := t.grads[w]
			s.zero()
			for i := w; i < n; i += t.workers {
				t.chain(s, input[i], expected[i])
			}
		}(w)
	}
	wg.Wait()

	g := t.grads[0]
	for _, s := range t.grads[1:] {
		vecf32.Add(g.wGrad, s.wGrad)
		vecf32.Add(g.bvGrad, s.bvGrad)
		vecf32.Add(g.bhGrad, s.bhGrad)
		g.err += s.err
		g.sparsity += s.sparsity
	}

	t.apply(g, n)

	c := t.rbm
	ctx.BatchError = g.err / float32(n)
	ctx.BatchSparsity = g.sparsity / (float32(n) * float32(c.conf.Filters*c.oh*c.ow))
}

func (t *ConvCDTrainer) chain(s *convScratch, v0, tgt []float32) {
	c := t.rbm

	c.ActivateHidden(s.h0, v0)
	c.sampleHidden(s.hs, s.h0, s.unif)

	for step := 0; step < c.conf.CDSteps; step++ {
		c.ActivateVisible(s.vk, s.hs)
		c.ActivateHidden(s.hk, s.vk)
		if step < c.conf.CDSteps-1 {
			c.sampleHidden(s.hs, s.hk, s.unif)
		}
	}

	for k := 0; k < c.conf.Filters; k++ {
		var bh float32
		for y := 0; y < c.oh; y++ {
			for x := 0; x < c.ow; x++ {
				hi := c.hidx(k, y, x)
				h0, hk := s.h0[hi], s.hk[hi]
				bh += h0 - hk
				s.sparsity += h0

				for ch := 0; ch < c.conf.Channels; ch++ {
					for fy := 0; fy < c.conf.FilterH; fy++ {
						for fx := 0; fx < c.conf.FilterW; fx++ {
							vi := c.vidx(ch, y+fy, x+fx)
							s.wGrad[c.widx(k, ch, fy, fx)] += h0*tgt[vi] - hk*s.vk[vi]
						}
					}
				}
			}
		}
		s.bhGrad[k] += bh
	}

	area := c.conf.InputH * c.conf.InputW
	for ch := 0; ch < c.conf.Channels; ch++ {
		var bv float32
		for i := ch * area; i < (ch+1)*area; i++ {
			d := tgt[i] - s.vk[i]
			bv += d
			s.err += d * d
		}
		s.bvGrad[ch] += bv / float32(area)
	}
}

func (t *ConvCDTrainer) apply(g *convScratch, n int) {
	c := t.rbm
	lr := c.conf.LearningRate / float32(n)

	var momentum float32
	if c.conf.Momentum {
		momentum = c.momentum
	}

	vecf32.Scale(t.wInc, momentum)
	vecf32.Scale(g.wGrad, lr)
	vecf32.Add(t.wInc, g.wGrad)
	if c.conf.Decay > 0 {
		copy(t.decay, c.wd)
		vecf32.Scale(t.decay, c.conf.LearningRate*c.conf.Decay)
		vecf32.Sub(t.wInc, t.decay)
	}
	vecf32.Add(c.wd, t.wInc)

	vecf32.Scale(t.bvInc, momentum)
	vecf32.Scale(g.bvGrad, lr)
	vecf32.Add(t.bvInc, g.bvGrad)
	vecf32.Add(c.BVis, t.bvInc)

	vecf32.Scale(t.bhInc, momentum)
	vecf32.Scale(g.bhGrad, lr)
	vecf32.Add(t.bhInc, g.bhGrad)
	vecf32.Add(c.BHid, t.bhInc)
}

func (s *convScratch) zero() {
	for i := range s.wGrad {
		s.wGrad[i] = 0
	}
	for i := range s.bvGrad {
		s.bvGrad[i] = 0
	}
	for i := range s.bhGrad {
		s.bhGrad[i] = 0
	}
	s.err = 0
	s.sparsity = 0
}

package rbm

import (
	"runtime"
	"sync"
	"time"

	"github.com/XDimage/dll/trainer"
	rng "github.com/leesper/go_rng"
	"gorgonia.org/vecf32"
)

// CDTrainer performs contrastive divergence (CD-k) updates for a dense
// RBM. It is allocated once per training run and holds every scratch
// buffer the algorithm needs, so TrainBatch itself does not allocate.
//
// Within a batch the Gibbs chains are data-parallel across worker
// goroutines, each with its own scratch and noise source; all workers
// are joined before the gradients are folded into the parameters, so a
// batch is atomic from the epoch loop's point of view.
type CDTrainer struct {
	rbm     *RBM
	workers int

	grads []*cdScratch

	wInc  [][]float32
	bvInc []float32
	bhInc []float32

	decay []float32
}

type cdScratch struct {
	wGrad  [][]float32
	bvGrad []float32
	bhGrad []float32

	h0 []float32
	hk []float32
	hs []float32
	vk []float32

	err      float32
	sparsity float32

	unif  *rng.UniformGenerator
	gauss *rng.GaussianGenerator
}

// NewCDTrainer allocates a CD trainer bound to r.
func NewCDTrainer(r *RBM) *CDTrainer {
	workers := runtime.NumCPU()
	if workers > r.conf.BatchSize {
		workers = r.conf.BatchSize
	}
	if workers < 1 {
		workers = 1
	}

	t := &CDTrainer{
		rbm:     r,
		workers: workers,
		wInc:    alloc2d(r.conf.Hidden, r.conf.Visible),
		bvInc:   make([]float32, r.conf.Visible),
		bhInc:   make([]float32, r.conf.Hidden),
		decay:   make([]float32, r.conf.Visible),
	}
	for w := 0; w < workers; w++ {
		t.grads = append(t.grads, &cdScratch{
			wGrad:  alloc2d(r.conf.Hidden, r.conf.Visible),
			bvGrad: make([]float32, r.conf.Visible),
			bhGrad: make([]float32, r.conf.Hidden),
			h0:     make([]float32, r.conf.Hidden),
			hk:     make([]float32, r.conf.Hidden),
			hs:     make([]float32, r.conf.Hidden),
			vk:     make([]float32, r.conf.Visible),
			unif:   rng.NewUniformGenerator(time.Now().UnixNano() + int64(w)),
			gauss:  rng.NewGaussianGenerator(time.Now().UnixNano() - int64(w)),
		})
	}
	return t
}

// TrainBatch implements trainer.BatchTrainer.
func (t *CDTrainer) TrainBatch(input, expected [][]float32, ctx *trainer.Context) {
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

	// fold the per-worker gradients into worker 0
	g := t.grads[0]
	for _, s := range t.grads[1:] {
		for j := range g.wGrad {
			vecf32.Add(g.wGrad[j], s.wGrad[j])
		}
		vecf32.Add(g.bvGrad, s.bvGrad)
		vecf32.Add(g.bhGrad, s.bhGrad)
		g.err += s.err
		g.sparsity += s.sparsity
	}

	t.apply(g, n)

	ctx.BatchError = g.err / float32(n)
	ctx.BatchSparsity = g.sparsity / (float32(n) * float32(t.rbm.conf.Hidden))
}

// chain runs one CD-k Gibbs chain and accumulates the gradient.
func (t *CDTrainer) chain(s *cdScratch, v0, tgt []float32) {
	r := t.rbm

	r.ActivateHidden(s.h0, v0)
	r.sampleHidden(s.hs, s.h0, s.unif, s.gauss)

	for step := 0; step < r.conf.CDSteps; step++ {
		r.ActivateVisible(s.vk, s.hs)
		r.ActivateHidden(s.hk, s.vk)
		if step < r.conf.CDSteps-1 {
			r.sampleHidden(s.hs, s.hk, s.unif, s.gauss)
		}
	}

	for j := range s.wGrad {
		row := s.wGrad[j]
		h0j, hkj := s.h0[j], s.hk[j]
		for i := range row {
			row[i] += h0j*tgt[i] - hkj*s.vk[i]
		}
		s.bhGrad[j] += h0j - hkj
		s.sparsity += h0j
	}
	for i := range s.bvGrad {
		d := tgt[i] - s.vk[i]
		s.bvGrad[i] += d
		s.err += d * d
	}
}

// apply folds the accumulated gradient of a batch of n samples into the
// parameters, with momentum and weight decay.
func (t *CDTrainer) apply(g *cdScratch, n int) {
	r := t.rbm
	lr := r.conf.LearningRate / float32(n)

	var momentum float32
	if r.conf.Momentum {
		momentum = r.momentum
	}

	for j := range t.wInc {
		inc := t.wInc[j]
		vecf32.Scale(inc, momentum)
		vecf32.Scale(g.wGrad[j], lr)
		vecf32.Add(inc, g.wGrad[j])
		if r.conf.Decay > 0 {
			copy(t.decay, r.W[j])
			vecf32.Scale(t.decay, r.conf.LearningRate*r.conf.Decay)
			vecf32.Sub(inc, t.decay)
		}
		vecf32.Add(r.W[j], inc)
	}

	vecf32.Scale(t.bvInc, momentum)
	vecf32.Scale(g.bvGrad, lr)
	vecf32.Add(t.bvInc, g.bvGrad)
	vecf32.Add(r.BVis, t.bvInc)

	vecf32.Scale(t.bhInc, momentum)
	vecf32.Scale(g.bhGrad, lr)
	vecf32.Add(t.bhInc, g.bhGrad)
	vecf32.Add(r.BHid, t.bhInc)

	if r.conf.SparsityCost > 0 {
		q := g.sparsity / (float32(n) * float32(r.conf.Hidden))
		adj := r.conf.LearningRate * r.conf.SparsityCost * (q - r.conf.SparsityTarget)
		for j := range r.BHid {
			r.BHid[j] -= adj
		}
	}
}

func (s *cdScratch) zero() {
	for _, row := range s.wGrad {
		for i := range row {
			row[i] = 0
		}
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

func alloc2d(rows, cols int) [][]float32 {
	ret := make([][]float32, rows)
	for i := range ret {
		ret[i] = make([]float32, cols)
	}
	return ret
}

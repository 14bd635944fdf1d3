// Package rbm implements Restricted Boltzmann Machine layers, dense
// and convolutional, trained by contrastive divergence through the
// generic epoch engine in the trainer package.
package rbm

import (
	"time"

	"github.com/XDimage/dll/trainer"
	"github.com/chewxy/math32"
	rng "github.com/leesper/go_rng"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/tensor/native"
)

// RBM is a dense Restricted Boltzmann Machine: a fully connected
// visible layer and hidden layer with symmetric weights.
//
// The weight matrix is hidden×visible. Weights and biases are owned by
// the layer; the trainer only ever mutates them through the batch
// trainer the layer allocates, and through the momentum schedule.
type RBM struct {
	conf Config

	w    *tensor.Dense
	W    [][]float32 // native view of w, hidden×visible
	BVis []float32
	BHid []float32

	momentum float32

	gauss *rng.GaussianGenerator
}

// New returns an uninitialized RBM. Call Init before use.
func New(conf Config) *RBM {
	return &RBM{conf: conf}
}

// Init validates the configuration and allocates the parameters.
// Weights start at small Gaussian noise, biases at zero.
func (r *RBM) Init() error {
	if !r.conf.IsValid() {
		return errors.Errorf("invalid RBM config %+v", r.conf)
	}

	r.gauss = rng.NewGaussianGenerator(time.Now().UnixNano())

	backing := make([]float32, r.conf.Hidden*r.conf.Visible)
	for i := range backing {
		backing[i] = float32(r.gauss.Gaussian(0, 0.01))
	}
	r.w = tensor.New(tensor.WithShape(r.conf.Hidden, r.conf.Visible), tensor.WithBacking(backing))

	var err error
	if r.W, err = native.MatrixF32(r.w); err != nil {
		return errors.Wrap(err, "weight view")
	}

	r.BVis = make([]float32, r.conf.Visible)
	r.BHid = make([]float32, r.conf.Hidden)
	r.momentum = r.conf.InitialMomentum
	return nil
}

// Conf returns the layer configuration.
func (r *RBM) Conf() Config { return r.conf }

// Weights returns the weight tensor (hidden×visible).
func (r *RBM) Weights() *tensor.Dense { return r.w }

// HiddenWeights returns the hidden×visible weight rows and the hidden
// biases, for seeding a dense layer of the fine-tuning network.
func (r *RBM) HiddenWeights() ([][]float32, []float32) { return r.W, r.BHid }

// InputSize returns the number of visible units.
func (r *RBM) InputSize() int { return r.conf.Visible }

// OutputSize returns the number of hidden units.
func (r *RBM) OutputSize() int { return r.conf.Hidden }

// BatchSize implements trainer.Trainee.
func (r *RBM) BatchSize() int { return r.conf.BatchSize }

// Capabilities implements trainer.Trainee.
func (r *RBM) Capabilities() trainer.Capabilities {
	return trainer.Capabilities{
		Shuffle:     r.conf.Shuffle,
		Momentum:    r.conf.Momentum,
		InitWeights: r.conf.InitWeights,
		FreeEnergy:  r.conf.FreeEnergy,
		Verbose:     r.conf.Verbose,
	}
}

// NewBatchTrainer implements trainer.Trainee.
func (r *RBM) NewBatchTrainer() trainer.BatchTrainer { return NewCDTrainer(r) }

// InitialMomentum implements trainer.MomentumScheduler.
func (r *RBM) InitialMomentum() float32 { return r.conf.InitialMomentum }

// FinalMomentum implements trainer.MomentumScheduler.
func (r *RBM) FinalMomentum() float32 { return r.conf.FinalMomentum }

// FinalMomentumEpoch implements trainer.MomentumScheduler.
func (r *RBM) FinalMomentumEpoch() int { return r.conf.FinalMomentumEpoch }

// SetMomentum implements trainer.MomentumScheduler.
func (r *RBM) SetMomentum(m float32) { r.momentum = m }

// Momentum returns the current momentum.
func (r *RBM) Momentum() float32 { return r.momentum }

// InitWeights performs data-dependent initialization: each visible bias
// is set to log(p/(1-p)) where p is the mean activation of that unit in
// the training data (Hinton's practical guide, §8).
func (r *RBM) InitWeights(samples [][]float32) {
	means := make([]float64, r.conf.Visible)
	for _, v := range samples {
		for i, x := range v {
			means[i] += float64(x)
		}
	}
	r.initVisibleBias(means, len(samples))
}

// InitWeightsGenerator is InitWeights over a streaming source. It
// consumes one full pass of the generator.
func (r *RBM) InitWeightsGenerator(g trainer.Generator) {
	means := make([]float64, r.conf.Visible)
	var n int

	g.Reset()
	for g.HasNextBatch() {
		for _, v := range g.DataBatch() {
			for i, x := range v {
				means[i] += float64(x)
			}
			n++
		}
		g.NextBatch()
	}
	r.initVisibleBias(means, n)
}

func (r *RBM) initVisibleBias(sums []float64, n int) {
	if n == 0 {
		return
	}
	for i, s := range sums {
		p := float32(s / float64(n))
		if p < 0.025 {
			p = 0.025
		}
		if p > 0.975 {
			p = 0.975
		}
		r.BVis[i] = math32.Log(p / (1 - p))
	}
}

// ActivateHidden writes the hidden unit means for visible vector v into
// dst (length Hidden).
func (r *RBM) ActivateHidden(dst, v []float32) {
	for j := range dst {
		dst[j] = r.BHid[j] + dot(r.W[j], v)
	}
	activate(r.conf.HiddenUnit, dst)
}

// ActivateVisible writes the visible unit means for hidden vector h
// into dst (length Visible).
func (r *RBM) ActivateVisible(dst, h []float32) {
	for i := range dst {
		dst[i] = r.BVis[i]
	}
	for j, hj := range h {
		if hj == 0 {
			continue
		}
		row := r.W[j]
		for i := range dst {
			dst[i] += row[i] * hj
		}
	}
	activate(r.conf.VisibleUnit, dst)
}

// Activate implements the deterministic upward pass used when stacking
// layers: dst receives the hidden means of in.
func (r *RBM) Activate(dst, in []float32) {
	r.ActivateHidden(dst, in)
}

// Reconstruct runs one up-down pass: v -> hidden means -> visible
// means, written to dst.
func (r *RBM) Reconstruct(dst, v []float32) {
	h := make([]float32, r.conf.Hidden)
	r.ActivateHidden(h, v)
	r.ActivateVisible(dst, h)
}

// sampleHidden draws hidden states from the means in probs using u as
// uniform noise source, writing them to dst. dst and probs may alias.
func (r *RBM) sampleHidden(dst, probs []float32, u *rng.UniformGenerator, g *rng.GaussianGenerator) {
	switch r.conf.HiddenUnit {
	case Binary:
		for j, p := range probs {
			if float32(u.Float64()) < p {
				dst[j] = 1
			} else {
				dst[j] = 0
			}
		}
	case ReLU:
		// noisy rectified linear units
		for j, p := range probs {
			s := p + float32(g.Gaussian(0, 1))*math32.Sqrt(sigmoid(p))
			if s < 0 {
				s = 0
			}
			dst[j] = s
		}
	default:
		copy(dst, probs)
	}
}

// FreeEnergy computes the free energy of a visible vector:
// F(v) = -b·v - Σ_j log(1 + exp(c_j + W_j·v)).
func (r *RBM) FreeEnergy(v []float32) float32 {
	var fe float32
	fe -= dot(r.BVis, v)
	for j := range r.BHid {
		x := r.BHid[j] + dot(r.W[j], v)
		fe -= math32.Log(1 + math32.Exp(x))
	}
	return fe
}

func dot(a, b []float32) float32 {
	var sum float32
	for i, x := range a {
		sum += x * b[i]
	}
	return sum
}

package rbm

import (
	"time"

	"github.com/XDimage/dll/trainer"
	"github.com/chewxy/math32"
	rng "github.com/leesper/go_rng"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ConvConfig configures a convolutional RBM layer.
type ConvConfig struct {
	Channels int // input channels
	InputH   int
	InputW   int

	Filters int // number of convolution filters
	FilterH int
	FilterW int

	// Pool is the max-pooling factor applied to the hidden maps when
	// the layer's output feeds the next layer. 1 disables pooling. Must
	// evenly divide the hidden map dimensions.
	Pool int

	VisibleUnit UnitType
	HiddenUnit  UnitType

	BatchSize int
	CDSteps   int

	LearningRate float32
	Decay        float32

	Momentum           bool
	InitialMomentum    float32
	FinalMomentum      float32
	FinalMomentumEpoch int

	Shuffle     bool
	InitWeights bool
	FreeEnergy  bool
	Verbose     bool
}

// DefaultConvConf returns a configuration for a binary conv RBM with
// square filters and no pooling.
func DefaultConvConf(channels, h, w, filters, filter int) ConvConfig {
	return ConvConfig{
		Channels: channels,
		InputH:   h,
		InputW:   w,
		Filters:  filters,
		FilterH:  filter,
		FilterW:  filter,
		Pool:     1,

		VisibleUnit: Binary,
		HiddenUnit:  Binary,

		BatchSize: 25,
		CDSteps:   1,

		LearningRate: 1e-3,

		Momentum:           true,
		InitialMomentum:    0.5,
		FinalMomentum:      0.9,
		FinalMomentumEpoch: 6,
	}
}

func (conf ConvConfig) IsValid() bool {
	if conf.Channels < 1 || conf.Filters < 1 || conf.BatchSize < 1 || conf.CDSteps < 1 {
		return false
	}
	if conf.FilterH > conf.InputH || conf.FilterW > conf.InputW {
		return false
	}
	if conf.Pool < 1 {
		return false
	}
	oh, ow := conf.InputH-conf.FilterH+1, conf.InputW-conf.FilterW+1
	return oh%conf.Pool == 0 && ow%conf.Pool == 0 && conf.LearningRate > 0
}

// ConvRBM is a convolutional RBM: the visible layer is a stack of 2D
// channels, the hidden layer a stack of feature maps produced by valid
// convolution with shared filter weights. One hidden bias per filter,
// one visible bias per channel.
//
// Samples are flat []float32 in channel-major order (channel, row,
// column).
type ConvRBM struct {
	conf   ConvConfig
	oh, ow int // hidden map geometry

	w    *tensor.Dense
	wd   []float32 // flat view of w, (filter, channel, fy, fx)
	BVis []float32 // per channel
	BHid []float32 // per filter

	momentum float32

	gauss *rng.GaussianGenerator
}

// NewConv returns an uninitialized ConvRBM. Call Init before use.
func NewConv(conf ConvConfig) *ConvRBM {
	return &ConvRBM{
		conf: conf,
		oh:   conf.InputH - conf.FilterH + 1,
		ow:   conf.InputW - conf.FilterW + 1,
	}
}

// Init validates the configuration and allocates the parameters.
func (c *ConvRBM) Init() error {
	if !c.conf.IsValid() {
		return errors.Errorf("invalid conv RBM config %+v", c.conf)
	}

	c.gauss = rng.NewGaussianGenerator(time.Now().UnixNano())

	backing := make([]float32, c.conf.Filters*c.conf.Channels*c.conf.FilterH*c.conf.FilterW)
	for i := range backing {
		backing[i] = float32(c.gauss.Gaussian(0, 0.01))
	}
	c.w = tensor.New(tensor.WithShape(c.conf.Filters, c.conf.Channels, c.conf.FilterH, c.conf.FilterW), tensor.WithBacking(backing))
	c.wd = c.w.Data().([]float32)

	c.BVis = make([]float32, c.conf.Channels)
	c.BHid = make([]float32, c.conf.Filters)
	c.momentum = c.conf.InitialMomentum
	return nil
}

// Conf returns the layer configuration.
func (c *ConvRBM) Conf() ConvConfig { return c.conf }

// Weights returns the filter tensor (filter, channel, fy, fx).
func (c *ConvRBM) Weights() *tensor.Dense { return c.w }

// HiddenMapSize returns the geometry of one hidden feature map.
func (c *ConvRBM) HiddenMapSize() (h, w int) { return c.oh, c.ow }

// InputSize returns the flat visible size.
func (c *ConvRBM) InputSize() int { return c.conf.Channels * c.conf.InputH * c.conf.InputW }

// OutputSize returns the flat size of the (pooled) hidden maps.
func (c *ConvRBM) OutputSize() int {
	p := c.conf.Pool
	return c.conf.Filters * (c.oh / p) * (c.ow / p)
}

// BatchSize implements trainer.Trainee.
func (c *ConvRBM) BatchSize() int { return c.conf.BatchSize }

// Capabilities implements trainer.Trainee.
func (c *ConvRBM) Capabilities() trainer.Capabilities {
	return trainer.Capabilities{
		Shuffle:     c.conf.Shuffle,
		Momentum:    c.conf.Momentum,
		InitWeights: c.conf.InitWeights,
		FreeEnergy:  c.conf.FreeEnergy,
		Verbose:     c.conf.Verbose,
	}
}

// NewBatchTrainer implements trainer.Trainee.
func (c *ConvRBM) NewBatchTrainer() trainer.BatchTrainer { return NewConvCDTrainer(c) }

// InitialMomentum implements trainer.MomentumScheduler.
func (c *ConvRBM) InitialMomentum() float32 { return c.conf.InitialMomentum }

// FinalMomentum implements trainer.MomentumScheduler.
func (c *ConvRBM) FinalMomentum() float32 { return c.conf.FinalMomentum }

// FinalMomentumEpoch implements trainer.MomentumScheduler.
func (c *ConvRBM) FinalMomentumEpoch() int { return c.conf.FinalMomentumEpoch }

// SetMomentum implements trainer.MomentumScheduler.
func (c *ConvRBM) SetMomentum(m float32) { c.momentum = m }

// Momentum returns the current momentum.
func (c *ConvRBM) Momentum() float32 { return c.momentum }

// InitWeights sets each channel's visible bias from the mean activation
// of that channel in the training data.
func (c *ConvRBM) InitWeights(samples [][]float32) {
	if len(samples) == 0 {
		return
	}
	area := c.conf.InputH * c.conf.InputW
	for ch := 0; ch < c.conf.Channels; ch++ {
		var sum float64
		for _, v := range samples {
			for i := ch * area; i < (ch+1)*area; i++ {
				sum += float64(v[i])
			}
		}
		p := float32(sum / float64(len(samples)*area))
		if p < 0.025 {
			p = 0.025
		}
		if p > 0.975 {
			p = 0.975
		}
		c.BVis[ch] = math32.Log(p / (1 - p))
	}
}

func (c *ConvRBM) widx(k, ch, fy, fx int) int {
	return ((k*c.conf.Channels+ch)*c.conf.FilterH+fy)*c.conf.FilterW + fx
}

func (c *ConvRBM) hidx(k, y, x int) int { return (k*c.oh+y)*c.ow + x }

func (c *ConvRBM) vidx(ch, y, x int) int { return (ch*c.conf.InputH+y)*c.conf.InputW + x }

// hiddenPre writes the hidden pre-activations of v into dst (flat,
// length Filters*oh*ow).
func (c *ConvRBM) hiddenPre(dst, v []float32) {
	for k := 0; k < c.conf.Filters; k++ {
		for y := 0; y < c.oh; y++ {
			for x := 0; x < c.ow; x++ {
				sum := c.BHid[k]
				for ch := 0; ch < c.conf.Channels; ch++ {
					for fy := 0; fy < c.conf.FilterH; fy++ {
						for fx := 0; fx < c.conf.FilterW; fx++ {
							sum += v[c.vidx(ch, y+fy, x+fx)] * c.wd[c.widx(k, ch, fy, fx)]
						}
					}
				}
				dst[c.hidx(k, y, x)] = sum
			}
		}
	}
}

// ActivateHidden writes the hidden unit means of v into dst.
func (c *ConvRBM) ActivateHidden(dst, v []float32) {
	c.hiddenPre(dst, v)
	activate(c.conf.HiddenUnit, dst)
}

// ActivateVisible writes the visible unit means of the hidden maps h
// into dst (full convolution with the shared filters).
func (c *ConvRBM) ActivateVisible(dst, h []float32) {
	for ch := 0; ch < c.conf.Channels; ch++ {
		for y := 0; y < c.conf.InputH; y++ {
			for x := 0; x < c.conf.InputW; x++ {
				dst[c.vidx(ch, y, x)] = c.BVis[ch]
			}
		}
	}
	for k := 0; k < c.conf.Filters; k++ {
		for y := 0; y < c.oh; y++ {
			for x := 0; x < c.ow; x++ {
				hkv := h[c.hidx(k, y, x)]
				if hkv == 0 {
					continue
				}
				for ch := 0; ch < c.conf.Channels; ch++ {
					for fy := 0; fy < c.conf.FilterH; fy++ {
						for fx := 0; fx < c.conf.FilterW; fx++ {
							dst[c.vidx(ch, y+fy, x+fx)] += hkv * c.wd[c.widx(k, ch, fy, fx)]
						}
					}
				}
			}
		}
	}
	activate(c.conf.VisibleUnit, dst)
}

// Activate implements the upward pass used when stacking: hidden means,
// max-pooled by the configured factor.
func (c *ConvRBM) Activate(dst, in []float32) {
	maps := borrowMaps(1, c.conf.Filters*c.oh*c.ow)
	defer returnMaps(1, c.conf.Filters*c.oh*c.ow, maps)

	h := maps[0]
	c.ActivateHidden(h, in)

	p := c.conf.Pool
	if p == 1 {
		copy(dst, h)
		return
	}

	ph, pw := c.oh/p, c.ow/p
	for k := 0; k < c.conf.Filters; k++ {
		for y := 0; y < ph; y++ {
			for x := 0; x < pw; x++ {
				max := float32(math32.Inf(-1))
				for dy := 0; dy < p; dy++ {
					for dx := 0; dx < p; dx++ {
						if v := h[c.hidx(k, y*p+dy, x*p+dx)]; v > max {
							max = v
						}
					}
				}
				dst[(k*ph+y)*pw+x] = max
			}
		}
	}
}

// sampleHidden draws hidden states from the means in probs into dst.
func (c *ConvRBM) sampleHidden(dst, probs []float32, u *rng.UniformGenerator) {
	if c.conf.HiddenUnit != Binary {
		copy(dst, probs)
		return
	}
	for i, p := range probs {
		if float32(u.Float64()) < p {
			dst[i] = 1
		} else {
			dst[i] = 0
		}
	}
}

// FreeEnergy computes the free energy of a flat visible sample.
func (c *ConvRBM) FreeEnergy(v []float32) float32 {
	maps := borrowMaps(1, c.conf.Filters*c.oh*c.ow)
	defer returnMaps(1, c.conf.Filters*c.oh*c.ow, maps)

	pre := maps[0]
	c.hiddenPre(pre, v)

	var fe float32
	area := c.conf.InputH * c.conf.InputW
	for ch := 0; ch < c.conf.Channels; ch++ {
		var sum float32
		for i := ch * area; i < (ch+1)*area; i++ {
			sum += v[i]
		}
		fe -= c.BVis[ch] * sum
	}
	for _, x := range pre {
		fe -= math32.Log(1 + math32.Exp(x))
	}
	return fe
}

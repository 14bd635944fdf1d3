package rbm

import (
	"testing"

	"github.com/XDimage/dll/trainer"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

func TestDefaultConvConf(t *testing.T) {
	assert.True(t, DefaultConvConf(1, 28, 28, 20, 17).IsValid())
}

func TestConvConfigPoolMustDivide(t *testing.T) {
	conf := DefaultConvConf(1, 28, 28, 20, 17) // hidden maps are 12×12
	conf.Pool = 2
	assert.True(t, conf.IsValid())

	conf.Pool = 5 // 12 % 5 != 0
	assert.False(t, conf.IsValid())
	assert.Error(t, NewConv(conf).Init())
}

func TestConvInit(t *testing.T) {
	assert := assert.New(t)

	c := NewConv(DefaultConvConf(2, 8, 8, 4, 3))
	if err := c.Init(); err != nil {
		t.Fatalf("%+v", err)
	}

	assert.Equal([]int{4, 2, 3, 3}, []int(c.Weights().Shape()))
	oh, ow := c.HiddenMapSize()
	assert.Equal(6, oh)
	assert.Equal(6, ow)
	assert.Equal(2*8*8, c.InputSize())
	assert.Equal(4*6*6, c.OutputSize())
}

func TestConvOutputSizeWithPooling(t *testing.T) {
	conf := DefaultConvConf(1, 8, 8, 3, 3) // hidden maps 6×6
	conf.Pool = 2
	c := NewConv(conf)
	if err := c.Init(); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 3*3*3, c.OutputSize())
}

func TestConvActivatePoolingTakesMax(t *testing.T) {
	assert := assert.New(t)

	conf := DefaultConvConf(1, 4, 4, 1, 3) // hidden map 2×2
	conf.Pool = 2
	conf.HiddenUnit = Gaussian // keep the pre-activations linear for inspection
	c := NewConv(conf)
	if err := c.Init(); err != nil {
		t.Fatal(err)
	}

	// a single weight of 1 in the filter's top-left corner turns the
	// hidden map into a shifted copy of the input
	for i := range c.wd {
		c.wd[i] = 0
	}
	c.wd[c.widx(0, 0, 0, 0)] = 1
	c.BHid[0] = 0

	in := []float32{
		1, 7, 0, 0,
		3, 2, 0, 0,
		0, 0, 0, 0,
		0, 0, 0, 0,
	}
	out := make([]float32, c.OutputSize())
	c.Activate(out, in)

	assert.Len(out, 1)
	assert.Equal(float32(7), out[0], "pooling must keep the maximum of the 2×2 hidden map")
}

func TestConvReconstructionShapes(t *testing.T) {
	c := NewConv(DefaultConvConf(1, 6, 6, 2, 3))
	if err := c.Init(); err != nil {
		t.Fatal(err)
	}

	v := make([]float32, c.InputSize())
	for i := range v {
		v[i] = float32(i%2)
	}

	h := make([]float32, 2*4*4)
	c.ActivateHidden(h, v)
	for _, p := range h {
		assert.True(t, p >= 0 && p <= 1, "binary hidden mean %v out of range", p)
	}

	recon := make([]float32, c.InputSize())
	c.ActivateVisible(recon, h)
	for _, p := range recon {
		assert.False(t, math32.IsNaN(p))
	}
}

func TestConvCDTraining(t *testing.T) {
	assert := assert.New(t)
	trainer.Seed(11)

	conf := DefaultConvConf(1, 6, 6, 2, 3)
	conf.BatchSize = 10
	conf.LearningRate = 1e-2
	c := NewConv(conf)
	if err := c.Init(); err != nil {
		t.Fatal(err)
	}

	pattern := make([]float32, 36)
	for i := 0; i < 36; i += 2 {
		pattern[i] = 1
	}
	data := make([][]float32, 40)
	for i := range data {
		data[i] = pattern
	}

	curve := &epochErrors{}
	last := trainer.New(trainer.WithWatcher(curve)).Train(c, data, 20)

	assert.Len(curve.errs, 20)
	assert.False(math32.IsNaN(last), "conv training must not diverge to NaN")
	assert.Less(last, curve.errs[0]*float32(1.05), "reconstruction error should not grow")
}

func TestConvFreeEnergyFinite(t *testing.T) {
	conf := DefaultConvConf(1, 6, 6, 2, 3)
	conf.FreeEnergy = true
	c := NewConv(conf)
	if err := c.Init(); err != nil {
		t.Fatal(err)
	}

	v := make([]float32, c.InputSize())
	v[0], v[7], v[14] = 1, 1, 1
	fe := c.FreeEnergy(v)
	assert.False(t, math32.IsNaN(fe) || math32.IsInf(fe, 0))
}

func TestConvInitWeightsChannelBias(t *testing.T) {
	conf := DefaultConvConf(2, 4, 4, 1, 2)
	conf.InitWeights = true
	c := NewConv(conf)
	if err := c.Init(); err != nil {
		t.Fatal(err)
	}

	// channel 0 all on, channel 1 all off
	sample := make([]float32, c.InputSize())
	for i := 0; i < 16; i++ {
		sample[i] = 1
	}
	c.InitWeights([][]float32{sample})

	assert.True(t, c.BVis[0] > 0, "active channel gets a positive bias")
	assert.True(t, c.BVis[1] < 0, "silent channel gets a negative bias")
}

package rbm

import (
	"testing"

	"github.com/XDimage/dll/trainer"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

func TestDefaultConf(t *testing.T) {
	assert.True(t, DefaultConf(784, 100).IsValid())
}

func TestConfigInvalid(t *testing.T) {
	for _, conf := range []Config{
		{},
		{Visible: 10, Hidden: 0, BatchSize: 10, CDSteps: 1, LearningRate: 0.1},
		{Visible: 10, Hidden: 10, BatchSize: 0, CDSteps: 1, LearningRate: 0.1},
		{Visible: 10, Hidden: 10, BatchSize: 10, CDSteps: 0, LearningRate: 0.1},
		{Visible: 10, Hidden: 10, BatchSize: 10, CDSteps: 1},
	} {
		assert.False(t, conf.IsValid(), "%+v", conf)
		r := New(conf)
		assert.Error(t, r.Init())
	}
}

func TestInit(t *testing.T) {
	assert := assert.New(t)

	r := New(DefaultConf(12, 7))
	if err := r.Init(); err != nil {
		t.Fatalf("%+v", err)
	}

	assert.Equal([]int{7, 12}, []int(r.Weights().Shape()))
	assert.Len(r.W, 7)
	assert.Len(r.W[0], 12)
	assert.Len(r.BVis, 12)
	assert.Len(r.BHid, 7)

	for _, row := range r.W {
		for _, w := range row {
			assert.True(math32.Abs(w) < 0.1, "weights start near zero, got %v", w)
		}
	}
}

func TestActivateHiddenBinaryRange(t *testing.T) {
	r := New(DefaultConf(6, 4))
	if err := r.Init(); err != nil {
		t.Fatal(err)
	}

	h := make([]float32, 4)
	r.ActivateHidden(h, []float32{0, 1, 0, 1, 1, 0})
	for _, p := range h {
		assert.True(t, p >= 0 && p <= 1, "binary unit mean %v out of range", p)
	}
}

func TestSoftmaxHiddenSumsToOne(t *testing.T) {
	conf := DefaultConf(5, 3)
	conf.HiddenUnit = Softmax
	r := New(conf)
	if err := r.Init(); err != nil {
		t.Fatal(err)
	}

	h := make([]float32, 3)
	r.ActivateHidden(h, []float32{1, 0, 1, 0, 1})

	var sum float32
	for _, p := range h {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
}

func TestInitWeightsVisibleBias(t *testing.T) {
	assert := assert.New(t)

	conf := DefaultConf(4, 3)
	conf.InitWeights = true
	r := New(conf)
	if err := r.Init(); err != nil {
		t.Fatal(err)
	}

	// unit 0 always on, unit 1 always off, units 2/3 half on
	data := [][]float32{
		{1, 0, 1, 0},
		{1, 0, 0, 1},
	}
	r.InitWeights(data)

	hi := math32.Log(0.975 / 0.025)
	lo := math32.Log(0.025 / 0.975)
	assert.InDelta(hi, r.BVis[0], 1e-5, "always-on unit gets the clipped high bias")
	assert.InDelta(lo, r.BVis[1], 1e-5, "always-off unit gets the clipped low bias")
	assert.InDelta(0, r.BVis[2], 1e-5, "p=0.5 gives a zero bias")
	assert.InDelta(0, r.BVis[3], 1e-5)
}

func TestFreeEnergyFinite(t *testing.T) {
	r := New(DefaultConf(6, 4))
	if err := r.Init(); err != nil {
		t.Fatal(err)
	}

	fe := r.FreeEnergy([]float32{1, 0, 1, 0, 1, 1})
	assert.False(t, math32.IsNaN(fe) || math32.IsInf(fe, 0), "free energy must be finite, got %v", fe)
}

// epochErrors records the reconstruction error curve of one training run.
type epochErrors struct {
	errs []float32
}

func (w *epochErrors) TrainingBegin(layer trainer.Trainee) {}
func (w *epochErrors) BatchEnd(layer trainer.Trainee, ctx *trainer.Context, batch, total int) {}
func (w *epochErrors) EpochEnd(epoch int, ctx *trainer.Context, layer trainer.Trainee) {
	w.errs = append(w.errs, ctx.ReconstructionError)
}
func (w *epochErrors) TrainingEnd(layer trainer.Trainee) {}

func TestCDTrainingLearnsPattern(t *testing.T) {
	assert := assert.New(t)
	trainer.Seed(3)

	conf := DefaultConf(8, 8)
	conf.BatchSize = 25
	conf.LearningRate = 0.2
	conf.Shuffle = true
	r := New(conf)
	if err := r.Init(); err != nil {
		t.Fatal(err)
	}

	pattern := []float32{1, 0, 1, 0, 1, 0, 1, 0}
	data := make([][]float32, 100)
	for i := range data {
		data[i] = pattern
	}

	curve := &epochErrors{}
	last := trainer.New(trainer.WithWatcher(curve)).Train(r, data, 30)

	assert.Len(curve.errs, 30)
	assert.False(math32.IsNaN(last), "training must not diverge to NaN")
	assert.Less(last, curve.errs[0], "reconstruction error must drop over 30 epochs")
	assert.Less(last, float32(1.0))
}

func TestCDTrainerWritesBatchStats(t *testing.T) {
	assert := assert.New(t)

	conf := DefaultConf(4, 3)
	conf.BatchSize = 2
	r := New(conf)
	if err := r.Init(); err != nil {
		t.Fatal(err)
	}

	bt := NewCDTrainer(r)
	var ctx trainer.Context
	batch := [][]float32{{1, 0, 1, 0}, {0, 1, 0, 1}}
	bt.TrainBatch(batch, batch, &ctx)

	assert.True(ctx.BatchError > 0, "fresh weights cannot reconstruct perfectly")
	assert.True(ctx.BatchSparsity > 0 && ctx.BatchSparsity < 1, "mean hidden activation is a probability, got %v", ctx.BatchSparsity)
}

func TestSampleHiddenBinaryStates(t *testing.T) {
	conf := DefaultConf(4, 50)
	r := New(conf)
	if err := r.Init(); err != nil {
		t.Fatal(err)
	}

	bt := NewCDTrainer(r)
	s := bt.grads[0]

	probs := make([]float32, 50)
	for i := range probs {
		probs[i] = 0.5
	}
	states := make([]float32, 50)
	r.sampleHidden(states, probs, s.unif, s.gauss)

	for _, v := range states {
		assert.True(t, v == 0 || v == 1, "binary states must be 0/1, got %v", v)
	}
}

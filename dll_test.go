package dll

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/XDimage/dll/rbm"
	"github.com/XDimage/dll/trainer"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

// identity is a trivial layer that passes its input through unchanged.
type identity struct {
	size int
}

func (l *identity) InputSize() int                        { return l.size }
func (l *identity) OutputSize() int                       { return l.size }
func (l *identity) BatchSize() int                        { return 1 }
func (l *identity) Capabilities() trainer.Capabilities    { return trainer.Capabilities{} }
func (l *identity) NewBatchTrainer() trainer.BatchTrainer { return identityTrainer{} }
func (l *identity) Activate(dst, in []float32)            { copy(dst, in) }

type identityTrainer struct{}

func (identityTrainer) TrainBatch(input, expected [][]float32, ctx *trainer.Context) {}

func smallConf(visible, hidden int) rbm.Config {
	conf := rbm.DefaultConf(visible, hidden)
	conf.BatchSize = 4
	conf.Verbose = false
	return conf
}

func smallRBM(t *testing.T, visible, hidden int) *rbm.RBM {
	t.Helper()
	r := rbm.New(smallConf(visible, hidden))
	if err := r.Init(); err != nil {
		t.Fatalf("%+v", err)
	}
	return r
}

func patterns(n int) (samples [][]float32, labels []int) {
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			samples = append(samples, []float32{1, 1, 0, 0})
			labels = append(labels, 0)
		} else {
			samples = append(samples, []float32{0, 0, 1, 1})
			labels = append(labels, 1)
		}
	}
	return samples, labels
}

func TestNewPanics(t *testing.T) {
	assert.Panics(t, func() {
		New(Config{}, &identity{size: 4})
	}, "invalid config")

	assert.Panics(t, func() {
		New(DefaultConf())
	}, "empty stack")

	assert.Panics(t, func() {
		New(DefaultConf(), &identity{size: 4}, &identity{size: 5})
	}, "geometry mismatch")
}

func TestPretrainRecordsStatistics(t *testing.T) {
	assert := assert.New(t)

	d := New(DefaultConf(), smallRBM(t, 4, 6), smallRBM(t, 6, 3))

	samples, _ := patterns(8)
	lastError := d.Pretrain(samples, 3)
	assert.True(lastError >= 0)

	if diff := cmp.Diff([]string{"layer_0", "layer_1"}, d.Statistics.Layers); diff != "" {
		t.Errorf("recorded layers mismatch (-want +got):\n%s", diff)
	}
	assert.Len(d.Statistics.Errors["layer_0"], 3, "one entry per epoch")
	assert.Len(d.Statistics.Errors["layer_1"], 3)
	assert.Len(d.Statistics.Sparsity["layer_0"], 3)
}

func TestPretrainDenoising(t *testing.T) {
	d := New(DefaultConf(), smallRBM(t, 4, 6))
	samples, _ := patterns(8)
	lastError := d.PretrainDenoising(samples, 2, 0.2)
	assert.True(t, lastError >= 0)
}

func TestPretrainForwardsToUserWatcher(t *testing.T) {
	var epochs int
	conf := DefaultConf()
	conf.Watcher = watcherFunc(func() { epochs++ })

	d := New(conf, smallRBM(t, 4, 6), smallRBM(t, 6, 3))
	samples, _ := patterns(8)
	d.Pretrain(samples, 2)

	assert.Equal(t, 4, epochs, "two layers times two epochs")
}

// watcherFunc counts epoch ends.
type watcherFunc func()

func (watcherFunc) TrainingBegin(trainer.Trainee)                        {}
func (watcherFunc) BatchEnd(trainer.Trainee, *trainer.Context, int, int) {}
func (f watcherFunc) EpochEnd(int, *trainer.Context, trainer.Trainee)    { f() }
func (watcherFunc) TrainingEnd(trainer.Trainee)                          {}

func TestActivations(t *testing.T) {
	assert := assert.New(t)

	d := New(DefaultConf(), smallRBM(t, 4, 6), smallRBM(t, 6, 3))
	assert.Equal(3, d.OutputSize())

	out := d.Activations([]float32{1, 0, 1, 0})
	assert.Len(out, 3)
	for _, v := range out {
		assert.True(v >= 0 && v <= 1, "sigmoid activations stay in [0, 1]")
	}
}

func TestFineTuneAndPredict(t *testing.T) {
	assert := assert.New(t)

	conf := DefaultConf()
	conf.BatchSize = 4
	d := New(conf, smallRBM(t, 4, 6), smallRBM(t, 6, 2))

	samples, labels := patterns(16)
	d.Pretrain(samples, 2)

	cost, err := d.FineTune(samples, labels, 10)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	assert.True(cost >= 0)

	class, err := d.Predict(samples[0])
	if err != nil {
		t.Fatalf("%+v", err)
	}
	assert.True(class == 0 || class == 1)

	rate, err := d.TestSet(samples, labels)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	assert.True(rate >= 0 && rate <= 1)
}

func TestFineTuneValidation(t *testing.T) {
	d := New(DefaultConf(), smallRBM(t, 4, 2))
	samples, labels := patterns(8)

	_, err := d.FineTune(samples, labels[:4], 1)
	assert.Error(t, err, "mismatched labels")

	_, err = d.Predict(samples[0])
	assert.Error(t, err, "predict before fine-tuning")
}

func TestMakeTensors(t *testing.T) {
	assert := assert.New(t)

	samples, labels := patterns(4)
	xs, ys, err := makeTensors(samples, labels, 4, 2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	assert.Equal([]int{4, 4}, []int(xs.Shape()))
	assert.Equal([]int{4, 2}, []int(ys.Shape()))
	assert.Equal([]float32{1, 0, 0, 1, 1, 0, 0, 1}, ys.Data().([]float32))

	_, _, err = makeTensors(samples, labels, 5, 2)
	assert.Error(err, "feature count mismatch")

	_, _, err = makeTensors(samples, []int{0, 1, 0, 5}, 4, 2)
	assert.Error(err, "label out of range")
}

func TestStatisticsDump(t *testing.T) {
	assert := assert.New(t)

	s := makeStatistics()
	s.record("layer_0", &trainer.Context{ReconstructionError: 0.5, Sparsity: 0.1})
	s.record("layer_0", &trainer.Context{ReconstructionError: 0.25, Sparsity: 0.1})
	s.record("layer_1", &trainer.Context{ReconstructionError: 0.75, Sparsity: 0.2})

	filename := filepath.Join(t.TempDir(), "stats.csv")
	if err := s.Dump(filename); err != nil {
		t.Fatalf("%+v", err)
	}

	f, err := os.Open(filename)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal([]string{"layer_0", "layer_1"}, records[0])
	assert.Len(records, 3, "header plus the longest error curve")
	assert.True(strings.HasPrefix(records[1][0], "0.5"))
	assert.Empty(records[2][1], "layer_1 only trained one epoch")
}

func TestToDot(t *testing.T) {
	assert := assert.New(t)

	d := New(DefaultConf(), smallRBM(t, 4, 6), smallRBM(t, 6, 3))
	dot := d.ToDot()

	assert.Contains(dot, "digraph DBN")
	assert.Contains(dot, "input")
	assert.Contains(dot, "layer_0")
	assert.Contains(dot, "layer_1")
	assert.Contains(dot, "->")
}

// Package dll is a template-based deep learning library built around
// Restricted Boltzmann Machines: RBM and convolutional RBM layers
// (package rbm), a generic epoch-processing training engine (package
// trainer), Deep Belief Networks assembled from stacked layers with
// unsupervised greedy pretraining and supervised fine-tuning (this
// package and package mlp), and a bridge to an external SVM classifier
// for the final decision layer (package svm).
package dll

import (
	"fmt"

	"github.com/XDimage/dll/mlp"
	"github.com/XDimage/dll/trainer"
	"github.com/pkg/errors"
)

// DBN is a Deep Belief Network: an ordered stack of layers pretrained
// greedily bottom-up, with each layer's activations feeding the next,
// then optionally fine-tuned with labels through a feed-forward network
// seeded from the pretrained weights.
type DBN struct {
	Statistics

	name    string
	conf    Config
	layers  []Layer
	watcher trainer.Watcher

	net   *mlp.MLP
	infer *mlp.Inferencer
}

// New builds a DBN from a configuration and an ordered layer stack.
// The stack must chain: each layer's output size must equal the next
// layer's input size. A malformed stack is a programming error and
// panics.
func New(conf Config, layers ...Layer) *DBN {
	if !conf.IsValid() {
		panic("dll: Config is not valid. Unable to proceed")
	}
	if len(layers) == 0 {
		panic("dll: a DBN needs at least one layer")
	}
	for i := 1; i < len(layers); i++ {
		if layers[i-1].OutputSize() != layers[i].InputSize() {
			panic(fmt.Sprintf("dll: layer %d outputs %d values but layer %d expects %d",
				i-1, layers[i-1].OutputSize(), i, layers[i].InputSize()))
		}
	}
	return &DBN{
		Statistics: makeStatistics(),
		name:       conf.Name,
		conf:       conf,
		layers:     layers,
		watcher:    conf.Watcher,
	}
}

// Layers returns the layer stack.
func (d *DBN) Layers() []Layer { return d.layers }

// Pretrain trains every layer in order for epochs epochs, feeding each
// layer's activations to the next. It returns the last layer's final
// average reconstruction error.
func (d *DBN) Pretrain(samples [][]float32, epochs int) float32 {
	var lastError float32
	cur := samples
	for i, layer := range d.layers {
		t := trainer.New(trainer.WithWatcher(d.layerWatcher(i)))
		lastError = t.Train(layer, cur, epochs)

		if i < len(d.layers)-1 {
			cur = forward(layer, cur)
		}
	}
	return lastError
}

// PretrainDenoising is Pretrain with internally generated denoising
// corruption: each layer sees corrupted inputs paired with clean
// targets, with the given noise level.
func (d *DBN) PretrainDenoising(samples [][]float32, epochs int, noise float64) float32 {
	var lastError float32
	cur := samples
	for i, layer := range d.layers {
		t := trainer.New(trainer.WithWatcher(d.layerWatcher(i)))
		lastError = t.TrainDenoisingAuto(layer, cur, epochs, noise)

		if i < len(d.layers)-1 {
			cur = forward(layer, cur)
		}
	}
	return lastError
}

func (d *DBN) layerWatcher(i int) trainer.Watcher {
	return &statsWatcher{
		stats: &d.Statistics,
		name:  fmt.Sprintf("layer_%d", i),
		next:  d.watcher,
	}
}

func forward(layer Layer, samples [][]float32) [][]float32 {
	out := make([][]float32, len(samples))
	for i, v := range samples {
		out[i] = make([]float32, layer.OutputSize())
		layer.Activate(out[i], v)
	}
	return out
}

// Activations runs a sample through the whole stack and returns the top
// layer's activation vector.
func (d *DBN) Activations(sample []float32) []float32 {
	cur := sample
	for _, layer := range d.layers {
		next := make([]float32, layer.OutputSize())
		layer.Activate(next, cur)
		cur = next
	}
	return cur
}

// OutputSize is the size of the top layer's activation vector.
func (d *DBN) OutputSize() int { return d.layers[len(d.layers)-1].OutputSize() }

// FineTune performs supervised fine-tuning: a feed-forward network with
// the stack's geometry is seeded from every pretrained layer that can
// provide dense weights, then trained by backpropagation on the labeled
// samples. Labels must be class indices below the top layer's output
// size. It returns the final training cost.
func (d *DBN) FineTune(samples [][]float32, labels []int, epochs int) (float32, error) {
	if len(samples) != len(labels) {
		return 0, errors.Errorf("%d samples but %d labels", len(samples), len(labels))
	}

	sizes := make([]int, 0, len(d.layers)+1)
	sizes = append(sizes, d.layers[0].InputSize())
	for _, layer := range d.layers {
		sizes = append(sizes, layer.OutputSize())
	}

	net := mlp.New(mlp.Config{
		Sizes:     sizes,
		BatchSize: d.conf.BatchSize,
		LearnRate: d.conf.LearnRate,
	})
	if err := net.Init(); err != nil {
		return 0, err
	}

	for i, layer := range d.layers {
		if p, ok := layer.(Pretrained); ok {
			w, b := p.HiddenWeights()
			if err := net.SetLayer(i, w, b); err != nil {
				return 0, err
			}
		}
	}

	xs, ys, err := makeTensors(samples, labels, sizes[0], sizes[len(sizes)-1])
	if err != nil {
		return 0, err
	}

	cost, err := net.Train(xs, ys, epochs)
	if err != nil {
		return 0, err
	}

	d.net = net
	d.infer = nil
	return cost, nil
}

// Predict returns the class index predicted for a sample. FineTune must
// have completed first.
func (d *DBN) Predict(sample []float32) (int, error) {
	if d.net == nil {
		return 0, errors.New("predict before fine-tuning")
	}
	if d.infer == nil {
		var err error
		if d.infer, err = mlp.Infer(d.net); err != nil {
			return 0, err
		}
	}

	probs, err := d.infer.Infer(sample)
	if err != nil {
		return 0, err
	}

	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return best, nil
}

// TestSet returns the classification error rate over a labeled set.
func (d *DBN) TestSet(samples [][]float32, labels []int) (float32, error) {
	var wrong int
	for i, v := range samples {
		class, err := d.Predict(v)
		if err != nil {
			return 0, err
		}
		if class != labels[i] {
			wrong++
		}
	}
	return float32(wrong) / float32(len(samples)), nil
}

package trainer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSliceSourceBatchCount(t *testing.T) {
	assert := assert.New(t)

	for _, c := range []struct {
		n, batchSize, batches, lastSize int
	}{
		{100, 50, 2, 50},
		{101, 50, 3, 1},
		{1, 50, 1, 1},
		{50, 50, 1, 50},
		{49, 50, 1, 49},
		{150, 50, 3, 50},
	} {
		src := newSliceSource(samples(c.n, 2), nil, c.batchSize, false)
		src.reset(false)

		var got []int
		total := 0
		for {
			in, exp, ok := src.next()
			if !ok {
				break
			}
			assert.Equal(len(in), len(exp))
			got = append(got, len(in))
			total += len(in)
		}

		assert.Len(got, c.batches, "N=%d B=%d", c.n, c.batchSize)
		assert.Equal(c.lastSize, got[len(got)-1], "N=%d B=%d", c.n, c.batchSize)
		assert.Equal(c.n, total, "batches must sum to N")
	}
}

func TestSliceSourceUnsupervisedAliasesExpected(t *testing.T) {
	assert := assert.New(t)

	src := newSliceSource(samples(20, 2), nil, 5, false)
	src.reset(true)

	for {
		in, exp, ok := src.next()
		if !ok {
			break
		}
		for i := range in {
			assert.Equal(in[i], exp[i], "unsupervised targets are the inputs, even after shuffling")
		}
	}
}

func TestSliceSourceResetRestarts(t *testing.T) {
	src := newSliceSource(samples(10, 1), nil, 4, false)

	for epoch := 0; epoch < 3; epoch++ {
		src.reset(false)
		var n int
		for {
			in, _, ok := src.next()
			if !ok {
				break
			}
			n += len(in)
		}
		assert.Equal(t, 10, n, "epoch %d must see all samples", epoch)
	}
}

// sliceGenerator is a test Generator over pre-cut batches.
type sliceGenerator struct {
	data   [][][]float32
	labels [][][]float32
	pos    int

	resets        int
	shuffleResets int
	setTrains     int
}

func (g *sliceGenerator) Reset()        { g.pos = 0; g.resets++ }
func (g *sliceGenerator) ResetShuffle() { g.pos = 0; g.shuffleResets++ }
func (g *sliceGenerator) SetTrain()     { g.setTrains++ }

func (g *sliceGenerator) Size() int {
	var n int
	for _, b := range g.data {
		n += len(b)
	}
	return n
}

func (g *sliceGenerator) HasNextBatch() bool      { return g.pos < len(g.data) }
func (g *sliceGenerator) DataBatch() [][]float32  { return g.data[g.pos] }
func (g *sliceGenerator) LabelBatch() [][]float32 { return g.labels[g.pos] }
func (g *sliceGenerator) NextBatch()              { g.pos++ }

func newSliceGenerator(n, batchSize int) *sliceGenerator {
	g := &sliceGenerator{}
	all := samples(n, 2)
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}
		g.data = append(g.data, all[start:end])
		g.labels = append(g.labels, all[start:end])
	}
	return g
}

func TestTrainGenerator(t *testing.T) {
	assert := assert.New(t)

	gen := newSliceGenerator(100, 25)
	layer := &spyLayer{mockLayer: &mockLayer{batchSize: 25}}

	tr := New()
	last := tr.TrainGenerator(layer, gen, 3)

	assert.InDelta(0.1, last, 1e-7)
	assert.Equal(12, layer.bt.calls, "4 batches × 3 epochs")
	assert.Equal(3, gen.resets, "plain reset per epoch without shuffle capability")
	assert.Equal(0, gen.shuffleResets)
	assert.Equal(3, gen.setTrains, "train mode set per epoch")
	assert.Equal(4, tr.batches)
	assert.Equal(100, tr.samples)
}

func TestTrainGeneratorShuffleCapability(t *testing.T) {
	assert := assert.New(t)

	gen := newSliceGenerator(50, 10)
	layer := &spyLayer{mockLayer: &mockLayer{batchSize: 10, caps: Capabilities{Shuffle: true}}}

	New().TrainGenerator(layer, gen, 2)

	assert.Equal(0, gen.resets)
	assert.Equal(2, gen.shuffleResets, "shuffle-capable layers reset with reshuffling")
}

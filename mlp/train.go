package mlp

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
	"gorgonia.org/tensor/native"
)

// Train runs supervised backpropagation over xs (samples × features)
// and the one-hot ys (samples × classes) for the given number of
// epochs, reshuffling both with the same permutation between epochs.
// It returns the last batch's cost.
func (m *MLP) Train(xs, ys *tensor.Dense, epochs int) (float32, error) {
	if m.FwdOnly {
		return 0, errors.New("cannot train a fwd only network")
	}

	vm := G.NewTapeMachine(m.g, G.BindDualValues(m.Model()...))
	defer vm.Close()

	solver := G.NewVanillaSolver(G.WithLearnRate(m.LearnRate), G.WithBatchSize(float64(m.BatchSize)))
	model := G.NodesToValueGrads(m.Model())
	batches := xs.Shape()[0] / m.BatchSize

	var s slicer
	var cost float32
	for epoch := 0; epoch < epochs; epoch++ {
		for bat := 0; bat < batches; bat++ {
			batchStart := bat * m.BatchSize
			batchEnd := batchStart + m.BatchSize

			xs2 := s.Slice(xs, sli(batchStart, batchEnd))
			ys2 := s.Slice(ys, sli(batchStart, batchEnd))
			if s.err != nil {
				return 0, s.err
			}

			G.Let(m.x, xs2)
			G.Let(m.y, ys2)
			if err := vm.RunAll(); err != nil {
				return 0, err
			}
			if err := solver.Step(model); err != nil {
				return 0, err
			}
			cost = m.cost.Data().(float32)
			vm.Reset()

			tensor.ReturnTensor(xs2)
			tensor.ReturnTensor(ys2)
		}
		if err := shuffleBatch(xs, ys); err != nil {
			return 0, err
		}
	}
	return cost, nil
}

// shuffleBatch shuffles the rows of xs and ys with the same
// permutation, preserving the sample/label pairing.
func shuffleBatch(xs, ys *tensor.Dense) (err error) {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	var matXs, matYs [][]float32
	if matXs, err = native.MatrixF32(xs); err != nil {
		return errors.Wrapf(err, "shuffle batch failed - xs")
	}
	if matYs, err = native.MatrixF32(ys); err != nil {
		return errors.Wrapf(err, "shuffle batch failed - ys")
	}

	tmpX := make([]float32, xs.Shape()[1])
	tmpY := make([]float32, ys.Shape()[1])
	for i := range matXs {
		j := r.Intn(i + 1)

		copy(tmpX, matXs[i])
		copy(matXs[i], matXs[j])
		copy(matXs[j], tmpX)

		copy(tmpY, matYs[i])
		copy(matYs[i], matYs[j])
		copy(matYs[j], tmpY)
	}
	return nil
}

package dll

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// makeTensors packs samples into a (n × features) matrix and labels
// into a one-hot (n × classes) matrix for the fine-tuning network.
func makeTensors(samples [][]float32, labels []int, features, classes int) (xs, ys *tensor.Dense, err error) {
	n := len(samples)

	xBacking := make([]float32, n*features)
	for i, v := range samples {
		if len(v) != features {
			return nil, nil, errors.Errorf("sample %d has %d features, want %d", i, len(v), features)
		}
		copy(xBacking[i*features:(i+1)*features], v)
	}

	yBacking := make([]float32, n*classes)
	for i, label := range labels {
		if label < 0 || label >= classes {
			return nil, nil, errors.Errorf("label %d out of range [0, %d)", label, classes)
		}
		yBacking[i*classes+label] = 1
	}

	xs = tensor.New(tensor.WithShape(n, features), tensor.WithBacking(xBacking))
	ys = tensor.New(tensor.WithShape(n, classes), tensor.WithBacking(yBacking))
	return xs, ys, nil
}

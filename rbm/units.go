package rbm

import "github.com/chewxy/math32"

// UnitType is the activation family of a visible or hidden unit group.
type UnitType byte

const (
	// Binary units are stochastic sigmoid units.
	Binary UnitType = iota
	// Gaussian units are linear units with unit-variance Gaussian noise,
	// used for real-valued visible data.
	Gaussian
	// ReLU units are noisy rectified linear units.
	ReLU
	// Softmax units normalize the hidden group to a distribution; used
	// as the top layer of classification DBNs.
	Softmax
)

func (u UnitType) String() string {
	switch u {
	case Binary:
		return "binary"
	case Gaussian:
		return "gaussian"
	case ReLU:
		return "relu"
	case Softmax:
		return "softmax"
	}
	return "unknown"
}

func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

// activate turns the pre-activations in x into unit means, in place.
func activate(u UnitType, x []float32) {
	switch u {
	case Binary:
		for i, v := range x {
			x[i] = sigmoid(v)
		}
	case Gaussian:
		// mean-field: the mean of a Gaussian unit is its input
	case ReLU:
		for i, v := range x {
			if v < 0 {
				x[i] = 0
			}
		}
	case Softmax:
		max := x[0]
		for _, v := range x[1:] {
			if v > max {
				max = v
			}
		}
		var sum float32
		for i, v := range x {
			x[i] = math32.Exp(v - max)
			sum += x[i]
		}
		for i := range x {
			x[i] /= sum
		}
	}
}

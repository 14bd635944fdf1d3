// Package svm bridges a trained DBN to an external support vector
// machine used as the final decision layer. The solver itself is not
// part of this library: anything implementing Classifier can be plugged
// in. This package only builds the classification problem from the
// network's activation outputs, carries the conventional parameter
// defaults, and drives cross-validated grid search.
package svm

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

// KernelType selects the SVM kernel.
type KernelType byte

const (
	Linear KernelType = iota
	Polynomial
	RBF
	Sigmoid
)

// Parameters are the SVM training parameters.
type Parameters struct {
	Kernel      KernelType
	C           float64
	Gamma       float64
	Probability bool
}

// DefaultParameters returns the conventional defaults for DBN feature
// classification: an RBF kernel with probability estimates.
func DefaultParameters() Parameters {
	return Parameters{
		Kernel:      RBF,
		C:           2.8,
		Gamma:       0.0073,
		Probability: true,
	}
}

func (p Parameters) check() error {
	if p.C <= 0 {
		return errors.Errorf("C must be positive, got %v", p.C)
	}
	if p.Kernel == RBF && p.Gamma <= 0 {
		return errors.Errorf("RBF gamma must be positive, got %v", p.Gamma)
	}
	return nil
}

// Problem is a classification problem: feature vectors paired with
// class labels.
type Problem struct {
	X [][]float64
	Y []int
}

// Model is a trained classifier.
type Model interface {
	Predict(x []float64) (int, error)
}

// Classifier is the external SVM implementation.
type Classifier interface {
	Train(p *Problem, params Parameters) (Model, error)
}

// Activator produces the feature vector for a sample; typically this is
// (*dll.DBN).Activations.
type Activator func(sample []float32) []float32

// MakeProblem runs every sample through the activator and pairs the
// resulting feature vectors with the labels.
func MakeProblem(act Activator, samples [][]float32, labels []int) (*Problem, error) {
	if len(samples) != len(labels) {
		return nil, errors.Errorf("%d samples but %d labels", len(samples), len(labels))
	}

	p := &Problem{
		X: make([][]float64, len(samples)),
		Y: append([]int(nil), labels...),
	}
	for i, v := range samples {
		features := act(v)
		x := make([]float64, len(features))
		for j, f := range features {
			x[j] = float64(f)
		}
		p.X[i] = x
	}
	return p, nil
}

// Train checks the parameters and trains the classifier on the problem.
func Train(c Classifier, p *Problem, params Parameters) (Model, error) {
	if err := params.check(); err != nil {
		return nil, errors.Wrap(err, "svm parameters")
	}
	model, err := c.Train(p, params)
	return model, errors.Wrap(err, "svm training")
}

// Grid is the (C, gamma) search space of GridSearch.
type Grid struct {
	C     []float64
	Gamma []float64
}

// DefaultGrid spans the conventional exponential ranges.
func DefaultGrid() Grid {
	return Grid{
		C:     []float64{0.5, 1, 2, 4, 8, 16},
		Gamma: []float64{1e-4, 1e-3, 1e-2, 1e-1},
	}
}

// GridSearch cross-validates every (C, gamma) combination with n folds
// and returns the parameters with the best accuracy.
func GridSearch(c Classifier, p *Problem, folds int, grid Grid) (Parameters, error) {
	if folds < 2 {
		return Parameters{}, errors.Errorf("need at least 2 folds, got %d", folds)
	}
	if len(p.X) < folds {
		return Parameters{}, errors.Errorf("%d samples cannot make %d folds", len(p.X), folds)
	}

	perm := rand.New(rand.NewSource(time.Now().UnixNano())).Perm(len(p.X))

	best := DefaultParameters()
	bestAcc := -1.0
	for _, C := range grid.C {
		for _, gamma := range grid.Gamma {
			params := DefaultParameters()
			params.C = C
			params.Gamma = gamma

			acc, err := crossValidate(c, p, params, perm, folds)
			if err != nil {
				return Parameters{}, err
			}
			if acc > bestAcc {
				bestAcc = acc
				best = params
			}
		}
	}
	return best, nil
}

func crossValidate(c Classifier, p *Problem, params Parameters, perm []int, folds int) (float64, error) {
	n := len(perm)
	var correct int
	for fold := 0; fold < folds; fold++ {
		train := &Problem{}
		var test []int
		for i, idx := range perm {
			if i%folds == fold {
				test = append(test, idx)
			} else {
				train.X = append(train.X, p.X[idx])
				train.Y = append(train.Y, p.Y[idx])
			}
		}

		model, err := c.Train(train, params)
		if err != nil {
			return 0, errors.Wrap(err, "cross validation")
		}
		for _, idx := range test {
			class, err := model.Predict(p.X[idx])
			if err != nil {
				return 0, errors.Wrap(err, "cross validation")
			}
			if class == p.Y[idx] {
				correct++
			}
		}
	}
	return float64(correct) / float64(n), nil
}

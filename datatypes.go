package dll

import (
	"github.com/XDimage/dll/trainer"
)

// Layer is one trainable level of a DBN: a trainer.Trainee that also
// exposes its geometry and a deterministic upward activation pass, so
// its output can feed the next layer during greedy pretraining.
type Layer interface {
	trainer.Trainee

	InputSize() int
	OutputSize() int

	// Activate writes the activation of in (length InputSize) into dst
	// (length OutputSize).
	Activate(dst, in []float32)
}

// Pretrained is implemented by layers whose weights can seed a dense
// feed-forward layer of the fine-tuning network. It returns the
// hidden×visible weight matrix and the hidden biases.
type Pretrained interface {
	HiddenWeights() ([][]float32, []float32)
}

// Config configures a DBN.
type Config struct {
	Name string

	// Watcher observes the pretraining of every layer. Optional.
	Watcher trainer.Watcher

	// Fine-tuning parameters.
	BatchSize int
	LearnRate float64
}

func (conf Config) IsValid() bool {
	return conf.BatchSize >= 1 && conf.LearnRate > 0
}

// DefaultConf returns a default DBN configuration.
func DefaultConf() Config {
	return Config{
		BatchSize: 50,
		LearnRate: 0.1,
	}
}

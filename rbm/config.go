package rbm

// Config configures a dense RBM layer.
type Config struct {
	Visible int // number of visible units
	Hidden  int // number of hidden units

	VisibleUnit UnitType
	HiddenUnit  UnitType

	BatchSize int // samples per parameter update
	CDSteps   int // contrastive divergence chain length (CD-k)

	LearningRate float32
	Decay        float32 // L2 weight decay coefficient

	// Momentum schedule. The momentum starts at InitialMomentum and
	// switches to FinalMomentum at epoch FinalMomentumEpoch. Only
	// honored when Momentum is set.
	Momentum           bool
	InitialMomentum    float32
	FinalMomentum      float32
	FinalMomentumEpoch int

	// Sparsity regularization: the hidden biases are nudged so the
	// mean hidden activation tracks SparsityTarget. Disabled when
	// SparsityCost is zero.
	SparsityTarget float32
	SparsityCost   float32

	// Training behaviors.
	Shuffle     bool
	InitWeights bool
	FreeEnergy  bool
	Verbose     bool
}

// DefaultConf returns a sensible configuration for a binary-binary RBM
// of the given geometry.
func DefaultConf(visible, hidden int) Config {
	return Config{
		Visible:     visible,
		Hidden:      hidden,
		VisibleUnit: Binary,
		HiddenUnit:  Binary,

		BatchSize: 25,
		CDSteps:   1,

		LearningRate: 1e-1,

		Momentum:           true,
		InitialMomentum:    0.5,
		FinalMomentum:      0.9,
		FinalMomentumEpoch: 6,
	}
}

func (conf Config) IsValid() bool {
	return conf.Visible >= 1 &&
		conf.Hidden >= 1 &&
		conf.BatchSize >= 1 &&
		conf.CDSteps >= 1 &&
		conf.LearningRate > 0
}

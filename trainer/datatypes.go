// Package trainer implements the generic epoch-processing engine used
// to train a single layer (an RBM, a convolutional RBM, an
// autoencoder...) in an unsupervised or denoising fashion.
//
// The engine is policy-configurable: the layer describes its behavior
// through a Capabilities descriptor queried once at training setup, and
// delegates the actual parameter update to a BatchTrainer it allocates.
// The engine owns everything else: batching, shuffling, denoising
// corruption, per-epoch statistics and observer notifications.
package trainer

// Capabilities describes the behaviors a layer opts into. It is
// queried once per Train call, not per batch.
type Capabilities struct {
	Shuffle     bool // reshuffle the data between epochs
	Momentum    bool // the layer follows a momentum schedule
	InitWeights bool // the layer wants data-dependent weight initialization
	FreeEnergy  bool // track the total free energy of the data
	Verbose     bool // notify the watcher after every batch
}

// Trainee is a trainable layer. The trainer never touches the layer's
// parameters directly: all updates go through the BatchTrainer the
// layer allocates.
type Trainee interface {
	// BatchSize is the number of samples per parameter update.
	BatchSize() int

	// Capabilities describes the training behaviors of this layer.
	Capabilities() Capabilities

	// NewBatchTrainer allocates the batch-level training algorithm
	// bound to this layer. It is called exactly once per Train call;
	// the returned object may hold large scratch buffers.
	NewBatchTrainer() BatchTrainer
}

// BatchTrainer performs one full parameter update for a batch. It must
// write the batch's reconstruction error and sparsity into
// ctx.BatchError and ctx.BatchSparsity before returning; the epoch loop
// reads them immediately after.
type BatchTrainer interface {
	TrainBatch(input, expected [][]float32, ctx *Context)
}

// MomentumScheduler is implemented by layers with the Momentum
// capability. The trainer sets the momentum to the initial value before
// the first epoch, and switches it to the final value when the epoch
// index reaches FinalMomentumEpoch.
type MomentumScheduler interface {
	InitialMomentum() float32
	FinalMomentum() float32
	FinalMomentumEpoch() int
	SetMomentum(m float32)
}

// WeightInitializer is implemented by layers with the InitWeights
// capability trained from an in-memory sample slice. It is invoked once,
// before the epoch loop, with the first epoch's data ordering.
type WeightInitializer interface {
	InitWeights(samples [][]float32)
}

// GeneratorWeightInitializer is the streaming counterpart of
// WeightInitializer, for layers trained from a Generator.
type GeneratorWeightInitializer interface {
	InitWeightsGenerator(g Generator)
}

// FreeEnergier is implemented by layers with the FreeEnergy capability.
type FreeEnergier interface {
	FreeEnergy(sample []float32) float32
}

// Generator is a streaming batch source. Batch boundaries are the
// generator's own business; the trainer resets it at the start of every
// epoch (with or without shuffling, depending on the layer's
// capabilities), puts it in train mode, then pulls batches until
// HasNextBatch reports false.
type Generator interface {
	Reset()
	ResetShuffle()
	SetTrain()

	// Size is the total number of samples a full pass yields, or a
	// negative value when unknown.
	Size() int

	HasNextBatch() bool
	DataBatch() [][]float32
	LabelBatch() [][]float32
	NextBatch()
}

package trainer

// Trainer is the epoch orchestrator. It owns the epoch loop for one
// layer: batching, shuffling, statistics accumulation, momentum
// scheduling and watcher notifications, while delegating the actual
// parameter updates to the layer's BatchTrainer.
//
// A Trainer carries no per-run state between Train calls besides the
// counters it resets itself; it may be reused, but a single Trainer
// must not run two Train calls concurrently.
type Trainer struct {
	watcher   Watcher
	denoising bool

	batchSize    int
	totalBatches int
	batches      int
	samples      int

	lastError float32
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithWatcher installs the observer notified of training lifecycle
// events. Without one, all notifications (and free-energy tracking,
// which only exists for reporting) are skipped.
func WithWatcher(w Watcher) Option {
	return func(t *Trainer) { t.watcher = w }
}

// Denoising marks the trainer as driving denoising training: the
// expected samples passed to TrainPairs are treated as clean targets
// distinct from the inputs, and reshuffling applies one shared
// permutation to both sides to preserve pairing.
func Denoising() Option {
	return func(t *Trainer) { t.denoising = true }
}

// New returns a Trainer.
func New(opts ...Option) *Trainer {
	t := &Trainer{}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Train performs unsupervised training of layer on input, using each
// sample as its own target. It returns the final epoch's average
// reconstruction error, the sole convergence metric exposed to callers.
func (t *Trainer) Train(layer Trainee, input [][]float32, maxEpochs int) float32 {
	return t.TrainPairs(layer, input, input, maxEpochs)
}

// TrainPairs trains layer on aligned (input, expected) sample slices.
// Unless the Trainer was built with Denoising, the expected side is
// ignored and the inputs serve as their own targets.
func (t *Trainer) TrainPairs(layer Trainee, input, expected [][]float32, maxEpochs int) float32 {
	caps := layer.Capabilities()
	src := newSliceSource(input, expected, t.initTraining(layer, len(input)), t.denoising)

	if caps.InitWeights {
		layer.(WeightInitializer).InitWeights(src.input)
	}
	return t.run(layer, caps, src, maxEpochs)
}

// TrainGenerator trains layer from a streaming batch source. Batch
// boundaries are the generator's own; everything else behaves as in
// TrainPairs.
func (t *Trainer) TrainGenerator(layer Trainee, gen Generator, maxEpochs int) float32 {
	caps := layer.Capabilities()
	t.initTraining(layer, gen.Size())

	if caps.InitWeights {
		layer.(GeneratorWeightInitializer).InitWeightsGenerator(gen)
	}
	return t.run(layer, caps, &generatorSource{gen: gen}, maxEpochs)
}

// TrainDenoisingAuto performs self-contained denoising training:
// corrupted copies of the inputs are generated internally each epoch
// (every scalar zeroed with probability noise) and paired with the
// clean originals. It must not be used on a Trainer already configured
// with Denoising; doing so is a contract violation and panics.
func (t *Trainer) TrainDenoisingAuto(layer Trainee, input [][]float32, maxEpochs int, noise float64) float32 {
	if t.denoising {
		panic("trainer: TrainDenoisingAuto must not be used on a denoising Trainer")
	}

	caps := layer.Capabilities()
	src := newDenoisingSource(input, t.initTraining(layer, len(input)), noise)

	if caps.InitWeights {
		layer.(WeightInitializer).InitWeights(src.clean)
	}
	return t.run(layer, caps, src, maxEpochs)
}

// initTraining resets the per-run state and returns the batch size. n
// is the number of samples in one pass, negative when unknown.
func (t *Trainer) initTraining(layer Trainee, n int) int {
	caps := layer.Capabilities()
	if caps.Momentum {
		ms := layer.(MomentumScheduler)
		ms.SetMomentum(ms.InitialMomentum())
	}

	if t.watcher != nil {
		t.watcher.TrainingBegin(layer)
	}

	t.batchSize = layer.BatchSize()
	if t.batchSize <= 0 {
		panic("trainer: layer batch size must be positive")
	}

	if n >= 0 {
		if n%t.batchSize != 0 {
			warnUneven(n, t.batchSize)
		}
		// Reporting only, no need to be exact.
		t.totalBatches = n / t.batchSize
	} else {
		t.totalBatches = 0
	}

	t.lastError = 0
	return t.batchSize
}

// run is the epoch loop shared by all training entry points. Epochs
// are strictly sequential: an epoch's statistics are finalized before
// the next one starts.
func (t *Trainer) run(layer Trainee, caps Capabilities, src batchSource, maxEpochs int) float32 {
	// One allocation per run; the batch trainer may hold large buffers.
	bt := layer.NewBatchTrainer()

	for epoch := 0; epoch < maxEpochs; epoch++ {
		src.reset(caps.Shuffle)

		ctx := &Context{}
		t.batches = 0
		t.samples = 0

		for {
			input, expected, ok := src.next()
			if !ok {
				break
			}
			t.trainBatch(layer, caps, bt, input, expected, ctx)
		}

		t.finalizeEpoch(epoch, ctx, layer, caps)
	}

	if t.watcher != nil {
		t.watcher.TrainingEnd(layer)
	}
	return t.lastError
}

func (t *Trainer) trainBatch(layer Trainee, caps Capabilities, bt BatchTrainer, input, expected [][]float32, ctx *Context) {
	t.batches++
	t.samples += len(input)

	bt.TrainBatch(input, expected, ctx)

	ctx.ReconstructionError += ctx.BatchError
	ctx.Sparsity += ctx.BatchSparsity

	if t.watcher != nil && caps.FreeEnergy {
		fe := layer.(FreeEnergier)
		for _, v := range input {
			ctx.FreeEnergy += fe.FreeEnergy(v)
		}
	}

	if t.watcher != nil && caps.Verbose {
		t.watcher.BatchEnd(layer, ctx, t.batches, t.totalBatches)
	}
}

func (t *Trainer) finalizeEpoch(epoch int, ctx *Context, layer Trainee, caps Capabilities) {
	// Error and sparsity average over batches; free energy is a
	// per-sample quantity and averages over samples.
	ctx.ReconstructionError /= float32(t.batches)
	ctx.Sparsity /= float32(t.batches)
	ctx.FreeEnergy /= float32(t.samples)

	if caps.Momentum {
		ms := layer.(MomentumScheduler)
		if epoch == ms.FinalMomentumEpoch() {
			ms.SetMomentum(ms.FinalMomentum())
		}
	}

	if t.watcher != nil {
		t.watcher.EpochEnd(epoch, ctx, layer)
	}

	t.lastError = ctx.ReconstructionError
}

package trainer

// Context accumulates the statistics of one training epoch. A fresh
// Context is created at the start of every epoch and finalized (the
// running sums turned into averages) when the epoch ends.
//
// ReconstructionError and Sparsity are averaged over the number of
// batches processed in the epoch; FreeEnergy is averaged over the
// number of samples. The Batch* fields are scratch slots written by the
// BatchTrainer for the batch just processed and folded into the running
// sums by the epoch loop.
type Context struct {
	ReconstructionError float32
	Sparsity            float32
	FreeEnergy          float32

	BatchError    float32
	BatchSparsity float32
}

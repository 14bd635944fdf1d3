package trainer

import (
	"io"
	"log"

	"github.com/XDimage/dll/internal/online"
)

// Watcher observes the lifecycle of one training run. Implementations
// are side-effect only: they must not alter training state, and
// training results are identical with or without one installed.
//
// BatchEnd is only delivered for layers with the Verbose capability;
// totalBatches is a best-effort estimate and is zero when the data
// source cannot report its size.
type Watcher interface {
	TrainingBegin(layer Trainee)
	BatchEnd(layer Trainee, ctx *Context, batch, totalBatches int)
	EpochEnd(epoch int, ctx *Context, layer Trainee)
	TrainingEnd(layer Trainee)
}

// LogWatcher reports training progress on a standard logger, smoothing
// the reconstruction error with an exponential moving average so the
// per-epoch noise does not drown the trend.
type LogWatcher struct {
	logger *log.Logger
	smooth online.EWMA
	spread online.Mean
}

// NewLogWatcher writes progress lines to out.
func NewLogWatcher(out io.Writer) *LogWatcher {
	return &LogWatcher{
		logger: log.New(out, "", log.Ltime),
		smooth: online.EWMA{Alpha: 0.3},
	}
}

func (w *LogWatcher) TrainingBegin(layer Trainee) {
	w.smooth = online.EWMA{Alpha: w.smooth.Alpha}
	w.spread.Reset()
	w.logger.Printf("training begin (batch size %d)", layer.BatchSize())
}

func (w *LogWatcher) BatchEnd(layer Trainee, ctx *Context, batch, totalBatches int) {
	if totalBatches > 0 {
		w.logger.Printf("batch %d/%d error: %v", batch, totalBatches, ctx.BatchError)
		return
	}
	w.logger.Printf("batch %d error: %v", batch, ctx.BatchError)
}

func (w *LogWatcher) EpochEnd(epoch int, ctx *Context, layer Trainee) {
	w.smooth.Push(ctx.ReconstructionError)
	w.spread.Push(ctx.ReconstructionError)
	if layer.Capabilities().FreeEnergy {
		w.logger.Printf("epoch %d error: %v (smoothed: %v) free energy: %v", epoch, ctx.ReconstructionError, w.smooth.Value(), ctx.FreeEnergy)
		return
	}
	w.logger.Printf("epoch %d error: %v (smoothed: %v)", epoch, ctx.ReconstructionError, w.smooth.Value())
}

func (w *LogWatcher) TrainingEnd(layer Trainee) {
	w.logger.Printf("training end, error mean %v std %v over %d epochs", w.spread.Mean(), w.spread.Std(), w.spread.N())
}

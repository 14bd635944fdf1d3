package dll

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/XDimage/dll/trainer"
)

// Statistics records the per-epoch pretraining statistics of every
// layer of a DBN.
type Statistics struct {
	Layers   []string
	Errors   map[string][]float32
	Sparsity map[string][]float32
}

func makeStatistics() Statistics {
	return Statistics{
		Layers:   make([]string, 0, 8),
		Errors:   make(map[string][]float32),
		Sparsity: make(map[string][]float32),
	}
}

func (s *Statistics) record(layer string, ctx *trainer.Context) {
	if _, ok := s.Errors[layer]; !ok {
		s.Layers = append(s.Layers, layer)
	}
	s.Errors[layer] = append(s.Errors[layer], ctx.ReconstructionError)
	s.Sparsity[layer] = append(s.Sparsity[layer], ctx.Sparsity)
}

// Dump writes the recorded error curves as CSV, one column per layer,
// one row per epoch.
func (s *Statistics) Dump(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(s.Layers); err != nil {
		return err
	}

	var epochs int
	for _, layer := range s.Layers {
		if n := len(s.Errors[layer]); n > epochs {
			epochs = n
		}
	}

	var records [][]string
	for e := 0; e < epochs; e++ {
		record := make([]string, len(s.Layers))
		for i, layer := range s.Layers {
			if curve := s.Errors[layer]; e < len(curve) {
				record[i] = strconv.FormatFloat(float64(curve[e]), 'f', 6, 32)
			}
		}
		records = append(records, record)
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// statsWatcher records epoch statistics into a Statistics and forwards
// every notification to an optional user watcher.
type statsWatcher struct {
	stats *Statistics
	name  string
	next  trainer.Watcher
}

func (w *statsWatcher) TrainingBegin(layer trainer.Trainee) {
	if w.next != nil {
		w.next.TrainingBegin(layer)
	}
}

func (w *statsWatcher) BatchEnd(layer trainer.Trainee, ctx *trainer.Context, batch, totalBatches int) {
	if w.next != nil {
		w.next.BatchEnd(layer, ctx, batch, totalBatches)
	}
}

func (w *statsWatcher) EpochEnd(epoch int, ctx *trainer.Context, layer trainer.Trainee) {
	w.stats.record(w.name, ctx)
	if w.next != nil {
		w.next.EpochEnd(epoch, ctx, layer)
	}
}

func (w *statsWatcher) TrainingEnd(layer trainer.Trainee) {
	if w.next != nil {
		w.next.TrainingEnd(layer)
	}
}

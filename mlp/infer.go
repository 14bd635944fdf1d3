package mlp

import (
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Inferencer holds a forward-only clone of a trained *MLP and a VM, so
// no machine needs to be rebuilt per prediction.
type Inferencer struct {
	m  *MLP
	vm G.VM

	input *tensor.Dense
}

// Infer takes a trained *MLP and builds an inference structure around a
// forward-only, batch-of-one clone of it.
func Infer(m *MLP) (*Inferencer, error) {
	conf := m.Config
	conf.FwdOnly = true
	conf.BatchSize = 1

	retVal := &Inferencer{
		m:     New(conf),
		input: tensor.New(tensor.WithShape(1, conf.Sizes[0]), tensor.Of(Float)),
	}
	if err := retVal.m.Init(); err != nil {
		return nil, err
	}

	infModel := retVal.m.Model()
	for i, n := range m.Model() {
		original := n.Value().Data().([]float32)
		cloned := infModel[i].Value().Data().([]float32)
		copy(cloned, original)
	}

	retVal.vm = G.NewTapeMachine(retVal.m.g)
	return retVal, nil
}

// Infer returns the class distribution predicted for a single sample.
func (in *Inferencer) Infer(sample []float32) ([]float32, error) {
	in.input.Zero()
	copy(in.input.Data().([]float32), sample)

	in.vm.Reset()
	G.Let(in.m.x, in.input)
	if err := in.vm.RunAll(); err != nil {
		return nil, err
	}

	probs := in.m.probs.Data().([]float32)
	out := make([]float32, len(probs))
	copy(out, probs)
	return out, nil
}

// Close releases the underlying VM.
func (in *Inferencer) Close() error { return in.vm.Close() }

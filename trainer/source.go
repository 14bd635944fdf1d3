package trainer

import "log"

// batchSource is the internal abstraction unifying the two
// data-delivery modes: in-memory sample slices and streaming
// generators. reset is called at the start of every epoch; next yields
// aligned (input, expected) batches until the pass is exhausted.
type batchSource interface {
	reset(shuffle bool)
	next() (input, expected [][]float32, ok bool)

	// size is the number of samples in a full pass, or negative when
	// the source cannot tell.
	size() int
}

// sliceSource yields ceil(N/batchSize) batches over two aligned sample
// slices. Only the outer slice headers are copied, so shuffling
// permutes this source's view of the data and never the caller's
// slices. When paired is false the expected side aliases the input side
// and follows its permutation for free; when true (denoising) both
// sides are permuted with the same indices to preserve pairing.
type sliceSource struct {
	input    [][]float32
	expected [][]float32
	paired   bool

	batchSize int
	pos       int
}

func newSliceSource(input, expected [][]float32, batchSize int, paired bool) *sliceSource {
	s := &sliceSource{
		input:     make([][]float32, len(input)),
		paired:    paired,
		batchSize: batchSize,
	}
	copy(s.input, input)

	if paired {
		if len(expected) != len(input) {
			panic("trainer: input and expected sample counts differ")
		}
		s.expected = make([][]float32, len(expected))
		copy(s.expected, expected)
	} else {
		s.expected = s.input
	}
	return s
}

func (s *sliceSource) reset(shuffle bool) {
	s.pos = 0
	if !shuffle {
		return
	}
	for i := len(s.input) - 1; i > 0; i-- {
		j := randEngine.Intn(i + 1)
		s.input[i], s.input[j] = s.input[j], s.input[i]
		if s.paired {
			s.expected[i], s.expected[j] = s.expected[j], s.expected[i]
		}
	}
}

func (s *sliceSource) next() (input, expected [][]float32, ok bool) {
	if s.pos >= len(s.input) {
		return nil, nil, false
	}
	end := s.pos + s.batchSize
	if end > len(s.input) {
		end = len(s.input)
	}
	input, expected = s.input[s.pos:end], s.expected[s.pos:end]
	s.pos = end
	return input, expected, true
}

func (s *sliceSource) size() int { return len(s.input) }

// generatorSource adapts a Generator to the batchSource contract.
type generatorSource struct {
	gen Generator
}

func (g *generatorSource) reset(shuffle bool) {
	if shuffle {
		g.gen.ResetShuffle()
	} else {
		g.gen.Reset()
	}
	g.gen.SetTrain()
}

func (g *generatorSource) next() (input, expected [][]float32, ok bool) {
	if !g.gen.HasNextBatch() {
		return nil, nil, false
	}
	input, expected = g.gen.DataBatch(), g.gen.LabelBatch()
	g.gen.NextBatch()
	return input, expected, true
}

func (g *generatorSource) size() int { return g.gen.Size() }

// denoisingSource drives self-corrupting denoising training. It keeps a
// deep clean copy of the caller's samples and a working copy of the
// same shape; every epoch the clean copy is (optionally) reshuffled,
// the working copy regenerated from it, and each working scalar zeroed
// with probability noise. Batches pair the corrupted working samples
// with their clean targets.
type denoisingSource struct {
	clean   [][]float32
	working [][]float32
	noise   float64

	batchSize int
	pos       int
}

func newDenoisingSource(input [][]float32, batchSize int, noise float64) *denoisingSource {
	s := &denoisingSource{
		clean:     make([][]float32, len(input)),
		working:   make([][]float32, len(input)),
		noise:     noise,
		batchSize: batchSize,
	}
	for i, v := range input {
		s.clean[i] = append([]float32(nil), v...)
		s.working[i] = make([]float32, len(v))
	}
	return s
}

func (s *denoisingSource) reset(shuffle bool) {
	s.pos = 0
	if shuffle {
		for i := len(s.clean) - 1; i > 0; i-- {
			j := randEngine.Intn(i + 1)
			s.clean[i], s.clean[j] = s.clean[j], s.clean[i]
			s.working[i], s.working[j] = s.working[j], s.working[i]
		}
	}
	for i, v := range s.clean {
		w := s.working[i]
		copy(w, v)
		for k := range w {
			if randEngine.Float64() < s.noise {
				w[k] = 0
			}
		}
	}
}

func (s *denoisingSource) next() (input, expected [][]float32, ok bool) {
	if s.pos >= len(s.working) {
		return nil, nil, false
	}
	end := s.pos + s.batchSize
	if end > len(s.working) {
		end = len(s.working)
	}
	input, expected = s.working[s.pos:end], s.clean[s.pos:end]
	s.pos = end
	return input, expected, true
}

func (s *denoisingSource) size() int { return len(s.clean) }

// warnUneven logs the (non-fatal) batch size divisibility warning.
func warnUneven(n, batchSize int) {
	log.Printf("WARNING: the number of samples (%d) should be divisible by the batch size (%d)", n, batchSize)
	log.Printf("         this may cause discrepancies in the results")
}

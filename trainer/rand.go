package trainer

import (
	"math/rand"
	"time"
)

// randEngine is the process-wide random engine used for inter-epoch
// shuffling and denoising corruption. It is NOT safe for concurrent
// use: callers running several trainers at once must serialize them, or
// accept non-reproducible interleavings.
var randEngine = rand.New(rand.NewSource(time.Now().UnixNano()))

// Seed reseeds the process-wide random engine. Call it before training
// when reproducible shuffling/corruption is required.
func Seed(seed int64) {
	randEngine = rand.New(rand.NewSource(seed))
}

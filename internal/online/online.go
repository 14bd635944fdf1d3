// Package online provides streaming statistics accumulators used by the
// training watchers. Values are pushed one at a time; mean and variance
// are always available without retaining the series.
package online

import "github.com/chewxy/math32"

// Mean is an online mean/variance accumulator (Welford's algorithm).
type Mean struct {
	n    int
	mean float32
	m2   float32
}

// Push adds a value to the accumulator.
func (a *Mean) Push(x float32) {
	a.n++
	d := x - a.mean
	a.mean += d / float32(a.n)
	a.m2 += d * (x - a.mean)
}

// N returns the number of values pushed so far.
func (a *Mean) N() int { return a.n }

// Mean returns the running mean. Zero values pushed means a zero mean.
func (a *Mean) Mean() float32 { return a.mean }

// Var returns the running sample variance.
func (a *Mean) Var() float32 {
	if a.n < 2 {
		return 0
	}
	return a.m2 / float32(a.n-1)
}

// Std returns the running sample standard deviation.
func (a *Mean) Std() float32 { return math32.Sqrt(a.Var()) }

// Reset discards all pushed values.
func (a *Mean) Reset() { *a = Mean{} }

// EWMA is an exponentially weighted moving average with smoothing
// factor alpha in (0, 1]. The first pushed value seeds the average.
type EWMA struct {
	Alpha float32

	seeded bool
	value  float32
}

// Push folds a value into the average.
func (e *EWMA) Push(x float32) {
	if !e.seeded {
		e.value = x
		e.seeded = true
		return
	}
	e.value = e.Alpha*x + (1-e.Alpha)*e.value
}

// Value returns the current average.
func (e *EWMA) Value() float32 { return e.value }

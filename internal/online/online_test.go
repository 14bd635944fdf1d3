package online

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	assert := assert.New(t)

	var m Mean
	assert.Equal(0, m.N())
	assert.Equal(float32(0), m.Mean())

	for _, x := range []float32{2, 4, 4, 4, 5, 5, 7, 9} {
		m.Push(x)
	}

	assert.Equal(8, m.N())
	assert.InDelta(5.0, m.Mean(), 1e-6)
	assert.InDelta(32.0/7.0, m.Var(), 1e-5)

	m.Reset()
	assert.Equal(0, m.N())
}

func TestMeanSingleValue(t *testing.T) {
	var m Mean
	m.Push(3)
	assert.Equal(t, float32(3), m.Mean())
	assert.Equal(t, float32(0), m.Var())
}

func TestEWMA(t *testing.T) {
	assert := assert.New(t)

	e := EWMA{Alpha: 0.5}
	e.Push(10)
	assert.Equal(float32(10), e.Value(), "first value seeds the average")

	e.Push(0)
	assert.InDelta(5.0, e.Value(), 1e-6)

	e.Push(5)
	assert.InDelta(5.0, e.Value(), 1e-6)
}

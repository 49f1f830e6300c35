package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepStaysWithinVolatilityBound(t *testing.T) {
	sim := NewSimulator(1)

	last := 43000.0
	for i := 0; i < 1000; i++ {
		next := sim.Step(last, 0.02)
		assert.LessOrEqual(t, next, last*1.02)
		assert.GreaterOrEqual(t, next, last*0.98)
		assert.Greater(t, next, 0.0)
		last = next
	}
}

func TestStepNeverGoesNonPositive(t *testing.T) {
	sim := NewSimulator(7)

	// volatility > 1 could push the walk below zero; Step must hold the line
	last := 0.0001
	for i := 0; i < 1000; i++ {
		last = sim.Step(last, 1.5)
		assert.Greater(t, last, 0.0)
	}
}

func TestMaybeStep(t *testing.T) {
	sim := NewSimulator(42)

	// chance 0 never moves
	for i := 0; i < 100; i++ {
		assert.Equal(t, 100.0, sim.MaybeStep(100, 0.02, 0))
	}

	// chance 1 always rolls the walk; over many tries at a meaningful
	// volatility at least one move lands
	moved := false
	for i := 0; i < 100; i++ {
		if sim.MaybeStep(100, 0.02, 1) != 100.0 {
			moved = true
			break
		}
	}
	assert.True(t, moved)
}

package feed

import (
	"math/rand"
	"sync"
)

// Simulator produces bounded random-walk price movements. It backs two
// paths: the per-class fallback when a live source errors, and the fast
// liveliness tick that perturbs every asset between slow refreshes.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator creates a simulator with its own PRNG stream
func NewSimulator(seed int64) *Simulator {
	return &Simulator{rng: rand.New(rand.NewSource(seed))}
}

// Step walks the price by a random fraction of volatility in either
// direction. The move is bounded by +/- volatility of the last price.
func (s *Simulator) Step(last, volatility float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	move := (s.rng.Float64()*2 - 1) * volatility
	next := last * (1 + move)
	if next <= 0 {
		return last
	}
	return next
}

// MaybeStep walks the price with the given probability, otherwise returns
// it unchanged. Used by the fast tick so not every asset moves every tick.
func (s *Simulator) MaybeStep(last, volatility, chance float64) float64 {
	s.mu.Lock()
	roll := s.rng.Float64()
	s.mu.Unlock()

	if roll >= chance {
		return last
	}
	return s.Step(last, volatility)
}

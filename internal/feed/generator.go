package feed

import (
	"math/rand"
)

// PriceSource produces the next price in a feed's tick sequence.
// Implementations need not be safe for concurrent use; each feed owns one
// source and calls it only from its generate loop.
type PriceSource interface {
	Next() float64
}

// RandomWalk is a bounded random walk price source. Each step moves the
// last price by a uniform offset in [-step, +step], reflecting at the
// bounds to stay inside [min, max). The starting point is uniform over
// the range. Same seed, same sequence.
type RandomWalk struct {
	rng  *rand.Rand
	min  float64
	max  float64
	step float64
	last float64
}

// NewRandomWalk creates a walk over [min, max) with the given step size.
func NewRandomWalk(min, max, step float64, seed int64) *RandomWalk {
	rng := rand.New(rand.NewSource(seed))
	return &RandomWalk{
		rng:  rng,
		min:  min,
		max:  max,
		step: step,
		last: min + rng.Float64()*(max-min),
	}
}

// Next returns the next price in the walk.
func (w *RandomWalk) Next() float64 {
	next := w.last + (w.rng.Float64()*2-1)*w.step
	if next < w.min {
		next = 2*w.min - next
	}
	if next >= w.max {
		next = 2*w.max - next
	}
	// Reflection can overshoot when step exceeds the range; resample.
	if next < w.min || next >= w.max {
		next = w.min + w.rng.Float64()*(w.max-w.min)
	}
	w.last = next
	return next
}

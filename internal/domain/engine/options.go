package engine

import (
	"math/rand"

	"github.com/okian/asyncrace/pkg/logger"
)

// Option configures a Simulator.
type Option func(*Simulator)

// WithDistance sets the track length.
func WithDistance(d float64) Option {
	return func(s *Simulator) {
		if d > 0 {
			s.distance = d
		}
	}
}

// WithVelocityRange sets the inclusive range velocities are drawn from.
func WithVelocityRange(minVelocity, maxVelocity float64) Option {
	return func(s *Simulator) {
		if minVelocity > 0 && maxVelocity >= minVelocity {
			s.minVelocity = minVelocity
			s.maxVelocity = maxVelocity
		}
	}
}

// WithBreakChance sets the probability of a breakdown per drive.
func WithBreakChance(p float64) Option {
	return func(s *Simulator) {
		if p >= 0 && p <= 1 {
			s.breakChance = p
		}
	}
}

// WithTimeScale multiplies every drive duration. Zero makes drives instant.
func WithTimeScale(scale float64) Option {
	return func(s *Simulator) {
		if scale >= 0 {
			s.timeScale = scale
		}
	}
}

// WithSeed seeds the random source.
func WithSeed(seed int64) Option {
	return func(s *Simulator) {
		s.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // simulation only
	}
}

// WithLookup checks that a vehicle exists before any engine call.
func WithLookup(fn LookupFunc) Option {
	return func(s *Simulator) {
		s.lookup = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.logger = l
		}
	}
}

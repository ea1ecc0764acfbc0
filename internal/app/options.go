package service

import (
	workerpool "github.com/okian/asyncrace/internal/adapters/mq/worker"
	"github.com/okian/asyncrace/pkg/logger"
)

// Defaults for the service.
const (
	defaultQueueSize      = 1000
	defaultDedupeSize     = 10000
	defaultGaragePageSize = 7
	defaultEventBuffer    = 64
	defaultGeneratorSeed  = 1
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of ledger workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the win event queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many race sessions are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithGaragePageSize sets the page size RaceGaragePage uses.
func WithGaragePageSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.garagePageSize = size
		}
	}
}

// WithEventBuffer sets the per-subscriber event buffer.
func WithEventBuffer(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.eventBuffer = n
		}
	}
}

// WithGeneratorSeed seeds the random vehicle generator.
func WithGeneratorSeed(seed int64) Option {
	return func(s *Service) {
		s.generatorSeed = seed
	}
}

// WithWinRecordedHook observes every applied win event.
func WithWinRecordedHook(fn workerpool.ResultFunc) Option {
	return func(s *Service) {
		s.onWin = fn
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

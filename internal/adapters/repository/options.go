package repository

import "github.com/okian/asyncrace/pkg/logger"

const defaultSequenceBandwidth = 100

// Option applies a configuration option to the DB.
type Option func(*DB)

// WithSequenceBandwidth sets how many vehicle ids are leased at a time.
func WithSequenceBandwidth(n uint64) Option {
	return func(d *DB) {
		if n > 0 {
			d.bandwidth = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(d *DB) {
		if l != nil {
			d.logger = l
		}
	}
}

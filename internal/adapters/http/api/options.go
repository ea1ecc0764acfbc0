package api

import "github.com/okian/asyncrace/pkg/logger"

const (
	totalCountHeader     = "X-Total-Count"
	defaultPageLimit     = 10
	unpagedLimit         = 1 << 30
	defaultGenerateCount = 100
)

type config struct {
	generateCount int
	logger        logger.Logger
}

// Option configures the Server.
type Option func(*config)

// WithGenerateCount sets how many vehicles POST /garage/generate creates
// when no count is given.
func WithGenerateCount(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.generateCount = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

package pool

import "github.com/rs/zerolog"

// Option configures a Pool at construction time.
type Option func(*Pool)

// WithLogger injects a structured logger. Defaults to a no-op logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

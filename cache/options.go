package cache

import "github.com/rs/zerolog"

// Option configures an LRU at construction time, following the teacher's
// functional-options pattern (New(opts ...Option)).
type Option func(*LRU)

// WithLogger injects a structured logger. Defaults to a no-op logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *LRU) {
		l.logger = logger
	}
}

// Package config loads tempuscached's tunables from a TOML file and lets
// CLI flags override them.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Variant selects which server implementation cmd/tempuscached runs.
type Variant string

const (
	VariantBlocking     Variant = "blocking"
	VariantReactor      Variant = "reactor"
	VariantMultiReactor Variant = "multireactor"
)

// Config carries every tunable for the cache and pool, plus the
// acceptor-level settings a runnable binary needs.
type Config struct {
	ListenAddr string  `toml:"listen_addr"`
	Variant    Variant `toml:"variant"`

	MaxSize int `toml:"max_size"`

	LowWatermark  int `toml:"low_watermark"`
	HighWatermark int `toml:"high_watermark"`
	MaxQueueSize  int `toml:"max_queue_size"`
	IdleTimeMS    int `toml:"idle_time_ms"`

	ReactorCount   int `toml:"reactor_count"`
	MaxConnections int `toml:"max_connections"`
}

// IdleTime converts the TOML millisecond field into a time.Duration (TOML
// has no native duration type).
func (c Config) IdleTime() time.Duration {
	return time.Duration(c.IdleTimeMS) * time.Millisecond
}

// Default returns the out-of-the-box configuration: a single-reactor
// server on localhost, a 64 MiB cache, and a modest pool sized for a
// single-machine workload.
func Default() Config {
	return Config{
		ListenAddr:     "127.0.0.1:11211",
		Variant:        VariantReactor,
		MaxSize:        64 << 20,
		LowWatermark:   2,
		HighWatermark:  8,
		MaxQueueSize:   64,
		IdleTimeMS:     5000,
		ReactorCount:   4,
		MaxConnections: 1024,
	}
}

// Load reads a TOML file over Default's values. An empty path returns
// Default unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Option overrides one field of a Config, used by cmd/tempuscached to
// layer flag values over the file/default configuration.
type Option func(*Config)

func WithListenAddr(addr string) Option {
	return func(c *Config) {
		if addr != "" {
			c.ListenAddr = addr
		}
	}
}

func WithVariant(v Variant) Option {
	return func(c *Config) {
		if v != "" {
			c.Variant = v
		}
	}
}

func WithMaxSize(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxSize = n
		}
	}
}

func WithWatermarks(low, high int) Option {
	return func(c *Config) {
		if low > 0 {
			c.LowWatermark = low
		}
		if high > 0 {
			c.HighWatermark = high
		}
	}
}

// Apply layers opts over cfg in order and returns the result.
func (c Config) Apply(opts ...Option) Config {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

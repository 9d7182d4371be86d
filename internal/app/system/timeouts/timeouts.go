// Package timeouts holds the process-wide deadlines handlers and probes
// put on backing-store calls. Values are set once at startup from config.
package timeouts

import (
	"sync/atomic"
	"time"
)

const (
	DefaultPing     = 2 * time.Second
	DefaultShort    = 5 * time.Second
	DefaultMedium   = 10 * time.Second
	DefaultTransfer = 60 * time.Second
)

// Config is one set of deadlines.
type Config struct {
	Ping     time.Duration // reachability checks
	Short    time.Duration // single-key lookups such as token resolution
	Medium   time.Duration // metadata reads and writes
	Transfer time.Duration // requests that move file content
}

// Defaults returns the built-in deadlines.
func Defaults() Config {
	return Config{Ping: DefaultPing, Short: DefaultShort, Medium: DefaultMedium, Transfer: DefaultTransfer}
}

var current atomic.Pointer[Config]

func init() { Reset() }

func load() Config { return *current.Load() }

func Ping() time.Duration     { return load().Ping }
func Short() time.Duration    { return load().Short }
func Medium() time.Duration   { return load().Medium }
func Transfer() time.Duration { return load().Transfer }

// Current returns the deadlines in effect.
func Current() Config { return load() }

// Configure replaces the deadlines. Non-positive fields keep their current
// value.
func Configure(cfg Config) {
	next := load()
	pick(&next.Ping, cfg.Ping)
	pick(&next.Short, cfg.Short)
	pick(&next.Medium, cfg.Medium)
	pick(&next.Transfer, cfg.Transfer)
	current.Store(&next)
}

// Reset restores the defaults.
func Reset() {
	d := Defaults()
	current.Store(&d)
}

func pick(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

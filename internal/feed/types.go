package feed

import (
	"time"

	"github.com/stockcast/stockcast/internal/model"
)

// TickSink receives ticks for one attachment. Push must not block;
// implementations buffer internally. Push reports whether the sink still
// accepts ticks (a closed sink returns false). *Queue[model.PriceTick]
// satisfies TickSink directly.
type TickSink interface {
	Push(tick model.PriceTick) bool
}

// Config controls one feed's generation cadence and replay history.
type Config struct {
	TickInterval time.Duration // generate loop period
	HistorySize  int           // replay capacity, oldest evicted first
}

// DefaultConfig returns the production feed configuration: one tick per
// second, ten ticks of replay.
func DefaultConfig() Config {
	return Config{
		TickInterval: time.Second,
		HistorySize:  10,
	}
}

// RegistryConfig controls universe construction. Symbols normalize to
// uppercase; each feed gets an independent random walk source seeded from
// Seed plus its universe index.
type RegistryConfig struct {
	Symbols  []string // universe, any case
	Feed     Config   // per-feed settings
	PriceMin float64  // walk lower bound, inclusive
	PriceMax float64  // walk upper bound, exclusive
	WalkStep float64  // max per-tick move
	Seed     int64    // base RNG seed; 0 seeds from the clock
}

// DefaultRegistryConfig returns the reference deployment universe and
// price range.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		Symbols:  []string{"GOOG", "TSLA", "AMZN", "META", "NVDA"},
		Feed:     DefaultConfig(),
		PriceMin: 100,
		PriceMax: 300,
		WalkStep: 5,
	}
}

// Stats is a point-in-time snapshot of one feed.
type Stats struct {
	Symbol      model.Symbol `json:"symbol"`
	Ticks       int64        `json:"ticks"`       // generated since start
	Attachments int          `json:"attachments"` // currently attached sinks
	HistoryLen  int          `json:"history_len"`
}

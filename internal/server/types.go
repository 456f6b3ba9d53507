package server

import (
	"errors"
	"time"

	"github.com/stockcast/stockcast/internal/session"
)

var (
	// ErrAlreadyStarted is returned by Start on a running server.
	ErrAlreadyStarted = errors.New("server already started")
)

// Config controls the WebSocket server and its connections.
type Config struct {
	Addr           string        // listen address
	WSPath         string        // WebSocket route
	PingInterval   time.Duration // keepalive ping cadence
	PongWait       time.Duration // read deadline; refreshed by pongs
	WriteTimeout   time.Duration // per-message write deadline
	MaxMessageSize int64         // inbound message size cap
	AllowedOrigins []string      // empty allows any origin

	Session session.Config // per-session settings
}

// DefaultConfig returns the production server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		WSPath:         "/ws",
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 4096,
		Session:        session.DefaultConfig(),
	}
}

// applyDefaults fills zero fields from DefaultConfig.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.WSPath == "" {
		c.WSPath = def.WSPath
	}
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.PongWait <= 0 {
		c.PongWait = def.PongWait
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
}

package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultServerAddr       = ":8080"
	DefaultWSPath           = "/ws"
	DefaultPingInterval     = 30 * time.Second
	DefaultPongWait         = 60 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultMaxMessageSize   = 4096
	DefaultOutboundCapacity = 64
	DefaultTickInterval     = 1 * time.Second
	DefaultHistorySize      = 10
	DefaultPriceMin         = 100.0
	DefaultPriceMax         = 300.0
	DefaultWalkStep         = 5.0
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 10
	DefaultMinConns         = 2
	DefaultBatchSize        = 500
	DefaultFlushInterval    = 1 * time.Second
	DefaultBufferSize       = 4096
	DefaultMirrorTopic      = "stockcast.ticks"
	DefaultSnapshotKey      = "stock:"
	DefaultSnapshotChannel  = "price."
	DefaultSnapshotTTL      = 30 * time.Second
	DefaultHealthAddr       = ":8081"
	DefaultHealthPath       = "/healthz"
)

// DefaultSymbols is the symbol universe served when feeds.symbols is empty.
var DefaultSymbols = []string{"GOOG", "TSLA", "AMZN", "META", "NVDA"}

func (c *ServiceConfig) applyDefaults() {
	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.WSPath == "" {
		c.Server.WSPath = DefaultWSPath
	}
	if c.Server.PingInterval == 0 {
		c.Server.PingInterval = DefaultPingInterval
	}
	if c.Server.PongWait == 0 {
		c.Server.PongWait = DefaultPongWait
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.MaxMessageSize == 0 {
		c.Server.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Server.OutboundCapacity == 0 {
		c.Server.OutboundCapacity = DefaultOutboundCapacity
	}

	// Feeds defaults
	if len(c.Feeds.Symbols) == 0 {
		c.Feeds.Symbols = append([]string(nil), DefaultSymbols...)
	}
	if c.Feeds.TickInterval == 0 {
		c.Feeds.TickInterval = DefaultTickInterval
	}
	if c.Feeds.HistorySize == 0 {
		c.Feeds.HistorySize = DefaultHistorySize
	}
	if c.Feeds.PriceMin == 0 && c.Feeds.PriceMax == 0 {
		c.Feeds.PriceMin = DefaultPriceMin
		c.Feeds.PriceMax = DefaultPriceMax
	}
	if c.Feeds.WalkStep == 0 {
		c.Feeds.WalkStep = DefaultWalkStep
	}

	// Archive defaults
	if c.Archive.BatchSize == 0 {
		c.Archive.BatchSize = DefaultBatchSize
	}
	if c.Archive.FlushInterval == 0 {
		c.Archive.FlushInterval = DefaultFlushInterval
	}
	if c.Archive.BufferSize == 0 {
		c.Archive.BufferSize = DefaultBufferSize
	}
	applyDBDefaults(&c.Archive.Database)

	// Mirror defaults
	if c.Mirror.Topic == "" {
		c.Mirror.Topic = DefaultMirrorTopic
	}
	if c.Mirror.BatchSize == 0 {
		c.Mirror.BatchSize = DefaultBatchSize
	}
	if c.Mirror.FlushInterval == 0 {
		c.Mirror.FlushInterval = DefaultFlushInterval
	}
	if c.Mirror.BufferSize == 0 {
		c.Mirror.BufferSize = DefaultBufferSize
	}

	// Snapshot defaults
	if c.Snapshot.KeyPrefix == "" {
		c.Snapshot.KeyPrefix = DefaultSnapshotKey
	}
	if c.Snapshot.ChannelPrefix == "" {
		c.Snapshot.ChannelPrefix = DefaultSnapshotChannel
	}
	if c.Snapshot.TTL == 0 {
		c.Snapshot.TTL = DefaultSnapshotTTL
	}

	// Health defaults
	if c.Health.Addr == "" {
		c.Health.Addr = DefaultHealthAddr
	}
	if c.Health.Path == "" {
		c.Health.Path = DefaultHealthPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

package config

import "time"

// ServiceConfig is the root configuration for a stockcastd instance.
type ServiceConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Server   ServerConfig   `yaml:"server"`
	Feeds    FeedsConfig    `yaml:"feeds"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Mirror   MirrorConfig   `yaml:"mirror"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Health   HealthConfig   `yaml:"health"`
}

// InstanceConfig identifies this stockcastd.
type InstanceConfig struct {
	ID  string `yaml:"id"`
	Env string `yaml:"env"`
}

// ServerConfig holds WebSocket server settings.
type ServerConfig struct {
	Addr             string        `yaml:"addr"`
	WSPath           string        `yaml:"ws_path"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	PongWait         time.Duration `yaml:"pong_wait"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	MaxMessageSize   int64         `yaml:"max_message_size"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
	OutboundCapacity int           `yaml:"outbound_capacity"`
}

// FeedsConfig holds the symbol universe and price generation settings.
type FeedsConfig struct {
	Symbols      []string      `yaml:"symbols"`
	TickInterval time.Duration `yaml:"tick_interval"`
	HistorySize  int           `yaml:"history_size"`
	PriceMin     float64       `yaml:"price_min"`
	PriceMax     float64       `yaml:"price_max"`
	WalkStep     float64       `yaml:"walk_step"`
	Seed         int64         `yaml:"seed"` // 0 seeds from the clock
}

// ArchiveConfig holds the Postgres tick archiver settings.
type ArchiveConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
	Database      DBConfig      `yaml:"database"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MirrorConfig holds the Kafka tick mirror settings.
type MirrorConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Brokers       []string      `yaml:"brokers"`
	Topic         string        `yaml:"topic"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// SnapshotConfig holds the Redis latest-price snapshot settings.
type SnapshotConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Addr          string        `yaml:"addr"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	KeyPrefix     string        `yaml:"key_prefix"`
	ChannelPrefix string        `yaml:"channel_prefix"`
	TTL           time.Duration `yaml:"ttl"`
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

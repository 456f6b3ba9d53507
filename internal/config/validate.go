package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *ServiceConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if !strings.HasPrefix(c.Server.WSPath, "/") {
		return fmt.Errorf("server.ws_path must start with /, got %q", c.Server.WSPath)
	}
	if c.Server.MaxMessageSize < 1 {
		return errors.New("server.max_message_size must be >= 1")
	}
	if c.Server.OutboundCapacity < 1 {
		return errors.New("server.outbound_capacity must be >= 1")
	}

	if len(c.Feeds.Symbols) == 0 {
		return errors.New("feeds.symbols must not be empty")
	}
	if c.Feeds.TickInterval <= 0 {
		return errors.New("feeds.tick_interval must be positive")
	}
	if c.Feeds.HistorySize < 1 {
		return errors.New("feeds.history_size must be >= 1")
	}
	if c.Feeds.PriceMax <= c.Feeds.PriceMin {
		return fmt.Errorf("feeds.price_max (%v) must exceed price_min (%v)", c.Feeds.PriceMax, c.Feeds.PriceMin)
	}
	if c.Feeds.WalkStep <= 0 {
		return errors.New("feeds.walk_step must be positive")
	}

	if c.Archive.Enabled {
		if c.Archive.BatchSize < 1 {
			return errors.New("archive.batch_size must be >= 1")
		}
		if c.Archive.BufferSize < 1 {
			return errors.New("archive.buffer_size must be >= 1")
		}
		if err := c.Archive.Database.validate("archive.database"); err != nil {
			return err
		}
	}

	if c.Mirror.Enabled {
		if len(c.Mirror.Brokers) == 0 {
			return errors.New("mirror.brokers must not be empty")
		}
		if c.Mirror.Topic == "" {
			return errors.New("mirror.topic is required")
		}
		if c.Mirror.BatchSize < 1 {
			return errors.New("mirror.batch_size must be >= 1")
		}
		if c.Mirror.BufferSize < 1 {
			return errors.New("mirror.buffer_size must be >= 1")
		}
	}

	if c.Snapshot.Enabled {
		if c.Snapshot.Addr == "" {
			return errors.New("snapshot.addr is required")
		}
		if c.Snapshot.TTL <= 0 {
			return errors.New("snapshot.ttl must be positive")
		}
	}

	if !strings.HasPrefix(c.Health.Path, "/") {
		return fmt.Errorf("health.path must start with /, got %q", c.Health.Path)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

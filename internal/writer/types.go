package writer

import (
	"encoding/json"
	"time"

	"github.com/stockcast/stockcast/internal/model"
)

// WriterConfig contains configuration for tick writers.
type WriterConfig struct {
	// BatchSize is the number of ticks to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration

	// BufferSize is the initial capacity of the input queue. The queue
	// grows when the downstream store stalls.
	BufferSize int
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: 1 * time.Second,
		BufferSize:    4096,
	}
}

func (c *WriterConfig) applyDefaults() {
	def := DefaultWriterConfig()
	if c.BatchSize < 1 {
		c.BatchSize = def.BatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = def.FlushInterval
	}
	if c.BufferSize < 1 {
		c.BufferSize = def.BufferSize
	}
}

// tickRow represents a row to be inserted into the ticks table.
type tickRow struct {
	Symbol      string
	Seq         int64
	Price       float64
	GeneratedAt time.Time
}

// WriterMetrics holds metrics for a writer.
type WriterMetrics struct {
	Inserts   int64 `json:"inserts"`
	Conflicts int64 `json:"conflicts"`
	Errors    int64 `json:"errors"`
	Flushes   int64 `json:"flushes"`
}

// tickValue encodes a tick as the JSON value shared by the mirror and
// snapshot writers.
func tickValue(t model.PriceTick) []byte {
	data, _ := json.Marshal(t)
	return data
}

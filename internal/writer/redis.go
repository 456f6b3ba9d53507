package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stockcast/stockcast/internal/feed"
	"github.com/stockcast/stockcast/internal/model"
)

// redisClient is the slice of redis.Client the snapshot writer needs.
type redisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// SnapshotConfig controls the snapshot writer's key layout.
type SnapshotConfig struct {
	// KeyPrefix prefixes the per-symbol latest-price key.
	KeyPrefix string

	// ChannelPrefix prefixes the per-symbol pub/sub channel.
	ChannelPrefix string

	// TTL expires stale snapshots once the service stops publishing.
	TTL time.Duration
}

// DefaultSnapshotConfig returns sensible defaults.
func DefaultSnapshotConfig() SnapshotConfig {
	return SnapshotConfig{
		KeyPrefix:     "stock:",
		ChannelPrefix: "price.",
		TTL:           30 * time.Second,
	}
}

func (c *SnapshotConfig) applyDefaults() {
	def := DefaultSnapshotConfig()
	if c.KeyPrefix == "" {
		c.KeyPrefix = def.KeyPrefix
	}
	if c.ChannelPrefix == "" {
		c.ChannelPrefix = def.ChannelPrefix
	}
	if c.TTL <= 0 {
		c.TTL = def.TTL
	}
}

// SnapshotWriter attaches to every feed and maintains the latest price per
// symbol in Redis, publishing each update on a per-symbol channel. Unlike
// the batch writers it coalesces backlog: when the store stalls, only the
// newest tick per symbol is applied once it recovers.
type SnapshotWriter struct {
	cfg    WriterConfig
	snap   SnapshotConfig
	logger *slog.Logger

	// Input from feed attachments
	registry *feed.Registry
	input    *feed.Queue[model.PriceTick]
	atts     []*feed.Attachment

	// Store
	client redisClient

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	mu      sync.Mutex
	metrics WriterMetrics
}

// NewSnapshotWriter creates a writer that caches the registry's latest
// prices.
func NewSnapshotWriter(cfg WriterConfig, snap SnapshotConfig, registry *feed.Registry, client redisClient, logger *slog.Logger) *SnapshotWriter {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	snap.applyDefaults()
	return &SnapshotWriter{
		cfg:      cfg,
		snap:     snap,
		registry: registry,
		input:    feed.NewQueue[model.PriceTick](cfg.BufferSize),
		client:   client,
		logger:   logger,
	}
}

// Start attaches to every feed and begins applying updates.
func (w *SnapshotWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	for _, f := range w.registry.Feeds() {
		w.atts = append(w.atts, f.Attach(w.input))
	}

	w.wg.Add(1)
	go w.consumeLoop()

	w.logger.Info("snapshot writer started",
		"feeds", len(w.atts),
		"key_prefix", w.snap.KeyPrefix,
		"ttl", w.snap.TTL,
	)
	return nil
}

// Stop detaches from the feeds and drains the input queue. The context is
// canceled only after the drain so in-flight commands can complete.
func (w *SnapshotWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping snapshot writer")

	for _, att := range w.atts {
		att.Detach()
	}
	w.input.Close()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("snapshot writer stopped")
	case <-ctx.Done():
		w.logger.Warn("snapshot writer stop timed out")
	}

	if w.cancel != nil {
		w.cancel()
	}
	return nil
}

// Stats returns current metrics.
func (w *SnapshotWriter) Stats() WriterMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

// consumeLoop reads from the input queue, coalescing any backlog down to
// the newest tick per symbol. It exits once the queue is closed and
// drained.
func (w *SnapshotWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		tick, ok := w.input.Pop()
		if !ok {
			return
		}

		latest := map[model.Symbol]model.PriceTick{tick.Symbol: tick}
		for _, t := range w.input.PopBatch(0) {
			latest[t.Symbol] = t
		}

		w.apply(latest)
	}
}

// apply writes each symbol's newest tick and announces it on the symbol's
// channel.
func (w *SnapshotWriter) apply(latest map[model.Symbol]model.PriceTick) {
	for _, tick := range latest {
		data := tickValue(tick)

		key := w.snap.KeyPrefix + string(tick.Symbol)
		if err := w.client.Set(w.ctx, key, data, w.snap.TTL).Err(); err != nil {
			w.logger.Error("redis set failed", "key", key, "error", err)
			w.mu.Lock()
			w.metrics.Errors++
			w.mu.Unlock()
			continue
		}

		channel := w.snap.ChannelPrefix + string(tick.Symbol)
		if err := w.client.Publish(w.ctx, channel, data).Err(); err != nil {
			w.logger.Error("redis publish failed", "channel", channel, "error", err)
			w.mu.Lock()
			w.metrics.Errors++
			w.mu.Unlock()
			continue
		}

		w.mu.Lock()
		w.metrics.Inserts++
		w.mu.Unlock()
	}

	w.mu.Lock()
	w.metrics.Flushes++
	w.mu.Unlock()
}

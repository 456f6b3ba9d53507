package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/stockcast/stockcast/internal/feed"
	"github.com/stockcast/stockcast/internal/model"
)

// kafkaSender is the slice of kafka.Writer the mirror writer needs.
type kafkaSender interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// MirrorWriter attaches to every feed and mirrors ticks onto a Kafka topic.
// Messages are keyed by symbol, so a partition preserves per-symbol order.
type MirrorWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	// Input from feed attachments
	registry *feed.Registry
	input    *feed.Queue[model.PriceTick]
	atts     []*feed.Attachment

	// Broker
	sender kafkaSender

	// Batching
	batch       []kafka.Message
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

// NewMirrorWriter creates a writer that mirrors the registry's ticks.
func NewMirrorWriter(cfg WriterConfig, registry *feed.Registry, sender kafkaSender, logger *slog.Logger) *MirrorWriter {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &MirrorWriter{
		cfg:      cfg,
		registry: registry,
		input:    feed.NewQueue[model.PriceTick](cfg.BufferSize),
		sender:   sender,
		logger:   logger,
		batch:    make([]kafka.Message, 0, cfg.BatchSize),
	}
}

// Start attaches to every feed and begins batching.
func (w *MirrorWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	for _, f := range w.registry.Feeds() {
		w.atts = append(w.atts, f.Attach(w.input))
	}

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("mirror writer started",
		"feeds", len(w.atts),
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop detaches from the feeds, drains the input queue, and publishes what
// remains. ctx bounds the wait and the final publish.
func (w *MirrorWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping mirror writer")

	for _, att := range w.atts {
		att.Detach()
	}
	w.input.Close()

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("mirror writer stopped")
	case <-ctx.Done():
		w.logger.Warn("mirror writer stop timed out")
	}

	// Final flush
	w.flush(ctx)

	return nil
}

// Stats returns current metrics.
func (w *MirrorWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads from the input queue and accumulates batches. It exits
// once the queue is closed and drained. Once shutdown begins, Stop's final
// flush owns the batch.
func (w *MirrorWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		tick, ok := w.input.Pop()
		if !ok {
			return
		}
		if w.handleTick(tick) && w.ctx.Err() == nil {
			w.flush(w.ctx)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *MirrorWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// handleTick transforms and adds a tick to the batch, reporting whether the
// batch is due for a flush.
func (w *MirrorWriter) handleTick(tick model.PriceTick) bool {
	msg := w.transform(tick)

	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, msg)
	return len(w.batch) >= w.cfg.BatchSize
}

// transform converts a PriceTick to a Kafka message.
func (w *MirrorWriter) transform(tick model.PriceTick) kafka.Message {
	return kafka.Message{
		Key:   []byte(tick.Symbol),
		Value: tickValue(tick),
		Time:  tick.Time,
	}
}

// flush publishes the current batch to the broker.
func (w *MirrorWriter) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]kafka.Message, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	if err := w.sender.WriteMessages(ctx, batch...); err != nil {
		w.logger.Error("kafka publish failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch))
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("mirrored ticks",
		"count", len(batch),
		"duration", time.Since(start),
	)
}

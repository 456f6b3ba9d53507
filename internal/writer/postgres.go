package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stockcast/stockcast/internal/feed"
	"github.com/stockcast/stockcast/internal/model"
)

// tickBatcher is the slice of pgxpool.Pool the archive writer needs.
type tickBatcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// ArchiveWriter attaches to every feed and batch-inserts ticks into the
// ticks table. (symbol, seq) is the primary key, so re-delivered ticks
// land as conflicts instead of duplicate rows.
type ArchiveWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	// Input from feed attachments
	registry *feed.Registry
	input    *feed.Queue[model.PriceTick]
	atts     []*feed.Attachment

	// Database
	db tickBatcher

	// Batching
	batch       []tickRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

// NewArchiveWriter creates a writer that archives the registry's ticks.
func NewArchiveWriter(cfg WriterConfig, registry *feed.Registry, db tickBatcher, logger *slog.Logger) *ArchiveWriter {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &ArchiveWriter{
		cfg:      cfg,
		registry: registry,
		input:    feed.NewQueue[model.PriceTick](cfg.BufferSize),
		db:       db,
		logger:   logger,
		batch:    make([]tickRow, 0, cfg.BatchSize),
	}
}

// Start attaches to every feed and begins batching. Start before the feeds
// so the replay on attach is empty.
func (w *ArchiveWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	for _, f := range w.registry.Feeds() {
		w.atts = append(w.atts, f.Attach(w.input))
	}

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("archive writer started",
		"feeds", len(w.atts),
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop detaches from the feeds, drains the input queue, and flushes what
// remains. ctx bounds the wait and the final insert.
func (w *ArchiveWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping archive writer")

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
		w.logger.Info("archive writer stopped")
	case <-ctx.Done():
		w.logger.Warn("archive writer stop timed out")
	}

	// Final flush
	w.flush(ctx)

	return nil
}

// Stats returns current metrics.
func (w *ArchiveWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads from the input queue and accumulates batches. It exits
// once the queue is closed and drained. Once shutdown begins, Stop's final
// flush owns the batch.
func (w *ArchiveWriter) consumeLoop() {
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
func (w *ArchiveWriter) flushLoop() {
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
func (w *ArchiveWriter) handleTick(tick model.PriceTick) bool {
	row := w.transform(tick)

	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, row)
	return len(w.batch) >= w.cfg.BatchSize
}

// transform converts a PriceTick to a tickRow.
func (w *ArchiveWriter) transform(tick model.PriceTick) tickRow {
	return tickRow{
		Symbol:      string(tick.Symbol),
		Seq:         tick.Seq,
		Price:       tick.Price,
		GeneratedAt: tick.Time,
	}
}

// flush writes the current batch to the database.
func (w *ArchiveWriter) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]tickRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed ticks",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *ArchiveWriter) batchInsert(ctx context.Context, rows []tickRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO ticks (symbol, seq, price, generated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (symbol, seq) DO NOTHING
		`, r.Symbol, r.Seq, r.Price, r.GeneratedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}

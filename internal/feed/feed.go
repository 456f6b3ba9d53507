package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/stockcast/stockcast/internal/model"
)

// Feed owns price generation, bounded replay history, and multicast
// distribution for one symbol. Feeds are created once at startup and live
// for the process lifetime; only their generate loops start and stop.
//
// One mutex guards history and the sink set. The generate path, attach,
// and detach all take it, which gives the delivery guarantees: replay is
// gapless and duplicate-free, and no tick reaches a sink after Detach
// returns.
type Feed struct {
	symbol model.Symbol
	cfg    Config
	source PriceSource
	logger *slog.Logger

	mu      sync.Mutex
	history []model.PriceTick
	sinks   map[uint64]TickSink
	nextID  uint64
	seq     int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Attachment is the handle for one attached sink, returned by Attach and
// consumed by Detach.
type Attachment struct {
	feed *Feed
	id   uint64
}

// New creates a feed for symbol. The source supplies prices; cfg controls
// cadence and history depth, with zero values filled from DefaultConfig.
func New(symbol model.Symbol, source PriceSource, cfg Config, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	return &Feed{
		symbol:  symbol,
		cfg:     cfg,
		source:  source,
		logger:  logger.With("symbol", symbol),
		history: make([]model.PriceTick, 0, cfg.HistorySize+1),
		sinks:   make(map[uint64]TickSink),
	}
}

// Symbol returns the feed's symbol.
func (f *Feed) Symbol() model.Symbol {
	return f.symbol
}

// Start launches the generate loop.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel != nil {
		return errors.New("feed already started")
	}
	f.ctx, f.cancel = context.WithCancel(ctx)

	f.wg.Add(1)
	go f.generateLoop()

	f.logger.Debug("feed started",
		"interval", f.cfg.TickInterval,
		"history_size", f.cfg.HistorySize)
	return nil
}

// Stop cancels the generate loop and waits for it to exit. Attached sinks
// stay attached; they simply receive no further ticks.
func (f *Feed) Stop(ctx context.Context) error {
	f.mu.Lock()
	cancel := f.cancel
	f.cancel = nil
	f.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Feed) generateLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-ticker.C:
			f.Publish(f.source.Next())
		}
	}
}

// Publish appends one tick to history (evicting the oldest past capacity)
// and fans it out to every attached sink. The generate loop calls this on
// each cadence; callers may also invoke it directly to inject ticks.
// Push never blocks, so a slow consumer cannot delay the others or the
// next tick.
func (f *Feed) Publish(price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	tick := model.PriceTick{
		Symbol: f.symbol,
		Price:  price,
		Seq:    f.seq,
		Time:   time.Now(),
	}

	f.history = append(f.history, tick)
	if len(f.history) > f.cfg.HistorySize {
		copy(f.history, f.history[1:])
		f.history = f.history[:f.cfg.HistorySize]
	}

	for _, sink := range f.sinks {
		sink.Push(tick)
	}
}

// Attach replays the current history into sink in chronological order and
// registers it for future ticks. Replay and registration are one critical
// section, so the sink's effective stream is exactly replay-then-live: no
// gap, no duplicate.
func (f *Feed) Attach(sink TickSink) *Attachment {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, tick := range f.history {
		sink.Push(tick)
	}

	f.nextID++
	id := f.nextID
	f.sinks[id] = sink

	f.logger.Debug("sink attached",
		"attachment_id", id,
		"replayed", len(f.history),
		"attachments", len(f.sinks))
	return &Attachment{feed: f, id: id}
}

// Detach removes the sink from its feed. Idempotent: second and later
// calls are no-ops. An in-progress broadcast holds the feed mutex, so
// once Detach returns no further tick reaches the sink.
func (a *Attachment) Detach() {
	a.feed.detach(a.id)
}

func (f *Feed) detach(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.sinks[id]; !ok {
		return
	}
	delete(f.sinks, id)

	f.logger.Debug("sink detached",
		"attachment_id", id,
		"attachments", len(f.sinks))
}

// AttachmentCount returns the number of currently attached sinks.
func (f *Feed) AttachmentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sinks)
}

// History returns a copy of the replay history, oldest first.
func (f *Feed) History() []model.PriceTick {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]model.PriceTick, len(f.history))
	copy(out, f.history)
	return out
}

// Stats returns a snapshot of the feed's counters.
func (f *Feed) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Stats{
		Symbol:      f.symbol,
		Ticks:       f.seq,
		Attachments: len(f.sinks),
		HistoryLen:  len(f.history),
	}
}

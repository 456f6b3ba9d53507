package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/stockcast/stockcast/internal/model"
)

// Registry is the process-wide symbol → Feed table, built once at startup
// for the closed symbol universe and read-only afterwards, so lookups take
// no lock. It is the single source of truth for symbol validity.
type Registry struct {
	feeds   map[model.Symbol]*Feed
	symbols []model.Symbol // sorted
	logger  *slog.Logger
}

// NewRegistry builds one feed per configured symbol. Symbols normalize to
// uppercase; empty entries and duplicates after normalization are skipped.
func NewRegistry(cfg RegistryConfig, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultRegistryConfig()
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = def.Symbols
	}
	if cfg.PriceMax <= cfg.PriceMin {
		cfg.PriceMin = def.PriceMin
		cfg.PriceMax = def.PriceMax
	}
	if cfg.WalkStep <= 0 {
		cfg.WalkStep = def.WalkStep
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	feeds := make(map[model.Symbol]*Feed, len(cfg.Symbols))
	symbols := make([]model.Symbol, 0, len(cfg.Symbols))
	for i, raw := range cfg.Symbols {
		sym := model.NormalizeSymbol(raw)
		if sym == "" {
			continue
		}
		if _, ok := feeds[sym]; ok {
			continue
		}
		source := NewRandomWalk(cfg.PriceMin, cfg.PriceMax, cfg.WalkStep, seed+int64(i))
		feeds[sym] = New(sym, source, cfg.Feed, logger)
		symbols = append(symbols, sym)
	}
	sort.Slice(symbols, func(i, j int) bool { return symbols[i] < symbols[j] })

	return &Registry{
		feeds:   feeds,
		symbols: symbols,
		logger:  logger,
	}
}

// Lookup resolves raw symbol text to its feed. Text is normalized first;
// ok reports membership in the universe.
func (r *Registry) Lookup(text string) (*Feed, bool) {
	f, ok := r.feeds[model.NormalizeSymbol(text)]
	return f, ok
}

// Symbols returns the universe in sorted order.
func (r *Registry) Symbols() []model.Symbol {
	out := make([]model.Symbol, len(r.symbols))
	copy(out, r.symbols)
	return out
}

// Feeds returns all feeds in symbol order.
func (r *Registry) Feeds() []*Feed {
	out := make([]*Feed, 0, len(r.symbols))
	for _, sym := range r.symbols {
		out = append(out, r.feeds[sym])
	}
	return out
}

// Start launches every feed's generate loop.
func (r *Registry) Start(ctx context.Context) error {
	for _, sym := range r.symbols {
		if err := r.feeds[sym].Start(ctx); err != nil {
			return fmt.Errorf("start feed %s: %w", sym, err)
		}
	}
	r.logger.Info("feed registry started", "symbols", len(r.symbols))
	return nil
}

// Stop stops every feed, waiting for generate loops to exit.
func (r *Registry) Stop(ctx context.Context) error {
	var firstErr error
	for _, sym := range r.symbols {
		if err := r.feeds[sym].Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.logger.Info("feed registry stopped")
	return firstErr
}

// FeedStats returns per-feed snapshots in symbol order.
func (r *Registry) FeedStats() []Stats {
	out := make([]Stats, 0, len(r.symbols))
	for _, sym := range r.symbols {
		out = append(out, r.feeds[sym].Stats())
	}
	return out
}

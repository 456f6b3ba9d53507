package session

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/stockcast/stockcast/internal/feed"
	"github.com/stockcast/stockcast/internal/model"
)

// Config controls per-session outbound queue sizing.
type Config struct {
	OutboundCapacity int // initial capacity of the outbound queue
}

// DefaultConfig returns the production session configuration.
func DefaultConfig() Config {
	return Config{OutboundCapacity: 64}
}

// Session is the server-side state for one client connection: the
// outbound delivery queue, the table of active feed attachments, and the
// inbound command interpreter.
//
// The outbound queue grows instead of blocking so the feed broadcast path
// never stalls on a slow consumer. A permanently stalled consumer grows
// its own queue until the transport's write deadline drops the connection
// and Teardown reclaims everything; queue stats expose the growth.
type Session struct {
	id       string
	registry *feed.Registry
	logger   *slog.Logger
	out      *feed.Queue[model.ServerMessage]

	mu     sync.Mutex
	subs   map[model.Symbol]*feed.Attachment
	closed bool
}

// New creates a session with a fresh id.
func New(registry *feed.Registry, cfg Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OutboundCapacity < 1 {
		cfg.OutboundCapacity = DefaultConfig().OutboundCapacity
	}
	id := uuid.NewString()
	return &Session{
		id:       id,
		registry: registry,
		logger:   logger.With("session_id", id),
		out:      feed.NewQueue[model.ServerMessage](cfg.OutboundCapacity),
		subs:     make(map[model.Symbol]*feed.Attachment),
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Out returns the outbound queue. Exactly one consumer drains it; the
// queue closes on Teardown.
func (s *Session) Out() *feed.Queue[model.ServerMessage] {
	return s.out
}

// outboundSink adapts the session's outbound queue to feed.TickSink,
// wrapping each tick in a PRICE_UPDATE envelope.
type outboundSink struct {
	s *Session
}

func (o outboundSink) Push(tick model.PriceTick) bool {
	return o.s.out.Push(model.PriceUpdateMessage(tick))
}

// HandleMessage interprets one raw inbound payload and applies it to the
// subscription table. A parse failure emits an ERROR and leaves all state
// untouched; the connection stays open.
func (s *Session) HandleMessage(raw []byte) {
	cmd, err := parseCommand(raw)
	if err != nil {
		s.logger.Warn("invalid message", "payload", truncate(string(raw), 128))
		s.emit(model.ErrorMessage("Invalid message format"))
		return
	}

	switch cmd.verb {
	case verbSubscribe:
		s.handleSubscribe(cmd.symbol)
	case verbUnsubscribe:
		s.handleUnsubscribe(cmd.symbol)
	}
}

// handleSubscribe attaches the session to the symbol's feed. Subscribing
// twice is idempotent: the attach is skipped but the confirmation is
// re-emitted. Replay ticks land on the outbound queue during Attach, so
// the subscriber sees history before the confirmation and live ticks.
func (s *Session) handleSubscribe(symbolText string) {
	sym := model.NormalizeSymbol(symbolText)

	f, ok := s.registry.Lookup(symbolText)
	if !ok {
		s.logger.Warn("subscribe to unsupported symbol", "symbol", string(sym))
		s.emit(model.ErrorMessage(fmt.Sprintf("Unsupported stock: %s", sym)))
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, exists := s.subs[sym]; !exists {
		s.subs[sym] = f.Attach(outboundSink{s: s})
	}
	s.mu.Unlock()

	s.logger.Info("subscribed", "symbol", string(sym))
	s.emit(model.SubscribedMessage(sym))
}

// handleUnsubscribe detaches the session from the symbol's feed. The
// detach completes before the table entry is visible as removed, so the
// subscriptions table never holds a detached handle.
func (s *Session) handleUnsubscribe(symbolText string) {
	sym := model.NormalizeSymbol(symbolText)

	s.mu.Lock()
	att, ok := s.subs[sym]
	if ok {
		delete(s.subs, sym)
		att.Detach()
	}
	s.mu.Unlock()

	if !ok {
		s.logger.Warn("unsubscribe without subscription", "symbol", string(sym))
		s.emit(model.ErrorMessage(fmt.Sprintf("Not subscribed to: %s", sym)))
		return
	}

	s.logger.Info("unsubscribed", "symbol", string(sym))
	s.emit(model.UnsubscribedMessage(sym))
}

// Teardown detaches every live attachment and closes the outbound queue.
// Idempotent, and safe to run concurrently with HandleMessage for the
// same session: once the closed flag is set no command can create a new
// attachment.
func (s *Session) Teardown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	n := len(s.subs)
	for sym, att := range s.subs {
		att.Detach()
		delete(s.subs, sym)
	}
	s.mu.Unlock()

	s.out.Close()
	s.logger.Info("session closed", "subscriptions_cleaned", n)
}

// SubscriptionCount returns the number of active attachments.
func (s *Session) SubscriptionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Subscriptions returns the subscribed symbols in sorted order.
func (s *Session) Subscriptions() []model.Symbol {
	s.mu.Lock()
	out := make([]model.Symbol, 0, len(s.subs))
	for sym := range s.subs {
		out = append(out, sym)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Session) emit(msg model.ServerMessage) {
	s.out.Push(msg)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

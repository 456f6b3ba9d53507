// Package feed implements the per-symbol price fan-out engine.
//
// Each Feed:
//   - Runs one price source on a fixed cadence
//   - Keeps a bounded replay history (oldest evicted first)
//   - Multicasts every tick to all attached sinks without blocking
//
// Attach replays history and registers the sink in one critical section,
// so a subscriber's stream is always replay-then-live with no gap and no
// duplicate. Detach is idempotent and immediate.
//
// The Registry owns one Feed per symbol in the configured universe; it is
// built before connections are accepted and never changes afterwards.
package feed

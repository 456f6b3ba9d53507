// Package writer implements downstream tick consumers.
//
// Writers:
//   - Archive writer (PostgreSQL, batch insert, append-only)
//   - Mirror writer (Kafka, symbol-keyed messages)
//   - Snapshot writer (Redis, latest price per symbol plus pub/sub)
//
// Each writer attaches its own growable input queue to every feed in the
// registry, so a stalled store never slows tick generation or the
// WebSocket path. The archive uses (symbol, seq) as the primary key with
// ON CONFLICT DO NOTHING, so re-delivered ticks are conflicts, not
// duplicate rows.
package writer

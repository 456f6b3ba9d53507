// Package database provides connection pool management for the tick archive.
//
// stockcastd keeps a single PostgreSQL pool; the archive writer is its only
// consumer. Connect fails fast: the pool is pinged before it is handed out,
// so a bad DSN or unreachable host surfaces at startup rather than at the
// first flush.
package database

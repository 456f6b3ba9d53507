// Package server exposes the feed registry over WebSocket.
//
// Each accepted connection:
//   - Gets its own session, identified by a fresh UUID
//   - Runs a read loop feeding client frames to the session
//   - Runs a write loop draining the session's outbound queue
//   - Runs a ping loop keeping the peer alive
//
// Connections never share state with each other; all coordination happens
// through the feed registry. Stop tears down live connections explicitly
// because upgraded sockets are hijacked from the HTTP server and outlive
// Shutdown.
package server
